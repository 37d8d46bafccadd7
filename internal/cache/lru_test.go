package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUCachesSuccessfulLoads(t *testing.T) {
	c := NewLRU(2)
	calls := 0
	load := func() ([]byte, bool, error) {
		calls++
		return []byte("v"), true, nil
	}

	v, ok, err := c.Get(1, load)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
	require.Equal(t, 1, calls)

	_, _, _ = c.Get(1, load)
	require.Equal(t, 1, calls, "second get should hit the cache")
}

func TestLRUDoesNotCacheMissesOrErrors(t *testing.T) {
	c := NewLRU(2)

	_, ok, err := c.Get(1, func() ([]byte, bool, error) { return nil, false, nil })
	require.NoError(t, err)
	require.False(t, ok)

	calls := 0
	_, _, _ = c.Get(1, func() ([]byte, bool, error) {
		calls++
		return nil, false, nil
	})
	require.Equal(t, 1, calls, "a miss must not be cached")

	_, _, err = c.Get(2, func() ([]byte, bool, error) { return nil, false, errors.New("boom") })
	require.Error(t, err)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2)
	load := func(v byte) func() ([]byte, bool, error) {
		return func() ([]byte, bool, error) { return []byte{v}, true, nil }
	}

	_, _, _ = c.Get(1, load('a'))
	_, _, _ = c.Get(2, load('b'))
	_, _, _ = c.Get(1, load('x')) // touch 1, making 2 the LRU entry
	_, _, _ = c.Get(3, load('c')) // evicts 2

	calls := 0
	_, _, _ = c.Get(2, func() ([]byte, bool, error) {
		calls++
		return []byte{'b'}, true, nil
	})
	require.Equal(t, 1, calls, "entry 2 should have been evicted")
}

func TestLRUInvalidate(t *testing.T) {
	c := NewLRU(2)
	load := func() ([]byte, bool, error) { return []byte("v"), true, nil }
	_, _, _ = c.Get(1, load)
	c.Invalidate(1)

	calls := 0
	_, _, _ = c.Get(1, func() ([]byte, bool, error) {
		calls++
		return []byte("v2"), true, nil
	})
	require.Equal(t, 1, calls)
}
