package buffer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiser-go/wiser/internal/postings"
	"github.com/wiser-go/wiser/internal/store"
)

func TestBufferSizeCountsDistinctTokens(t *testing.T) {
	b := New()
	b.Add(1, 10, 0)
	b.Add(1, 10, 1)
	b.Add(2, 10, 0)
	require.Equal(t, 2, b.Size())
}

func TestBufferMergeCombinesAcrossDocs(t *testing.T) {
	a := New()
	a.Add(1, 1, 0)
	other := New()
	other.Add(1, 2, 0)
	other.Add(3, 2, 5)

	a.Merge(other)

	list, ok := a.Get(1)
	require.True(t, ok)
	require.Len(t, list.Items, 2)
	require.EqualValues(t, 2, list.DocumentsCount())

	_, ok = a.Get(3)
	require.True(t, ok)
	require.Equal(t, 2, a.Size())
}

func TestFlushMergesWithPersistentPostings(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	// Seed a persistent posting for token 1 from "document A". The token
	// row must exist first: UpdatePostings ignores unknown token ids.
	_, _, seedErr := s.GetTokenInfo(ctx, "ab", true)
	require.NoError(t, seedErr)
	pre := &postings.List{}
	pre.Add(1, 0)
	require.NoError(t, s.UpdatePostings(ctx, 1, pre.DocumentsCount(), pre.Serialize(postings.None)))

	b := New()
	b.Add(1, 2, 0) // document B, same token

	require.NoError(t, Flush(ctx, b, s, postings.None, nil, nil))
	require.Equal(t, 0, b.Size())

	rec, ok, err := s.GetPostings(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, rec.DocsCount)

	merged, decOK := postings.Deserialize(rec.Postings, postings.None)
	require.True(t, decOK)
	require.Len(t, merged.Items, 2)
	require.EqualValues(t, 1, merged.Items[0].DocID)
	require.EqualValues(t, 2, merged.Items[1].DocID)
}

func TestFlushLeavesBufferAndStoreUntouchedOnFailure(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	_, _, seedErr := s.GetTokenInfo(ctx, "ab", true)
	require.NoError(t, seedErr)
	pre := &postings.List{}
	pre.Add(1, 0)
	preBytes := pre.Serialize(postings.None)
	require.NoError(t, s.UpdatePostings(ctx, 1, pre.DocumentsCount(), preBytes))

	b := New()
	b.Add(1, 2, 0)
	b.Add(2, 2, 1)

	s.FailNextUpdatePostings(0)
	err := Flush(ctx, b, s, postings.None, nil, nil)
	require.Error(t, err)

	// Buffer is retained so the caller can retry (SPEC_FULL.md §9
	// decision: do not clear on failure).
	require.True(t, b.Size() == 2)

	// Persistent state for token 1 is byte-identical to the pre-flush
	// snapshot (spec.md §8 invariant 7).
	rec, ok, err := s.GetPostings(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, preBytes, rec.Postings)
}
