package postings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildList() *List {
	l := &List{}
	l.Add(1, 0)
	l.Add(1, 3)
	l.Add(1, 7)
	l.Add(5, 2)
	l.Add(9, 0)
	l.Add(9, 1)
	l.Add(9, 2)
	l.Add(9, 3)
	return l
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, method := range []CompressMethod{None, Golomb} {
		l := buildList()
		data := l.Serialize(method)
		got, ok := Deserialize(data, method)
		require.True(t, ok)
		require.Equal(t, l.Items, got.Items)
		require.EqualValues(t, 3, got.DocumentsCount())
	}
}

func TestMergeOrdersByDocIDAndDedupesPositions(t *testing.T) {
	a := &List{}
	a.Add(1, 0)
	a.Add(5, 1)
	b := &List{}
	b.Add(1, 0) // duplicate position for doc 1
	b.Add(1, 4)
	b.Add(3, 2)

	a.Merge(b)

	require.Len(t, a.Items, 3)
	require.EqualValues(t, 1, a.Items[0].DocID)
	require.Equal(t, []int32{0, 4}, a.Items[0].Positions)
	require.EqualValues(t, 3, a.Items[1].DocID)
	require.EqualValues(t, 5, a.Items[2].DocID)
}

func TestDeserializeTruncatedRawReturnsPartialAndNotOK(t *testing.T) {
	l := buildList()
	data := l.Serialize(None)
	truncated := data[:len(data)-2]
	got, ok := Deserialize(truncated, None)
	require.False(t, ok)
	require.Less(t, len(got.Items), len(l.Items)+1)
}

func TestDeserializeTruncatedGolombReturnsPartialAndNotOK(t *testing.T) {
	l := buildList()
	data := l.Serialize(Golomb)
	truncated := data[:len(data)-1]
	_, ok := Deserialize(truncated, Golomb)
	require.False(t, ok)
}
