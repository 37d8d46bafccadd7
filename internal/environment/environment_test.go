package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiser-go/wiser/internal/config"
	"github.com/wiser-go/wiser/internal/store"
	"github.com/wiser-go/wiser/internal/wiser"
)

func open(t *testing.T, fc config.FileConfig) (*Environment, store.Store) {
	t.Helper()
	s := store.NewMemory()
	env, err := Open(context.Background(), fc, Options{Store: s})
	require.NoError(t, err)
	return env, s
}

func TestAddDocumentEmptyBodyReturnsInputInvalid(t *testing.T) {
	env, _ := open(t, config.Default())
	err := env.AddDocument(context.Background(), "doc", "")
	require.ErrorIs(t, err, wiser.ErrInputInvalid)
}

func TestAddDocumentEmptyTitleIsNoop(t *testing.T) {
	env, _ := open(t, config.Default())
	require.NoError(t, env.AddDocument(context.Background(), "", "ignored"))
	n, err := env.DocumentCount(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestAddDocumentUpdatesDocLengthCache(t *testing.T) {
	env, s := open(t, config.Default())
	ctx := context.Background()
	require.NoError(t, env.AddDocument(ctx, "doc1", "hello world"))

	docID, err := s.GetDocumentID(ctx, "doc1")
	require.NoError(t, err)
	require.Greater(t, env.DocLen.Get(docID), int32(0))
	require.Equal(t, int64(env.DocLen.Get(docID)), env.DocLen.Total())
}

func TestAddDocumentRespectsMaxIndexCount(t *testing.T) {
	fc := config.Default()
	fc.MaxIndexCount = 1
	env, _ := open(t, fc)
	ctx := context.Background()

	require.NoError(t, env.AddDocument(ctx, "doc1", "alpha"))
	require.NoError(t, env.AddDocument(ctx, "doc2", "beta"))

	n, err := env.DocumentCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestAddDocumentFlushesAtThreshold(t *testing.T) {
	fc := config.Default()
	fc.BufferUpdateThreshold = 1
	env, _ := open(t, fc)
	ctx := context.Background()

	require.NoError(t, env.AddDocument(ctx, "doc1", "alpha beta"))
	require.Equal(t, 0, env.Buffer.Size())
}

func TestOpenRefusesIndexConfigChangeAfterDocuments(t *testing.T) {
	fc := config.Default()
	env, s := open(t, fc)
	require.NoError(t, env.AddDocument(context.Background(), "doc1", "alpha"))
	require.NoError(t, env.Flush(context.Background()))

	changed := fc
	changed.TokenLen = 3
	_, err := Open(context.Background(), changed, Options{Store: s})
	require.ErrorIs(t, err, wiser.ErrIndexConfigLocked)
}

func TestSearchSeesFlushedDocuments(t *testing.T) {
	env, _ := open(t, config.Default())
	ctx := context.Background()
	require.NoError(t, env.AddDocument(ctx, "doc1", "hello world"))
	require.NoError(t, env.Flush(ctx))

	results, err := env.Search.Search(ctx, "hello")
	require.NoError(t, err)
	require.Len(t, results, 1)
}
