package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiser-go/wiser/internal/buffer"
	"github.com/wiser-go/wiser/internal/config"
	"github.com/wiser-go/wiser/internal/doclen"
	"github.com/wiser-go/wiser/internal/postings"
	"github.com/wiser-go/wiser/internal/store"
	"github.com/wiser-go/wiser/internal/tokenizer"
)

// index tokenizes body with tokenLen and writes it straight to the
// persistent store (bypassing the buffer), merging with any postings
// already stored for each token, used to build fixed test corpora without
// exercising add_document/flush here.
func index(t *testing.T, s store.Store, dl *doclen.Cache, tokenLen int, title, body string) int32 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AddDocument(ctx, title, body, 0))
	docID, err := s.GetDocumentID(ctx, title)
	require.NoError(t, err)

	lists := make(map[int64]*postings.List)
	var n int32
	tokenizer.Split(body, tokenLen, func(tok tokenizer.Token) {
		info, _, err := s.GetTokenInfo(ctx, tok.Text, true)
		require.NoError(t, err)
		l, ok := lists[info.ID]
		if !ok {
			l = &postings.List{}
			lists[info.ID] = l
		}
		l.Add(docID, tok.Position)
		n++
	})
	for tokenID, l := range lists {
		rec, ok, err := s.GetPostings(ctx, tokenID)
		require.NoError(t, err)
		if ok {
			existing, _ := postings.Deserialize(rec.Postings, postings.None)
			existing.Merge(l)
			l = existing
		}
		require.NoError(t, s.UpdatePostings(ctx, tokenID, l.DocumentsCount(), l.Serialize(postings.None)))
	}
	require.NoError(t, s.UpdateDocumentTokenCount(ctx, docID, n))
	dl.Set(docID, n)
	return docID
}

func newEngine(runtime config.RuntimeConfig) (*Engine, store.Store, *doclen.Cache) {
	s := store.NewMemory()
	dl := doclen.New()
	e := &Engine{
		Store:   s,
		Buffer:  buffer.New(),
		DocLen:  dl,
		Index:   config.IndexConfig{TokenLen: 2, CompressMethod: postings.None},
		Runtime: runtime,
	}
	return e, s, dl
}

func defaultRuntime() config.RuntimeConfig {
	return config.RuntimeConfig{ScoringMethod: config.BM25, BM25K1: 1.2, BM25B: 0.75}
}

// S1: empty corpus.
func TestSearchEmptyCorpusReturnsEmpty(t *testing.T) {
	e, _, _ := newEngine(defaultRuntime())
	results, err := e.Search(context.Background(), "anything")
	require.NoError(t, err)
	require.Empty(t, results)
}

// S2/S3-style: phrase filter distinguishes adjacency.
func TestSearchPhraseFilterRequiresAdjacency(t *testing.T) {
	e, s, dl := newEngine(defaultRuntime())
	e.Runtime.EnablePhraseSearch = true

	docA := index(t, s, dl, 2, "A", "abcd")
	docB := index(t, s, dl, 2, "B", "acbd")

	results, err := e.Search(context.Background(), "bcd")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, docA, results[0].DocID)
	_ = docB
}

func TestSearchPhraseOffReturnsIntersectionOnly(t *testing.T) {
	e, s, dl := newEngine(defaultRuntime())
	e.Runtime.EnablePhraseSearch = false

	docA := index(t, s, dl, 2, "A", "abcd")
	index(t, s, dl, 2, "B", "acbd")

	results, err := e.Search(context.Background(), "bcd")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, docA, results[0].DocID)
}

// Invariant 8: intersection correctness for multi-token, non-phrase queries.
func TestSearchIntersectionRequiresAllTokens(t *testing.T) {
	e, s, dl := newEngine(defaultRuntime())

	index(t, s, dl, 2, "A", "hello world")
	index(t, s, dl, 2, "B", "hello there")

	results, err := e.Search(context.Background(), "hello world")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

// LIKE fallback for zero-token queries (e.g. a single character, shorter
// than token_len).
func TestSearchZeroTokenQueryFallsBackToLike(t *testing.T) {
	e, s, dl := newEngine(defaultRuntime())
	index(t, s, dl, 2, "A", "needle in a haystack.")

	results, err := e.Search(context.Background(), ".")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 1.0, results[0].Score)
}

// S6-style: under BM25, a rare-term query returns only the rare-term
// document, with a positive score.
func TestSearchBM25RanksRareTermDocument(t *testing.T) {
	bm25Runtime := defaultRuntime()
	e, s, dl := newEngine(bm25Runtime)
	docRare := index(t, s, dl, 2, "rare", "zz filler filler filler filler")
	for i := 0; i < 5; i++ {
		index(t, s, dl, 2, string(rune('A'+i)), "filler filler filler filler filler")
	}

	bm25Results, err := e.Search(context.Background(), "zz")
	require.NoError(t, err)
	require.Len(t, bm25Results, 1)
	require.Equal(t, docRare, bm25Results[0].DocID)
	require.Greater(t, bm25Results[0].Score, 0.0)
}

func TestSearchQueryTokensDropTokensMissingFromStore(t *testing.T) {
	e, _, _ := newEngine(defaultRuntime())
	texts, ids := e.tokenizeQuery(context.Background(), "aa")
	require.Empty(t, texts)
	require.Empty(t, ids)
}

// fetchTokenPostings must fetch a repeated token's postings once but still
// hand phrase filtering the full duplicate-preserving sequence. Query "aaa"
// tokenizes (token_len 2) to T = ["aa", "aa"], one entry per overlapping
// window; collapsing T to its distinct token would make the second "aa"
// adjacency check trivially vacuous.
func TestSearchPhraseFilterSeesRepeatedQueryToken(t *testing.T) {
	e, s, dl := newEngine(defaultRuntime())
	e.Runtime.EnablePhraseSearch = true

	docTwice := index(t, s, dl, 2, "twice", "aaa")
	index(t, s, dl, 2, "once", "aab")

	results, err := e.Search(context.Background(), "aaa")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, docTwice, results[0].DocID)
}

// Scoring's Σₜ sum must walk T's duplicates too: a document matching a
// repeated query token should score strictly higher than one that would
// produce the same df/tf values for a single occurrence.
func TestSearchScoreSumsRepeatedQueryToken(t *testing.T) {
	e, s, dl := newEngine(defaultRuntime())
	e.Runtime.EnablePhraseSearch = false

	index(t, s, dl, 2, "doc", "aaa")

	single, err := e.Search(context.Background(), "aa")
	require.NoError(t, err)
	require.Len(t, single, 1)

	repeated, err := e.Search(context.Background(), "aaa")
	require.NoError(t, err)
	require.Len(t, repeated, 1)

	require.Greater(t, repeated[0].Score, single[0].Score)
}
