// Package search implements the query pipeline of spec.md §4.6: tokenize,
// fetch-and-union persistent+buffered postings per token, intersect
// candidate document sets, optionally verify phrase adjacency, score with
// BM25 or log-TF·IDF, and rank. It is grounded in the teacher's
// core/search.go searchDocs routine, generalized from the teacher's
// single frequency-based score to the spec's configurable BM25/TF-IDF
// pair and from a sequential per-token fetch to an errgroup-parallel one
// (SPEC_FULL.md §4.11/§5).
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	roaring "github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wiser-go/wiser/internal/buffer"
	"github.com/wiser-go/wiser/internal/cache"
	"github.com/wiser-go/wiser/internal/config"
	"github.com/wiser-go/wiser/internal/doclen"
	"github.com/wiser-go/wiser/internal/metrics"
	"github.com/wiser-go/wiser/internal/postings"
	"github.com/wiser-go/wiser/internal/store"
	"github.com/wiser-go/wiser/internal/tokenizer"
)

// Result is one ranked hit.
type Result struct {
	DocID int32
	Score float64
}

// Engine answers queries against a Store, a postings Cache, the ingest
// Buffer and the DocLengthCache, per spec.md §4.6.
type Engine struct {
	Store    store.Store
	Buffer   *buffer.Buffer
	DocLen   *doclen.Cache
	Cache    cache.Cache
	Index    config.IndexConfig
	Runtime  config.RuntimeConfig
	Log      *zap.SugaredLogger
	Recorder metrics.Recorder

	// DocumentCount, if set, supplies N for scoring instead of calling
	// Store.GetDocumentCount directly — Environment wires this to its
	// singleflight-coalesced DocumentCount (SPEC_FULL.md §5) so concurrent
	// queries scoring at the same time don't each trigger their own count.
	DocumentCount func(ctx context.Context) (int32, error)
}

// tokenPostings is the per-token working set built by step 3 of spec.md
// §4.6: docs[t] (sorted), df[t], and per-doc tf/positions.
type tokenPostings struct {
	token     string
	docs      []int32
	df        int32
	tf        map[int32]int32
	positions map[int32][]int32
}

// Search runs the full pipeline for query q and returns ranked results.
func (e *Engine) Search(ctx context.Context, q string) ([]Result, error) {
	start := time.Now()
	var phases struct {
		tokenize, postings, intersect, phrase, score time.Duration
	}

	t0 := time.Now()
	tokenStrings, tokenIDs := e.tokenizeQuery(ctx, q)
	phases.tokenize = time.Since(t0)

	if len(tokenIDs) == 0 {
		results, err := e.likeFallback(ctx, q)
		e.logQuery(q, nil, e.Runtime.EnablePhraseSearch, len(results), results, time.Since(start), phases)
		return results, err
	}

	t0 = time.Now()
	perToken, err := e.fetchTokenPostings(ctx, tokenStrings, tokenIDs)
	phases.postings = time.Since(t0)
	if err != nil {
		return nil, err
	}

	t0 = time.Now()
	candidates := intersectCandidates(perToken)
	phases.intersect = time.Since(t0)

	t0 = time.Now()
	result := candidates
	if e.Runtime.EnablePhraseSearch && len(perToken) >= 2 {
		result = filterByPhrase(candidates, perToken)
	}
	phases.phrase = time.Since(t0)

	t0 = time.Now()
	scored := e.score(ctx, result, perToken)
	phases.score = time.Since(t0)

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].DocID < scored[j].DocID
	})

	elapsed := time.Since(start)
	if e.Recorder != nil {
		e.Recorder.QueryDuration(elapsed, e.Runtime.EnablePhraseSearch, scoringLabel(e.Runtime.ScoringMethod))
	}
	e.logQuery(q, tokenIDs, e.Runtime.EnablePhraseSearch, len(scored), scored, elapsed, phases)
	return scored, nil
}

// tokenizeQuery implements step 1: tokenize, look up (never insert) each
// token's id, retain only token_ids > 0. T preserves order and duplicates.
func (e *Engine) tokenizeQuery(ctx context.Context, q string) ([]string, []int64) {
	var texts []string
	var ids []int64
	tokenizer.Split(q, e.Index.TokenLen, func(tok tokenizer.Token) {
		info, ok, err := e.Store.GetTokenInfo(ctx, tok.Text, false)
		if err != nil || !ok || info.ID <= 0 {
			return
		}
		texts = append(texts, tok.Text)
		ids = append(ids, info.ID)
	})
	return texts, ids
}

// likeFallback implements step 2.
func (e *Engine) likeFallback(ctx context.Context, q string) ([]Result, error) {
	docIDs, err := e.Store.SearchDocumentsLike(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("wiser: like fallback: %w", err)
	}
	sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })
	out := make([]Result, len(docIDs))
	for i, id := range docIDs {
		out[i] = Result{DocID: id, Score: 1.0}
	}
	return out, nil
}

// fetchTokenPostings implements step 3, fanning out one fetch per distinct
// token id over an errgroup (SPEC_FULL.md §4.11/§5): persistent postings
// load through the cache, then union with the buffer. The returned slice
// has exactly len(ids) entries, one per position in T — a token id fetched
// once is shared by pointer across every occurrence — so callers walking
// T for phrase adjacency (spec.md §4.6 step 5) or summing Σₜ (step 6) see
// T's real order and duplicates, not the deduped fetch set.
func (e *Engine) fetchTokenPostings(ctx context.Context, texts []string, ids []int64) ([]*tokenPostings, error) {
	distinct := make(map[int64]string)
	order := make([]int64, 0, len(ids))
	for i, id := range ids {
		if _, seen := distinct[id]; !seen {
			order = append(order, id)
		}
		distinct[id] = texts[i]
	}

	fetched := make(map[int64]*tokenPostings, len(order))
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for _, tokenID := range order {
		tokenID := tokenID
		g.Go(func() error {
			tp, err := e.fetchOneToken(gctx, distinct[tokenID], tokenID)
			if err != nil {
				return err
			}
			mu.Lock()
			fetched[tokenID] = tp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]*tokenPostings, len(ids))
	for i, id := range ids {
		results[i] = fetched[id]
	}
	return results, nil
}

func (e *Engine) fetchOneToken(ctx context.Context, text string, tokenID int64) (*tokenPostings, error) {
	var df int32
	load := func() ([]byte, bool, error) {
		rec, ok, err := e.Store.GetPostings(ctx, tokenID)
		if err != nil || !ok {
			return nil, false, err
		}
		df = rec.DocsCount
		return rec.Postings, true, nil
	}

	var data []byte
	var ok bool
	var err error
	if e.Cache != nil {
		data, ok, err = e.Cache.Get(tokenID, load)
	} else {
		data, ok, err = load()
	}
	if err != nil {
		return nil, fmt.Errorf("wiser: load postings for %q: %w", text, err)
	}

	tp := &tokenPostings{token: text, tf: make(map[int32]int32), positions: make(map[int32][]int32)}
	if ok && len(data) > 0 {
		list, _ := postings.Deserialize(data, e.Index.CompressMethod)
		for _, item := range list.Items {
			tp.tf[item.DocID] = int32(len(item.Positions))
			tp.positions[item.DocID] = append([]int32(nil), item.Positions...)
			tp.docs = append(tp.docs, item.DocID)
		}
		tp.df = df
	}

	if buffered, ok := e.Buffer.Get(tokenID); ok {
		for _, item := range buffered.Items {
			if _, existed := tp.tf[item.DocID]; !existed {
				tp.docs = append(tp.docs, item.DocID)
			}
			tp.tf[item.DocID] += int32(len(item.Positions))
			tp.positions[item.DocID] = mergeSortedUnique(tp.positions[item.DocID], item.Positions)
		}
	}

	sort.Slice(tp.docs, func(i, j int) bool { return tp.docs[i] < tp.docs[j] })
	if _, ok := e.Buffer.Get(tokenID); ok {
		// df reflects persistent docs_count plus any doc newly introduced by
		// the buffer, matching how a subsequent flush would recompute it.
		tp.df = int32(len(tp.docs))
	}
	return tp, nil
}

func mergeSortedUnique(a, b []int32) []int32 {
	out := append([]int32(nil), a...)
	out = append(out, b...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:0]
	var prev int32 = -1
	first := true
	for _, p := range out {
		if first || p != prev {
			dedup = append(dedup, p)
			prev = p
			first = false
		}
	}
	return dedup
}

// intersectCandidates implements step 4: candidate set C := ∩ₜ docs[t],
// using a Roaring bitmap per token (SPEC_FULL.md §4.11).
func intersectCandidates(perToken []*tokenPostings) []int32 {
	if len(perToken) == 0 {
		return nil
	}
	bitmaps := make([]*roaring.Bitmap, len(perToken))
	for i, tp := range perToken {
		bm := roaring.New()
		for _, d := range tp.docs {
			if d > 0 {
				bm.Add(uint32(d))
			}
		}
		bitmaps[i] = bm
	}
	result := roaring.FastAnd(bitmaps...)
	arr := result.ToArray()
	out := make([]int32, len(arr))
	for i, v := range arr {
		out[i] = int32(v)
	}
	return out
}

// filterByPhrase implements step 5: positional adjacency verification via
// two-pointer merge over T's ascending position slices.
func filterByPhrase(candidates []int32, perToken []*tokenPostings) []int32 {
	out := make([]int32, 0, len(candidates))
	for _, d := range candidates {
		chain := perToken[0].positions[d]
		ok := len(chain) > 0
		for i := 1; ok && i < len(perToken); i++ {
			chain = advancePhrase(chain, perToken[i].positions[d])
			if len(chain) == 0 {
				ok = false
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

// advancePhrase computes ⟨p+1 : p ∈ chain⟩ ∩ next via two-pointer merge,
// both inputs ascending.
func advancePhrase(chain, next []int32) []int32 {
	out := make([]int32, 0, len(chain))
	i, j := 0, 0
	for i < len(chain) && j < len(next) {
		want := chain[i] + 1
		switch {
		case want == next[j]:
			out = append(out, want)
			i++
			j++
		case want < next[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// score implements step 6.
func (e *Engine) score(ctx context.Context, docs []int32, perToken []*tokenPostings) []Result {
	countFn := e.DocumentCount
	if countFn == nil {
		countFn = e.Store.GetDocumentCount
	}
	n, err := countFn(ctx)
	if err != nil {
		n = int32(e.DocLen.Count())
	}
	total := e.DocLen.Total()
	var avgdl float64
	if n > 0 {
		avgdl = float64(total) / float64(n)
	}

	out := make([]Result, 0, len(docs))
	for _, d := range docs {
		var s float64
		for _, tp := range perToken {
			tf := tp.tf[d]
			if tf <= 0 {
				continue
			}
			var contrib float64
			switch e.Runtime.ScoringMethod {
			case config.BM25:
				idf := math.Log((float64(n)-float64(tp.df)+0.5)/(float64(tp.df)+0.5) + 1)
				if idf < 0 {
					idf = 0
				}
				dl := float64(e.DocLen.Get(d))
				denom := float64(tf) + e.Runtime.BM25K1*(1-e.Runtime.BM25B+e.Runtime.BM25B*dl/nonZero(avgdl))
				contrib = idf * (float64(tf) * (e.Runtime.BM25K1 + 1)) / nonZero(denom)
			default:
				df := tp.df
				if df < 0 {
					df = 0
				}
				idf := math.Log((1+float64(n))/(1+float64(df))) + 1
				contrib = (1 + math.Log(float64(tf))) * idf
			}
			if math.IsNaN(contrib) || math.IsInf(contrib, 0) {
				contrib = 0
			}
			s += contrib
		}
		out = append(out, Result{DocID: d, Score: s})
	}
	return out
}

func nonZero(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

func scoringLabel(m config.ScoringMethod) string {
	if m == config.BM25 {
		return "bm25"
	}
	return "tfidf"
}

func (e *Engine) logQuery(q string, tokenIDs []int64, phrase bool, resultCount int, results []Result, elapsed time.Duration, phases struct {
	tokenize, postings, intersect, phrase, score time.Duration
}) {
	if e.Log == nil {
		return
	}
	top := results
	if len(top) > 10 {
		top = top[:10]
	}
	summary := make([]string, len(top))
	for i, r := range top {
		summary[i] = fmt.Sprintf("%d:%.4f", r.DocID, r.Score)
	}
	e.Log.Infow("query completed",
		"query", q,
		"token_count", len(tokenIDs),
		"token_ids", tokenIDs,
		"phrase", phrase,
		"result_count", resultCount,
		"top10", strings.Join(summary, ","),
		"elapsed_us", elapsed.Microseconds(),
		"phase_tokenize_us", phases.tokenize.Microseconds(),
		"phase_postings_us", phases.postings.Microseconds(),
		"phase_intersect_us", phases.intersect.Microseconds(),
		"phase_phrase_us", phases.phrase.Microseconds(),
		"phase_score_us", phases.score.Microseconds(),
	)
}
