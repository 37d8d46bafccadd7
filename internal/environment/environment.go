// Package environment wires together the store, ingest buffer,
// document-length cache, and search engine into the single coordinator
// spec.md calls the Environment: the analogue of the teacher's
// core.Engine (index/core/engine.go), generalized from the teacher's
// worker-channel document intake to the spec's synchronous,
// externally-serialized add_document/flush state machine (spec.md §4.4,
// §4.7, §5).
package environment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wiser-go/wiser/internal/backup"
	"github.com/wiser-go/wiser/internal/buffer"
	"github.com/wiser-go/wiser/internal/cache"
	"github.com/wiser-go/wiser/internal/config"
	"github.com/wiser-go/wiser/internal/doclen"
	"github.com/wiser-go/wiser/internal/events"
	"github.com/wiser-go/wiser/internal/metrics"
	"github.com/wiser-go/wiser/internal/search"
	"github.com/wiser-go/wiser/internal/store"
	"github.com/wiser-go/wiser/internal/tokenizer"
	"github.com/wiser-go/wiser/internal/wiser"
)

const settingTokenLen = "token_len"
const settingCompressMethod = "compress_method"

// Environment is the top-level handle a deployment opens once: it owns
// the store connection, the ingest buffer, the document-length cache and
// the search engine, and serializes writes the way spec.md §5 requires
// (callers must hold writeMu around AddDocument/Flush themselves if they
// run it from more than one goroutine; Search takes its own read path).
type Environment struct {
	writeMu sync.Mutex

	Store   store.Store
	Buffer  *buffer.Buffer
	DocLen  *doclen.Cache
	Cache   cache.Cache
	Search  *search.Engine
	Events  events.Publisher
	Backup  backup.Uploader
	Metrics metrics.Recorder
	Log     *zap.SugaredLogger

	index    config.IndexConfig
	runtime  config.RuntimeConfig
	dbPath   string
	indexed  int64
	countSF  singleflight.Group
}

// Options bundles Open's dependencies; fields left nil/zero fall back to
// the no-op defaults described in SPEC_FULL.md §4.9/§4.12/§4.13.
type Options struct {
	Store   store.Store
	DBPath  string
	Cache   cache.Cache
	Events  events.Publisher
	Backup  backup.Uploader
	Metrics metrics.Recorder
	Log     *zap.SugaredLogger
}

// Open reconciles fc against the store's persisted settings, seeds the
// DocLengthCache, and returns a ready Environment. It errors with
// wiser.ErrIndexConfigLocked if documents already exist and fc disagrees
// with the persisted index-critical settings (SPEC_FULL.md §4.8,
// resolving spec.md §9's compress_method open question as "refuse").
func Open(ctx context.Context, fc config.FileConfig, opts Options) (*Environment, error) {
	idx, rt, err := fc.Split()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wiser.ErrConfigInvalid, err)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("wiser: environment.Open requires a Store")
	}

	docCount, err := opts.Store.GetDocumentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
	}

	idx, err = reconcileIndexConfig(ctx, opts.Store, idx, docCount)
	if err != nil {
		return nil, err
	}

	dl := doclen.New()
	counts, err := opts.Store.GetAllDocumentTokenCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
	}
	seed := make(map[int32]int32, len(counts))
	for _, c := range counts {
		seed[c.DocID] = c.TokenCount
	}
	dl.Seed(seed)

	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	pub := opts.Events
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	up := opts.Backup
	if up == nil {
		up = backup.NoopUploader{}
	}

	buf := buffer.New()
	var logger *zap.SugaredLogger
	if opts.Log != nil {
		logger = opts.Log
	}

	env := &Environment{
		Store:   opts.Store,
		Buffer:  buf,
		DocLen:  dl,
		Cache:   opts.Cache,
		Events:  pub,
		Backup:  up,
		Metrics: rec,
		Log:     logger,
		index:   idx,
		runtime: rt,
		dbPath:  opts.DBPath,
		indexed: int64(docCount),
	}
	env.Search = &search.Engine{
		Store:         opts.Store,
		Buffer:        buf,
		DocLen:        dl,
		Cache:         opts.Cache,
		Index:         idx,
		Runtime:       rt,
		Log:           logger,
		Recorder:      rec,
		DocumentCount: env.DocumentCount,
	}
	return env, nil
}

func reconcileIndexConfig(ctx context.Context, s store.Store, fileIdx config.IndexConfig, docCount int32) (config.IndexConfig, error) {
	persistedLen, err := s.GetSetting(ctx, settingTokenLen)
	if err != nil {
		return config.IndexConfig{}, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
	}
	persistedMethod, err := s.GetSetting(ctx, settingCompressMethod)
	if err != nil {
		return config.IndexConfig{}, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
	}

	if persistedLen == "" {
		// First open: persist the file config as the index-critical truth.
		if err := s.SetSetting(ctx, settingTokenLen, fmt.Sprintf("%d", fileIdx.TokenLen)); err != nil {
			return config.IndexConfig{}, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
		}
		if err := s.SetSetting(ctx, settingCompressMethod, config.CompressMethodSettingValue(fileIdx.CompressMethod)); err != nil {
			return config.IndexConfig{}, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
		}
		return fileIdx, nil
	}

	persisted := config.IndexConfig{CompressMethod: config.ParseCompressMethodSetting(persistedMethod)}
	fmt.Sscanf(persistedLen, "%d", &persisted.TokenLen)

	if docCount > 0 && (persisted.TokenLen != fileIdx.TokenLen || persisted.CompressMethod != fileIdx.CompressMethod) {
		return config.IndexConfig{}, fmt.Errorf("%w: file config (token_len=%d, compress_method=%v) disagrees with persisted (token_len=%d, compress_method=%v)",
			wiser.ErrIndexConfigLocked, fileIdx.TokenLen, fileIdx.CompressMethod, persisted.TokenLen, persisted.CompressMethod)
	}
	if docCount == 0 {
		// No documents yet: the file config may still win.
		if err := s.SetSetting(ctx, settingTokenLen, fmt.Sprintf("%d", fileIdx.TokenLen)); err != nil {
			return config.IndexConfig{}, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
		}
		if err := s.SetSetting(ctx, settingCompressMethod, config.CompressMethodSettingValue(fileIdx.CompressMethod)); err != nil {
			return config.IndexConfig{}, fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
		}
		return fileIdx, nil
	}
	return persisted, nil
}

// AddDocument implements spec.md §4.4. Callers running multiple writer
// goroutines must serialize around it themselves (spec.md §5); it does
// not take its own lock beyond the one guarding its own bookkeeping.
func (e *Environment) AddDocument(ctx context.Context, title, body string) error {
	if title == "" {
		// A no-op separator signal; no flush required.
		return nil
	}
	if e.runtime.MaxIndexCount >= 0 && e.indexed >= int64(e.runtime.MaxIndexCount) {
		return nil
	}
	if body == "" {
		return fmt.Errorf("%w: empty body for title %q", wiser.ErrInputInvalid, title)
	}

	if err := e.Store.AddDocument(ctx, title, body, 0); err != nil {
		return fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
	}
	docID, err := e.Store.GetDocumentID(ctx, title)
	if err != nil || docID <= 0 {
		return fmt.Errorf("%w: lookup doc id for %q: %v", wiser.ErrStoreUnavailable, title, err)
	}

	var termCount int32
	tokenizer.Split(body, e.index.TokenLen, func(tok tokenizer.Token) {
		info, _, err := e.Store.GetTokenInfo(ctx, tok.Text, true)
		if err != nil {
			return
		}
		e.Buffer.Add(info.ID, docID, tok.Position)
		termCount++
	})

	if err := e.Store.UpdateDocumentTokenCount(ctx, docID, termCount); err != nil {
		return fmt.Errorf("%w: %v", wiser.ErrStoreUnavailable, err)
	}
	e.DocLen.Set(docID, termCount)
	e.indexed++
	e.Metrics.DocumentIndexed()
	e.Metrics.BufferTokens(e.Buffer.Size())

	if e.runtime.BufferUpdateThreshold > 0 && e.Buffer.Size() >= e.runtime.BufferUpdateThreshold {
		return e.Flush(ctx)
	}
	return nil
}

// Flush implements spec.md §4.5, publishing an index-updated event on
// success (SPEC_FULL.md §4.12) and recording flush metrics.
func (e *Environment) Flush(ctx context.Context) error {
	if e.Buffer.Size() == 0 {
		return nil
	}
	tokenIDs := make([]int64, 0, e.Buffer.Size())
	for id := range e.Buffer.Snapshot() {
		tokenIDs = append(tokenIDs, id)
	}

	start := time.Now()
	err := buffer.Flush(ctx, e.Buffer, e.Store, e.index.CompressMethod, e.Log, e.invalidateCache)
	e.Metrics.FlushDuration(time.Since(start))
	if err != nil {
		e.Metrics.FlushFailure()
		return err
	}
	e.Metrics.BufferTokens(e.Buffer.Size())
	_ = e.Events.PublishFlush(ctx, events.FlushEvent{TokenIDs: tokenIDs, FlushedAt: start})
	return nil
}

func (e *Environment) invalidateCache(tokenID int64) {
	if e.Cache != nil {
		e.Cache.Invalidate(tokenID)
	}
}

// DocumentCount returns the authoritative document count, coalescing
// concurrent recomputation through a singleflight.Group (SPEC_FULL.md §5)
// rather than the DocLengthCache, since document count is not cached
// there.
func (e *Environment) DocumentCount(ctx context.Context) (int32, error) {
	v, err, _ := e.countSF.Do("document_count", func() (interface{}, error) {
		return e.Store.GetDocumentCount(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

// VerifyTotalTokens recomputes total_tokens from the store and returns it
// alongside the DocLengthCache's running sum for the caller to compare; it
// does not modify the cache. This follows SPEC_FULL.md §9's
// resolution that the cache is authoritative at runtime and the store's
// recomputation is only a verify/repair path.
func (e *Environment) VerifyTotalTokens(ctx context.Context) (cached, stored int64, err error) {
	v, err, _ := e.countSF.Do("total_tokens", func() (interface{}, error) {
		return e.Store.GetTotalTokenCount(ctx)
	})
	if err != nil {
		return e.DocLen.Total(), 0, err
	}
	return e.DocLen.Total(), v.(int64), nil
}

// Close flushes any remaining buffer, closes the store, and — if a
// backup.Uploader is configured — uploads the store file (SPEC_FULL.md
// §4.13).
func (e *Environment) Close(ctx context.Context) error {
	if err := e.Flush(ctx); err != nil {
		if e.Log != nil {
			e.Log.Errorw("close: final flush failed", "error", err)
		}
	}
	closeErr := e.Store.Close()
	if e.dbPath != "" {
		if err := e.Backup.Upload(ctx, e.dbPath); err != nil && e.Log != nil {
			e.Log.Errorw("close: backup upload failed", "error", err)
		}
	}
	return closeErr
}

// Lock acquires the external write-exclusion the teacher's HTTP layer
// holds around add_document/flush (spec.md §5); callers wrap their
// writer goroutine's critical section with Lock/Unlock.
func (e *Environment) Lock() { e.writeMu.Lock() }

// Unlock releases the write-exclusion acquired by Lock.
func (e *Environment) Unlock() { e.writeMu.Unlock() }
