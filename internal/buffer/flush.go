package buffer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wiser-go/wiser/internal/postings"
	"github.com/wiser-go/wiser/internal/store"
)

// Flush implements spec.md §4.5: merge the buffer with persistent
// postings under one write transaction, then clear the buffer only on
// success. On any failure the transaction is rolled back and the buffer
// is left untouched (SPEC_FULL.md §9's resolution of the "clear on
// failure?" open question), so the caller's next Flush can retry.
//
// invalidate, if non-nil, is called for every token id written so a
// postings cache (internal/cache) sitting in front of the store can drop
// its now-stale entry.
func Flush(ctx context.Context, b *Buffer, s store.Store, method postings.CompressMethod, log *zap.SugaredLogger, invalidate func(tokenID int64)) error {
	snapshot := b.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("wiser: begin flush transaction: %w", err)
	}

	for tokenID, buffered := range snapshot {
		existing := &postings.List{}
		rec, ok, err := tx.GetPostings(ctx, tokenID)
		if err != nil {
			_ = tx.Rollback()
			if log != nil {
				log.Errorw("flush: load persistent postings failed", "token_id", tokenID, "error", err)
			}
			return fmt.Errorf("wiser: flush load postings for token %d: %w", tokenID, err)
		}
		if ok && len(rec.Postings) > 0 {
			decoded, decOK := postings.Deserialize(rec.Postings, method)
			if !decOK && log != nil {
				log.Warnw("flush: persistent postings failed to decode cleanly, using partial result", "token_id", tokenID)
			}
			existing = decoded
		}
		existing.Merge(buffered)

		data := existing.Serialize(method)
		if err := tx.UpdatePostings(ctx, tokenID, existing.DocumentsCount(), data); err != nil {
			_ = tx.Rollback()
			if log != nil {
				log.Errorw("flush: update postings failed, rolling back", "token_id", tokenID, "error", err)
			}
			return fmt.Errorf("wiser: flush update postings for token %d: %w", tokenID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if log != nil {
			log.Errorw("flush: commit failed", "error", err)
		}
		return fmt.Errorf("wiser: commit flush transaction: %w", err)
	}

	if invalidate != nil {
		for tokenID := range snapshot {
			invalidate(tokenID)
		}
	}
	b.Clear()
	return nil
}
