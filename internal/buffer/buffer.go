// Package buffer implements the in-memory ingest buffer and its
// flush-to-store protocol (spec.md §4.3, §4.5). It is grounded in the
// teacher's core/indexer.go indexManager/invertedIndex, generalized from a
// linked-list postings representation to internal/postings.List and from
// the teacher's "clear unconditionally" flush to the safer "retain on
// failure" variant spec.md §9 recommends (SPEC_FULL.md §9 decision).
package buffer

import (
	"sync"

	"github.com/wiser-go/wiser/internal/postings"
)

// Buffer accumulates postings across many documents before they are
// merged into the persistent store. It is mutated only by the writer
// (spec.md §5); Size/Snapshot may be called by a concurrent reader that
// holds the same external write-exclusion lock the writer does.
type Buffer struct {
	mu    sync.Mutex
	items map[int64]*postings.List
}

// New returns an empty ingest buffer.
func New() *Buffer {
	return &Buffer{items: make(map[int64]*postings.List)}
}

// Add appends one (doc, position) occurrence of tokenID to the buffer.
func (b *Buffer) Add(tokenID int64, docID, position int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, ok := b.items[tokenID]
	if !ok {
		list = &postings.List{}
		b.items[tokenID] = list
	}
	list.Add(docID, position)
}

// Merge folds another buffer's entries into b, per spec.md §4.3: for each
// token_id in other, merge into the existing list (or adopt it) so
// doc ids stay ascending and positions stay sorted and deduped.
func (b *Buffer) Merge(other *Buffer) {
	other.mu.Lock()
	items := other.items
	other.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	for tokenID, list := range items {
		if existing, ok := b.items[tokenID]; ok {
			existing.Merge(list)
		} else {
			b.items[tokenID] = list
		}
	}
}

// Size returns the number of distinct token ids currently buffered — the
// flush-trigger quantity of spec.md §4.3, not a document or position
// count.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = make(map[int64]*postings.List)
}

// Get returns the buffered postings list for tokenID, if any. The
// returned list must not be mutated by the caller.
func (b *Buffer) Get(tokenID int64) (*postings.List, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list, ok := b.items[tokenID]
	return list, ok
}

// Snapshot returns a shallow copy of the buffer's token-id set, safe to
// iterate without holding b's lock across store calls (used by Flush).
func (b *Buffer) Snapshot() map[int64]*postings.List {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int64]*postings.List, len(b.items))
	for k, v := range b.items {
		out[k] = v
	}
	return out
}
