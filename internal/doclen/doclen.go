// Package doclen implements the DocLengthCache of spec.md §3/§5: a
// doc_id -> token_count map kept consistent with documents.token_count,
// plus the running total_tokens sum BM25's avgdl needs. It is guarded by
// a shared/exclusive lock so concurrent BM25 scoring (readers) never
// blocks on each other, only on a writer running add_document or flush.
package doclen

import "sync"

// Cache holds per-document lengths (in emitted N-gram positions) and
// their running total.
type Cache struct {
	mu     sync.RWMutex
	length map[int32]int32
	total  int64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{length: make(map[int32]int32)}
}

// Seed replaces the cache contents wholesale, used by Environment.Open to
// populate the cache from store.GetAllDocumentTokenCounts at startup.
func (c *Cache) Seed(lengths map[int32]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.length = make(map[int32]int32, len(lengths))
	var total int64
	for doc, n := range lengths {
		c.length[doc] = n
		total += int64(n)
	}
	c.total = total
}

// Set records docID's new length, adjusting the running total by the
// delta from any previous length (spec.md §4.4 step 8).
func (c *Cache) Set(docID int32, length int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed := c.length[docID]
	if existed {
		c.total += int64(length) - int64(prev)
	} else {
		c.total += int64(length)
	}
	c.length[docID] = length
}

// Get returns docID's cached length, or 0 if unknown.
func (c *Cache) Get(docID int32) int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.length[docID]
}

// Total returns the sum of all cached lengths (total_tokens).
func (c *Cache) Total() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Count returns the number of documents with a cached length.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.length)
}
