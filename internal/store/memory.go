package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is an in-process Store used by the engine's own test suite so
// core logic (buffer, flush, search) can be exercised without a real
// SQLite or Postgres connection. It implements the full Store contract,
// including transactional semantics, with a mutex standing in for the
// single-writer discipline spec.md §5 requires of real backends.
type Memory struct {
	mu sync.Mutex

	documents   []memDocument
	titleToID   map[string]int32
	tokens      []memToken
	tokenToID   map[string]int64
	settings    map[string]string

	// failAfter, when >= 0, makes the failAfter'th (0-based) UpdatePostings
	// call made through a transaction since FailNextUpdatePostings armed
	// the store return errInjectedFailure — used by
	// tests to exercise the flush-atomicity property of spec.md §8
	// invariant 7 without a real store failure.
	failAfter int
	failCount int
}

var errInjectedFailure = errFailureInjected{}

type errFailureInjected struct{}

func (errFailureInjected) Error() string { return "wiser: injected store failure" }

// FailNextUpdatePostings arms the store to fail the nth (0-based) call to
// UpdatePostings made within a transaction, then clears the trigger.
func (m *Memory) FailNextUpdatePostings(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.failCount = 0
}

type memDocument struct {
	title      string
	body       string
	tokenCount int32
}

type memToken struct {
	text      string
	docsCount int32
	postings  []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		titleToID: make(map[string]int32),
		tokenToID: make(map[string]int64),
		settings:  make(map[string]string),
		failAfter: -1,
	}
}

func (m *Memory) GetDocumentID(_ context.Context, title string) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.titleToID[title], nil
}

func (m *Memory) GetDocumentTitle(_ context.Context, docID int32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validDoc(docID) {
		return "", nil
	}
	return m.documents[docID-1].title, nil
}

func (m *Memory) GetDocumentBody(_ context.Context, docID int32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validDoc(docID) {
		return "", nil
	}
	return m.documents[docID-1].body, nil
}

func (m *Memory) validDoc(docID int32) bool {
	return docID >= 1 && int(docID) <= len(m.documents)
}

func (m *Memory) AddDocument(_ context.Context, title, body string, tokenCount int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.titleToID[title]; ok {
		m.documents[id-1].body = body
		return nil
	}
	m.documents = append(m.documents, memDocument{title: title, body: body, tokenCount: tokenCount})
	m.titleToID[title] = int32(len(m.documents))
	return nil
}

func (m *Memory) UpdateDocumentTokenCount(_ context.Context, docID int32, n int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validDoc(docID) {
		return nil
	}
	m.documents[docID-1].tokenCount = n
	return nil
}

func (m *Memory) GetDocumentCount(_ context.Context) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int32(len(m.documents)), nil
}

func (m *Memory) GetTotalTokenCount(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, d := range m.documents {
		total += int64(d.tokenCount)
	}
	return total, nil
}

func (m *Memory) GetDocumentTokenCount(_ context.Context, docID int32) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validDoc(docID) {
		return 0, nil
	}
	return m.documents[docID-1].tokenCount, nil
}

func (m *Memory) GetAllDocumentTokenCounts(_ context.Context) ([]DocTokenCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DocTokenCount, len(m.documents))
	for i, d := range m.documents {
		out[i] = DocTokenCount{DocID: int32(i + 1), TokenCount: d.tokenCount}
	}
	return out, nil
}

func (m *Memory) GetAllDocuments(_ context.Context) ([]DocumentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DocumentRow, len(m.documents))
	for i, d := range m.documents {
		out[i] = DocumentRow{Title: d.title, Body: d.body}
	}
	return out, nil
}

func (m *Memory) SearchDocumentsLike(_ context.Context, needle string) ([]int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int32
	for i, d := range m.documents {
		if strings.Contains(d.title, needle) || strings.Contains(d.body, needle) {
			out = append(out, int32(i+1))
		}
	}
	return out, nil
}

func (m *Memory) GetTokenInfo(_ context.Context, token string, insert bool) (TokenInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.tokenToID[token]; ok {
		t := m.tokens[id-1]
		return TokenInfo{ID: id, DocsCount: t.docsCount}, true, nil
	}
	if !insert {
		return TokenInfo{}, false, nil
	}
	m.tokens = append(m.tokens, memToken{text: token})
	id := int64(len(m.tokens))
	m.tokenToID[token] = id
	return TokenInfo{ID: id, DocsCount: 0}, true, nil
}

func (m *Memory) GetToken(_ context.Context, tokenID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tokenID < 1 || int(tokenID) > len(m.tokens) {
		return "", nil
	}
	return m.tokens[tokenID-1].text, nil
}

func (m *Memory) GetPostings(_ context.Context, tokenID int64) (PostingsRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tokenID < 1 || int(tokenID) > len(m.tokens) {
		return PostingsRecord{}, false, nil
	}
	t := m.tokens[tokenID-1]
	if len(t.postings) == 0 && t.docsCount == 0 {
		return PostingsRecord{}, false, nil
	}
	return PostingsRecord{DocsCount: t.docsCount, Postings: t.postings}, true, nil
}

func (m *Memory) UpdatePostings(_ context.Context, tokenID int64, docsCount int32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tokenID < 1 || int(tokenID) > len(m.tokens) {
		return nil
	}
	m.tokens[tokenID-1].docsCount = docsCount
	m.tokens[tokenID-1].postings = data
	return nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key], nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *Memory) BeginTx(_ context.Context) (Tx, error) {
	m.mu.Lock()
	snapshot := make([]memToken, len(m.tokens))
	copy(snapshot, m.tokens)
	m.mu.Unlock()
	return &memTx{store: m, snapshot: snapshot}, nil
}

func (m *Memory) Close() error { return nil }

// memTx mutates the shared Memory store directly (simplest possible
// transaction), capturing a snapshot at BeginTx so Rollback can restore it
// atomically — enough to exercise the flush-atomicity property of
// spec.md §8 invariant 7 without a real WAL.
type memTx struct {
	store    *Memory
	snapshot []memToken
	done     bool
}

func (t *memTx) GetPostings(ctx context.Context, tokenID int64) (PostingsRecord, bool, error) {
	return t.store.GetPostings(ctx, tokenID)
}

func (t *memTx) UpdatePostings(ctx context.Context, tokenID int64, docsCount int32, data []byte) error {
	t.store.mu.Lock()
	if t.store.failAfter >= 0 && t.store.failCount == t.store.failAfter {
		t.store.failCount++
		t.store.mu.Unlock()
		return errInjectedFailure
	}
	t.store.failCount++
	t.store.mu.Unlock()
	return t.store.UpdatePostings(ctx, tokenID, docsCount, data)
}

func (t *memTx) Commit() error {
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.tokens = t.snapshot
	t.done = true
	return nil
}
