// Package store defines the transactional backing-store contract of
// spec.md §6.1 and provides two interchangeable implementations: sqlite
// (grounded in the teacher's db/sqlite-index.go) and postgres (enriched
// from the pack's github.com/lib/pq usage). Neither implementation is
// imported by the core packages directly — everything above this layer
// talks only to the Store interface.
package store

import (
	"context"
	"strings"
)

// escapeLike escapes the LIKE wildcard characters % and _, and the escape
// character itself, so that a substring needle matches literally once
// wrapped in %...% and paired with the ESCAPE '\' clause. Without this,
// SearchDocumentsLike's "raw substring" contract (spec.md §7) breaks on
// any needle containing a literal % or _.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// TokenInfo is the result of a token lookup: its id and the docs_count
// currently recorded on its row.
type TokenInfo struct {
	ID        int64
	DocsCount int32
}

// PostingsRecord is a token's persisted postings: the docs_count written
// atomically with the opaque, codec-specific bytes.
type PostingsRecord struct {
	DocsCount int32
	Postings  []byte
}

// DocTokenCount pairs a document id with its persisted token_count, as
// returned by GetAllDocumentTokenCounts.
type DocTokenCount struct {
	DocID      int32
	TokenCount int32
}

// Store is the transactional contract spec.md §6.1 requires of the
// backing persistence layer. All methods are synchronous; callers that
// need concurrency run them from goroutines themselves. Implementations
// must serialize their own access to the underlying connection (spec.md §5).
type Store interface {
	// Documents.
	GetDocumentID(ctx context.Context, title string) (int32, error)
	GetDocumentTitle(ctx context.Context, docID int32) (string, error)
	GetDocumentBody(ctx context.Context, docID int32) (string, error)
	AddDocument(ctx context.Context, title, body string, tokenCount int32) error
	UpdateDocumentTokenCount(ctx context.Context, docID int32, n int32) error
	GetDocumentCount(ctx context.Context) (int32, error)
	GetTotalTokenCount(ctx context.Context) (int64, error)
	GetDocumentTokenCount(ctx context.Context, docID int32) (int32, error)
	GetAllDocumentTokenCounts(ctx context.Context) ([]DocTokenCount, error)
	GetAllDocuments(ctx context.Context) ([]DocumentRow, error)
	SearchDocumentsLike(ctx context.Context, needle string) ([]int32, error)

	// Tokens.
	GetTokenInfo(ctx context.Context, token string, insert bool) (TokenInfo, bool, error)
	GetToken(ctx context.Context, tokenID int64) (string, error)
	GetPostings(ctx context.Context, tokenID int64) (PostingsRecord, bool, error)
	UpdatePostings(ctx context.Context, tokenID int64, docsCount int32, data []byte) error

	// Settings.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Transactions. BeginTx starts the single write transaction the flush
	// protocol of spec.md §4.5 requires; Tx exposes only the postings
	// operations flush needs, scoped to that transaction's connection.
	BeginTx(ctx context.Context) (Tx, error)

	// Close releases the underlying connection(s).
	Close() error
}

// Tx is the write transaction scope used by the flush protocol
// (spec.md §4.5): read-modify-write postings, then commit or roll back.
type Tx interface {
	GetPostings(ctx context.Context, tokenID int64) (PostingsRecord, bool, error)
	UpdatePostings(ctx context.Context, tokenID int64, docsCount int32, data []byte) error
	Commit() error
	Rollback() error
}

// DocumentRow is one row of GetAllDocuments, ordered by ascending doc id.
type DocumentRow struct {
	Title string
	Body  string
}
