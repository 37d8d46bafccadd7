// Package wiser holds error kinds shared across the engine, mirroring the
// abstract error taxonomy of spec.md §7. Components return these via
// fmt.Errorf's %w wrapping, checked with errors.Is, rather than panicking
// once the store is open,
// matching the teacher's pattern of panicking only at startup
// (handleDBInitError) and returning errors everywhere else.
package wiser

import "errors"

var (
	// ErrConfigInvalid marks an unparseable or unsupported setting value.
	ErrConfigInvalid = errors.New("wiser: invalid config")
	// ErrIndexConfigLocked marks an attempt to change an index-critical
	// setting (token_len, compress_method) after documents already exist.
	ErrIndexConfigLocked = errors.New("wiser: index-critical config is locked once documents exist")
	// ErrStoreUnavailable marks a connection, prepare, or I/O failure in
	// the store adapter.
	ErrStoreUnavailable = errors.New("wiser: store unavailable")
	// ErrDataCorruption marks postings bytes that failed structural
	// validation during decode.
	ErrDataCorruption = errors.New("wiser: postings data corruption")
	// ErrLimitReached marks that max_index_count has been reached.
	ErrLimitReached = errors.New("wiser: index document limit reached")
	// ErrInputInvalid marks an empty body submitted for a non-empty title.
	ErrInputInvalid = errors.New("wiser: invalid input")
)
