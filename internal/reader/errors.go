package reader

import "errors"

// Ingestion failures other than format and encoding problems are ErrIO.
// Callers classify with errors.Is; parser.ErrUnsupportedFormat and
// textenc.ErrUnsupportedEncoding pass through unwrapped.
var (
	ErrIO                = errors.New("reader: io failure")
	ErrEmptyDocument     = errors.New("reader: document has no lines")
	ErrOutOfBounds       = errors.New("reader: position out of bounds")
	ErrNoAdjacentChapter = errors.New("reader: no adjacent chapter")
	ErrNoActiveDocument  = errors.New("reader: no active document")
	ErrLockFailure       = errors.New("reader: engine lock poisoned")
	ErrInvalidLineSize   = errors.New("reader: line size must be positive")
)
