package chunker

import "errors"

var (
	// ErrInvalidChunkSize is returned when the maximum chunk size is not positive.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidOverlap is returned when overlap is negative or not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("invalid overlap")

	// ErrEmptyDocument is wrapped in the ingestion warning for documents without text.
	ErrEmptyDocument = errors.New("document has no text")
)
