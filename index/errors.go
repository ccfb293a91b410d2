package index

import "errors"

var (
	// ErrIndexRequired is returned when a nil index is given to the builder.
	ErrIndexRequired = errors.New("index required")

	// ErrChunkerRequired is returned when a nil chunker is given to the builder.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrEmbedderRequired is returned when a nil embedder is given to the builder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyVector is returned for vectors with no components.
	ErrEmptyVector = errors.New("empty vector")

	// ErrDuplicateChunk is returned when a chunk ID is already present.
	ErrDuplicateChunk = errors.New("duplicate chunk id")

	// ErrLengthMismatch is returned when AddAll receives different numbers of chunks and vectors.
	ErrLengthMismatch = errors.New("chunks and vectors differ in length")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
