package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// FragmentFunc receives incremental pieces of a streamed answer.
// Returning an error aborts the stream.
type FragmentFunc func(ctx context.Context, fragment string) error

// Generator answers a question from retrieved context and prior conversation.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate blocks until the full answer is available.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream delivers the answer incrementally to onFragment and
	// returns the complete text once the stream ends.
	GenerateStream(ctx context.Context, req GenerateRequest, onFragment FragmentFunc) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
