// Package cache provides an ai.Embedder decorator that memoizes embeddings.
//
// Chat sessions embed every question; users often repeat or refine the same
// question, so caching avoids a round trip to the embedding server.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/ragdir/ai"
)

// Embedder caches single-text embeddings in an expiring LRU.
// Batch calls are forwarded uncached.
type Embedder struct {
	next   ai.Embedder
	cache  *expirable.LRU[string, []float32]
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// Wrap returns next wrapped in a cache holding up to size entries for ttl.
// A non-positive size or ttl disables caching and returns next unchanged.
func Wrap(next ai.Embedder, size int, ttl time.Duration) ai.Embedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &Embedder{
		next:   next,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
		logger: slog.Default().With("component", "embedding-cache"),
	}
}

// EmbedText returns a cached vector for text or computes and stores one.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		e.logger.Debug("embedding cache hit", "length", len(text))
		return clone(cached), nil
	}

	vector, err := e.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, clone(vector))
	return vector, nil
}

// EmbedTexts forwards to the wrapped embedder.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return e.next.EmbedTexts(ctx, texts)
}

// Len returns the number of cached entries.
func (e *Embedder) Len() int {
	return e.cache.Len()
}

func clone(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
