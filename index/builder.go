package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragdir/ai"
	"github.com/poiesic/ragdir/core"
	"golang.org/x/time/rate"
)

const (
	// DefaultPoolSize is the default number of concurrent embedding calls.
	DefaultPoolSize = 4

	// DefaultMaxAttempts is the default number of tries per chunk.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the default delay before the first retry.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Chunker splits a document into chunks without IDs.
type Chunker interface {
	Chunk(doc *core.Document) ([]core.Chunk, error)
}

// BuildReport summarizes a Build call.
type BuildReport struct {
	Documents int           // Documents given to Build
	Chunks    int           // Chunks produced by the chunker
	Embedded  int           // Chunks committed to the index
	Dimension int           // Index dimension after the build
	Warnings  []error       // core.IngestionWarning values for skipped documents and chunks
	Elapsed   time.Duration // Wall time of the build
}

// Builder chunks documents, embeds the chunks concurrently and commits
// them to an Index.
type Builder struct {
	index       Index
	chunker     Chunker
	embedder    ai.Embedder
	pool        *ants.Pool
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
	progress    io.Writer
	logger      *slog.Logger

	// lastID is the largest chunk ID this builder has assigned, including
	// chunks that were skipped.
	lastID core.ID
}

// Option configures a Builder.
type Option func(*Builder) error

// WithPoolSize sets the number of concurrent embedding calls.
// Default is DefaultPoolSize.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}

		if b.pool != nil {
			b.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithRateLimit caps embedding calls at perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(b *Builder) error {
		if perSecond <= 0 {
			b.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithRetry sets how many times a chunk is tried and the initial backoff.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Builder) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		if baseDelay < 0 {
			baseDelay = 0
		}
		b.maxAttempts = maxAttempts
		b.retryDelay = baseDelay
		return nil
	}
}

// WithProgress writes an updating progress line to w while embedding.
func WithProgress(w io.Writer) Option {
	return func(b *Builder) error {
		b.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a Builder that fills idx.
func NewBuilder(idx Index, chunker Chunker, embedder ai.Embedder, opts ...Option) (*Builder, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(DefaultPoolSize)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		index:       idx,
		chunker:     chunker,
		embedder:    embedder,
		pool:        pool,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}
	b.logger = b.logger.With("component", "index-builder")

	return b, nil
}

// Build chunks docs, embeds every chunk and adds the embedded chunks to the
// index.
//
// Chunk IDs continue after the largest ID already stored or assigned by
// this builder, in document order, and are fixed before any embedding call,
// so the result does not depend on completion order. Documents that yield no chunks and chunks that fail to embed are
// skipped with warnings. The build fails with core.ErrIndexBuildFailed when
// nothing could be embedded and with core.ErrDimensionMismatch when vectors
// disagree in length; in both cases the index is left untouched.
func (b *Builder) Build(ctx context.Context, docs []*core.Document) (*BuildReport, error) {
	started := time.Now()
	report := &BuildReport{Documents: len(docs)}
	defer func() { report.Elapsed = time.Since(started) }()

	pending := b.chunkAll(docs, report)
	report.Chunks = len(pending)
	report.Dimension = b.index.Dimension()
	if len(pending) == 0 {
		return report, fmt.Errorf("%w: no text found in %d documents", core.ErrIndexBuildFailed, len(docs))
	}

	b.logger.Info("embedding chunks", "documents", len(docs), "chunks", len(pending))
	vectors, errs := b.embedAll(ctx, pending)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	dimension := b.index.Dimension()
	chunks := make([]*core.Chunk, 0, len(pending))
	embedded := make([][]float32, 0, len(pending))
	for i, chunk := range pending {
		if errs[i] != nil {
			warning := core.IngestionWarning{Path: chunk.Path, ChunkID: chunk.ID, Err: errs[i]}
			b.logger.Warn("skipping chunk", "path", chunk.Path, "chunk", chunk.ID, "error", errs[i])
			report.Warnings = append(report.Warnings, warning)
			continue
		}
		if dimension == 0 {
			dimension = len(vectors[i])
		}
		if err := CheckDimension(dimension, vectors[i]); err != nil {
			return report, fmt.Errorf("chunk %d of %s: %w", chunk.ID, chunk.Path, err)
		}
		chunks = append(chunks, chunk)
		embedded = append(embedded, vectors[i])
	}

	if len(chunks) == 0 {
		return report, fmt.Errorf("%w: none of %d chunks could be embedded: %w",
			core.ErrIndexBuildFailed, len(pending), errors.Join(errs...))
	}

	if err := b.index.AddAll(chunks, embedded); err != nil {
		return report, err
	}

	report.Embedded = len(chunks)
	report.Dimension = b.index.Dimension()
	b.logger.Info("index built", "chunks", report.Embedded, "skipped", len(pending)-len(chunks),
		"dimension", report.Dimension, "elapsed", time.Since(started))
	return report, nil
}

// chunkAll chunks every document and assigns sequential IDs.
func (b *Builder) chunkAll(docs []*core.Document, report *BuildReport) []*core.Chunk {
	nextID := max(b.lastID, b.index.MaxID()) + 1
	var pending []*core.Chunk
	defer func() { b.lastID = nextID - 1 }()

	for _, doc := range docs {
		chunks, err := b.chunker.Chunk(doc)
		if err != nil {
			path := ""
			if doc != nil {
				path = doc.Path
			}
			b.logger.Warn("skipping document", "path", path, "error", err)
			var warning core.IngestionWarning
			if !errors.As(err, &warning) {
				warning = core.NewIngestionWarning(path, err)
			}
			report.Warnings = append(report.Warnings, warning)
			continue
		}

		for i := range chunks {
			chunk := &chunks[i]
			chunk.ID = nextID
			nextID++
			pending = append(pending, chunk)
		}
	}
	return pending
}

// embedAll embeds every chunk on the worker pool and waits for all of them.
// vectors[i] and errs[i] belong to chunks[i].
func (b *Builder) embedAll(ctx context.Context, chunks []*core.Chunk) ([][]float32, []error) {
	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))
	tracker := NewProgressTracker(b.progress, "Embedding", len(chunks), max(1, len(chunks)/100))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			vectors[i], errs[i] = b.embed(ctx, chunk.Text)
			tracker.Increment(1)
		})
		if err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()
	tracker.Finish()

	return vectors, errs
}

func (b *Builder) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		v, err := b.embedder.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return ErrEmptyVector
		}
		vector = v
		return nil
	}, b.maxAttempts, b.retryDelay)
	return vector, err
}

// Release releases the worker pool. The builder should not be used after
// calling Release.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}
