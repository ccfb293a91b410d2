package chunker

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/poiesic/ragdir/core"
)

const (
	// DefaultMaxChunkSize is the default number of characters per chunk.
	DefaultMaxChunkSize = 1000

	// DefaultOverlap is the default number of characters shared by consecutive chunks.
	DefaultOverlap = 200

	// DefaultLookahead is how far back from the window end a boundary is searched for.
	DefaultLookahead = 200
)

// Chunker splits document text into overlapping passages.
// A Chunker is immutable after construction and safe for concurrent use.
type Chunker struct {
	maxChunkSize int
	overlap      int
	lookahead    int
	semantic     bool
	logger       *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithMaxChunkSize sets the maximum chunk length in characters.
func WithMaxChunkSize(size int) Option {
	return func(c *Chunker) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
		}
		c.maxChunkSize = size
		return nil
	}
}

// WithOverlap sets the number of characters consecutive chunks share.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) error {
		if overlap < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidOverlap, overlap)
		}
		c.overlap = overlap
		return nil
	}
}

// WithLookahead sets the window, measured back from the maximum chunk end,
// searched for a paragraph, sentence or word boundary.
func WithLookahead(n int) Option {
	return func(c *Chunker) error {
		if n < 0 {
			return fmt.Errorf("%w: lookahead %d", ErrInvalidChunkSize, n)
		}
		c.lookahead = n
		return nil
	}
}

// WithSemanticBoundaries toggles boundary snapping. When disabled every chunk
// is exactly maxChunkSize characters except the last.
func WithSemanticBoundaries(enabled bool) Option {
	return func(c *Chunker) error {
		c.semantic = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a Chunker. Options are validated together once all are applied.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxChunkSize: DefaultMaxChunkSize,
		overlap:      DefaultOverlap,
		lookahead:    DefaultLookahead,
		semantic:     true,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.overlap >= c.maxChunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d",
			ErrInvalidOverlap, c.overlap, c.maxChunkSize)
	}
	if c.lookahead > c.maxChunkSize {
		c.lookahead = c.maxChunkSize
	}

	return c, nil
}

// MaxChunkSize returns the configured maximum chunk length.
func (c *Chunker) MaxChunkSize() int { return c.maxChunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits doc into passages. Chunk IDs are left zero; the index builder
// assigns them. An empty or whitespace-only document yields no chunks and a
// core.IngestionWarning.
func (c *Chunker) Chunk(doc *core.Document) ([]core.Chunk, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, core.NewIngestionWarning(doc.Path, ErrEmptyDocument)
	}

	runes := []rune(doc.Text)
	n := len(runes)
	chunks := make([]core.Chunk, 0, n/(c.maxChunkSize-c.overlap)+1)

	start := 0
	line := 1
	counted := 0 // runes[:counted] have been scanned for newlines
	for {
		end := start + c.maxChunkSize
		if end >= n {
			end = n
		} else if c.semantic {
			end = c.boundary(runes, start, end)
		}

		for ; counted < start; counted++ {
			if runes[counted] == '\n' {
				line++
			}
		}

		chunks = append(chunks, core.Chunk{
			Path:  doc.Path,
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
			Page:  doc.PageAt(start),
			Line:  line,
		})

		if end == n {
			break
		}
		start = end - c.overlap
	}

	c.logger.Debug("chunked document", "path", doc.Path, "characters", n, "chunks", len(chunks))
	return chunks, nil
}

// boundary returns the best chunk end in (start+overlap, end], preferring a
// paragraph break, then a sentence end, then a line break, then any
// whitespace. It returns end unchanged when nothing is found in the
// lookahead window.
func (c *Chunker) boundary(runes []rune, start, end int) int {
	lo := max(end-c.lookahead, start+c.overlap+1)
	if lo > end {
		return end
	}

	for _, isBoundary := range boundaryRules {
		for i := end; i >= lo; i-- {
			if i-start >= 2 && isBoundary(runes, i) {
				return i
			}
		}
	}
	return end
}

// boundaryRules report whether a chunk may end right before index i.
// Ordered from strongest to weakest.
var boundaryRules = []func(runes []rune, i int) bool{
	// paragraph
	func(r []rune, i int) bool {
		return r[i-1] == '\n' && r[i-2] == '\n'
	},
	// sentence
	func(r []rune, i int) bool {
		return unicode.IsSpace(r[i-1]) && strings.ContainsRune(".!?", r[i-2])
	},
	// line
	func(r []rune, i int) bool {
		return r[i-1] == '\n'
	},
	// word
	func(r []rune, i int) bool {
		return unicode.IsSpace(r[i-1])
	},
}
