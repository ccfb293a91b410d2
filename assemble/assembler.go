package assemble

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragdir/core"
)

const blockSeparator = "\n\n"

// MarkerReserve is the room a context budget should leave beyond the chunk
// size for the citation marker of a single chunk.
const MarkerReserve = 64

// Context is the assembled prompt context and the sources it draws on.
type Context struct {
	Text      string
	Chunks    []core.ScoredChunk // Included chunks in ranked order
	Citations []core.Citation    // One per source path, first-seen order
	Omitted   int                // Chunks left out by the size budget
	Redundant int                // Chunks dropped as overlapping a better one
}

// Empty reports whether no chunk made it into the context.
func (c *Context) Empty() bool {
	return len(c.Chunks) == 0
}

// ChunkIDs returns the IDs of the included chunks in order.
func (c *Context) ChunkIDs() []core.ID {
	ids := make([]core.ID, len(c.Chunks))
	for i, sc := range c.Chunks {
		ids[i] = sc.Chunk.ID
	}
	return ids
}

// Assembler builds Contexts from ranked chunks.
type Assembler struct {
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...Option) (*Assembler, error) {
	a := &Assembler{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "assembler")
	return a, nil
}

// Assemble concatenates the chunks of scored, which must be ranked best
// first, into a context of at most maxContextChars characters.
// A non-positive maxContextChars means no limit.
//
// A chunk overlapping an already included chunk of the same document by at
// least half of the shorter one is dropped. Assembly stops at the first
// chunk whose block would exceed the budget.
func (a *Assembler) Assemble(scored []core.ScoredChunk, maxContextChars int) *Context {
	ctx := &Context{}
	var b strings.Builder
	size := 0
	citations := make(map[string]int)

	for i, sc := range scored {
		if sc.Chunk == nil {
			continue
		}
		if redundant(sc.Chunk, ctx.Chunks) {
			ctx.Redundant++
			continue
		}

		block := Marker(sc.Chunk) + "\n" + sc.Chunk.Text
		blockSize := utf8.RuneCountInString(block)
		if size > 0 {
			blockSize += len(blockSeparator)
		}
		if maxContextChars > 0 && size+blockSize > maxContextChars {
			ctx.Omitted = len(scored) - i
			a.logger.Debug("context budget reached",
				"included", len(ctx.Chunks), "omitted", ctx.Omitted, "chars", size)
			break
		}

		if size > 0 {
			b.WriteString(blockSeparator)
		}
		b.WriteString(block)
		size += blockSize
		ctx.Chunks = append(ctx.Chunks, sc)

		span := core.Span{Start: sc.Chunk.Start, End: sc.Chunk.End, Page: sc.Chunk.Page}
		if pos, ok := citations[sc.Chunk.Path]; ok {
			ctx.Citations[pos].Spans = append(ctx.Citations[pos].Spans, span)
			continue
		}
		citations[sc.Chunk.Path] = len(ctx.Citations)
		ctx.Citations = append(ctx.Citations, core.Citation{Path: sc.Chunk.Path, Spans: []core.Span{span}})
	}

	ctx.Text = b.String()
	return ctx
}

// redundant reports whether chunk overlaps any accepted chunk by at least
// half the length of the shorter of the two.
func redundant(chunk *core.Chunk, accepted []core.ScoredChunk) bool {
	for _, sc := range accepted {
		overlap := chunk.Overlap(sc.Chunk)
		if overlap == 0 {
			continue
		}
		shorter := min(chunk.Len(), sc.Chunk.Len())
		if 2*overlap >= shorter {
			return true
		}
	}
	return false
}

// Marker returns the citation marker for a chunk, e.g.
// "[notes.md, chars 0-812]" or "[paper.pdf, page 3, chars 4100-5100]".
func Marker(chunk *core.Chunk) string {
	if chunk.Page > 0 {
		return fmt.Sprintf("[%s, page %d, chars %d-%d]", chunk.Path, chunk.Page, chunk.Start, chunk.End)
	}
	return fmt.Sprintf("[%s, chars %d-%d]", chunk.Path, chunk.Start, chunk.End)
}
