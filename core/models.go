package core

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Chunk IDs are assigned sequentially at ingestion time; document fingerprints
// are derived from content hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Format identifies how a document's text was decoded.
type Format int

const (
	// FormatPlainText covers text files and source code read verbatim.
	FormatPlainText Format = iota + 1
	// FormatMarkdown is Markdown rendered down to plain text.
	FormatMarkdown
	// FormatPDF is text extracted page by page from a PDF.
	FormatPDF
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatPlainText:
		return "text"
	case FormatMarkdown:
		return "markdown"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// Document is the extracted text of a single source file.
// Offsets into Text are measured in characters (runes), not bytes.
type Document struct {
	Path        string
	Format      Format
	Text        string
	Pages       []int // Rune offset where each page starts (PDF only)
	Fingerprint ID    // IDFromContent(Text)
}

// NewDocument builds a Document and computes its fingerprint.
func NewDocument(path string, format Format, text string, pages []int) *Document {
	return &Document{
		Path:        path,
		Format:      format,
		Text:        text,
		Pages:       pages,
		Fingerprint: IDFromContent(text),
	}
}

// PageAt returns the 1-based page containing the rune offset, or 0 when the
// document has no page information.
func (d *Document) PageAt(offset int) int {
	if len(d.Pages) == 0 {
		return 0
	}
	// First page whose start is beyond offset, minus one.
	i := sort.Search(len(d.Pages), func(i int) bool { return d.Pages[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}

// Chunk is a contiguous passage of a document together with its embedding.
type Chunk struct {
	ID     ID
	Path   string
	Start  int // Rune offset of the first character (inclusive)
	End    int // Rune offset after the last character (exclusive)
	Text   string
	Vector []float32 // Populated when the chunk is added to an index
	Page   int       // 1-based page hint, 0 if unknown
	Line   int       // 1-based line of Start
}

// Len returns the length of the chunk in characters.
func (c *Chunk) Len() int {
	return c.End - c.Start
}

// Overlap returns the number of characters shared by two chunks of the same
// document. Chunks from different documents never overlap.
func (c *Chunk) Overlap(other *Chunk) int {
	if c.Path != other.Path {
		return 0
	}
	lo := max(c.Start, other.Start)
	hi := min(c.End, other.End)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// ScoredChunk pairs a chunk with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// Span is a character range of a source document used as context.
type Span struct {
	Start int
	End   int
	Page  int
}

// Citation attributes part of an answer to a source document.
type Citation struct {
	Path  string
	Spans []Span
}

// ConversationTurn is one completed question/answer exchange.
type ConversationTurn struct {
	Seq       int
	Question  string
	ChunkIDs  []ID
	Citations []Citation
	Answer    string
	Err       string // Non-empty when generation failed
	Timestamp time.Time
}

// Failed reports whether the turn was recorded with an error marker.
func (t *ConversationTurn) Failed() bool {
	return t.Err != ""
}
