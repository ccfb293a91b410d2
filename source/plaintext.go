package source

import (
	"bytes"
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/ragdir/core"
)

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// PlainText reads text and source code files verbatim.
type PlainText struct {
	path string
}

var _ DocumentSource = (*PlainText)(nil)

// NewPlainText creates a plain text source for path.
func NewPlainText(path string) *PlainText {
	return &PlainText{path: path}
}

func (s *PlainText) Path() string        { return s.path }
func (s *PlainText) Format() core.Format { return core.FormatPlainText }

// ExtractText reads the file. Invalid UTF-8 is replaced and reported as a
// warning alongside the repaired document.
func (s *PlainText) ExtractText(ctx context.Context) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data[:min(len(data), binarySniffLen)], 0) >= 0 {
		return nil, core.NewIngestionWarning(s.path, ErrBinaryContent)
	}

	text, repaired := normalizeText(string(data))
	doc := core.NewDocument(s.path, core.FormatPlainText, text, nil)
	if repaired {
		return doc, core.NewIngestionWarning(s.path, ErrInvalidEncoding)
	}
	return doc, nil
}

// normalizeText strips a byte order mark, converts CRLF line endings and
// replaces invalid UTF-8. It reports whether any replacement happened.
func normalizeText(text string) (string, bool) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if utf8.ValidString(text) {
		return text, false
	}
	return strings.ToValidUTF8(text, "\uFFFD"), true
}
