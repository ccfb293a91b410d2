package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/ragdir/core"
)

// pageSeparator joins the text of consecutive pages.
const pageSeparator = "\n\n"

// PDF extracts text page by page and records where each page starts so
// chunks can carry a page hint.
type PDF struct {
	path string
}

var _ DocumentSource = (*PDF)(nil)

// NewPDF creates a PDF source for path.
func NewPDF(path string) *PDF {
	return &PDF{path: path}
}

func (s *PDF) Path() string        { return s.path }
func (s *PDF) Format() core.Format { return core.FormatPDF }

// ExtractText decodes every page. Pages that fail to decode are left empty
// and reported in a warning returned with the partial document. Panics in
// the decoder are converted to ErrMalformedPDF.
func (s *PDF) ExtractText(ctx context.Context) (doc *core.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: %s: %v", ErrMalformedPDF, s.path, r)
		}
	}()

	f, reader, err := pdf.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPDF, err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]int, 0, numPages)
	var sb strings.Builder
	var pageErrs []error
	offset := 0

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 1 {
			sb.WriteString(pageSeparator)
			offset += utf8.RuneCountInString(pageSeparator)
		}
		pages = append(pages, offset)

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", i, err))
			continue
		}

		content, _ = normalizeText(content)
		content = strings.TrimSpace(content)
		sb.WriteString(content)
		offset += utf8.RuneCountInString(content)
	}

	doc = core.NewDocument(s.path, core.FormatPDF, sb.String(), pages)
	if len(pageErrs) > 0 {
		return doc, core.NewIngestionWarning(s.path, errors.Join(pageErrs...))
	}
	return doc, nil
}
