package source

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/poiesic/ragdir/core"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Markdown renders Markdown files down to plain text. Formatting markers,
// link targets and raw HTML are dropped; code blocks keep their content.
type Markdown struct {
	path string
}

var _ DocumentSource = (*Markdown)(nil)

// NewMarkdown creates a Markdown source for path.
func NewMarkdown(path string) *Markdown {
	return &Markdown{path: path}
}

func (s *Markdown) Path() string        { return s.path }
func (s *Markdown) Format() core.Format { return core.FormatMarkdown }

// ExtractText parses the file and renders its text content.
func (s *Markdown) ExtractText(ctx context.Context) (*core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	src, repaired := normalizeText(string(data))
	doc := core.NewDocument(s.path, core.FormatMarkdown, renderMarkdown([]byte(src)), nil)
	if repaired {
		return doc, core.NewIngestionWarning(s.path, ErrInvalidEncoding)
	}
	return doc, nil
}

func renderMarkdown(src []byte) string {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				switch n.Kind() {
				case ast.KindListItem:
				case ast.KindTextBlock:
					if !strings.HasSuffix(sb.String(), "\n") {
						sb.WriteByte('\n')
					}
				default:
					sb.WriteString("\n\n")
				}
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(blankLines.ReplaceAllString(sb.String(), "\n\n"))
}
