package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/ragdir/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    core.Format
		wantErr bool
	}{
		{"paper.pdf", core.FormatPDF, false},
		{"PAPER.PDF", core.FormatPDF, false},
		{"README.md", core.FormatMarkdown, false},
		{"notes.markdown", core.FormatMarkdown, false},
		{"notes.txt", core.FormatPlainText, false},
		{"main.go", core.FormatPlainText, false},
		{"script.py", core.FormatPlainText, false},
		{"data.json", core.FormatPlainText, false},
		{"config.yml", core.FormatPlainText, false},
		{"image.png", 0, true},
		{"Makefile", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_PicksVariant(t *testing.T) {
	src, err := Open("a.pdf")
	require.NoError(t, err)
	assert.IsType(t, &PDF{}, src)

	src, err = Open("a.md")
	require.NoError(t, err)
	assert.IsType(t, &Markdown{}, src)

	src, err = Open("a.txt")
	require.NoError(t, err)
	assert.IsType(t, &PlainText{}, src)
	assert.Equal(t, "a.txt", src.Path())
	assert.Equal(t, core.FormatPlainText, src.Format())

	_, err = Open("")
	assert.ErrorIs(t, err, core.ErrEmptyPath)

	_, err = Open("a.exe")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPlainText_ExtractText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "\ufeffline one\r\nline two\r\n")

	doc, err := NewPlainText(path).ExtractText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, core.FormatPlainText, doc.Format)
	assert.Equal(t, "line one\nline two\n", doc.Text)
	assert.Equal(t, core.IDFromContent(doc.Text), doc.Fingerprint)
	assert.Nil(t, doc.Pages)
}

func TestPlainText_InvalidUTF8IsRepairedWithWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "latin1.txt", "caf\xe9 au lait")

	doc, err := NewPlainText(path).ExtractText(context.Background())
	require.NotNil(t, doc)
	assert.ErrorIs(t, err, core.ErrIngestionWarning)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Equal(t, "caf\uFFFD au lait", doc.Text)
}

func TestPlainText_BinaryRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blob.txt", "abc\x00\x01\x02")

	doc, err := NewPlainText(path).ExtractText(context.Background())
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrBinaryContent)
}

func TestPlainText_MissingFile(t *testing.T) {
	_, err := NewPlainText(filepath.Join(t.TempDir(), "missing.txt")).ExtractText(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPlainText_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlainText("whatever.txt").ExtractText(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarkdown_ExtractText(t *testing.T) {
	dir := t.TempDir()
	content := strings.Join([]string{
		"# Getting Started",
		"",
		"Install the **tool** with [the installer](https://example.com/install).",
		"",
		"- first step",
		"- second step",
		"",
		"```sh",
		"make install",
		"```",
		"",
		"<div>raw html</div>",
		"",
	}, "\n")
	path := writeFile(t, dir, "guide.md", content)

	doc, err := NewMarkdown(path).ExtractText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.FormatMarkdown, doc.Format)

	assert.True(t, strings.HasPrefix(doc.Text, "Getting Started\n\n"), "got %q", doc.Text)
	assert.Contains(t, doc.Text, "Install the tool with the installer.")
	assert.Contains(t, doc.Text, "first step\nsecond step")
	assert.Contains(t, doc.Text, "make install")
	assert.NotContains(t, doc.Text, "**")
	assert.NotContains(t, doc.Text, "https://example.com")
	assert.NotContains(t, doc.Text, "```")
	assert.NotContains(t, doc.Text, "<div>")
	assert.NotContains(t, doc.Text, "\n\n\n")
}

func TestPDF_MalformedFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", "this is not a pdf")

	var doc *core.Document
	var err error
	assert.NotPanics(t, func() {
		doc, err = NewPDF(path).ExtractText(context.Background())
	})
	assert.Nil(t, doc)
	assert.Error(t, err)
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader()
	require.NoError(t, err)
	return l
}

func TestDiscover_WalksInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "b")
	writeFile(t, dir, "a.md", "# a")
	writeFile(t, dir, "sub/c.py", "print('c')")
	writeFile(t, dir, ".hidden.txt", "hidden")
	writeFile(t, dir, ".git/config.txt", "hidden")
	writeFile(t, dir, "image.png", "\x89PNG")

	sources, warnings, err := newTestLoader(t).Discover(context.Background(), dir)
	require.NoError(t, err)

	var paths []string
	for _, src := range sources {
		rel, err := filepath.Rel(dir, src.Path())
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.md", "b.txt", "sub/c.py"}, paths)

	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], core.ErrIngestionWarning)
	assert.ErrorIs(t, warnings[0], ErrUnsupportedFormat)
}

func TestDiscover_RootErrors(t *testing.T) {
	l := newTestLoader(t)
	dir := t.TempDir()

	_, _, err := l.Discover(context.Background(), filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := writeFile(t, dir, "file.txt", "x")
	_, _, err = l.Discover(context.Background(), file)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", "first document")
	writeFile(t, dir, "two.md", "# Second\n\nsecond document")
	writeFile(t, dir, "three.pdf", "garbage")
	writeFile(t, dir, "empty.txt", "")

	docs, warnings, err := newTestLoader(t).LoadDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, filepath.Join(dir, "empty.txt"), docs[0].Path)
	assert.Equal(t, "first document", docs[1].Text)
	assert.Equal(t, "Second\n\nsecond document", docs[2].Text)

	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], core.ErrIngestionWarning)
	assert.Contains(t, warnings[0].Error(), "three.pdf")
}

func TestLoadDirectory_Empty(t *testing.T) {
	docs, warnings, err := newTestLoader(t).LoadDirectory(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, warnings)
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestLoader(t).Load(ctx, []DocumentSource{NewPlainText("x.txt")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDedupe(t *testing.T) {
	docs := []*core.Document{
		core.NewDocument("a.txt", core.FormatPlainText, "same text", nil),
		core.NewDocument("b.txt", core.FormatPlainText, "other text", nil),
		core.NewDocument("c.txt", core.FormatPlainText, "same text", nil),
		core.NewDocument("d.txt", core.FormatPlainText, "", nil),
		core.NewDocument("e.txt", core.FormatPlainText, "", nil),
		nil,
	}

	out, warnings := Dedupe(docs)
	require.Len(t, out, 5)
	assert.Equal(t, "a.txt", out[0].Path)
	assert.Equal(t, "b.txt", out[1].Path)
	assert.Equal(t, "d.txt", out[2].Path)
	assert.Equal(t, "e.txt", out[3].Path)
	assert.Nil(t, out[4])

	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrDuplicateContent)
	assert.Contains(t, warnings[0].Error(), "c.txt")
	assert.Contains(t, warnings[0].Error(), "a.txt")
}
