package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragdir/core"
)

// Loader discovers and extracts the documents under a directory.
type Loader struct {
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("component", "source-loader")
	return l, nil
}

// Discover walks root recursively in lexical order and returns a source
// for every supported file. Dot-files and dot-directories are skipped.
// Unsupported or unreadable entries are returned as warnings.
func (l *Loader) Discover(ctx context.Context, root string) ([]DocumentSource, []error, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var sources []DocumentSource
	var warnings []error

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			warnings = append(warnings, core.NewIngestionWarning(path, walkErr))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		src, err := Open(path)
		if err != nil {
			l.logger.Warn("skipping file", "path", path, "error", err)
			warnings = append(warnings, core.NewIngestionWarning(path, err))
			return nil
		}
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return sources, warnings, nil
}

// Load extracts every source in order. A source that fails is skipped with
// a warning; a partially decoded source is kept and its warning recorded.
// Only context cancellation aborts the load.
func (l *Loader) Load(ctx context.Context, sources []DocumentSource) ([]*core.Document, []error, error) {
	docs := make([]*core.Document, 0, len(sources))
	var warnings []error

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		doc, err := src.ExtractText(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			l.logger.Warn("extraction problem", "path", src.Path(), "format", src.Format(), "error", err)
			warnings = append(warnings, asWarning(src.Path(), err))
		}
		if doc == nil {
			continue
		}

		l.logger.Debug("extracted document", "path", doc.Path, "format", doc.Format, "characters", len([]rune(doc.Text)))
		docs = append(docs, doc)
	}

	return docs, warnings, nil
}

// LoadDirectory discovers and extracts every supported file under root.
func (l *Loader) LoadDirectory(ctx context.Context, root string) ([]*core.Document, []error, error) {
	sources, warnings, err := l.Discover(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	docs, loadWarnings, err := l.Load(ctx, sources)
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("loaded directory", "root", root, "files", len(sources), "documents", len(docs),
		"warnings", len(warnings)+len(loadWarnings))
	return docs, append(warnings, loadWarnings...), nil
}

// Dedupe drops documents whose content fingerprint was already seen and
// returns a warning for each dropped copy. Order is preserved. Nil and
// empty documents are passed through for the chunker to report.
func Dedupe(docs []*core.Document) ([]*core.Document, []error) {
	seen := make(map[core.ID]string, len(docs))
	out := make([]*core.Document, 0, len(docs))
	var warnings []error

	for _, doc := range docs {
		if doc == nil || strings.TrimSpace(doc.Text) == "" {
			out = append(out, doc)
			continue
		}
		if first, ok := seen[doc.Fingerprint]; ok {
			warnings = append(warnings, core.NewIngestionWarning(doc.Path,
				fmt.Errorf("%w: same content as %s", ErrDuplicateContent, first)))
			continue
		}
		seen[doc.Fingerprint] = doc.Path
		out = append(out, doc)
	}
	return out, warnings
}

func asWarning(path string, err error) error {
	var warning core.IngestionWarning
	if errors.As(err, &warning) {
		return warning
	}
	return core.NewIngestionWarning(path, err)
}
