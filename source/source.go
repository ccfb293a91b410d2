// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragdir/core"
)

// DocumentSource is a file that can be decoded to plain text.
//
// ExtractText may return a non-nil Document together with a
// core.IngestionWarning when only part of the file could be decoded.
type DocumentSource interface {
	Path() string
	Format() core.Format
	ExtractText(ctx context.Context) (*core.Document, error)
}

var plainTextExtensions = map[string]bool{
	".txt":  true,
	".py":   true,
	".js":   true,
	".html": true,
	".css":  true,
	".json": true,
	".go":   true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".csv":  true,
	".rst":  true,
}

// FormatForPath returns the format implied by the file extension.
func FormatForPath(path string) (core.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return core.FormatPDF, nil
	case ext == ".md" || ext == ".markdown":
		return core.FormatMarkdown, nil
	case plainTextExtensions[ext]:
		return core.FormatPlainText, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Open returns the DocumentSource variant for path. The file is not read
// until ExtractText is called.
func Open(path string) (DocumentSource, error) {
	if path == "" {
		return nil, core.ErrEmptyPath
	}

	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case core.FormatPDF:
		return NewPDF(path), nil
	case core.FormatMarkdown:
		return NewMarkdown(path), nil
	default:
		return NewPlainText(path), nil
	}
}
