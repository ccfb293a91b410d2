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


package core

import (
	"fmt"
	"unicode/utf8"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Path must not be empty
//   - Text must not be empty
//   - 0 <= Start < End
//   - End-Start must equal the number of characters in Text
//
// NOT validated (populated by the index):
//   - Vector (empty until the chunk is embedded)
//   - ID (assigned by the index builder)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Path == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyPath)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Start < 0 || chunk.Start >= chunk.End {
		return fmt.Errorf("%w: %w: start %d end %d", ErrInvalidChunk, ErrInvalidOffsets, chunk.Start, chunk.End)
	}

	if n := utf8.RuneCountInString(chunk.Text); n != chunk.Len() {
		return fmt.Errorf("%w: %w: range covers %d characters, text has %d",
			ErrInvalidChunk, ErrInvalidOffsets, chunk.Len(), n)
	}

	return nil
}

// ValidateDocument validates a Document. Empty text is allowed here; the
// chunker reports it as an ingestion warning instead.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Path == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyPath)
	}

	if err := ValidateFormat(doc.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateFormat validates that a Format has a known value.
func ValidateFormat(format Format) error {
	if format < FormatPlainText || format > FormatPDF {
		return fmt.Errorf("%w: value %d", ErrInvalidFormat, format)
	}
	return nil
}
