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
	"errors"
	"fmt"
)

// Retrieval pipeline errors
var (
	// ErrIngestionWarning marks a per-file or per-chunk problem that was skipped.
	ErrIngestionWarning = errors.New("ingestion warning")

	// ErrIndexBuildFailed indicates that no chunk could be embedded.
	ErrIndexBuildFailed = errors.New("index build failed")

	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRetrievalFailure indicates the question could not be embedded or searched.
	ErrRetrievalFailure = errors.New("retrieval failure")

	// ErrGenerationFailure indicates the generation backend failed to answer.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrEmptyResult indicates that no chunk cleared the similarity threshold.
	ErrEmptyResult = errors.New("no relevant information found")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates the text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyPath indicates the source path is empty.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidOffsets indicates chunk offsets are negative or inverted.
	ErrInvalidOffsets = errors.New("invalid offsets")

	// ErrInvalidFormat indicates an unknown Format value.
	ErrInvalidFormat = errors.New("invalid format")
)

// IngestionWarning describes a file or chunk that was skipped during ingestion.
// It matches ErrIngestionWarning with errors.Is.
type IngestionWarning struct {
	Path    string
	ChunkID ID // Zero for file-level warnings
	Err     error
}

// NewIngestionWarning creates a warning for path caused by err.
func NewIngestionWarning(path string, err error) IngestionWarning {
	return IngestionWarning{Path: path, Err: err}
}

func (w IngestionWarning) Error() string {
	if w.ChunkID != 0 {
		return fmt.Sprintf("%s: chunk %d: %v", w.Path, w.ChunkID, w.Err)
	}
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

func (w IngestionWarning) Unwrap() error {
	return w.Err
}

// Is reports whether target is ErrIngestionWarning.
func (w IngestionWarning) Is(target error) bool {
	return target == ErrIngestionWarning
}
