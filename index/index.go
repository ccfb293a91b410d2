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


package index

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/poiesic/ragdir/core"
)

// Index stores chunks with their embedding vectors.
//
// The dimension D is fixed by the first vector added. Implementations must
// allow concurrent Query calls and exclude queries while a write runs.
type Index interface {
	// Add inserts one chunk. The chunk must have a non-zero ID that is not
	// already present.
	Add(chunk *core.Chunk, vector []float32) error

	// AddAll inserts chunks[i] with vectors[i] for every i, or nothing at all.
	AddAll(chunks []*core.Chunk, vectors [][]float32) error

	// Query returns up to k chunks ordered by descending cosine similarity,
	// equal scores by ascending chunk ID.
	Query(vector []float32, k int) ([]core.ScoredChunk, error)

	// Len returns the number of stored chunks.
	Len() int

	// Dimension returns D, or 0 while the index is empty.
	Dimension() int

	// MaxID returns the largest stored chunk ID, or 0 while the index is empty.
	MaxID() core.ID

	// Reset removes every chunk and forgets D.
	Reset() error
}

// Factory creates an empty Index.
type Factory func() (Index, error)

// NewFlatFactory returns a Factory producing FlatIndex values.
func NewFlatFactory() Factory {
	return func() (Index, error) {
		return NewFlatIndex(), nil
	}
}

// SortScored orders results by descending score, then ascending chunk ID.
func SortScored(results []core.ScoredChunk) {
	slices.SortFunc(results, func(a, b core.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})
}

// CheckDimension validates vector against an established dimension.
// A dimension of zero accepts any non-empty vector.
func CheckDimension(dimension int, vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}
	if dimension != 0 && len(vector) != dimension {
		return fmt.Errorf("%w: expected %d, got %d", core.ErrDimensionMismatch, dimension, len(vector))
	}
	return nil
}

// ValidateEntry checks a chunk and its vector before insertion.
func ValidateEntry(chunk *core.Chunk, vector []float32, dimension int) error {
	if err := core.ValidateChunk(chunk); err != nil {
		return err
	}
	if chunk.ID == 0 {
		return fmt.Errorf("%w: chunk id must be assigned", core.ErrInvalidChunk)
	}
	return CheckDimension(dimension, vector)
}

// ValidateBatch checks an AddAll batch: matching lengths, valid entries,
// one dimension throughout and no repeated IDs. It returns the batch
// dimension.
func ValidateBatch(chunks []*core.Chunk, vectors [][]float32, dimension int) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}

	seen := make(map[core.ID]struct{}, len(chunks))
	for i, chunk := range chunks {
		if err := ValidateEntry(chunk, vectors[i], dimension); err != nil {
			return 0, err
		}
		if dimension == 0 {
			dimension = len(vectors[i])
		}
		if _, ok := seen[chunk.ID]; ok {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateChunk, chunk.ID)
		}
		seen[chunk.ID] = struct{}{}
	}
	return dimension, nil
}
