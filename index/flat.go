package index

import (
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/ragdir/core"
)

// FlatIndex is a brute-force Index over an in-memory slice.
// Queries scan every chunk, which is fast enough for tens of thousands
// of chunks.
type FlatIndex struct {
	mu        sync.RWMutex
	dimension int
	chunks    []*core.Chunk
	ids       map[core.ID]struct{}
	maxID     core.ID
}

var _ Index = (*FlatIndex)(nil)

// NewFlatIndex creates an empty FlatIndex.
func NewFlatIndex() *FlatIndex {
	return &FlatIndex{
		ids: make(map[core.ID]struct{}),
	}
}

// Add inserts a copy of chunk holding the normalized vector.
func (f *FlatIndex) Add(chunk *core.Chunk, vector []float32) error {
	return f.AddAll([]*core.Chunk{chunk}, [][]float32{vector})
}

// AddAll inserts the whole batch under one write lock, or nothing when any
// entry is invalid.
func (f *FlatIndex) AddAll(chunks []*core.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dimension, err := ValidateBatch(chunks, vectors, f.dimension)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if _, ok := f.ids[chunk.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateChunk, chunk.ID)
		}
	}

	for i, chunk := range chunks {
		stored := *chunk
		stored.Vector = NormalizeVector(vectors[i])
		f.chunks = append(f.chunks, &stored)
		f.ids[stored.ID] = struct{}{}
		f.maxID = max(f.maxID, stored.ID)
	}
	f.dimension = dimension
	return nil
}

// Query scores every chunk against the normalized query vector.
func (f *FlatIndex) Query(vector []float32, k int) ([]core.ScoredChunk, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if err := CheckDimension(f.dimension, vector); err != nil {
		return nil, err
	}

	query := NormalizeVector(vector)
	results := make([]core.ScoredChunk, len(f.chunks))
	for i, chunk := range f.chunks {
		c := *chunk
		c.Vector = slices.Clone(chunk.Vector)
		results[i] = core.ScoredChunk{Chunk: &c, Score: Dot(query, chunk.Vector)}
	}

	SortScored(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.chunks)
}

func (f *FlatIndex) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dimension
}

func (f *FlatIndex) MaxID() core.ID {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.maxID
}

func (f *FlatIndex) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = nil
	f.ids = make(map[core.ID]struct{})
	f.maxID = 0
	f.dimension = 0
	return nil
}
