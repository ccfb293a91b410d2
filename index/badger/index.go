// Package badger implements index.Index on an in-memory BadgerDB.
//
// Chunks are stored as MUS-encoded records keyed by their big-endian ID,
// so a prefix scan visits them in ID order. The database is never opened
// on disk; the index lives as long as the process.
package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
)

// Index stores chunks in BadgerDB and answers queries with a full scan.
type Index struct {
	mu        sync.RWMutex
	backend   *backend
	dimension int
	count     int
	maxID     core.ID
	logger    *slog.Logger
}

var _ index.Index = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIndex opens an empty in-memory index. Call Close to release it.
func NewIndex(opts ...Option) (*Index, error) {
	idx := &Index{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "badger-index")

	b, err := openBackend(idx.logger)
	if err != nil {
		return nil, err
	}
	idx.backend = b
	return idx, nil
}

// NewFactory returns an index.Factory producing badger indexes.
func NewFactory(opts ...Option) index.Factory {
	return func() (index.Index, error) {
		return NewIndex(opts...)
	}
}

// Add inserts one chunk.
func (i *Index) Add(chunk *core.Chunk, vector []float32) error {
	return i.AddAll([]*core.Chunk{chunk}, [][]float32{vector})
}

// AddAll validates the whole batch, then writes it. Batches too large for a
// single transaction are committed in parts; if a later part fails, the
// parts already written are removed again.
func (i *Index) AddAll(chunks []*core.Chunk, vectors [][]float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.backend.isClosed() {
		return ErrClosed
	}

	dimension, err := index.ValidateBatch(chunks, vectors, i.dimension)
	if err != nil {
		return err
	}
	if err := i.checkAbsent(chunks); err != nil {
		return err
	}

	written := 0
	for written < len(chunks) {
		n, err := i.writeChunks(chunks[written:], vectors[written:])
		written += n
		if err != nil {
			i.removeChunks(chunks[:written])
			return err
		}
	}

	i.dimension = dimension
	i.count += len(chunks)
	for _, chunk := range chunks {
		i.maxID = max(i.maxID, chunk.ID)
	}
	return nil
}

func (i *Index) checkAbsent(chunks []*core.Chunk) error {
	return i.backend.withTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			_, err := tx.Get(makeChunkKey(chunk.ID))
			if err == nil {
				return fmt.Errorf("%w: %d", index.ErrDuplicateChunk, chunk.ID)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	}, false)
}

// writeChunks writes as many chunks as fit in one transaction and returns
// how many were committed.
func (i *Index) writeChunks(chunks []*core.Chunk, vectors [][]float32) (int, error) {
	n := 0
	err := i.backend.withTx(func(tx *badger.Txn) error {
		for j, chunk := range chunks {
			stored := *chunk
			stored.Vector = index.NormalizeVector(vectors[j])

			err := tx.Set(makeChunkKey(stored.ID), marshalChunk(&stored))
			if errors.Is(err, badger.ErrTxnTooBig) && n > 0 {
				break
			}
			if err != nil {
				return err
			}
			n++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (i *Index) removeChunks(chunks []*core.Chunk) {
	for _, chunk := range chunks {
		err := i.backend.db.Update(func(tx *badger.Txn) error {
			return tx.Delete(makeChunkKey(chunk.ID))
		})
		if err != nil {
			i.logger.Error("failed to roll back chunk", "chunk", chunk.ID, "err", err)
		}
	}
}

// Query scans every stored chunk and returns the k most similar.
func (i *Index) Query(vector []float32, k int) ([]core.ScoredChunk, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.backend.isClosed() {
		return nil, ErrClosed
	}
	if i.count == 0 || k <= 0 {
		return nil, nil
	}
	if err := index.CheckDimension(i.dimension, vector); err != nil {
		return nil, err
	}

	query := index.NormalizeVector(vector)
	results := make([]core.ScoredChunk, 0, i.count)

	err := i.backend.withTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = unmarshalChunk(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("%w: key %x: %w", ErrCorruptRecord, iter.Item().Key(), err)
			}
			results = append(results, core.ScoredChunk{Chunk: chunk, Score: index.Dot(query, chunk.Vector)})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	index.SortScored(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.count
}

func (i *Index) Dimension() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dimension
}

func (i *Index) MaxID() core.ID {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.maxID
}

// Reset drops every stored chunk.
func (i *Index) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.backend.isClosed() {
		return ErrClosed
	}
	if err := i.backend.db.DropPrefix([]byte(chunkPrefix)); err != nil {
		return err
	}
	i.count = 0
	i.maxID = 0
	i.dimension = 0
	return nil
}

// Close releases the database.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.backend.isClosed() {
		return nil
	}
	return i.backend.close()
}
