package badger

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/poiesic/ragdir/ai/mock"
	"github.com/poiesic/ragdir/chunker"
	"github.com/poiesic/ragdir/core"
	"github.com/poiesic/ragdir/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func chunk(id core.ID, text string) *core.Chunk {
	return &core.Chunk{ID: id, Path: "notes.md", Start: 0, End: len([]rune(text)), Text: text, Page: 2, Line: 7}
}

func TestCodec_RoundTrip(t *testing.T) {
	original := &core.Chunk{
		ID:     42,
		Path:   "docs/guide.md",
		Start:  120,
		End:    125,
		Text:   "héllo",
		Vector: []float32{0.25, -0.5, 1},
		Page:   3,
		Line:   18,
	}

	decoded, err := unmarshalChunk(marshalChunk(original))
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCodec_Truncated(t *testing.T) {
	bs := marshalChunk(chunk(1, "hello"))
	_, err := unmarshalChunk(bs[:len(bs)/2])
	assert.Error(t, err)
}

func TestIndex_AddAndQuery(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(chunk(1, "x axis"), []float32{1, 0, 0}))
	require.NoError(t, idx.Add(chunk(2, "y axis"), []float32{0, 3, 0}))
	require.NoError(t, idx.Add(chunk(3, "diagonal"), []float32{1, 1, 0}))

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 3, idx.Dimension())
	assert.Equal(t, core.ID(3), idx.MaxID())

	results, err := idx.Query([]float32{0, 1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, core.ID(2), results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "y axis", results[0].Chunk.Text)
	assert.Equal(t, 2, results[0].Chunk.Page)
	assert.Equal(t, 7, results[0].Chunk.Line)
	assert.Equal(t, core.ID(3), results[1].Chunk.ID)
	assert.Equal(t, core.ID(1), results[2].Chunk.ID)
}

func TestIndex_TopKAndTies(t *testing.T) {
	idx := newTestIndex(t)
	for _, id := range []core.ID{7, 3, 5} {
		require.NoError(t, idx.Add(chunk(id, fmt.Sprintf("chunk %d", id)), []float32{1, 0}))
	}

	results, err := idx.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ID(3), results[0].Chunk.ID)
	assert.Equal(t, core.ID(5), results[1].Chunk.ID)

	results, err = idx.Query([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(chunk(1, "a"), []float32{1, 0}))

	assert.ErrorIs(t, idx.Add(chunk(2, "b"), []float32{1, 0, 0}), core.ErrDimensionMismatch)

	_, err := idx.Query([]float32{1}, 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_AddAllIsAtomic(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Add(chunk(1, "existing"), []float32{1, 0}))

	err := idx.AddAll([]*core.Chunk{chunk(2, "b"), chunk(1, "dup")}, [][]float32{{0, 1}, {1, 1}})
	assert.ErrorIs(t, err, index.ErrDuplicateChunk)
	assert.Equal(t, 1, idx.Len())

	results, err := idx.Query([]float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1, "rejected batch must not be visible")
}

func TestIndex_ResetAndClose(t *testing.T) {
	idx, err := NewIndex()
	require.NoError(t, err)

	require.NoError(t, idx.Add(chunk(1, "a"), []float32{1, 0}))
	require.NoError(t, idx.Reset())
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, core.ID(0), idx.MaxID())
	assert.Equal(t, 0, idx.Dimension())

	require.NoError(t, idx.Add(chunk(1, "a"), []float32{1, 0, 0}))
	assert.Equal(t, 3, idx.Dimension())

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	assert.ErrorIs(t, idx.Add(chunk(2, "b"), []float32{1, 0, 0}), ErrClosed)
	_, err = idx.Query([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIndex_MatchesFlatIndex(t *testing.T) {
	c, err := chunker.New(chunker.WithMaxChunkSize(80), chunker.WithOverlap(10))
	require.NoError(t, err)

	docs := []*core.Document{
		core.NewDocument("a.txt", core.FormatPlainText, strings.Repeat("Badger stores keys in an LSM tree. ", 10), nil),
		core.NewDocument("b.md", core.FormatMarkdown, strings.Repeat("Vectors are normalized before scoring. ", 8), nil),
	}

	build := func(idx index.Index) []core.ScoredChunk {
		b, err := index.NewBuilder(idx, c, mock.NewMockEmbedder(), index.WithRetry(1, 0))
		require.NoError(t, err)
		defer b.Release()

		_, err = b.Build(context.Background(), docs)
		require.NoError(t, err)

		results, err := idx.Query(mock.DeterministicVector("normalized vectors", mock.DefaultDimension), idx.Len())
		require.NoError(t, err)
		return results
	}

	flat := build(index.NewFlatIndex())
	stored := build(newTestIndex(t))

	require.Equal(t, len(flat), len(stored))
	for i := range flat {
		assert.Equal(t, flat[i].Chunk.ID, stored[i].Chunk.ID)
		assert.Equal(t, flat[i].Chunk.Text, stored[i].Chunk.Text)
		assert.InDelta(t, flat[i].Score, stored[i].Score, 1e-6)
	}
}

func TestNewFactory(t *testing.T) {
	idx, err := NewFactory()()
	require.NoError(t, err)
	defer idx.(*Index).Close()

	assert.Equal(t, 0, idx.Len())
}
