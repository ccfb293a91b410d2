package badger

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragdir/core"
)

// marshalChunk encodes a chunk, vector included, in MUS format.
func marshalChunk(c *core.Chunk) []byte {
	size := varint.Uint64.Size(uint64(c.ID)) +
		ord.String.Size(c.Path) +
		varint.Int.Size(c.Start) +
		varint.Int.Size(c.End) +
		ord.String.Size(c.Text) +
		varint.Int.Size(c.Page) +
		varint.Int.Size(c.Line) +
		varint.Int.Size(len(c.Vector))
	for _, v := range c.Vector {
		size += raw.Float32.Size(v)
	}

	bs := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(c.ID), bs)
	n += ord.String.Marshal(c.Path, bs[n:])
	n += varint.Int.Marshal(c.Start, bs[n:])
	n += varint.Int.Marshal(c.End, bs[n:])
	n += ord.String.Marshal(c.Text, bs[n:])
	n += varint.Int.Marshal(c.Page, bs[n:])
	n += varint.Int.Marshal(c.Line, bs[n:])
	n += varint.Int.Marshal(len(c.Vector), bs[n:])
	for _, v := range c.Vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	return bs
}

// unmarshalChunk decodes a chunk written by marshalChunk.
func unmarshalChunk(bs []byte) (*core.Chunk, error) {
	var (
		c   core.Chunk
		n   int
		m   int
		err error
		id  uint64
		dim int
	)

	if id, m, err = varint.Uint64.Unmarshal(bs); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	c.ID = core.ID(id)
	n += m
	if c.Path, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	n += m
	if c.Start, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	n += m
	if c.End, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	n += m
	if c.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}
	n += m
	if c.Page, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("page: %w", err)
	}
	n += m
	if c.Line, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("line: %w", err)
	}
	n += m
	if dim, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return nil, fmt.Errorf("vector length: %w", err)
	}
	n += m
	if dim < 0 || dim > len(bs)-n {
		return nil, fmt.Errorf("%w: vector length %d", ErrCorruptRecord, dim)
	}

	c.Vector = make([]float32, dim)
	for i := range c.Vector {
		if c.Vector[i], m, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, fmt.Errorf("vector[%d]: %w", i, err)
		}
		n += m
	}
	return &c, nil
}
