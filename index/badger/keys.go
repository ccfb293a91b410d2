package badger

import (
	"encoding/binary"

	"github.com/poiesic/ragdir/core"
)

// Key prefixes for different data types
const (
	chunkPrefix = "chunk:"
)

// makeChunkKey generates a key for a chunk by ID.
// Format: prefix + 8 byte big-endian ID, so iteration follows ID order.
func makeChunkKey(id core.ID) []byte {
	buf := make([]byte, len(chunkPrefix)+8)
	offset := copy(buf, chunkPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
