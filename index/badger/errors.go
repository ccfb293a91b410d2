package badger

import "errors"

var (
	// ErrClosed is returned for operations on a closed index.
	ErrClosed = errors.New("index closed")

	// ErrCorruptRecord is returned when a stored chunk cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt chunk record")
)
