package source

import "errors"

var (
	// ErrUnsupportedFormat is returned for files whose extension has no decoder.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrBinaryContent is returned when a text file looks like binary data.
	ErrBinaryContent = errors.New("file appears to be binary")

	// ErrInvalidEncoding marks text that was not valid UTF-8 and was repaired.
	ErrInvalidEncoding = errors.New("invalid UTF-8 replaced")

	// ErrMalformedPDF is returned when a PDF cannot be decoded.
	ErrMalformedPDF = errors.New("malformed pdf")

	// ErrDuplicateContent marks a file whose text matches an earlier file.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrNotDirectory is returned when the corpus root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)
