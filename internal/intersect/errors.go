package intersect

import "errors"

var (
	// ErrDecode is returned when file content is not valid UTF-8.
	ErrDecode = errors.New("content is not valid utf-8")

	// ErrInvalidJSON is returned when a JSON-named file does not hold a flat
	// array of strings.
	ErrInvalidJSON = errors.New("invalid json array")

	// ErrEmptyContent is returned when normalization leaves no tokens.
	ErrEmptyContent = errors.New("no tokens after normalization")
)
