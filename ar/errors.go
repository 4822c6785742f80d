package ar

import "errors"

var (
	// ErrFormat is returned for input that is not a well-formed ar archive:
	// bad magic, a header that does not parse or a missing terminator.
	ErrFormat = errors.New("ar: malformed archive")

	// ErrValidation is returned when a Header cannot be represented in the
	// fixed-width ar header.
	ErrValidation = errors.New("ar: invalid header")

	ErrEntryOpen    = errors.New("ar: previous entry is still open")
	ErrWriteTooLong = errors.New("ar: write exceeds declared entry size")
	ErrShortEntry   = errors.New("ar: entry closed before its declared size was written")
	ErrClosed       = errors.New("ar: writer is closed")
)
