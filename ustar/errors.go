package ustar

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned for blocks that are not valid tar headers, most
	// often because of a checksum mismatch.
	ErrFormat = errors.New("ustar: malformed header")

	// ErrValidation is returned when a Header cannot be represented in a
	// single header block.
	ErrValidation = errors.New("ustar: invalid header")

	// ErrParse is returned for malformed PAX records.
	ErrParse = errors.New("ustar: malformed pax record")

	ErrNameTooLong     = fmt.Errorf("%w: name too long", ErrValidation)
	ErrLinknameTooLong = fmt.Errorf("%w: linkname too long", ErrValidation)
	ErrNonASCII        = fmt.Errorf("%w: non-ASCII name", ErrValidation)

	ErrEntryOpen  = errors.New("ustar: previous entry is still open")
	ErrShortEntry = errors.New("ustar: entry closed before its declared size was written")
	ErrClosed     = errors.New("ustar: writer is closed")
)
