package deb

import "errors"

var (
	// ErrInvalidPackage is returned when the ar stream ends without both a
	// control and a data member.
	ErrInvalidPackage = errors.New("not a valid package")

	// ErrFormat is returned for members out of order or an unsupported
	// debian-binary version.
	ErrFormat = errors.New("deb: malformed package")
)
