package control

import "errors"

var (
	// ErrParse is returned for text that is not valid control syntax.
	ErrParse = errors.New("control: parse error")

	// ErrValidation is returned for well-formed paragraphs with missing or
	// invalid field values.
	ErrValidation = errors.New("control: invalid field")
)
