package compression

import "errors"

var (
	ErrNoData            = errors.New("no data to sniff")
	ErrUnsupportedFormat = errors.New("unsupported compression format")
	ErrUnsupportedLevel  = errors.New("unsupported compression level")
)
