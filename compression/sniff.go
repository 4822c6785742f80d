package compression

import (
	"bytes"
	"io"
)

// DefaultMaxBuffer is how many leading bytes NewReader inspects at most.
const DefaultMaxBuffer = 16

// magic is a predicate on the leading bytes of a stream. need is the number
// of bytes it has to see before it can match.
type magic struct {
	format string
	need   int
	match  func(b []byte) bool
}

// magics in priority order; the first match wins.
var magics = []magic{
	{FormatDeflate, 2, func(b []byte) bool {
		return b[0] == 0x78 && (b[1] == 0x01 || b[1] == 0x9c || b[1] == 0xda)
	}},
	{FormatBzip2, 10, func(b []byte) bool {
		if string(b[:3]) != "BZh" || b[3] < '1' || b[3] > '9' {
			return false
		}
		// Block magic (pi) or, for an empty stream, the end of stream magic.
		return bytes.Equal(b[4:10], []byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}) ||
			bytes.Equal(b[4:10], []byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90})
	}},
	{FormatGzip, 3, prefix(0x1f, 0x8b, 0x08)},
	{FormatZstd, 4, prefix(0x28, 0xb5, 0x2f, 0xfd)},
	{FormatXz, 6, prefix(0xfd, '7', 'z', 'X', 'Z', 0x00)},
	{FormatLZ4, 4, prefix(0x04, 0x22, 0x4d, 0x18)},
}

func prefix(p ...byte) func([]byte) bool {
	return func(b []byte) bool { return bytes.HasPrefix(b, p) }
}

// Detect returns the format whose magic number b starts with, or FormatNone.
// It reports false when b is too short to rule out a format that was not
// matched yet.
func Detect(b []byte) (format string, final bool) {
	final = true
	for _, m := range magics {
		if len(b) < m.need {
			final = false
			continue
		}
		if m.match(b) {
			return m.format, true
		}
	}
	return FormatNone, final
}

type options struct {
	maxBuffer int
	strict    bool
	registry  *Registry
}

// Option configures NewReader.
type Option func(*options)

// WithMaxBuffer sets how many bytes are inspected before falling back to
// the identity transform.
func WithMaxBuffer(n int) Option {
	return func(o *options) { o.maxBuffer = n }
}

// WithStrict makes an empty stream an error instead of an empty result.
func WithStrict() Option {
	return func(o *options) { o.strict = true }
}

// WithRegistry selects the codecs used to decompress. The default is
// Default.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// Reader decompresses a stream whose format is detected from its leading
// bytes. Streams that match no known magic are passed through unchanged.
type Reader struct {
	rc     io.ReadCloser
	format string
}

// NewReader reads up to the configured buffer size from r, decides on a
// format once, and replays the inspected bytes into the chosen decompressor.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	o := options{maxBuffer: DefaultMaxBuffer, registry: Default}
	for _, opt := range opts {
		opt(&o)
	}

	buf := make([]byte, 0, o.maxBuffer)
	format := FormatNone
	for {
		var final bool
		format, final = Detect(buf)
		if format != FormatNone || final || len(buf) == o.maxBuffer {
			break
		}
		n, err := r.Read(buf[len(buf):o.maxBuffer])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			format, _ = Detect(buf)
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if len(buf) == 0 && o.strict {
		return nil, ErrNoData
	}

	rc, err := o.registry.Decompress(format, io.MultiReader(bytes.NewReader(buf), r))
	if err != nil {
		return nil, err
	}
	return &Reader{rc: rc, format: format}, nil
}

// Format returns the name of the detected format, FormatNone for
// pass-through.
func (r *Reader) Format() string { return r.format }

// Read reads decompressed bytes.
func (r *Reader) Read(p []byte) (int, error) { return r.rc.Read(p) }

// Close releases the decompressor. It does not close the underlying reader.
func (r *Reader) Close() error { return r.rc.Close() }
