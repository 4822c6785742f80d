package ar

import (
	"fmt"
	"io"
	"iter"
)

// magicLookahead is how many bytes the reader buffers before validating the
// magic, enough to also hold the first member header.
const magicLookahead = len(Magic) + HeaderSize + 2

const chunkSize = 32 * 1024

type mode int

const (
	modeInit mode = iota
	modeScanning
	modeStreaming
)

// String implements fmt.Stringer.
func (m mode) String() string {
	switch m {
	case modeInit:
		return "init"
	case modeScanning:
		return "scanning"
	case modeStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Option configures a Reader.
type Option func(*Reader)

// WithScan enables the repair mode: instead of expecting each header exactly
// at the end of the previous member, the reader searches forward for the
// first 60-byte window that decodes as a valid header and drops the bytes
// before it. Truncated content at the end of the input is delivered as is
// instead of failing.
func WithScan() Option {
	return func(ar *Reader) { ar.scan = true }
}

// Reader provides sequential access to the members of an ar archive.
//
// Next advances to the following member; Read then returns that member's
// content and io.EOF once Size bytes were delivered. Unread content is
// discarded by the next call to Next.
type Reader struct {
	r    io.Reader
	scan bool

	mode      mode
	carry     []byte // bytes read from r but not consumed yet
	chunk     []byte
	eof       bool  // r is exhausted
	remaining int64 // content bytes left in the active member
	pad       int64 // pad bytes following the active member
	err       error
}

// NewReader creates a Reader reading from r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	ar := &Reader{r: r, chunk: make([]byte, chunkSize)}
	for _, opt := range opts {
		opt(ar)
	}
	return ar
}

// Scanning reports whether the reader runs in repair mode.
func (ar *Reader) Scanning() bool { return ar.scan }

// Next advances to the next member and returns its header.
// io.EOF is returned at the end of the archive.
func (ar *Reader) Next() (*Header, error) {
	if ar.err != nil {
		return nil, ar.err
	}
	hdr, err := ar.next()
	if err != nil {
		ar.err = err
		return nil, err
	}
	return hdr, nil
}

func (ar *Reader) next() (*Header, error) {
	switch ar.mode {
	case modeInit:
		if err := ar.readMagic(); err != nil {
			return nil, err
		}
		ar.mode = modeScanning
	case modeStreaming:
		if err := ar.skipContent(); err != nil {
			return nil, err
		}
		ar.mode = modeScanning
	}

	var (
		hdr *Header
		err error
	)
	if ar.scan {
		hdr, err = ar.scanHeader()
	} else {
		hdr, err = ar.readHeader()
	}
	if err != nil {
		return nil, err
	}
	ar.remaining = hdr.Size
	ar.pad = hdr.Size % 2
	ar.mode = modeStreaming
	return hdr, nil
}

// Read reads from the content of the current member.
func (ar *Reader) Read(p []byte) (int, error) {
	if ar.err != nil {
		return 0, ar.err
	}
	if ar.mode != modeStreaming || ar.remaining == 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > ar.remaining {
		p = p[:ar.remaining]
	}

	if len(ar.carry) > 0 {
		n := copy(p, ar.carry)
		ar.consume(n)
		ar.remaining -= int64(n)
		return n, nil
	}
	if ar.eof {
		return ar.truncated()
	}

	n, err := ar.r.Read(p)
	ar.remaining -= int64(n)
	switch {
	case err == io.EOF:
		ar.eof = true
		if n == 0 {
			return ar.truncated()
		}
	case err != nil:
		ar.err = err
		return n, err
	}
	return n, nil
}

// truncated handles the input ending inside a member. Scan mode closes the
// member with what was delivered.
func (ar *Reader) truncated() (int, error) {
	if ar.scan {
		ar.remaining, ar.pad = 0, 0
		return 0, io.EOF
	}
	ar.err = io.ErrUnexpectedEOF
	return 0, ar.err
}

// Entries returns an iterator over the remaining members. Each entry's Body
// is only valid until the iteration advances. Iteration stops after the
// first error, which is yielded with a nil entry.
func (ar *Reader) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			hdr, err := ar.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&Entry{Header: hdr, Body: ar}, nil) {
				return
			}
		}
	}
}

// Entry pairs a member header with the reader for its content.
type Entry struct {
	Header *Header
	Body   io.Reader
}

func (ar *Reader) readMagic() error {
	if err := ar.fill(magicLookahead); err != nil {
		return err
	}
	if len(ar.carry) < len(Magic) {
		if len(ar.carry) == 0 {
			return fmt.Errorf("%w: empty input", ErrFormat)
		}
		return fmt.Errorf("%w: input too short for magic", ErrFormat)
	}
	if string(ar.carry[:len(Magic)]) != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrFormat, ar.carry[:len(Magic)])
	}
	ar.consume(len(Magic))
	return nil
}

// skipContent discards the unread content of the active member and its pad
// byte. A missing pad byte is tolerated when a valid header follows directly.
func (ar *Reader) skipContent() error {
	for ar.remaining > 0 {
		if len(ar.carry) == 0 {
			if err := ar.fill(1); err != nil {
				return err
			}
			if len(ar.carry) == 0 {
				_, err := ar.truncated()
				if err == io.EOF {
					return nil
				}
				return err
			}
		}
		n := int64(len(ar.carry))
		if n > ar.remaining {
			n = ar.remaining
		}
		ar.consume(int(n))
		ar.remaining -= n
	}

	if ar.pad == 0 {
		return nil
	}
	ar.pad = 0
	if err := ar.fill(1 + HeaderSize); err != nil {
		return err
	}
	switch {
	case len(ar.carry) == 0:
	case ar.carry[0] == padByte:
		ar.consume(1)
	case len(ar.carry) >= HeaderSize:
		if _, err := decodeHeader(ar.carry[:HeaderSize]); err != nil {
			ar.consume(1)
		}
	default:
		ar.consume(1)
	}
	return nil
}

// readHeader decodes the header at the current offset.
func (ar *Reader) readHeader() (*Header, error) {
	if err := ar.fill(HeaderSize); err != nil {
		return nil, err
	}
	switch {
	case len(ar.carry) == 0:
		return nil, io.EOF
	case len(ar.carry) < HeaderSize:
		return nil, fmt.Errorf("%w: truncated member header", io.ErrUnexpectedEOF)
	}
	hdr, err := decodeHeader(ar.carry[:HeaderSize])
	if err != nil {
		return nil, err
	}
	ar.consume(HeaderSize)
	return hdr, nil
}

// scanHeader searches the input for the first window that decodes as a
// header. Bytes before that window are dropped.
func (ar *Reader) scanHeader() (*Header, error) {
	for {
		if err := ar.fill(HeaderSize); err != nil {
			return nil, err
		}
		if len(ar.carry) < HeaderSize {
			return nil, io.EOF
		}
		for i := 0; i+HeaderSize <= len(ar.carry); i++ {
			hdr, err := decodeHeader(ar.carry[i : i+HeaderSize])
			if err != nil {
				continue
			}
			ar.consume(i + HeaderSize)
			return hdr, nil
		}
		// Keep the tail that may still be the start of a header.
		ar.consume(len(ar.carry) - HeaderSize + 1)
		if ar.eof {
			return nil, io.EOF
		}
	}
}

// fill reads from the underlying reader until at least n bytes are buffered
// or the input ends.
func (ar *Reader) fill(n int) error {
	for len(ar.carry) < n && !ar.eof {
		m, err := ar.r.Read(ar.chunk)
		ar.carry = append(ar.carry, ar.chunk[:m]...)
		if err == io.EOF {
			ar.eof = true
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (ar *Reader) consume(n int) {
	ar.carry = ar.carry[:copy(ar.carry, ar.carry[n:])]
}
