package ustar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// maxMetaSize bounds the body of GNU long name and PAX entries kept in memory.
const maxMetaSize = 1 << 20

// Reader provides sequential access to the entries of a tar archive.
//
// Next advances to the next entry; Read returns that entry's content and
// io.EOF once Size bytes were delivered. GNU long name and PAX entries are
// consumed by Next and applied to the entry that follows them.
type Reader struct {
	r         io.Reader
	remaining int64 // content bytes left in the current entry
	pad       int64 // zero bytes after the content
	pending   *override
	block     [BlockSize]byte
	err       error
}

// override collects the metadata entries seen before a regular header.
type override struct {
	name     *string
	linkname *string
	pax      map[string]string
}

func (o *override) apply(h *Header) {
	if o.pax != nil {
		applyPAX(h, o.pax)
	}
	if o.name != nil {
		h.Name = *o.name
	}
	if o.linkname != nil {
		h.Linkname = *o.linkname
	}
}

// NewReader creates a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next advances to the next entry and returns its header. io.EOF is
// returned after two zero blocks or at a clean end of input between entries.
func (tr *Reader) Next() (*Header, error) {
	if tr.err != nil {
		return nil, tr.err
	}
	hdr, err := tr.next()
	if err != nil {
		tr.err = err
		return nil, err
	}
	return hdr, nil
}

func (tr *Reader) next() (*Header, error) {
	if err := tr.skip(tr.remaining + tr.pad); err != nil {
		return nil, err
	}
	tr.remaining, tr.pad = 0, 0

	for {
		hdr, err := tr.readHeader()
		if err != nil {
			return nil, err
		}
		if hdr == nil {
			// One zero block; the archive ends if a second one or the end
			// of input follows.
			hdr, err = tr.readHeader()
			if err != nil {
				return nil, err
			}
			if hdr == nil {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: lone zero block", ErrFormat)
		}

		switch hdr.Type {
		case TypeGNULongPath, TypeGNULongLink, TypePAX, TypePAXGlobal:
			body, err := tr.readMeta(hdr)
			if err != nil {
				return nil, err
			}
			if tr.pending == nil {
				tr.pending = &override{}
			}
			switch hdr.Type {
			case TypeGNULongPath:
				name := cstring(body)
				tr.pending.name = &name
			case TypeGNULongLink:
				linkname := cstring(body)
				tr.pending.linkname = &linkname
			case TypePAX:
				// Partial records are still applied.
				records, _ := DecodePAX(body)
				tr.pending.pax = records
			}
			continue
		}

		if tr.pending != nil {
			tr.pending.apply(hdr)
			tr.pending = nil
		}
		if hdr.Type.hasContent() {
			tr.remaining = hdr.Size
			tr.pad = padding(hdr.Size)
		}
		return hdr, nil
	}
}

// readHeader reads one block. A clean end of input reads as a zero block
// so that archives without the trailing blocks still end with io.EOF.
func (tr *Reader) readHeader() (*Header, error) {
	n, err := io.ReadFull(tr.r, tr.block[:])
	switch {
	case err == io.EOF:
		return nil, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("truncated header after %d bytes: %w", n, io.ErrUnexpectedEOF)
	case err != nil:
		return nil, err
	}
	return Decode(tr.block[:])
}

// readMeta reads the body of a metadata entry and skips its padding.
func (tr *Reader) readMeta(hdr *Header) ([]byte, error) {
	if hdr.Size > maxMetaSize {
		return nil, fmt.Errorf("%w: %s entry of %d bytes", ErrFormat, hdr.Type, hdr.Size)
	}
	body := make([]byte, hdr.Size)
	if _, err := io.ReadFull(tr.r, body); err != nil {
		return nil, unexpected(err)
	}
	if err := tr.skip(padding(hdr.Size)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(body, "\x00"), nil
}

func (tr *Reader) skip(n int64) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, tr.r, n); err != nil {
		return unexpected(err)
	}
	return nil
}

// Read reads from the content of the current entry.
func (tr *Reader) Read(p []byte) (int, error) {
	if tr.err != nil {
		return 0, tr.err
	}
	if tr.remaining == 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > tr.remaining {
		p = p[:tr.remaining]
	}
	n, err := tr.r.Read(p)
	tr.remaining -= int64(n)
	if err == io.EOF && tr.remaining > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err != nil && err != io.EOF {
		tr.err = err
		return n, err
	}
	return n, nil
}

// Entries returns an iterator over the remaining entries. Each entry's Body
// is only valid until the iteration advances. Iteration stops after the
// first error, which is yielded with a nil entry.
func (tr *Reader) Entries() iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&Entry{Header: hdr, Body: tr}, nil) {
				return
			}
		}
	}
}

// Entry pairs a header with the reader for its content.
type Entry struct {
	Header *Header
	Body   io.Reader
}

// padding returns the number of zero bytes that follow size bytes of content.
func padding(size int64) int64 {
	return -size & (BlockSize - 1)
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
