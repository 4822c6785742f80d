package ar

import (
	"fmt"
	"io"
)

// Writer produces an ar archive. Members are written one at a time: Entry
// returns a writer for the member content that must be closed before the
// next member is started.
type Writer struct {
	w          io.Writer
	wroteMagic bool
	open       *entryWriter
	closed     bool
	err        error
}

// NewWriter creates a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Entry writes hdr and returns a writer for exactly hdr.Size bytes of
// content. The first call also writes the archive magic.
func (aw *Writer) Entry(hdr *Header) (io.WriteCloser, error) {
	if aw.err != nil {
		return nil, aw.err
	}
	if aw.closed {
		return nil, ErrClosed
	}
	if aw.open != nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryOpen, aw.open.name)
	}
	b, err := hdr.encode()
	if err != nil {
		return nil, err
	}
	if err := aw.writeMagic(); err != nil {
		return nil, err
	}
	if _, err := aw.w.Write(b); err != nil {
		aw.err = err
		return nil, err
	}
	aw.open = &entryWriter{aw: aw, name: hdr.Name, size: hdr.Size, remaining: hdr.Size}
	return aw.open, nil
}

// WriteEntry writes a complete member from an in-memory body. hdr.Size is
// set from len(body).
func (aw *Writer) WriteEntry(hdr *Header, body []byte) error {
	h := *hdr
	h.Size = int64(len(body))
	ew, err := aw.Entry(&h)
	if err != nil {
		return err
	}
	if _, err := ew.Write(body); err != nil {
		return err
	}
	return ew.Close()
}

// Close finishes the archive. An archive without members still gets its
// magic. Close does not close the underlying writer.
func (aw *Writer) Close() error {
	if aw.closed {
		return aw.err
	}
	if aw.open != nil {
		return fmt.Errorf("%w: %s", ErrEntryOpen, aw.open.name)
	}
	aw.closed = true
	if aw.err != nil {
		return aw.err
	}
	return aw.writeMagic()
}

func (aw *Writer) writeMagic() error {
	if aw.wroteMagic {
		return nil
	}
	if _, err := io.WriteString(aw.w, Magic); err != nil {
		aw.err = err
		return err
	}
	aw.wroteMagic = true
	return nil
}

type entryWriter struct {
	aw        *Writer
	name      string
	size      int64
	remaining int64
	closed    bool
}

func (ew *entryWriter) Write(p []byte) (int, error) {
	if ew.closed {
		return 0, ErrClosed
	}
	if ew.aw.err != nil {
		return 0, ew.aw.err
	}
	if int64(len(p)) > ew.remaining {
		return 0, fmt.Errorf("%w: %s", ErrWriteTooLong, ew.name)
	}
	n, err := ew.aw.w.Write(p)
	ew.remaining -= int64(n)
	if err != nil {
		ew.aw.err = err
	}
	return n, err
}

// Close ends the member, writing the pad byte after odd-sized content.
func (ew *entryWriter) Close() error {
	if ew.closed {
		return nil
	}
	ew.closed = true
	ew.aw.open = nil
	if ew.aw.err != nil {
		return ew.aw.err
	}
	if ew.remaining > 0 {
		ew.aw.err = fmt.Errorf("%w: %s is missing %d bytes", ErrShortEntry, ew.name, ew.remaining)
		return ew.aw.err
	}
	if ew.size%2 == 1 {
		if _, err := ew.aw.w.Write([]byte{padByte}); err != nil {
			ew.aw.err = err
			return err
		}
	}
	return nil
}
