package ustar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// longLinkName is the placeholder name GNU tar gives its long name entries.
const longLinkName = "././@LongLink"

// mode file-type bits used to infer the entry type.
const (
	modeTypeMask = 0170000
	modeDir      = 0040000
	modeFifo     = 0010000
	modeSymlink  = 0120000
	modeBlock    = 0060000
	modeChar     = 0020000
)

// Writer produces a tar archive. Entries are written one at a time: Entry
// returns a writer for the content that must be closed before the next entry
// is started. Close writes the end-of-archive blocks; a closed Writer cannot
// be reused.
type Writer struct {
	w      io.Writer
	open   *entryWriter
	closed bool
	err    error

	// now supplies the default modification time.
	now func() time.Time
}

// NewWriter creates a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Entry writes the header for hdr and returns a writer for its content.
//
// Unset fields get defaults: the type is inferred from the file-type bits of
// Mode, Mode defaults to 0755 for directories and 0644 otherwise, ModTime to
// the current time. Entries without content get a Size of 0. Names and link
// targets that do not fit the header are written through a preceding GNU
// long name entry, or a PAX entry when they are not ASCII.
//
// The returned writer silently drops bytes beyond hdr.Size; closing it before
// hdr.Size bytes were written fails with ErrShortEntry.
func (tw *Writer) Entry(hdr *Header) (io.WriteCloser, error) {
	if tw.err != nil {
		return nil, tw.err
	}
	if tw.closed {
		return nil, ErrClosed
	}
	if tw.open != nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryOpen, tw.open.name)
	}

	h := tw.withDefaults(hdr)
	if err := tw.writeLongNames(&h); err != nil {
		return nil, err
	}
	block, err := Encode(&h)
	if err != nil {
		return nil, err
	}
	if err := tw.write(block); err != nil {
		return nil, err
	}
	tw.open = &entryWriter{tw: tw, name: h.Name, remaining: h.Size, pad: padding(h.Size)}
	return tw.open, nil
}

// WriteEntry writes a complete entry from an in-memory body. For entries
// with content, hdr.Size is set from len(body).
func (tw *Writer) WriteEntry(hdr *Header, body []byte) error {
	h := *hdr
	if len(body) > 0 || h.Type == TypeFile || h.Type == typeLegacyFile {
		h.Size = int64(len(body))
	}
	ew, err := tw.Entry(&h)
	if err != nil {
		return err
	}
	if _, err := ew.Write(body); err != nil {
		return err
	}
	return ew.Close()
}

// Close writes the two zero blocks that end the archive. It does not close
// the underlying writer.
func (tw *Writer) Close() error {
	if tw.closed {
		return ErrClosed
	}
	if tw.open != nil {
		return fmt.Errorf("%w: %s", ErrEntryOpen, tw.open.name)
	}
	tw.closed = true
	if tw.err != nil {
		return tw.err
	}
	return tw.write(make([]byte, 2*BlockSize))
}

func (tw *Writer) withDefaults(hdr *Header) Header {
	h := *hdr
	if h.Type == typeLegacyFile {
		switch h.Mode & modeTypeMask {
		case modeDir:
			h.Type = TypeDir
		case modeSymlink:
			h.Type = TypeSymlink
		case modeFifo:
			h.Type = TypeFifo
		case modeChar:
			h.Type = TypeChar
		case modeBlock:
			h.Type = TypeBlock
		default:
			h.Type = TypeFile
		}
	}
	h.Mode &^= modeTypeMask
	if h.Mode == 0 {
		if h.Type == TypeDir {
			h.Mode = 0755
		} else {
			h.Mode = 0644
		}
	}
	if !h.Type.hasContent() {
		h.Size = 0
	}
	if h.Type == TypeDir && !strings.HasSuffix(h.Name, "/") {
		h.Name += "/"
	}
	if h.ModTime.IsZero() {
		h.ModTime = tw.now()
	}
	return h
}

// writeLongNames emits the entries carrying a name or link target that the
// header cannot hold, and shortens them in h.
func (tw *Writer) writeLongNames(h *Header) error {
	if !isASCII(h.Name) || !isASCII(h.Linkname) {
		var records []PAXRecord
		if !isASCII(h.Name) {
			records = append(records, PAXRecord{paxPath, h.Name})
			h.Name = asciiFallback(h.Name)
		}
		if !isASCII(h.Linkname) {
			records = append(records, PAXRecord{paxLinkpath, h.Linkname})
			h.Linkname = asciiFallback(h.Linkname)
		}
		if err := tw.writeMeta(TypePAX, "PaxHeader", EncodePAX(records)); err != nil {
			return err
		}
	}

	if _, err := Encode(&Header{Name: h.Name}); errors.Is(err, ErrNameTooLong) {
		if err := tw.writeMeta(TypeGNULongPath, longLinkName, append([]byte(h.Name), 0)); err != nil {
			return err
		}
		h.Name = h.Name[:nameLen]
	}
	if len(h.Linkname) > linkLen {
		if err := tw.writeMeta(TypeGNULongLink, longLinkName, append([]byte(h.Linkname), 0)); err != nil {
			return err
		}
		h.Linkname = h.Linkname[:linkLen]
	}
	return nil
}

func (tw *Writer) writeMeta(typ Type, name string, body []byte) error {
	block, err := Encode(&Header{
		Name:    name,
		Type:    typ,
		Mode:    0644,
		Size:    int64(len(body)),
		ModTime: time.Unix(0, 0),
	})
	if err != nil {
		return err
	}
	if err := tw.write(block); err != nil {
		return err
	}
	if err := tw.write(body); err != nil {
		return err
	}
	return tw.write(make([]byte, padding(int64(len(body)))))
}

func (tw *Writer) write(b []byte) error {
	if _, err := tw.w.Write(b); err != nil {
		tw.err = err
		return err
	}
	return nil
}

// asciiFallback replaces non-ASCII bytes so the header still carries a
// readable name for readers that ignore PAX records.
func asciiFallback(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 0x80 {
			b[i] = '_'
		}
	}
	if len(b) > nameLen {
		b = b[:nameLen]
	}
	return string(b)
}

type entryWriter struct {
	tw        *Writer
	name      string
	remaining int64
	pad       int64
	closed    bool
}

// Write copies up to the declared size and drops the rest.
func (ew *entryWriter) Write(p []byte) (int, error) {
	if ew.closed {
		return 0, ErrClosed
	}
	if ew.tw.err != nil {
		return 0, ew.tw.err
	}
	n := len(p)
	if int64(len(p)) > ew.remaining {
		p = p[:ew.remaining]
	}
	if len(p) > 0 {
		if err := ew.tw.write(p); err != nil {
			return 0, err
		}
		ew.remaining -= int64(len(p))
	}
	return n, nil
}

// Close ends the entry, padding the content to a block boundary.
func (ew *entryWriter) Close() error {
	if ew.closed {
		return nil
	}
	ew.closed = true
	ew.tw.open = nil
	if ew.tw.err != nil {
		return ew.tw.err
	}
	if ew.remaining > 0 {
		ew.tw.err = fmt.Errorf("%w: %s is missing %d bytes", ErrShortEntry, ew.name, ew.remaining)
		return ew.tw.err
	}
	return ew.tw.write(make([]byte, ew.pad))
}
