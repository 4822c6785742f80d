package ar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Magic is the global header every ar archive starts with.
	Magic = "!<arch>\n"

	// HeaderSize is the size in bytes of a member header.
	HeaderSize = 60

	terminator = "`\n"
	padByte    = '\n'
)

// field offsets and widths within a member header.
const (
	nameOff, nameLen   = 0, 16
	mtimeOff, mtimeLen = 16, 12
	uidOff, uidLen     = 28, 6
	gidOff, gidLen     = 34, 6
	modeOff, modeLen   = 40, 8
	sizeOff, sizeLen   = 48, 10
	termOff            = 58
)

// Header describes a single member of an ar archive.
type Header struct {
	// Name is the member name, at most 16 bytes. A trailing '/' written by
	// GNU ar is removed when reading.
	Name string

	// ModTime is stored with one second resolution. A zero ModTime is
	// written as 0; times before 1970 cannot be written.
	ModTime time.Time

	UID  int
	GID  int
	Mode int64

	// Size is the length of the member content in bytes.
	Size int64
}

// encode renders h into the 60-byte on-disk form.
func (h *Header) encode() ([]byte, error) {
	if h.Name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrValidation)
	}
	if len(h.Name) > nameLen {
		return nil, fmt.Errorf("%w: name %q is longer than %d bytes", ErrValidation, h.Name, nameLen)
	}
	if strings.ContainsAny(h.Name, " \n") {
		return nil, fmt.Errorf("%w: name %q contains whitespace", ErrValidation, h.Name)
	}
	if h.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrValidation, h.Size)
	}

	if h.UID < 0 || h.GID < 0 || h.Mode < 0 {
		return nil, fmt.Errorf("%w: negative uid, gid or mode in %q", ErrValidation, h.Name)
	}

	var mtime int64
	if !h.ModTime.IsZero() {
		mtime = h.ModTime.Unix()
	}
	if mtime < 0 {
		return nil, fmt.Errorf("%w: mtime %s is before 1970", ErrValidation, h.ModTime.UTC().Format(time.RFC3339))
	}

	b := bytes.Repeat([]byte{' '}, HeaderSize)
	fields := []struct {
		name  string
		off   int
		width int
		value string
	}{
		{"name", nameOff, nameLen, h.Name},
		{"mtime", mtimeOff, mtimeLen, strconv.FormatInt(mtime, 10)},
		{"uid", uidOff, uidLen, strconv.Itoa(h.UID)},
		{"gid", gidOff, gidLen, strconv.Itoa(h.GID)},
		{"mode", modeOff, modeLen, strconv.FormatInt(h.Mode, 8)},
		{"size", sizeOff, sizeLen, strconv.FormatInt(h.Size, 10)},
	}
	for _, f := range fields {
		if len(f.value) > f.width {
			return nil, fmt.Errorf("%w: %s %s does not fit in %d bytes", ErrValidation, f.name, f.value, f.width)
		}
		copy(b[f.off:], f.value)
	}
	copy(b[termOff:], terminator)
	return b, nil
}

// decodeHeader parses a 60-byte header. Every field must validate: the name
// is non-empty, numeric fields are digits padded with spaces, and the header
// ends with the terminator. The same check drives the scan mode search, so
// it must not accept anything loosely.
func decodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	if string(b[termOff:HeaderSize]) != terminator {
		return nil, fmt.Errorf("%w: missing header terminator", ErrFormat)
	}

	name := strings.TrimRight(string(b[nameOff:nameOff+nameLen]), " ")
	if name != "/" && name != "//" {
		name = strings.TrimSuffix(name, "/")
	}
	if name == "" || strings.ContainsAny(name, " \n\x00") {
		return nil, fmt.Errorf("%w: invalid member name %q", ErrFormat, name)
	}

	mtime, err := parseField(b[mtimeOff:mtimeOff+mtimeLen], 10, "mtime")
	if err != nil {
		return nil, err
	}
	uid, err := parseField(b[uidOff:uidOff+uidLen], 10, "uid")
	if err != nil {
		return nil, err
	}
	gid, err := parseField(b[gidOff:gidOff+gidLen], 10, "gid")
	if err != nil {
		return nil, err
	}
	mode, err := parseField(b[modeOff:modeOff+modeLen], 8, "mode")
	if err != nil {
		return nil, err
	}
	if isBlank(b[sizeOff : sizeOff+sizeLen]) {
		return nil, fmt.Errorf("%w: empty size field", ErrFormat)
	}
	size, err := parseField(b[sizeOff:sizeOff+sizeLen], 10, "size")
	if err != nil {
		return nil, err
	}

	h := &Header{
		Name: name,
		UID:  int(uid),
		GID:  int(gid),
		Mode: mode,
		Size: size,
	}
	if mtime != 0 {
		h.ModTime = time.Unix(mtime, 0)
	}
	return h, nil
}

// parseField reads a left-aligned, space-padded unsigned number. An
// all-blank field reads as 0, as some writers leave uid and gid empty.
func parseField(b []byte, base int, name string) (int64, error) {
	s := strings.TrimRight(string(b), " ")
	if s == "" {
		return 0, nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%w: invalid %s field %q", ErrFormat, name, s)
		}
	}
	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s field %q", ErrFormat, name, s)
	}
	return v, nil
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}
