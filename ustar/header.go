package ustar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// BlockSize is the size of a header block and the unit content is padded to.
const BlockSize = 512

// Type is the raw typeflag byte of a header.
type Type byte

const (
	TypeFile        Type = '0'
	TypeLink        Type = '1'
	TypeSymlink     Type = '2'
	TypeChar        Type = '3'
	TypeBlock       Type = '4'
	TypeDir         Type = '5'
	TypeFifo        Type = '6'
	TypeCont        Type = '7'
	TypePAX         Type = 'x' // extended header for the next entry
	TypePAXGlobal   Type = 'g' // extended header for the whole archive
	TypeGNULongLink Type = 'K' // linkname of the next entry
	TypeGNULongPath Type = 'L' // name of the next entry

	typeLegacyFile Type = 0
)

var typeNames = map[Type]string{
	TypeFile:        "file",
	TypeLink:        "link",
	TypeSymlink:     "symlink",
	TypeChar:        "char-device",
	TypeBlock:       "block-device",
	TypeDir:         "directory",
	TypeFifo:        "fifo",
	TypeCont:        "contiguous-file",
	TypePAX:         "pax-header",
	TypePAXGlobal:   "pax-global-header",
	TypeGNULongLink: "gnu-long-link",
	TypeGNULongPath: "gnu-long-path",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%q)", byte(t))
}

// MarshalText renders the symbolic name, so manifests serialize readably.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText reads a symbolic name written by MarshalText.
func (t *Type) UnmarshalText(b []byte) error {
	for typ, name := range typeNames {
		if name == string(b) {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("%w: unknown entry type %q", ErrFormat, b)
}

// hasContent reports whether entries of this type carry content blocks.
func (t Type) hasContent() bool {
	switch t {
	case TypeLink, TypeSymlink, TypeChar, TypeBlock, TypeDir, TypeFifo:
		return false
	}
	return true
}

// Header is a decoded tar header block.
type Header struct {
	Name     string
	Mode     int64 // permission bits
	UID      int
	GID      int
	Size     int64
	ModTime  time.Time // one second resolution, zero encodes as 0
	Type     Type
	Linkname string
	Uname    string
	Gname    string
	Devmajor int64
	Devminor int64
}

// field offsets and widths within a header block.
const (
	nameOff, nameLen         = 0, 100
	modeOff, modeLen         = 100, 8
	uidOff, uidLen           = 108, 8
	gidOff, gidLen           = 116, 8
	sizeOff, sizeLen         = 124, 12
	mtimeOff, mtimeLen       = 136, 12
	chksumOff, chksumLen     = 148, 8
	typeOff                  = 156
	linkOff, linkLen         = 157, 100
	magicOff, magicLen       = 257, 6
	versionOff, versionLen   = 263, 2
	unameOff, unameLen       = 265, 32
	gnameOff, gnameLen       = 297, 32
	devmajorOff, devmajorLen = 329, 8
	devminorOff, devminorLen = 337, 8
	prefixOff, prefixLen     = 345, 155
)

const (
	magicUSTAR   = "ustar\x00"
	versionUSTAR = "00"
	magicGNU     = "ustar "
	versionGNU   = " \x00"
)

// zeroBlockSum is the checksum of an all-zero block.
const zeroBlockSum = 8 * ' '

// Decode parses a header block. It returns nil, nil for an all-zero block,
// which marks the end of an archive.
func Decode(block []byte) (*Header, error) {
	if len(block) != BlockSize {
		return nil, fmt.Errorf("%w: block is %d bytes", ErrFormat, len(block))
	}
	stored, err := parseNumeric(block[chksumOff : chksumOff+chksumLen])
	if err != nil {
		return nil, fmt.Errorf("%w: checksum field: %v", ErrFormat, err)
	}
	sum := checksum(block)
	if sum == zeroBlockSum && isZero(block) {
		return nil, nil
	}
	if stored != sum {
		return nil, fmt.Errorf("%w: checksum mismatch: stored %o, computed %o", ErrFormat, stored, sum)
	}

	h := &Header{
		Type:     Type(block[typeOff]),
		Name:     cstring(block[nameOff : nameOff+nameLen]),
		Linkname: cstring(block[linkOff : linkOff+linkLen]),
	}
	var uid, gid, mtime int64
	numbers := []struct {
		name  string
		off   int
		width int
		dst   *int64
	}{
		{"mode", modeOff, modeLen, &h.Mode},
		{"uid", uidOff, uidLen, &uid},
		{"gid", gidOff, gidLen, &gid},
		{"size", sizeOff, sizeLen, &h.Size},
		{"mtime", mtimeOff, mtimeLen, &mtime},
		{"devmajor", devmajorOff, devmajorLen, &h.Devmajor},
		{"devminor", devminorOff, devminorLen, &h.Devminor},
	}
	for _, n := range numbers {
		v, err := parseNumeric(block[n.off : n.off+n.width])
		if err != nil {
			return nil, fmt.Errorf("%w: %s field: %v", ErrFormat, n.name, err)
		}
		*n.dst = v
	}
	if h.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrFormat, h.Size)
	}
	h.UID, h.GID = int(uid), int(gid)
	if mtime != 0 {
		h.ModTime = time.Unix(mtime, 0)
	}

	magic := string(block[magicOff : magicOff+magicLen])
	version := string(block[versionOff : versionOff+versionLen])
	switch {
	case magic == magicUSTAR && version == versionUSTAR:
		h.Uname = cstring(block[unameOff : unameOff+unameLen])
		h.Gname = cstring(block[gnameOff : gnameOff+gnameLen])
		if prefix := cstring(block[prefixOff : prefixOff+prefixLen]); prefix != "" {
			h.Name = prefix + "/" + h.Name
		}
	case magic == magicGNU && version == versionGNU:
		h.Uname = cstring(block[unameOff : unameOff+unameLen])
		h.Gname = cstring(block[gnameOff : gnameOff+gnameLen])
	}

	if h.Type == typeLegacyFile {
		h.Type = TypeFile
	}
	// Pre-POSIX archives mark directories with a trailing slash only.
	if h.Type == TypeFile && strings.HasSuffix(h.Name, "/") {
		h.Type = TypeDir
	}
	return h, nil
}

// Encode renders h into a ustar header block.
//
// Names longer than 100 bytes are split into prefix and name at a '/';
// ErrNameTooLong is returned when no such split exists. ErrLinknameTooLong is
// returned for link targets over 100 bytes and ErrNonASCII for names that are
// not plain ASCII. Numbers that overflow their octal field are written in
// base-256.
func Encode(h *Header) ([]byte, error) {
	if !isASCII(h.Name) {
		return nil, fmt.Errorf("%w: name %q", ErrNonASCII, h.Name)
	}
	if !isASCII(h.Linkname) {
		return nil, fmt.Errorf("%w: linkname %q", ErrNonASCII, h.Linkname)
	}
	prefix, name, ok := splitName(h.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNameTooLong, h.Name)
	}
	if len(h.Linkname) > linkLen {
		return nil, fmt.Errorf("%w: %q", ErrLinknameTooLong, h.Linkname)
	}
	if len(h.Uname) > unameLen || len(h.Gname) > gnameLen {
		return nil, fmt.Errorf("%w: owner name too long", ErrValidation)
	}
	if h.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrValidation, h.Size)
	}

	var mtime int64
	if !h.ModTime.IsZero() {
		mtime = h.ModTime.Unix()
	}
	typ := h.Type
	if typ == typeLegacyFile {
		typ = TypeFile
	}

	block := make([]byte, BlockSize)
	copy(block[nameOff:nameOff+nameLen], name)
	block[typeOff] = byte(typ)
	copy(block[linkOff:linkOff+linkLen], h.Linkname)
	copy(block[magicOff:], magicUSTAR)
	copy(block[versionOff:], versionUSTAR)
	copy(block[unameOff:unameOff+unameLen], h.Uname)
	copy(block[gnameOff:gnameOff+gnameLen], h.Gname)
	copy(block[prefixOff:prefixOff+prefixLen], prefix)

	numbers := []struct {
		name  string
		off   int
		width int
		v     int64
	}{
		{"mode", modeOff, modeLen, h.Mode},
		{"uid", uidOff, uidLen, int64(h.UID)},
		{"gid", gidOff, gidLen, int64(h.GID)},
		{"size", sizeOff, sizeLen, h.Size},
		{"mtime", mtimeOff, mtimeLen, mtime},
		{"devmajor", devmajorOff, devmajorLen, h.Devmajor},
		{"devminor", devminorOff, devminorLen, h.Devminor},
	}
	for _, n := range numbers {
		if !formatNumeric(block[n.off:n.off+n.width], n.v) {
			return nil, fmt.Errorf("%w: %s %d does not fit", ErrValidation, n.name, n.v)
		}
	}

	copy(block[chksumOff:], fmt.Sprintf("%06o\x00 ", checksum(block)))
	return block, nil
}

// splitName fits name into the name and prefix fields.
func splitName(name string) (prefix, base string, ok bool) {
	if len(name) <= nameLen {
		return "", name, true
	}
	length := len(name)
	if length > prefixLen+1 {
		length = prefixLen + 1
	} else if name[length-1] == '/' {
		length--
	}
	i := strings.LastIndex(name[:length], "/")
	if i <= 0 {
		return "", "", false
	}
	base = name[i+1:]
	if len(base) == 0 || len(base) > nameLen {
		return "", "", false
	}
	return name[:i], base, true
}

// checksum sums the block with the checksum field read as spaces.
func checksum(block []byte) int64 {
	var sum int64
	for i, c := range block {
		if i >= chksumOff && i < chksumOff+chksumLen {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// parseNumeric reads an octal or base-256 field.
func parseNumeric(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		return parseBase256(b)
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	s := strings.Trim(string(b), " ")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid octal %q", s)
	}
	return v, nil
}

// parseBase256 reads a big-endian two's complement number. The first byte
// is 0x80 for positive and 0xff for negative values.
func parseBase256(b []byte) (int64, error) {
	var inv byte
	if b[0]&0x40 != 0 {
		inv = 0xff
	}
	var x uint64
	for i, c := range b {
		c ^= inv
		if i == 0 {
			c &= 0x7f
		}
		if x>>56 != 0 {
			return 0, fmt.Errorf("base-256 value overflows int64")
		}
		x = x<<8 | uint64(c)
	}
	if x>>63 != 0 {
		return 0, fmt.Errorf("base-256 value overflows int64")
	}
	if inv == 0xff {
		return ^int64(x), nil
	}
	return int64(x), nil
}

// formatNumeric writes v as zero-padded octal terminated by NUL, or in
// base-256 when it does not fit. It reports false when neither form fits.
func formatNumeric(b []byte, v int64) bool {
	if v >= 0 && v < int64(1)<<(3*(len(b)-1)) {
		copy(b, fmt.Sprintf("%0*o\x00", len(b)-1, v))
		return true
	}
	if bits := uint(len(b)-1) * 8; bits < 64 && (v < -1<<(bits-1) || v >= 1<<(bits-1)) {
		return false
	}
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	b[0] |= 0x80
	return true
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
