package ustar

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeIdentity(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	longDir := strings.Repeat("d", 120)
	tests := []struct {
		name string
		hdr  Header
	}{
		{"file", Header{Name: "./usr/bin/tool", Mode: 0755, Size: 1234, ModTime: mtime, Type: TypeFile, Uname: "root", Gname: "root"}},
		{"directory", Header{Name: "./usr/", Mode: 0755, ModTime: mtime, Type: TypeDir}},
		{"symlink", Header{Name: "./usr/bin/alias", Linkname: "tool", Mode: 0777, ModTime: mtime, Type: TypeSymlink, UID: 1000, GID: 1000}},
		{"char device", Header{Name: "./dev/null", Mode: 0666, Type: TypeChar, Devmajor: 1, Devminor: 3}},
		{"zero mtime", Header{Name: "empty", Mode: 0644, Type: TypeFile}},
		{"prefix split", Header{Name: longDir + "/file.txt", Mode: 0644, Size: 1, ModTime: mtime, Type: TypeFile}},
		{"base-256 size", Header{Name: "huge.img", Mode: 0644, Size: 1 << 40, ModTime: mtime, Type: TypeFile}},
		{"large uid", Header{Name: "owned", Mode: 0644, UID: 1 << 30, Type: TypeFile}},
		{"pre-epoch mtime", Header{Name: "old", Mode: 0644, ModTime: time.Unix(-86400, 0), Type: TypeFile}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := Encode(&tt.hdr)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(block) != BlockSize {
				t.Fatalf("block is %d bytes", len(block))
			}
			got, err := Decode(block)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			want := tt.hdr
			if !got.ModTime.Equal(want.ModTime) {
				t.Errorf("ModTime = %v, want %v", got.ModTime, want.ModTime)
			}
			got.ModTime, want.ModTime = time.Time{}, time.Time{}
			if *got != want {
				t.Errorf("Decode(Encode(h)) = %+v, want %+v", *got, want)
			}
		})
	}
}

func TestEncodeFailures(t *testing.T) {
	tests := []struct {
		name string
		hdr  Header
		want error
	}{
		{"long name without slash", Header{Name: strings.Repeat("a", 150)}, ErrNameTooLong},
		{"remainder too long", Header{Name: "dir/" + strings.Repeat("a", 101)}, ErrNameTooLong},
		{"prefix too long", Header{Name: strings.Repeat("p", 160) + "/file"}, ErrNameTooLong},
		{"long linkname", Header{Name: "l", Type: TypeSymlink, Linkname: strings.Repeat("t", 101)}, ErrLinknameTooLong},
		{"non-ASCII name", Header{Name: "café"}, ErrNonASCII},
		{"non-ASCII linkname", Header{Name: "l", Type: TypeSymlink, Linkname: "café"}, ErrNonASCII},
		{"long uname", Header{Name: "f", Uname: strings.Repeat("u", 33)}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(&tt.hdr)
			if !errors.Is(err, tt.want) {
				t.Errorf("Encode error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Encode error = %v, want it to wrap ErrValidation", err)
			}
		})
	}
}

func TestNonASCIIReportsField(t *testing.T) {
	_, err := Encode(&Header{Name: "link", Type: TypeSymlink, Linkname: "café"})
	if !errors.Is(err, ErrNonASCII) {
		t.Fatalf("Encode error = %v, want ErrNonASCII", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "linkname") || !strings.Contains(msg, "café") {
		t.Errorf("error %q does not name the non-ASCII linkname", msg)
	}
}

func TestChecksumTamper(t *testing.T) {
	block, err := Encode(&Header{Name: "file", Mode: 0644, Size: 10, Type: TypeFile, ModTime: time.Unix(1, 0)})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for i := range block {
		if i >= chksumOff && i < chksumOff+chksumLen {
			continue
		}
		tampered := bytes.Clone(block)
		tampered[i] ^= 0x01
		if _, err := Decode(tampered); !errors.Is(err, ErrFormat) {
			t.Fatalf("Decode with byte %d flipped: error = %v, want ErrFormat", i, err)
		}
	}
}

func TestChecksumFormat(t *testing.T) {
	block, err := Encode(&Header{Name: "file", Type: TypeFile})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	field := block[chksumOff : chksumOff+chksumLen]
	if field[6] != 0 || field[7] != ' ' {
		t.Errorf("checksum field = %q, want six octal digits, NUL and space", field)
	}
}

func TestDecodeZeroBlock(t *testing.T) {
	hdr, err := Decode(make([]byte, BlockSize))
	if hdr != nil || err != nil {
		t.Errorf("Decode(zero block) = %v, %v; want nil, nil", hdr, err)
	}
	if _, err := Decode(make([]byte, 100)); !errors.Is(err, ErrFormat) {
		t.Errorf("Decode(short block) error = %v, want ErrFormat", err)
	}
}

// rawBlock builds a header block by hand, the way other tar writers do.
func rawBlock(name string, typeflag byte, magic, version, prefix string) []byte {
	block := make([]byte, BlockSize)
	copy(block[nameOff:], name)
	copy(block[modeOff:], "0000644\x00")
	copy(block[uidOff:], "0000000\x00")
	copy(block[gidOff:], "0000000\x00")
	copy(block[sizeOff:], "00000000000\x00")
	copy(block[mtimeOff:], "00000000001\x00")
	block[typeOff] = typeflag
	copy(block[magicOff:], magic)
	copy(block[versionOff:], version)
	copy(block[prefixOff:], prefix)
	copy(block[chksumOff:], "        ")
	copy(block[chksumOff:], []byte(octal6(checksum(block))))
	return block
}

func octal6(v int64) string {
	const digits = "01234567"
	b := []byte("000000\x00 ")
	for i := 5; i >= 0; i-- {
		b[i] = digits[v&7]
		v >>= 3
	}
	return string(b)
}

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		name     string
		block    []byte
		wantName string
		wantType Type
	}{
		{"legacy directory", rawBlock("olddir/", 0, "", "", ""), "olddir/", TypeDir},
		{"legacy file", rawBlock("oldfile", 0, "", "", ""), "oldfile", TypeFile},
		{"ustar prefix", rawBlock("name", '0', magicUSTAR, versionUSTAR, "some/prefix"), "some/prefix/name", TypeFile},
		{"gnu ignores prefix", rawBlock("name", '0', magicGNU, versionGNU, "not-a-prefix"), "name", TypeFile},
		{"v7 ignores prefix", rawBlock("name", '5', "", "", "junk"), "name", TypeDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, err := Decode(tt.block)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if hdr.Name != tt.wantName || hdr.Type != tt.wantType {
				t.Errorf("Decode = %q (%s), want %q (%s)", hdr.Name, hdr.Type, tt.wantName, tt.wantType)
			}
		})
	}
}

func TestBase256(t *testing.T) {
	for _, v := range []int64{0, 1, 1<<33 + 7, -1, -1 << 40} {
		b := make([]byte, sizeLen)
		if !formatNumeric(b, v) {
			t.Fatalf("formatNumeric(%d) failed", v)
		}
		got, err := parseNumeric(b)
		if err != nil {
			t.Fatalf("parseNumeric(%x) failed: %v", b, err)
		}
		if got != v {
			t.Errorf("parseNumeric(formatNumeric(%d)) = %d", v, got)
		}
	}

	b := make([]byte, sizeLen)
	formatNumeric(b, 1<<40)
	if b[0] != 0x80 {
		t.Errorf("base-256 marker = %#x, want 0x80", b[0])
	}
	formatNumeric(b, -1)
	if b[0] != 0xff {
		t.Errorf("negative base-256 marker = %#x, want 0xff", b[0])
	}
}

func TestParseNumericLenient(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0000644\x00", 0644},
		{"    644 ", 0644},
		{"644\x00\x00\x00\x00\x00", 0644},
		{"        ", 0},
	}
	for _, tt := range tests {
		got, err := parseNumeric([]byte(tt.in))
		if err != nil || got != tt.want {
			t.Errorf("parseNumeric(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
	if _, err := parseNumeric([]byte("12x4\x00")); err == nil {
		t.Error("parseNumeric accepted a non-octal field")
	}
}

func TestTypeText(t *testing.T) {
	for typ := range typeNames {
		b, err := typ.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got Type
		if err := got.UnmarshalText(b); err != nil {
			t.Errorf("UnmarshalText(%q) failed: %v", b, err)
		}
		if got != typ {
			t.Errorf("UnmarshalText(%q) = %v, want %v", b, got, typ)
		}
	}
	var got Type
	if err := got.UnmarshalText([]byte("socket")); !errors.Is(err, ErrFormat) {
		t.Errorf("UnmarshalText(socket) = %v, want ErrFormat", err)
	}
}
