package control

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

const example = `Package: x
Version: 1
Maintainer: A <a@b.c>
Description: one
 two
 .
 three
`

func TestParseExample(t *testing.T) {
	r, err := Parse(example)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	m, err := r.Maintainer()
	if err != nil {
		t.Fatalf("Maintainer failed: %v", err)
	}
	if m != (Person{Name: "A", Email: "a@b.c"}) {
		t.Errorf("Maintainer = %+v, want {A a@b.c}", m)
	}
	if got, want := r.Get(FieldDescription), "one\ntwo\n\nthree"; got != want {
		t.Errorf("Description = %q, want %q", got, want)
	}
	if got := r.Synopsis(); got != "one" {
		t.Errorf("Synopsis = %q, want one", got)
	}
	if want := []Field{"Package", "Version", "Maintainer", "Description"}; !slices.Equal(r.Names(), want) {
		t.Errorf("Names = %v, want %v", r.Names(), want)
	}

	// Architecture is required.
	if _, err := Decode(example); !errors.Is(err, ErrValidation) {
		t.Errorf("Decode without Architecture: got %v, want ErrValidation", err)
	}
	if _, err := Decode(example + "Architecture: amd64\n"); err != nil {
		t.Errorf("Decode with Architecture failed: %v", err)
	}
}

func TestParseControlFileFull(t *testing.T) {
	content := `Package: my-pkg
Version: 1.2.3
Architecture: amd64
Maintainer: Jane Doe <jane@example.com>
Depends: libc6, git
Installed-Size:  42
Description: A test package
 This is the extended description.
Extra: value
`
	r, err := Decode(content)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if r.Get(FieldPackage) != "my-pkg" {
		t.Errorf("expected Package my-pkg, got %s", r.Get(FieldPackage))
	}
	if r.Get("version") != "1.2.3" {
		t.Errorf("expected case insensitive Version 1.2.3, got %s", r.Get("version"))
	}
	if deps := r.List(FieldDepends); !slices.Equal(deps, []string{"libc6", "git"}) {
		t.Errorf("expected Depends [libc6 git], got %v", deps)
	}
	if n, err := r.Int(FieldInstalledSize); err != nil || n != 42 {
		t.Errorf("Installed-Size = %d, %v; want 42", n, err)
	}
	if r.Get(FieldInstalledSize) != "42" {
		t.Errorf("Installed-Size not normalized: %q", r.Get(FieldInstalledSize))
	}
	if r.Get(FieldDescription) != "A test package\nThis is the extended description." {
		t.Errorf("description mismatch: %q", r.Get(FieldDescription))
	}
	if r.Get("Extra") != "value" {
		t.Errorf("expected Extra field value, got %s", r.Get("Extra"))
	}
}

func TestRoundTrip(t *testing.T) {
	r := NewRecord(
		"Package", "hello",
		"Version", "1:2.10-3",
		"Architecture", "amd64",
		"Maintainer", "Jane Doe <jane@example.com>",
		"Depends", "libc6 (>= 2.34)",
		"Description", "greets the world\nA longer text.\n\n  * an indented item\nend.",
	)
	text := r.String()
	want := `Package: hello
Version: 1:2.10-3
Architecture: amd64
Maintainer: Jane Doe <jane@example.com>
Depends: libc6 (>= 2.34)
Description: greets the world
 A longer text.
 .
   * an indented item
 end.
`
	if text != want {
		t.Fatalf("encoded:\n%s\nwant:\n%s", text, want)
	}
	got, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.Equal(r) {
		t.Errorf("round trip mismatch:\n%s\nwant:\n%s", got, r)
	}
}

func TestEncodeEmptyFirstLine(t *testing.T) {
	r := NewRecord("Conffiles", "\n/etc/a 0123\n/etc/b 4567")
	want := "Conffiles:\n /etc/a 0123\n /etc/b 4567\n"
	if got := r.String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
	back, err := Parse(want)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !back.Equal(r) {
		t.Errorf("Parse = %q, want %q", back.Get("Conffiles"), r.Get("Conffiles"))
	}
}

func TestEncodeInvalidName(t *testing.T) {
	r := NewRecord("Bad Name", "x")
	var b strings.Builder
	if err := Encode(&b, r); !errors.Is(err, ErrValidation) {
		t.Errorf("Encode: got %v, want ErrValidation", err)
	}
}

func TestFolding(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field Field
		want  string
	}{
		{"indented key is a continuation", "Description: one\n Homepage: https://example.org\n", FieldDescription, "one\nHomepage: https://example.org"},
		{"first line trimmed", "Description:   spaced  \n", FieldDescription, "spaced"},
		{"dot line in any field", "Conffiles:\n /etc/a 1\n .\n /etc/b 2\n", "Conffiles", "\n/etc/a 1\n\n/etc/b 2"},
		{"dot lines ignored for indent", "Description: s\n   a\n .\n   b\n", FieldDescription, "s\na\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := r.Get(tt.field); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
			}
			if r.Has(FieldHomepage) {
				t.Errorf("indented line became a field: %v", r.Names())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrParse},
		{"leading continuation", " orphan\nPackage: x\n", ErrParse},
		{"no colon", "Package x\n", ErrParse},
		{"space in name", "Pack age: x\n", ErrParse},
		{"duplicate", "Package: x\npackage: y\n", ErrParse},
		{"two paragraphs", "Package: x\n\nPackage: y\n", ErrParse},
		{"empty email", "Maintainer: A <>\n", ErrValidation},
		{"unterminated email", "Maintainer: A <a@b\n", ErrValidation},
		{"bad size", "Size: big\n", ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.text); !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q): got %v, want %v", tt.text, err, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Record {
		return NewRecord(
			"Package", "x",
			"Version", "1",
			"Architecture", "amd64",
			"Maintainer", "A <a@b.c>",
			"Description", "d",
		)
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("Validate(base) failed: %v", err)
	}
	for _, name := range Required {
		r := base()
		r.Delete(name)
		if err := Validate(r); !errors.Is(err, ErrValidation) {
			t.Errorf("without %s: got %v, want ErrValidation", name, err)
		}
	}

	r := base()
	r.Set(FieldArchitecture, "amd64 pdp11")
	if err := Validate(r); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown architecture: got %v, want ErrValidation", err)
	}
	r.Set(FieldArchitecture, "amd64 arm64")
	if err := Validate(r); err != nil {
		t.Errorf("two architectures: %v", err)
	}
}

func TestParseAll(t *testing.T) {
	content := "# leading comment\r\n" + `Package: pkg1
Version: 1.0
Architecture: amd64
Filename: pool/main/p/pkg1/pkg1.deb
Size: 1024
SHA256: hash1


Package: pkg2
# inline comment
Version: 2.0
Architecture: all
Filename: http://example.com/pkg2.deb
`
	records, err := ParseAll(content)
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(records))
	}
	if n, _ := records[0].Int(FieldSize); n != 1024 {
		t.Errorf("Size = %d, want 1024", n)
	}
	if records[1].Get(FieldVersion) != "2.0" || records[1].Len() != 4 {
		t.Errorf("second paragraph = %v", records[1].Names())
	}

	var b strings.Builder
	if err := EncodeAll(&b, records); err != nil {
		t.Fatalf("EncodeAll failed: %v", err)
	}
	back, err := ParseAll(b.String())
	if err != nil {
		t.Fatalf("ParseAll(EncodeAll) failed: %v", err)
	}
	if len(back) != 2 || !back[0].Equal(records[0]) || !back[1].Equal(records[1]) {
		t.Errorf("EncodeAll round trip mismatch:\n%s", b.String())
	}
}

func TestRecordEditing(t *testing.T) {
	r := NewRecord("A", "1", "B", "2", "C", "3")
	r.Set("b", "two")
	r.Delete("A")
	r.Set("D", "4")
	if want := []Field{"B", "C", "D"}; !slices.Equal(r.Names(), want) {
		t.Errorf("Names = %v, want %v", r.Names(), want)
	}
	if r.Get("B") != "two" {
		t.Errorf("Set did not replace in place: %q", r.Get("B"))
	}
	c := r.Clone()
	c.Set("C", "changed")
	if r.Get("C") != "3" {
		t.Error("Clone shares storage with the original")
	}
	if r.Equal(c) {
		t.Error("Equal reports a modified clone as equal")
	}
	if _, ok := r.Lookup("A"); ok {
		t.Error("deleted field still present")
	}
}

func TestParsePerson(t *testing.T) {
	tests := []struct {
		in   string
		want Person
		str  string
	}{
		{"A <a@b.c>", Person{"A", "a@b.c"}, "A <a@b.c>"},
		{"  Jane  Doe   <jane@x.org> ", Person{"Jane  Doe", "jane@x.org"}, "Jane  Doe <jane@x.org>"},
		{"Team", Person{Name: "Team"}, "Team"},
		{"<root@localhost>", Person{Email: "root@localhost"}, "<root@localhost>"},
	}
	for _, tt := range tests {
		got, err := ParsePerson(tt.in)
		if err != nil {
			t.Errorf("ParsePerson(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePerson(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.String() != tt.str {
			t.Errorf("String() = %q, want %q", got.String(), tt.str)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a, b", []string{"a", "b"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,b,", []string{"a", "b"}},
	}

	for _, tt := range tests {
		got := NewRecord(string(FieldDepends), tt.input).List(FieldDepends)
		if !slices.Equal(got, tt.want) {
			t.Errorf("List(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"1.0-2", "1.0-10", -1},
		{"1.0~rc1", "1.0", -1},
		{"1.0~rc1", "1.0~rc2", -1},
		{"1:0.1", "2.0", 1},
		{"1.0a", "1.0+", -1},
		{"1.0-1ubuntu1", "1.0-1", 1},
		{"001", "1", 0},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := CompareVersions(tt.b, tt.a); got != -tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("2:1.2.3-4-5")
	if err != nil {
		t.Fatalf("ParseVersion failed: %v", err)
	}
	if v != (Version{Epoch: 2, Upstream: "1.2.3-4", Revision: "5"}) {
		t.Errorf("ParseVersion = %+v", v)
	}
	if v.String() != "2:1.2.3-4-5" {
		t.Errorf("String = %q", v.String())
	}
	for _, bad := range []string{"", "x:1.0", "abc"} {
		if _, err := ParseVersion(bad); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseVersion(%q): got %v, want ErrValidation", bad, err)
		}
	}
}

func TestBumpVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.0", "1.0-1"},
		{"1.0-1", "1.0-2"},
		{"1.0-9", "1.0-10"},
		{"1.0-1.2", "1.0-1.3"},
		{"1.0-1.9", "1.0-1.a"},
		{"1.0-a", "1.0-b"},
		{"1.0-z", "1.0-z0"},
		{"1.0-1ubuntu1", "1.0-1ubuntu2"},
		{"1.0-1ubuntu9", "1.0-1ubuntua"},
		{"1.0-", "1.0-1"},
		{"1.0-foo+", "1.0-fop+"},
	}

	for _, tt := range tests {
		if got := BumpVersion(tt.input); got != tt.want {
			t.Errorf("BumpVersion(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
