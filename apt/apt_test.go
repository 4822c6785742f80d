package apt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/spf13/afero"

	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/deb"
	"github.com/etnz/debstream/ustar"
)

var testInfo = ArchiveInfo{
	Origin:        "Test",
	Label:         "TestRepo",
	Codename:      "stable",
	Date:          "Mon, 02 Jan 2006 15:04:05 +0000",
	Architectures: "amd64 all",
	Components:    "main",
}

func generateTestKey(t *testing.T) string {
	t.Helper()
	entity, err := openpgp.NewEntity("Test", "test", "test@example.com", nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("armor encode failed: %v", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	w.Close()
	return buf.String()
}

// buildDeb creates a minimal package and returns its bytes.
func buildDeb(t *testing.T, name, version, arch string) []byte {
	t.Helper()
	s := &deb.Spec{
		Control: control.NewRecord(
			"Package", name,
			"Version", version,
			"Architecture", arch,
			"Maintainer", "Test User <test@example.com>",
			"Description", "test package",
		),
		Files:   []deb.File{{DestPath: "/usr/share/doc/" + name + "/README", Body: "hello\n"}},
		ModTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	var buf bytes.Buffer
	if err := deb.Create(&buf, s); err != nil {
		t.Fatalf("Create(%s) failed: %v", name, err)
	}
	return buf.Bytes()
}

// parseDeb parses b, as AddFile would.
func parseDeb(t *testing.T, b []byte) *deb.Package {
	t.Helper()
	p, err := deb.Parse(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}

// testFs holds two packages under /in.
func testFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range []struct{ file, name, version string }{
		{"/in/a.deb", "alpha", "1.0"},
		{"/in/b.deb", "beta", "2:0.9-1"},
	} {
		if err := afero.WriteFile(fs, p.file, buildDeb(t, p.name, p.version, "amd64"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func fileMap(files []File) map[string][]byte {
	m := make(map[string][]byte)
	for _, f := range files {
		m[f.Name] = f.Content
	}
	return m
}

func TestIndexAdd(t *testing.T) {
	idx := NewIndex(testInfo)
	p := parseDeb(t, buildDeb(t, "p1", "1.0", "all"))

	if err := idx.AddPackage(p, "pool/p1.deb", nil); err != nil {
		t.Fatalf("AddPackage failed: %v", err)
	}
	if err := idx.AddPackage(p, "pool/other.deb", nil); !errors.Is(err, ErrDuplicate) {
		t.Errorf("AddPackage duplicate: got %v, want ErrDuplicate", err)
	}
	// Same name, other version.
	if err := idx.AddPackage(parseDeb(t, buildDeb(t, "p1", "1.1", "all")), "pool/p1_1.1.deb", nil); err != nil {
		t.Errorf("AddPackage new version failed: %v", err)
	}
	if err := idx.Add(&Entry{Stanza: control.NewRecord(string(control.FieldFilename), "x.deb")}); !errors.Is(err, control.ErrValidation) {
		t.Errorf("Add without Package: got %v, want ErrValidation", err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
}

func TestIndexAppend(t *testing.T) {
	idx1 := NewIndex(testInfo)
	idx1.AddPackage(parseDeb(t, buildDeb(t, "p1", "1.0", "all")), "p1.deb", nil)

	idx2 := NewIndex(testInfo)
	idx2.AddPackage(parseDeb(t, buildDeb(t, "p2", "1.0", "all")), "p2.deb", nil)

	if err := idx1.Append(idx2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if idx1.Len() != 2 {
		t.Errorf("expected 2 packages, got %d", idx1.Len())
	}
	if err := idx1.Append(idx2); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Append twice: got %v, want ErrDuplicate", err)
	}
}

func TestEntriesOrder(t *testing.T) {
	idx := NewIndex(testInfo)
	for _, v := range []struct{ name, version, arch string }{
		{"b", "1.0", "all"},
		{"a", "1.10", "amd64"},
		{"a", "1.9", "amd64"},
		{"a", "1.9", "arm64"},
		{"a", "1.0~rc1", "amd64"},
	} {
		idx.Add(&Entry{Stanza: control.NewRecord(
			"Package", v.name,
			"Version", v.version,
			"Architecture", v.arch,
			"Filename", v.name+".deb",
		)})
	}
	var got []string
	for _, e := range idx.Entries() {
		got = append(got, e.id())
	}
	want := []string{"a|1.0~rc1|amd64", "a|1.9|amd64", "a|1.9|arm64", "a|1.10|amd64", "b|1.0|all"}
	if !slices.Equal(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
}

func TestStanza(t *testing.T) {
	p := parseDeb(t, buildDeb(t, "hello", "1.0", "amd64"))
	s := Stanza(p.Control, "pool/main/h/hello.deb")

	names := s.Names()
	tail := names[len(names)-6:]
	want := []control.Field{
		control.FieldFilename, control.FieldSize, control.FieldMD5sum,
		control.FieldSHA1, control.FieldSHA256, control.FieldSHA512,
	}
	if !slices.Equal(tail, want) {
		t.Errorf("stanza ends with %v, want %v", tail, want)
	}
	if s.Get(control.FieldFilename) != "pool/main/h/hello.deb" {
		t.Errorf("Filename = %q", s.Get(control.FieldFilename))
	}
	if names[0] != control.FieldPackage {
		t.Errorf("stanza starts with %q, want Package", names[0])
	}
	// The package record is left untouched.
	if p.Control.Has(control.FieldFilename) {
		t.Error("Stanza modified the package control record")
	}
}

func TestComputeIndices(t *testing.T) {
	idx := NewIndex(testInfo)
	if err := idx.AddPackage(parseDeb(t, buildDeb(t, "p1", "1.0", "all")), "p1_1.0_all.deb", nil); err != nil {
		t.Fatal(err)
	}

	// Test without GPG
	files, err := idx.ComputeIndices()
	if err != nil {
		t.Fatalf("ComputeIndices failed: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if want := []string{"Packages", "Packages.gz", "Release"}; !slices.Equal(names, want) {
		t.Errorf("files = %v, want %v", names, want)
	}
	m := fileMap(files)

	stanzas, err := ParsePackages(string(m["Packages"]))
	if err != nil {
		t.Fatalf("ParsePackages failed: %v", err)
	}
	if len(stanzas) != 1 || stanzas[0].Get(control.FieldFilename) != "p1_1.0_all.deb" {
		t.Errorf("unexpected Packages content:\n%s", m["Packages"])
	}

	zr, err := compression.Default.Decompress(compression.FormatGzip, bytes.NewReader(m["Packages.gz"]))
	if err != nil {
		t.Fatal(err)
	}
	unzipped, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(unzipped, m["Packages"]) {
		t.Error("Packages.gz does not decompress to Packages")
	}

	info, listed, err := ParseRelease(string(m["Release"]))
	if err != nil {
		t.Fatalf("ParseRelease failed: %v", err)
	}
	if info != testInfo {
		t.Errorf("ParseRelease info = %+v, want %+v", info, testInfo)
	}
	want := []FileEntry{NewFileEntry("Packages", m["Packages"]), NewFileEntry("Packages.gz", m["Packages.gz"])}
	for i := range want {
		want[i].MD5 = ""
	}
	if !slices.Equal(listed, want) {
		t.Errorf("Release lists %+v, want %+v", listed, want)
	}
}

func TestComputeIndicesSigned(t *testing.T) {
	key := generateTestKey(t)
	idx := NewIndex(testInfo)
	idx.GPGKey = key
	idx.AddPackage(parseDeb(t, buildDeb(t, "p1", "1.0", "all")), "p1.deb", nil)

	files, err := idx.ComputeIndices()
	if err != nil {
		t.Fatalf("ComputeIndices with key failed: %v", err)
	}
	m := fileMap(files)
	for _, name := range []string{FileInRelease, FilePublicKey, FilePublicKeyArmor} {
		if len(m[name]) == 0 {
			t.Errorf("%s should not be empty with key", name)
		}
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(m[FilePublicKeyArmor]))
	if err != nil {
		t.Fatalf("reading public key: %v", err)
	}
	b, _ := clearsign.Decode(m[FileInRelease])
	if b == nil {
		t.Fatal("InRelease is not a clearsigned message")
	}
	if _, err := openpgp.CheckDetachedSignature(keyring, bytes.NewReader(b.Bytes), b.ArmoredSignature.Body, nil); err != nil {
		t.Errorf("InRelease signature does not verify: %v", err)
	}
	if !bytes.Contains(b.Plaintext, []byte("Origin: Test")) {
		t.Errorf("InRelease does not carry the Release file:\n%s", b.Plaintext)
	}
}

func TestComputeIndicesFormats(t *testing.T) {
	idx := NewIndex(testInfo)
	idx.Formats = []string{compression.FormatXz, compression.FormatZstd}
	files, err := idx.ComputeIndices()
	if err != nil {
		t.Fatalf("ComputeIndices failed: %v", err)
	}
	m := fileMap(files)
	for _, name := range []string{"Packages.xz", "Packages.zst"} {
		if _, ok := m[name]; !ok {
			t.Errorf("missing %s", name)
		}
	}
	if !strings.Contains(string(m["Release"]), "Packages.xz") {
		t.Error("Release does not list Packages.xz")
	}

	idx.Formats = []string{"rar"}
	if _, err := idx.ComputeIndices(); !errors.Is(err, compression.ErrUnsupportedFormat) {
		t.Errorf("unknown format: got %v, want ErrUnsupportedFormat", err)
	}
}

func TestSign(t *testing.T) {
	key := generateTestKey(t)
	signed, err := Sign([]byte("sign me"), key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if !strings.Contains(string(signed), "-----BEGIN PGP SIGNED MESSAGE-----") {
		t.Error("output does not look like a signed message")
	}

	pub, err := PublicKey(key, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Sign([]byte("sign me"), string(pub)); !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("Sign with public key: got %v, want ErrNoPrivateKey", err)
	}
}

func TestPublicKey(t *testing.T) {
	key := generateTestKey(t)

	// Armored
	pubArmored, err := PublicKey(key, true)
	if err != nil {
		t.Fatalf("PublicKey armored failed: %v", err)
	}
	if !strings.Contains(string(pubArmored), "-----BEGIN PGP PUBLIC KEY BLOCK-----") {
		t.Error("armored output does not look like a public key block")
	}

	// Binary
	pubBinary, err := PublicKey(key, false)
	if err != nil {
		t.Fatalf("PublicKey binary failed: %v", err)
	}
	entities, err := openpgp.ReadKeyRing(bytes.NewReader(pubBinary))
	if err != nil {
		t.Fatalf("binary public key does not parse: %v", err)
	}
	if len(entities) != 1 || entities[0].PrivateKey != nil {
		t.Error("binary output should hold exactly one public key")
	}
}

func TestParseRelease(t *testing.T) {
	tests := []struct {
		name    string
		content string
		files   int
		wantErr bool
	}{
		{
			name:    "no files",
			content: "Origin: Test\nSuite: stable\n",
		},
		{
			name:    "files",
			content: "Origin: Test\nSHA256:\n 0123 10 Packages\n 4567 20 Packages.gz\n",
			files:   2,
		},
		{
			name:    "bad size",
			content: "Origin: Test\nSHA256:\n 0123 ten Packages\n",
			wantErr: true,
		},
		{
			name:    "two paragraphs",
			content: "Origin: Test\n\nOrigin: Other\n",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, files, err := ParseRelease(tc.content)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseRelease() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if info.Origin != "Test" {
				t.Errorf("Origin = %q", info.Origin)
			}
			if len(files) != tc.files {
				t.Errorf("got %d files, want %d", len(files), tc.files)
			}
		})
	}
}

func TestParsePackagesMissingFilename(t *testing.T) {
	_, err := ParsePackages("Package: a\nVersion: 1\n\nPackage: b\nFilename: b.deb\n")
	if !errors.Is(err, control.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestWriteToDir(t *testing.T) {
	fs := testFs(t)
	idx := NewIndex(testInfo)
	var events []string
	idx.Listener = func(e fmt.Stringer) { events = append(events, e.String()) }
	for _, f := range []string{"/in/a.deb", "/in/b.deb"} {
		if err := idx.AddFile(fs, f); err != nil {
			t.Fatalf("AddFile(%s) failed: %v", f, err)
		}
	}

	if err := idx.WriteToDir(fs, "/repo"); err != nil {
		t.Fatalf("WriteToDir failed: %v", err)
	}
	for _, name := range []string{"alpha_1.0_amd64.deb", "beta_0.9-1_amd64.deb", "Packages", "Packages.gz", "Release"} {
		if ok, _ := afero.Exists(fs, "/repo/"+name); !ok {
			t.Errorf("missing /repo/%s", name)
		}
	}
	if len(events) != 5 {
		t.Errorf("got %d events, want 5: %v", len(events), events)
	}

	// Read it back and write it again in place.
	back, err := OpenDir(fs, "/repo")
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	if back.Len() != 2 {
		t.Fatalf("OpenDir read %d packages, want 2", back.Len())
	}
	if back.Info.Origin != testInfo.Origin || back.Info.Date != "" {
		t.Errorf("OpenDir info = %+v", back.Info)
	}
	if !bytes.Equal(back.Packages(), idx.Packages()) {
		t.Errorf("Packages differ after OpenDir:\n%s\nwant:\n%s", back.Packages(), idx.Packages())
	}
	if err := back.WriteToDir(fs, "/repo"); err != nil {
		t.Fatalf("WriteToDir in place failed: %v", err)
	}
	b, err := afero.ReadFile(fs, "/repo/alpha_1.0_amd64.deb")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := deb.Parse(bytes.NewReader(b)); err != nil {
		t.Errorf("package rewritten in place is broken: %v", err)
	}
}

func TestOpenDirNewPackage(t *testing.T) {
	fs := testFs(t)
	idx := NewIndex(testInfo)
	if err := idx.AddFile(fs, "/in/a.deb"); err != nil {
		t.Fatal(err)
	}
	if err := idx.WriteToDir(fs, "/repo"); err != nil {
		t.Fatal(err)
	}
	// A package dropped into the directory is picked up.
	afero.WriteFile(fs, "/repo/new.deb", buildDeb(t, "gamma", "3", "all"), 0644)

	back, err := OpenDir(fs, "/repo")
	if err != nil {
		t.Fatalf("OpenDir failed: %v", err)
	}
	if back.Len() != 2 {
		t.Errorf("OpenDir read %d packages, want 2", back.Len())
	}
}

func TestWriteTo(t *testing.T) {
	fs := testFs(t)
	idx := NewIndex(testInfo)
	idx.GPGKey = generateTestKey(t)
	if err := idx.AddFile(fs, "/in/a.deb"); err != nil {
		t.Fatal(err)
	}
	// Index only entries are not part of the archive.
	idx.Add(&Entry{Stanza: control.NewRecord(
		"Package", "remote",
		"Version", "1",
		"Architecture", "all",
		"Filename", "http://example.com/remote.deb",
	)})

	var buf bytes.Buffer
	n, err := idx.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo returned %d, wrote %d", n, buf.Len())
	}

	zr, err := compression.NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if zr.Format() != compression.FormatGzip {
		t.Errorf("archive format = %q, want gzip", zr.Format())
	}
	var got []string
	for e, err := range ustar.NewReader(zr).Entries() {
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		got = append(got, e.Header.Name)
		if e.Header.Name == "alpha_1.0_amd64.deb" {
			if _, err := deb.Parse(e.Body); err != nil {
				t.Errorf("archived package is broken: %v", err)
			}
		}
	}
	want := []string{"alpha_1.0_amd64.deb", "Packages", "Packages.gz", "Release", "InRelease", "public.gpg", "public.asc"}
	if !slices.Equal(got, want) {
		t.Errorf("archive holds %v, want %v", got, want)
	}
}
