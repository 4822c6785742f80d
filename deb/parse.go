package deb

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/etnz/debstream/ar"
	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/ustar"
)

// maxControlFile bounds the size of a single control archive file.
const maxControlFile = 16 << 20

// Package is a parsed binary package.
type Package struct {
	// Control is the decoded control paragraph, with Size, MD5sum, SHA1,
	// SHA256 and SHA512 of the whole package file appended.
	Control *control.Record

	Scripts Scripts

	// ControlFiles holds the non reserved control archive files.
	ControlFiles map[string]string

	// Conffiles lists the configuration files, as absolute paths.
	Conffiles []string

	// MD5Sums maps the payload paths listed in md5sums to their digest.
	MD5Sums map[string]string

	// Manifest lists the data archive entries in archive order.
	Manifest []ManifestEntry

	// Members lists the ar members in archive order.
	Members []Member
}

// Member describes an ar member of the package.
type Member struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	// Format is the detected compression of a tar member.
	Format string `json:"format,omitempty"`
}

// Filename returns the canonical file name of p.
func (p *Package) Filename() string {
	return StandardFilename(p.Control)
}

// Parse reads a package from r, streaming through the outer ar archive and
// both tar members. File bodies are offered to the WithFileHandler
// callback and never kept.
func Parse(r io.Reader, opts ...Option) (*Package, error) {
	o := newOptions(opts)
	d := newDigester()
	src := io.TeeReader(r, d)

	var arOpts []ar.Option
	if o.scan {
		arOpts = append(arOpts, ar.WithScan())
	}
	arR := ar.NewReader(src, arOpts...)

	p := &Package{
		ControlFiles: make(map[string]string),
		MD5Sums:      make(map[string]string),
	}
	var sawMagic, sawControl, sawData bool
	for {
		hdr, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}

		m := Member{Name: hdr.Name, Size: hdr.Size}
		switch {
		case hdr.Name == MemberDebianBinary:
			if err := readVersion(arR); err != nil {
				return nil, err
			}
			sawMagic = true

		case strings.HasPrefix(hdr.Name, MemberControlTar):
			if !sawMagic {
				return nil, fmt.Errorf("%w: %s before %s", ErrFormat, hdr.Name, MemberDebianBinary)
			}
			if m.Format, err = readTar(arR, o, p.controlEntry); err != nil {
				return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
			}
			sawControl = true

		case strings.HasPrefix(hdr.Name, MemberDataTar):
			if !sawMagic {
				return nil, fmt.Errorf("%w: %s before %s", ErrFormat, hdr.Name, MemberDebianBinary)
			}
			if m.Format, err = readTar(arR, o, p.dataEntry(o)); err != nil {
				return nil, fmt.Errorf("reading %s: %w", hdr.Name, err)
			}
			sawData = true
		}
		p.Members = append(p.Members, m)
		o.emit(EventMemberRead(m))
	}

	if !sawControl || !sawData || p.Control == nil {
		return nil, ErrInvalidPackage
	}
	// Trailing bytes are part of the file digest.
	if _, err := io.Copy(io.Discard, src); err != nil {
		return nil, err
	}
	d.merge(p.Control)

	files := 0
	for _, e := range p.Manifest {
		if e.Type == ustar.TypeFile {
			files++
		}
	}
	o.emit(EventPackageParsed{
		Package:      p.Control.Get(control.FieldPackage),
		Version:      p.Control.Get(control.FieldVersion),
		Architecture: p.Control.Get(control.FieldArchitecture),
		Size:         d.n,
		SHA256:       p.Control.Get(control.FieldSHA256),
		Files:        files,
	})
	return p, nil
}

func readVersion(r io.Reader) error {
	b, err := io.ReadAll(io.LimitReader(r, 64))
	if err != nil {
		return fmt.Errorf("reading %s: %w", MemberDebianBinary, err)
	}
	if !bytes.HasPrefix(b, []byte("2.")) {
		return fmt.Errorf("%w: unsupported format version %q", ErrFormat, strings.TrimSpace(string(b)))
	}
	return nil
}

// readTar sniffs the compression of a tar member and hands every entry to
// fn. It returns the detected format.
func readTar(r io.Reader, o *options, fn func(*ustar.Header, io.Reader) error) (string, error) {
	zr, err := compression.NewReader(r, compression.WithRegistry(o.registry), compression.WithStrict())
	if err != nil {
		return "", err
	}
	defer zr.Close()
	tr := ustar.NewReader(zr)
	for e, err := range tr.Entries() {
		if err != nil {
			return zr.Format(), err
		}
		if err := fn(e.Header, e.Body); err != nil {
			return zr.Format(), err
		}
	}
	return zr.Format(), nil
}

func (p *Package) controlEntry(hdr *ustar.Header, body io.Reader) error {
	if hdr.Type != ustar.TypeFile {
		return nil
	}
	name := strings.TrimPrefix(cleanPath(hdr.Name), "/")
	b, err := io.ReadAll(io.LimitReader(body, maxControlFile))
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	content := string(b)

	switch ControlFile(name) {
	case FileControl:
		r, err := control.Decode(content)
		if err != nil {
			return fmt.Errorf("parsing control file: %w", err)
		}
		p.Control = r
	case FileConffiles:
		p.Conffiles = strings.Fields(content)
	case FileMd5sums:
		for _, line := range strings.Split(content, "\n") {
			sum, file, ok := strings.Cut(strings.TrimSpace(line), " ")
			if ok {
				p.MD5Sums[strings.TrimSpace(file)] = sum
			}
		}
	default:
		for _, sc := range p.Scripts.byName() {
			if sc.name == ControlFile(name) {
				*sc.body = content
				return nil
			}
		}
		if !strings.HasPrefix(name, ".") && !strings.Contains(name, "/") {
			p.ControlFiles[name] = content
		}
	}
	return nil
}

func (p *Package) dataEntry(o *options) func(*ustar.Header, io.Reader) error {
	return func(hdr *ustar.Header, body io.Reader) error {
		p.Manifest = append(p.Manifest, manifestEntry(hdr))
		if o.handler == nil {
			return nil
		}
		return o.handler(hdr, body)
	}
}

// digester computes the digests and length of everything written to it.
type digester struct {
	md5, sha1, sha256, sha512 hash.Hash
	n                         int64
}

func newDigester() *digester {
	return &digester{md5: md5.New(), sha1: sha1.New(), sha256: sha256.New(), sha512: sha512.New()}
}

func (d *digester) Write(p []byte) (int, error) {
	for _, h := range []hash.Hash{d.md5, d.sha1, d.sha256, d.sha512} {
		h.Write(p)
	}
	d.n += int64(len(p))
	return len(p), nil
}

// merge stores the digests in r, as in a Packages index stanza.
func (d *digester) merge(r *control.Record) {
	r.SetInt(control.FieldSize, d.n)
	r.Set(control.FieldMD5sum, hex.EncodeToString(d.md5.Sum(nil)))
	r.Set(control.FieldSHA1, hex.EncodeToString(d.sha1.Sum(nil)))
	r.Set(control.FieldSHA256, hex.EncodeToString(d.sha256.Sum(nil)))
	r.Set(control.FieldSHA512, hex.EncodeToString(d.sha512.Sum(nil)))
}
