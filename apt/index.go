package apt

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/afero"

	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/deb"
)

// Index file names of a flat repository.
const (
	FilePackages       = "Packages"
	FileRelease        = "Release"
	FileInRelease      = "InRelease"
	FilePublicKey      = "public.gpg"
	FilePublicKeyArmor = "public.asc"
	DefaultIndexFormat = compression.FormatGzip
)

// ErrDuplicate is returned when a package with the same name, version and
// architecture is already indexed.
var ErrDuplicate = errors.New("duplicate package")

// stanzaTail are the fields appended after the control paragraph, in order.
var stanzaTail = []control.Field{
	control.FieldFilename,
	control.FieldSize,
	control.FieldMD5sum,
	control.FieldSHA1,
	control.FieldSHA256,
	control.FieldSHA512,
}

// Entry is one package of the index.
type Entry struct {
	// Stanza is the Packages index paragraph.
	Stanza *control.Record

	// open returns the package file, if the index knows where it is.
	open func() (io.ReadCloser, error)
}

// Filename is the path of the package relative to the repository root.
func (e *Entry) Filename() string { return e.Stanza.Get(control.FieldFilename) }

func (e *Entry) id() string {
	return fmt.Sprintf("%s|%s|%s",
		e.Stanza.Get(control.FieldPackage),
		e.Stanza.Get(control.FieldVersion),
		e.Stanza.Get(control.FieldArchitecture))
}

// Index is an in-memory flat APT repository: the packages and the metadata
// the index files are generated from.
type Index struct {
	Info ArchiveInfo

	// GPGKey is an armored private key. When set, InRelease and the public
	// keys are generated.
	GPGKey string

	// Formats lists the compressed variants of the Packages file, by
	// registry name. The default is gzip only.
	Formats []string

	// Registry provides the codecs. The default is compression.Default.
	Registry *compression.Registry

	// Listener receives an event per written file.
	Listener deb.Listener

	packages map[string]*Entry
}

// NewIndex returns an empty index described by info.
func NewIndex(info ArchiveInfo) *Index {
	return &Index{Info: info, packages: make(map[string]*Entry)}
}

// Len returns the number of indexed packages.
func (idx *Index) Len() int { return len(idx.packages) }

// Add indexes e. It fails if the same package is already present.
func (idx *Index) Add(e *Entry) error {
	if e.Stanza.Get(control.FieldPackage) == "" {
		return fmt.Errorf("%w: stanza without %s", control.ErrValidation, control.FieldPackage)
	}
	id := e.id()
	if _, exists := idx.packages[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	idx.packages[id] = e
	return nil
}

// AddPackage indexes a parsed package stored at filename. open, when not
// nil, returns the package file so that it can be copied into the
// repository.
func (idx *Index) AddPackage(p *deb.Package, filename string, open func() (io.ReadCloser, error)) error {
	return idx.Add(&Entry{Stanza: Stanza(p.Control, filename), open: open})
}

// AddFile parses the package at path in fsys and indexes it under its
// canonical file name.
func (idx *Index) AddFile(fsys afero.Fs, path string, opts ...deb.Option) error {
	f, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	p, err := deb.Parse(f, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	open := func() (io.ReadCloser, error) { return fsys.Open(path) }
	return idx.AddPackage(p, p.Filename(), open)
}

// Append adds every package of other.
func (idx *Index) Append(other *Index) error {
	for _, e := range other.Entries() {
		if err := idx.Add(e); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns the packages sorted by name, version and architecture.
func (idx *Index) Entries() []*Entry {
	res := make([]*Entry, 0, len(idx.packages))
	for _, e := range idx.packages {
		res = append(res, e)
	}
	slices.SortFunc(res, func(a, b *Entry) int {
		return cmp.Or(
			cmp.Compare(a.Stanza.Get(control.FieldPackage), b.Stanza.Get(control.FieldPackage)),
			control.CompareVersions(a.Stanza.Get(control.FieldVersion), b.Stanza.Get(control.FieldVersion)),
			cmp.Compare(a.Stanza.Get(control.FieldArchitecture), b.Stanza.Get(control.FieldArchitecture)),
		)
	})
	return res
}

// Stanza returns the Packages index paragraph of a package: its control
// fields followed by Filename and the file digests found in r.
func Stanza(r *control.Record, filename string) *control.Record {
	s := r.Clone()
	tail := make(map[control.Field]string)
	for _, name := range stanzaTail {
		if v, ok := s.Lookup(name); ok {
			tail[name] = v
			s.Delete(name)
		}
	}
	tail[control.FieldFilename] = filename
	for _, name := range stanzaTail {
		if v := tail[name]; v != "" {
			s.Set(name, v)
		}
	}
	return s
}

// Packages renders the Packages index.
func (idx *Index) Packages() []byte {
	var stanzas []*control.Record
	for _, e := range idx.Entries() {
		stanzas = append(stanzas, e.Stanza)
	}
	var buf bytes.Buffer
	// Stanzas come from parsed paragraphs, whose field names always encode.
	_ = control.EncodeAll(&buf, stanzas)
	return buf.Bytes()
}

// File is a generated index file.
type File struct {
	Name    string
	Content []byte
}

func (idx *Index) registry() *compression.Registry {
	if idx.Registry == nil {
		return compression.Default
	}
	return idx.Registry
}

// ComputeIndices generates the repository metadata files: Packages, its
// compressed variants, Release and, when GPGKey is set, InRelease and the
// public keys.
func (idx *Index) ComputeIndices() ([]File, error) {
	packages := idx.Packages()
	files := []File{{Name: FilePackages, Content: packages}}

	formats := idx.Formats
	if len(formats) == 0 {
		formats = []string{DefaultIndexFormat}
	}
	reg := idx.registry()
	for _, format := range formats {
		ext, err := reg.Ext(format)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		zw, err := reg.Compress(format, &buf, compression.LevelSmallest)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(packages); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		files = append(files, File{Name: FilePackages + ext, Content: buf.Bytes()})
	}

	var listed []FileEntry
	for _, f := range files {
		listed = append(listed, NewFileEntry(f.Name, f.Content))
	}
	release := GenerateRelease(idx.Info, listed)
	files = append(files, File{Name: FileRelease, Content: release})

	if idx.GPGKey == "" {
		return files, nil
	}
	signed, err := Sign(release, idx.GPGKey)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	pub, err := PublicKey(idx.GPGKey, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract public key: %w", err)
	}
	armored, err := PublicKey(idx.GPGKey, true)
	if err != nil {
		return nil, fmt.Errorf("failed to extract armored public key: %w", err)
	}
	return append(files,
		File{Name: FileInRelease, Content: signed},
		File{Name: FilePublicKey, Content: pub},
		File{Name: FilePublicKeyArmor, Content: armored},
	), nil
}

// ParsePackages reads the stanzas of a Packages index.
func ParsePackages(content string) ([]*control.Record, error) {
	stanzas, err := control.ParseAll(content)
	if err != nil {
		return nil, fmt.Errorf("parsing Packages: %w", err)
	}
	for _, s := range stanzas {
		if s.Get(control.FieldFilename) == "" {
			return nil, fmt.Errorf("%w: stanza %q without %s", control.ErrValidation, s.Get(control.FieldPackage), control.FieldFilename)
		}
	}
	return stanzas, nil
}
