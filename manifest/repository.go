// Package manifest builds packages and repositories from declarative
// definition files.
//
// A package definition lists the control fields, payload files, scripts
// and control files of one package; every value may use text/template
// actions over the defined variables. A repository definition lists package
// definitions and prebuilt packages to publish in a flat APT repository.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/etnz/debstream/apt"
	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/deb"
)

// Repository represents the configuration for an APT repository archive.
// It defines the output directory, global variables, and the list of packages to include.
type Repository struct {
	// Path is the directory path where the repository will be generated.
	Path string `json:"path" yaml:"path"`
	// Defines is a map of global variables available to templates.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// Archive sets the Release file fields. Empty fields keep the values
	// of an existing repository.
	Archive apt.ArchiveInfo `json:"archive" yaml:"archive"`
	// Packages is a list of package definition files or .deb files to
	// include in the repository, relative to the repository file.
	Packages []string `json:"packages" yaml:"packages"`

	fs       afero.Fs
	filePath string
	engine   *engine
}

// LoadRepository reads a repository definition from fsys.
func LoadRepository(fsys afero.Fs, path string) (*Repository, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository file: %w", err)
	}
	var r Repository
	if err := unmarshal(path, content, &r); err != nil {
		return nil, fmt.Errorf("failed to parse repository file: %w", err)
	}
	if r.Path == "" {
		return nil, fmt.Errorf("repository file must specify 'path'")
	}
	r.fs = fsys
	r.filePath = path
	r.engine = newEngine(r.Defines)
	return &r, nil
}

func (r *Repository) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(r.filePath), path)
}

// open reads the existing repository at Path, or starts an empty one.
func (r *Repository) open() (*apt.Index, error) {
	dir := r.resolve(r.Path)
	ok, err := afero.DirExists(r.fs, dir)
	if err != nil {
		return nil, err
	}
	idx := apt.NewIndex(apt.ArchiveInfo{Origin: "debtool", Label: "Managed Repository"})
	if ok {
		if idx, err = apt.OpenDir(r.fs, dir); err != nil {
			return nil, err
		}
	}
	mergeInfo(&idx.Info, r.Archive)
	return idx, nil
}

// mergeInfo copies the non empty fields of src into dst.
func mergeInfo(dst *apt.ArchiveInfo, src apt.ArchiveInfo) {
	for _, p := range []struct{ d, s *string }{
		{&dst.Origin, &src.Origin},
		{&dst.Label, &src.Label},
		{&dst.Suite, &src.Suite},
		{&dst.Version, &src.Version},
		{&dst.Codename, &src.Codename},
		{&dst.Date, &src.Date},
		{&dst.ValidUntil, &src.ValidUntil},
		{&dst.Architectures, &src.Architectures},
		{&dst.Components, &src.Components},
		{&dst.Description, &src.Description},
		{&dst.NotAutomatic, &src.NotAutomatic},
		{&dst.ButAutomaticUpgrades, &src.ButAutomaticUpgrades},
		{&dst.AcquireByHash, &src.AcquireByHash},
	} {
		if *p.s != "" {
			*p.d = *p.s
		}
	}
}

// Compile orchestrates the repository building process.
// It loads the repository, builds or parses every listed package, and
// saves the result. A package version already in the repository is kept
// as it is.
func (r *Repository) Compile(gpgKey string, l Listener) error {
	if l == nil {
		l = func(fmt.Stringer) {}
	}

	idx, err := r.open()
	if err != nil {
		return fmt.Errorf("opening index %s: %w", r.Path, err)
	}
	l(EventIndexOpened{Dir: r.Path, Packages: idx.Len()})
	idx.GPGKey = gpgKey
	idx.Listener = deb.Listener(l)

	for _, raw := range r.Packages {
		name, err := r.engine.render("packages", raw)
		if err != nil {
			return fmt.Errorf("rendering package path %q: %w", raw, err)
		}
		path := r.resolve(name)
		p, open, err := r.build(path)
		if err != nil {
			return fmt.Errorf("publishing %s: %w", path, err)
		}
		err = idx.AddPackage(p, p.Filename(), open)
		if err != nil && !errors.Is(err, apt.ErrDuplicate) {
			return fmt.Errorf("publishing %s: %w", path, err)
		}
		l(EventPackagePublished{
			Source:  path,
			Name:    p.Control.Get(control.FieldPackage),
			Version: p.Control.Get(control.FieldVersion),
			Arch:    p.Control.Get(control.FieldArchitecture),
			Skipped: err != nil,
		})
	}

	if err := idx.WriteToDir(r.fs, r.resolve(r.Path)); err != nil {
		return fmt.Errorf("writing index %s: %w", r.Path, err)
	}
	l(EventIndexWritten{Dir: r.Path})
	return nil
}

// build returns the parsed package at path, building it first when path is
// a package definition.
func (r *Repository) build(path string) (*deb.Package, func() (io.ReadCloser, error), error) {
	if strings.HasSuffix(strings.ToLower(path), ".deb") {
		f, err := r.fs.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		p, err := deb.Parse(f)
		if err != nil {
			return nil, nil, err
		}
		return p, func() (io.ReadCloser, error) { return r.fs.Open(path) }, nil
	}

	def, err := Load(r.fs, path, r.Defines)
	if err != nil {
		return nil, nil, err
	}
	spec, err := def.Spec()
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := deb.Create(&buf, spec); err != nil {
		return nil, nil, err
	}
	content := buf.Bytes()
	p, err := deb.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	return p, func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil }, nil
}
