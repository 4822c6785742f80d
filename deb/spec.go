package deb

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/ustar"
)

// Spec is everything Create needs to assemble a binary package: the control
// paragraph, maintainer scripts, extra control files and the payload.
type Spec struct {
	// Control is the control paragraph. Installed-Size is computed and
	// overwritten. When nil, DataDir/DEBIAN/control is read instead.
	Control *control.Record

	Scripts Scripts

	// ControlFiles contains arbitrary control files to be added to the control archive.
	// Keys are filenames (e.g., "templates", "triggers"), values are the content.
	// Reserved names ("control", "md5sums", "conffiles", "preinst", "postinst", "prerm", "postrm", "config") are ignored.
	ControlFiles map[string]string

	// Fs holds DataDir. It defaults to the OS filesystem.
	Fs afero.Fs

	// DataDir is the root of the tree installed by the package. A top level
	// DEBIAN or debian directory is not part of the payload; the maintainer
	// scripts and control files found there are used when the Spec does not
	// set them.
	DataDir string

	// Files are added to the payload after DataDir, replacing entries with
	// the same path.
	Files []File

	// ControlCompression and DataCompression name the registry codec of
	// each tar member. They default to DefaultControlCompression and
	// DefaultDataCompression.
	ControlCompression string
	DataCompression    string

	// ModTime stamps the generated entries. If zero, the current time is used.
	ModTime time.Time
}

// Scripts holds the executable maintainer scripts.
// These are executed by dpkg at different stages of the package lifecycle.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-maintainerscripts.html
type Scripts struct {
	// PreInst is the script executed before the package is unpacked.
	PreInst string

	// PostInst is the script executed after the package is unpacked.
	// Common use: starting services, running ldconfig.
	PostInst string

	// PreRm is the script executed before the package is removed.
	// Common use: stopping services.
	PreRm string

	// PostRm is the script executed after the package is removed.
	// Common use: purging configuration data.
	PostRm string

	// Config is the script used for debconf configuration.
	Config string
}

// byName lists the scripts in archive order.
func (s *Scripts) byName() []struct {
	name ControlFile
	body *string
} {
	return []struct {
		name ControlFile
		body *string
	}{
		{FilePreinst, &s.PreInst},
		{FilePostinst, &s.PostInst},
		{FilePrerm, &s.PreRm},
		{FilePostrm, &s.PostRm},
		{FileConfig, &s.Config},
	}
}

// File represents a single in-memory file to be installed on the target system.
type File struct {
	// DestPath is the absolute path where the file will be placed on the target system (e.g., "/usr/bin/app").
	DestPath string

	// Mode is the file permission mode (e.g., 0755 for executables, 0644 for text).
	// Zero means 0644.
	Mode int64

	Body string

	// IsConf, if true, marks this file as a configuration file in the 'conffiles' list.
	// dpkg will prompt the user before overwriting this file during upgrades.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-files.html#s-config-files
	IsConf bool

	// ModTime is the modification time stored in the archive.
	// If zero, the Spec ModTime is used.
	ModTime time.Time
}

// ManifestEntry describes one entry of the data archive.
type ManifestEntry struct {
	// Path is absolute and clean; the archive root is "/".
	Path     string     `json:"path"`
	Type     ustar.Type `json:"type"`
	Size     int64      `json:"size"`
	Mode     int64      `json:"mode"`
	Linkname string     `json:"linkname,omitempty"`
}

// StandardFilename returns the canonical filename for the package.
// Format: {Package}_{Version}_{Architecture}.deb, without the epoch.
//
// Reference: https://www.debian.org/doc/manuals/debian-faq/ch-pkg_basics.en.html#s-pkgname
func StandardFilename(r *control.Record) string {
	version := r.Get(control.FieldVersion)
	if _, rest, ok := strings.Cut(version, ":"); ok {
		version = rest
	}
	return fmt.Sprintf("%s_%s_%s.deb", r.Get(control.FieldPackage), version, r.Get(control.FieldArchitecture))
}

// payloadEntry is a data archive entry and the source of its body.
type payloadEntry struct {
	hdr      ustar.Header
	open     func() (io.ReadCloser, error)
	conffile bool
}

// tarName renders an absolute manifest path as a data archive name.
func tarName(p string) string {
	return "." + p
}

// cleanPath turns an archive name into an absolute manifest path.
func cleanPath(name string) string {
	return path.Clean("/" + strings.TrimPrefix(name, "./"))
}

func (s *Spec) fs() afero.Fs {
	if s.Fs == nil {
		return afero.NewOsFs()
	}
	return s.Fs
}

func (s *Spec) modTime() time.Time {
	if s.ModTime.IsZero() {
		return time.Now()
	}
	return s.ModTime
}

// isDebianDir reports whether rel is the top level control directory.
func isDebianDir(rel string) bool {
	top, _, _ := strings.Cut(rel, "/")
	return top == "DEBIAN" || top == "debian"
}

// payload lists the data archive entries sorted by path, with every
// implied parent directory.
func (s *Spec) payload() ([]payloadEntry, error) {
	mtime := s.modTime()
	entries := make(map[string]payloadEntry)

	if s.DataDir != "" {
		if err := s.walkDataDir(entries); err != nil {
			return nil, err
		}
	}

	for _, f := range s.Files {
		p := path.Clean("/" + f.DestPath)
		if p == "/" {
			return nil, fmt.Errorf("file %q: not a file path", f.DestPath)
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0644
		}
		ft := f.ModTime
		if ft.IsZero() {
			ft = mtime
		}
		body := f.Body
		entries[p] = payloadEntry{
			hdr: ustar.Header{
				Name:    tarName(p),
				Type:    ustar.TypeFile,
				Mode:    mode,
				Size:    int64(len(body)),
				ModTime: ft,
			},
			open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
			conffile: f.IsConf,
		}
	}

	// Implied parents, up to the root.
	for p := range entries {
		for dir := path.Dir(p); ; dir = path.Dir(dir) {
			if _, ok := entries[dir]; !ok {
				entries[dir] = payloadEntry{hdr: ustar.Header{
					Name:    tarName(dir),
					Type:    ustar.TypeDir,
					Mode:    0755,
					ModTime: mtime,
				}}
			}
			if dir == "/" {
				break
			}
		}
	}

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	res := make([]payloadEntry, len(paths))
	for i, p := range paths {
		res[i] = entries[p]
	}
	return res, nil
}

func (s *Spec) walkDataDir(entries map[string]payloadEntry) error {
	fsys := s.fs()
	return afero.Walk(fsys, s.DataDir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.DataDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if isDebianDir(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dest := "/" + rel
		hdr := ustar.Header{
			Name:    tarName(dest),
			Mode:    int64(info.Mode().Perm()),
			ModTime: info.ModTime(),
		}
		e := payloadEntry{}
		switch mode := info.Mode(); {
		case mode.IsDir():
			hdr.Type = ustar.TypeDir
		case mode&fs.ModeSymlink != 0:
			lr, ok := fsys.(afero.LinkReader)
			if !ok {
				return fmt.Errorf("%s: filesystem cannot read symlinks", p)
			}
			target, err := lr.ReadlinkIfPossible(p)
			if err != nil {
				return err
			}
			hdr.Type = ustar.TypeSymlink
			hdr.Linkname = target
		case mode.IsRegular():
			hdr.Type = ustar.TypeFile
			hdr.Size = info.Size()
			e.open = func() (io.ReadCloser, error) { return fsys.Open(p) }
		default:
			return fmt.Errorf("%s: unsupported file type %s", p, mode.Type())
		}
		e.hdr = hdr
		entries[dest] = e
		return nil
	})
}

// debianDir reads the control files of DataDir/DEBIAN (or debian), if any.
func (s *Spec) debianDir() (map[string]string, error) {
	if s.DataDir == "" {
		return nil, nil
	}
	fsys := s.fs()
	for _, name := range []string{"DEBIAN", "debian"} {
		dir := filepath.Join(s.DataDir, name)
		ok, err := afero.DirExists(fsys, dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		infos, err := afero.ReadDir(fsys, dir)
		if err != nil {
			return nil, err
		}
		files := make(map[string]string)
		for _, info := range infos {
			if !info.Mode().IsRegular() {
				continue
			}
			b, err := afero.ReadFile(fsys, filepath.Join(dir, info.Name()))
			if err != nil {
				return nil, err
			}
			files[info.Name()] = string(b)
		}
		return files, nil
	}
	return nil, nil
}

// Manifest lists the data archive entries Create writes for s.
func (s *Spec) Manifest() ([]ManifestEntry, error) {
	payload, err := s.payload()
	if err != nil {
		return nil, err
	}
	res := make([]ManifestEntry, len(payload))
	for i, e := range payload {
		res[i] = manifestEntry(&e.hdr)
	}
	return res, nil
}

func manifestEntry(h *ustar.Header) ManifestEntry {
	return ManifestEntry{
		Path:     cleanPath(h.Name),
		Type:     h.Type,
		Size:     h.Size,
		Mode:     h.Mode,
		Linkname: h.Linkname,
	}
}
