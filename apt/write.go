package apt

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/ustar"
)

func jsonString(v any) string {
	b, _ := json.Marshal(map[string]any{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventFileWritten is emitted for every repository file written.
type EventFileWritten struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (e EventFileWritten) String() string { return jsonString(e) }

func (idx *Index) emit(e fmt.Stringer) {
	if idx.Listener != nil {
		idx.Listener(e)
	}
}

// WriteToDir writes the flat repository into dir: every package file the
// index can open, then the index files.
func (idx *Index) WriteToDir(fsys afero.Fs, dir string) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, e := range idx.Entries() {
		if e.open == nil {
			continue
		}
		name := filepath.Join(dir, filepath.FromSlash(e.Filename()))
		if err := fsys.MkdirAll(filepath.Dir(name), 0755); err != nil {
			return err
		}
		n, err := copyPackage(fsys, name, e.open)
		if err != nil {
			return fmt.Errorf("writing %s: %w", e.Filename(), err)
		}
		idx.emit(EventFileWritten{Path: e.Filename(), Size: n})
	}

	files, err := idx.ComputeIndices()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := afero.WriteFile(fsys, filepath.Join(dir, f.Name), f.Content, 0644); err != nil {
			return err
		}
		idx.emit(EventFileWritten{Path: f.Name, Size: int64(len(f.Content))})
	}
	return nil
}

func copyPackage(fsys afero.Fs, name string, open func() (io.ReadCloser, error)) (int64, error) {
	src, err := open()
	if err != nil {
		return 0, err
	}
	defer src.Close()
	// The source may already be the destination when the index was read
	// back with OpenDir.
	if f, ok := src.(afero.File); ok && filepath.Clean(f.Name()) == filepath.Clean(name) {
		info, err := f.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}
	dst, err := fsys.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// WriteTo writes the flat repository to w as a gzip compressed tar archive.
// It returns the total number of bytes written and any error encountered.
// This satisfies the io.WriterTo interface.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw, err := idx.registry().Compress(compression.FormatGzip, cw, compression.LevelBalanced)
	if err != nil {
		return 0, err
	}
	tw := ustar.NewWriter(zw)
	now := time.Now()

	for _, e := range idx.Entries() {
		if e.open == nil {
			continue
		}
		if err := writePackage(tw, e, now); err != nil {
			return cw.n, fmt.Errorf("writing %s: %w", e.Filename(), err)
		}
	}

	files, err := idx.ComputeIndices()
	if err != nil {
		return cw.n, err
	}
	for _, f := range files {
		hdr := &ustar.Header{Name: f.Name, Type: ustar.TypeFile, Mode: 0644, ModTime: now}
		if err := tw.WriteEntry(hdr, f.Content); err != nil {
			return cw.n, fmt.Errorf("writing %s: %w", f.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return cw.n, err
	}
	if err := zw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// writePackage copies a package file into tw. The size is taken from the
// stanza, which Parse computed from the same bytes.
func writePackage(tw *ustar.Writer, e *Entry, t time.Time) error {
	size, err := e.Stanza.Int(control.FieldSize)
	if err != nil {
		return err
	}
	rc, err := e.open()
	if err != nil {
		return err
	}
	defer rc.Close()
	ew, err := tw.Entry(&ustar.Header{Name: e.Filename(), Type: ustar.TypeFile, Mode: 0644, Size: size, ModTime: t})
	if err != nil {
		return err
	}
	if _, err := io.Copy(ew, rc); err != nil {
		ew.Close()
		return err
	}
	return ew.Close()
}

// OpenDir reads back a flat repository written by WriteToDir. The Release
// file, when present, sets Info. Stanzas of the Packages index are kept
// as is and package files found in dir that the index does not list yet
// are parsed and added.
func OpenDir(fsys afero.Fs, dir string) (*Index, error) {
	idx := NewIndex(ArchiveInfo{})

	release := filepath.Join(dir, FileRelease)
	if ok, _ := afero.Exists(fsys, release); ok {
		b, err := afero.ReadFile(fsys, release)
		if err != nil {
			return nil, err
		}
		if idx.Info, _, err = ParseRelease(string(b)); err != nil {
			return nil, err
		}
		// A fresh date is stamped on the next write.
		idx.Info.Date = ""
	}

	known := make(map[string]bool)
	packages := filepath.Join(dir, FilePackages)
	if ok, _ := afero.Exists(fsys, packages); ok {
		b, err := afero.ReadFile(fsys, packages)
		if err != nil {
			return nil, err
		}
		stanzas, err := ParsePackages(string(b))
		if err != nil {
			return nil, err
		}
		for _, s := range stanzas {
			e := &Entry{Stanza: s}
			name := filepath.Join(dir, filepath.FromSlash(e.Filename()))
			if ok, _ := afero.Exists(fsys, name); ok {
				e.open = func() (io.ReadCloser, error) { return fsys.Open(name) }
			}
			if err := idx.Add(e); err != nil {
				return nil, err
			}
			known[path.Clean(e.Filename())] = true
		}
	}

	infos, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".deb") || known[info.Name()] {
			continue
		}
		if err := idx.AddFile(fsys, filepath.Join(dir, info.Name())); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// countingWriter wraps an io.Writer and counts the number of bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
