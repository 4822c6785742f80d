package deb

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/etnz/debstream/ar"
	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/ustar"
)

// Create assembles the package described by s and writes it to w: the
// debian-binary, control.tar and data.tar members, in that order.
//
// The tar members are built in memory before being written since an ar
// header needs the member size up front.
func Create(w io.Writer, s *Spec, opts ...Option) error {
	_, err := create(w, s, newOptions(opts))
	return err
}

// WriteTo creates the package with default options and writes it to w.
// It returns the total number of bytes written and any error encountered.
// This satisfies the io.WriterTo interface.
func (s *Spec) WriteTo(w io.Writer) (int64, error) {
	return create(w, s, newOptions(nil))
}

func create(w io.Writer, s *Spec, o *options) (int64, error) {
	cw := &countingWriter{w: w}
	mtime := s.modTime()

	debian, err := s.debianDir()
	if err != nil {
		return 0, fmt.Errorf("reading control directory: %w", err)
	}
	record, err := s.controlRecord(debian)
	if err != nil {
		return 0, err
	}

	payload, err := s.payload()
	if err != nil {
		return 0, fmt.Errorf("listing payload: %w", err)
	}
	var installed int64
	for _, e := range payload {
		installed += e.hdr.Size
	}
	// Installed-Size is in kilobytes, rounded up
	record.SetInt(control.FieldInstalledSize, (installed+1023)/1024)
	if err := control.Validate(record); err != nil {
		return 0, err
	}

	// The data archive is built first: md5sums needs its file digests.
	dataFormat := orDefault(s.DataCompression, DefaultDataCompression)
	var sums []md5sum
	data, err := buildMember(o, dataFormat, func(tw *ustar.Writer) error {
		var werr error
		sums, werr = writePayload(tw, payload)
		return werr
	})
	if err != nil {
		return 0, fmt.Errorf("building data archive: %w", err)
	}

	controlFormat := orDefault(s.ControlCompression, DefaultControlCompression)
	ctrl, err := buildMember(o, controlFormat, func(tw *ustar.Writer) error {
		return s.writeControl(tw, mtime, record, sums, payload, debian)
	})
	if err != nil {
		return 0, fmt.Errorf("building control archive: %w", err)
	}

	members := []struct {
		name   string
		format string
		body   []byte
	}{
		// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html#FORMAT
		{MemberDebianBinary, "", []byte(FormatVersion)},
		{MemberControlTar + mustExt(o, controlFormat), controlFormat, ctrl},
		{MemberDataTar + mustExt(o, dataFormat), dataFormat, data},
	}
	aw := ar.NewWriter(cw)
	for _, m := range members {
		hdr := &ar.Header{Name: m.name, ModTime: mtime, Mode: 0100644}
		if err := aw.WriteEntry(hdr, m.body); err != nil {
			return cw.n, fmt.Errorf("writing %s: %w", m.name, err)
		}
		o.emit(EventMemberWritten{Name: m.name, Size: int64(len(m.body)), Format: m.format})
	}
	if err := aw.Close(); err != nil {
		return cw.n, err
	}

	files := 0
	for _, e := range payload {
		if e.hdr.Type == ustar.TypeFile {
			files++
		}
	}
	o.emit(EventPackageCreated{
		Package:      record.Get(control.FieldPackage),
		Version:      record.Get(control.FieldVersion),
		Architecture: record.Get(control.FieldArchitecture),
		Size:         cw.n,
		Files:        files,
	})
	return cw.n, nil
}

// controlRecord returns a copy of the control paragraph to write.
func (s *Spec) controlRecord(debian map[string]string) (*control.Record, error) {
	if s.Control != nil {
		return s.Control.Clone(), nil
	}
	text, ok := debian[string(FileControl)]
	if !ok {
		return nil, fmt.Errorf("%w: no control paragraph", control.ErrValidation)
	}
	r, err := control.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileControl, err)
	}
	return r, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// mustExt returns the member extension of format. Unknown formats fail
// earlier, in buildMember.
func mustExt(o *options, format string) string {
	ext, _ := o.registry.Ext(format)
	return ext
}

// buildMember runs fill against a tar writer compressed with format and
// returns the compressed bytes.
func buildMember(o *options, format string, fill func(*ustar.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := o.registry.Compress(format, &buf, o.level)
	if err != nil {
		return nil, err
	}
	tw := ustar.NewWriter(zw)
	if err := fill(tw); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type md5sum struct {
	path string
	sum  string
}

// writePayload writes the data entries and returns the md5 of each regular
// file.
func writePayload(tw *ustar.Writer, payload []payloadEntry) ([]md5sum, error) {
	var sums []md5sum
	h := md5.New()
	for _, e := range payload {
		ew, err := tw.Entry(&e.hdr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.hdr.Name, err)
		}
		if e.open != nil {
			h.Reset()
			if err := copyBody(io.MultiWriter(ew, h), e.open, e.hdr.Size); err != nil {
				ew.Close()
				return nil, fmt.Errorf("%s: %w", e.hdr.Name, err)
			}
			sums = append(sums, md5sum{
				path: strings.TrimPrefix(e.hdr.Name, "./"),
				sum:  hex.EncodeToString(h.Sum(nil)),
			})
		}
		if err := ew.Close(); err != nil {
			return nil, fmt.Errorf("%s: %w", e.hdr.Name, err)
		}
	}
	return sums, nil
}

// copyBody copies at most size bytes of the opened source to w. A file that
// grew after its header was built is cut at the recorded size.
func copyBody(w io.Writer, open func() (io.ReadCloser, error), size int64) error {
	rc, err := open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, io.LimitReader(rc, size))
	return err
}

// writeControl writes the control archive entries.
func (s *Spec) writeControl(tw *ustar.Writer, t time.Time, record *control.Record, sums []md5sum, payload []payloadEntry, debian map[string]string) error {
	writeEntry := func(name ControlFile, content string, mode int64) error {
		hdr := &ustar.Header{
			Name:    "./" + string(name),
			Type:    ustar.TypeFile,
			Mode:    mode,
			ModTime: t,
		}
		return tw.WriteEntry(hdr, []byte(content))
	}

	if err := tw.WriteEntry(&ustar.Header{Name: "./", Type: ustar.TypeDir, Mode: 0755, ModTime: t}, nil); err != nil {
		return err
	}

	// 1. control
	if err := writeEntry(FileControl, record.String(), 0644); err != nil {
		return fmt.Errorf("writing control: %w", err)
	}

	// 2. md5sums
	if len(sums) > 0 {
		var b strings.Builder
		for _, m := range sums {
			fmt.Fprintf(&b, "%s  %s\n", m.sum, m.path)
		}
		if err := writeEntry(FileMd5sums, b.String(), 0644); err != nil {
			return fmt.Errorf("writing md5sums: %w", err)
		}
	}

	// 3. conffiles
	var conffiles []string
	for _, e := range payload {
		if e.conffile {
			conffiles = append(conffiles, cleanPath(e.hdr.Name))
		}
	}
	if len(conffiles) == 0 && debian[string(FileConffiles)] != "" {
		conffiles = strings.Fields(debian[string(FileConffiles)])
	}
	if len(conffiles) > 0 {
		if err := writeEntry(FileConffiles, strings.Join(conffiles, "\n")+"\n", 0644); err != nil {
			return fmt.Errorf("writing conffiles: %w", err)
		}
	}

	// 4. Maintainer Scripts
	scripts := s.Scripts
	for _, sc := range scripts.byName() {
		body := *sc.body
		if body == "" {
			body = debian[string(sc.name)]
		}
		if body == "" {
			continue
		}
		if err := writeEntry(sc.name, body, 0755); err != nil {
			return fmt.Errorf("writing %s: %w", sc.name, err)
		}
	}

	// 5. Extra Control Files
	extra := maps.Clone(debian)
	if extra == nil {
		extra = make(map[string]string)
	}
	maps.Copy(extra, s.ControlFiles)
	for _, name := range slices.Sorted(maps.Keys(extra)) {
		content := extra[name]
		if reserved[ControlFile(name)] || content == "" {
			continue
		}
		if err := writeEntry(ControlFile(name), content, 0644); err != nil {
			return fmt.Errorf("writing extra control file %s: %w", name, err)
		}
	}
	return nil
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
