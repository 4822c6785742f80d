package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/etnz/debstream/control"
	"github.com/etnz/debstream/deb"
)

// Package is a package definition as read from a YAML or JSON file. Spec
// turns it into the deb.Spec that deb.Create builds.
type Package struct {
	// Defines are template variables, overriding the globals given to Load.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// Control holds the control paragraph fields, in order.
	Control Fields `json:"control" yaml:"control"`
	// DataDir is a directory whose content is installed by the package,
	// relative to the definition file.
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// Files is a list of files to add to the package payload.
	Files []File `json:"files" yaml:"files"`
	// Scripts is a list of maintainer scripts to add to the package. Dst
	// names the script: preinst, postinst, prerm, postrm or config.
	Scripts []File `json:"scripts" yaml:"scripts"`
	// ControlFiles are extra members of control.tar, such as triggers.
	ControlFiles []File `json:"control_files" yaml:"control_files"`
	// Compression selects the codec of each tar member.
	Compression Compression `json:"compression" yaml:"compression"`
	// ModTime stamps the package entries, in RFC 3339 format. Setting it
	// makes builds reproducible.
	ModTime string `json:"mtime" yaml:"mtime"`

	fs       afero.Fs
	filePath string
	engine   *engine
}

// File is one entry of the files, scripts or control_files lists.
type File struct {
	// Src is a path relative to the definition file, or an http(s) URL.
	Src string `json:"src" yaml:"src"`
	// Body is the inline content of the file, used when Src is empty.
	Body string `json:"body" yaml:"body"`
	// Dst is the installed path, or the member name for scripts and control files.
	Dst string `json:"dst" yaml:"dst"`
	// Raw disables template rendering of the content.
	Raw bool `json:"raw" yaml:"raw"`
	// Mode is an octal permission string, 0644 when empty.
	Mode string `json:"mode" yaml:"mode"`
	// Conffile lists Dst in the conffiles control file.
	Conffile bool `json:"conffile" yaml:"conffile"`
}

// Compression names the registry codecs of the control and data archives.
type Compression struct {
	Control string `json:"control" yaml:"control"`
	Data    string `json:"data" yaml:"data"`
}

// Load reads a package definition from fsys. YAML is expected for the
// .yaml and .yml extensions, JSON otherwise. Unknown keys are rejected.
// globals are template variables that the definition's defines override.
func Load(fsys afero.Fs, path string, globals map[string]string) (*Package, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading package definition: %w", err)
	}
	var p Package
	if err := unmarshal(path, content, &p); err != nil {
		return nil, fmt.Errorf("parsing package definition %s: %w", path, err)
	}
	p.fs = fsys
	p.filePath = path
	p.engine = newEngine(globals).with(p.Defines)
	return &p, nil
}

// unmarshal decodes YAML for .yaml and .yml paths, JSON otherwise.
func unmarshal(path string, data []byte, v any) error {
	ext := strings.ToLower(filepath.Ext(path))
	r := bytes.NewReader(data)
	if ext == ".yaml" || ext == ".yml" {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (p *Package) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(p.filePath), path)
}

// fetch downloads an http(s) resource.
func fetch(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// loadResource reads src, rendering it as a template unless raw.
func (p *Package) loadResource(src string, raw bool) (string, error) {
	var (
		content []byte
		err     error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		content, err = fetch(src)
	} else {
		content, err = afero.ReadFile(p.fs, p.resolve(src))
	}
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", src, err)
	}
	if raw {
		return string(content), nil
	}
	return p.engine.render(src, string(content))
}

// file renders the paths of f and loads its content.
func (p *Package) file(key string, f File) (dst, content string, err error) {
	if dst, err = p.engine.render(key+".dst", f.Dst); err != nil {
		return "", "", err
	}
	if f.Src == "" {
		if f.Raw {
			return dst, f.Body, nil
		}
		content, err = p.engine.render(key+".body", f.Body)
		return dst, content, err
	}
	src, err := p.engine.render(key+".src", f.Src)
	if err != nil {
		return "", "", err
	}
	content, err = p.loadResource(src, f.Raw)
	return dst, content, err
}

// Spec renders the definition into a deb.Spec: templates are executed and
// every referenced resource is loaded.
func (p *Package) Spec() (*deb.Spec, error) {
	s := &deb.Spec{
		ControlFiles: make(map[string]string),
		Fs:           p.fs,
	}

	// Without control fields, the data directory's DEBIAN/control is used.
	if len(p.Control) > 0 {
		s.Control = control.NewRecord()
	}
	for _, f := range p.Control {
		v, err := p.engine.render("control."+f.Name, f.Value)
		if err != nil {
			return nil, fmt.Errorf("rendering control %s: %w", f.Name, err)
		}
		s.Control.Set(control.Field(f.Name), v)
	}

	if p.DataDir != "" {
		dir, err := p.engine.render("data_dir", p.DataDir)
		if err != nil {
			return nil, fmt.Errorf("rendering data_dir: %w", err)
		}
		s.DataDir = p.resolve(dir)
	}

	for i, f := range p.Files {
		key := fmt.Sprintf("files[%d]", i)
		dst, content, err := p.file(key, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		var mode int64 = 0644
		if f.Mode != "" {
			m, err := p.engine.render(key+".mode", f.Mode)
			if err != nil {
				return nil, err
			}
			if mode, err = strconv.ParseInt(m, 8, 64); err != nil {
				return nil, fmt.Errorf("%s: mode %q: %w", key, m, err)
			}
		}
		s.Files = append(s.Files, deb.File{
			DestPath: dst,
			Mode:     mode,
			Body:     content,
			IsConf:   f.Conffile,
		})
	}

	for i, f := range p.Scripts {
		key := fmt.Sprintf("scripts[%d]", i)
		dst, content, err := p.file(key, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		switch deb.ControlFile(dst) {
		case deb.FilePreinst:
			s.Scripts.PreInst = content
		case deb.FilePostinst:
			s.Scripts.PostInst = content
		case deb.FilePrerm:
			s.Scripts.PreRm = content
		case deb.FilePostrm:
			s.Scripts.PostRm = content
		case deb.FileConfig:
			s.Scripts.Config = content
		default:
			return nil, fmt.Errorf("unknown script dst: %s", dst)
		}
	}

	for i, f := range p.ControlFiles {
		key := fmt.Sprintf("control_files[%d]", i)
		dst, content, err := p.file(key, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		s.ControlFiles[dst] = content
	}

	var err error
	if s.ControlCompression, err = p.engine.render("compression.control", p.Compression.Control); err != nil {
		return nil, err
	}
	if s.DataCompression, err = p.engine.render("compression.data", p.Compression.Data); err != nil {
		return nil, err
	}
	if p.ModTime != "" {
		if s.ModTime, err = time.Parse(time.RFC3339, p.ModTime); err != nil {
			return nil, fmt.Errorf("parsing mtime: %w", err)
		}
	}
	return s, nil
}
