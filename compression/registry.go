// Package compression selects and composes stream compressors.
//
// A Registry maps format names to codecs. The default registry binds the
// formats found in Debian packages and APT repositories. NewReader sniffs the
// first bytes of a stream to pick a decompressor by magic number.
package compression

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/cosnicolaou/pbzip2"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

const (
	FormatNone    = "none"
	FormatGzip    = "gzip"
	FormatPGzip   = "pgzip"
	FormatBzip2   = "bzip2"
	FormatPBzip2  = "pbzip2"
	FormatZstd    = "zstd"
	FormatXz      = "xz"
	FormatDeflate = "deflate"
	FormatLZ4     = "lz4"
	FormatBrotli  = "brotli"
)

// Level trades speed for size. The empty Level means LevelBalanced.
type Level string

const (
	LevelFastest  Level = "fastest"
	LevelBalanced Level = "balanced"
	LevelSmallest Level = "smallest"
)

// pick returns the value matching l among fastest, balanced and smallest.
func pick[T any](l Level, fastest, balanced, smallest T) (T, error) {
	switch l {
	case LevelFastest:
		return fastest, nil
	case LevelBalanced, "":
		return balanced, nil
	case LevelSmallest:
		return smallest, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %q", ErrUnsupportedLevel, l)
}

// Codec binds a format name to its implementation. Either function may be
// nil when the format only goes one way.
type Codec struct {
	Name string
	// Ext is the file name extension, including the dot, used for
	// archive members in this format.
	Ext        string
	Decompress func(r io.Reader) (io.ReadCloser, error)
	Compress   func(w io.Writer, level Level) (io.WriteCloser, error)
}

// Registry is a set of codecs keyed by name.
type Registry struct {
	codecs map[string]Codec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Codec)}
}

// Register adds c, replacing any codec with the same name.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Name] = c
}

// Lookup returns the codec registered under name.
func (r *Registry) Lookup(name string) (Codec, error) {
	c, ok := r.codecs[name]
	if !ok {
		return Codec{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return c, nil
}

// Names returns the registered format names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decompress wraps src in the named decompressor.
func (r *Registry) Decompress(name string, src io.Reader) (io.ReadCloser, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if c.Decompress == nil {
		return nil, fmt.Errorf("%w: %s cannot decompress", ErrUnsupportedFormat, name)
	}
	return c.Decompress(src)
}

// Compress wraps dst in the named compressor. Closing the returned writer
// flushes the compressor but does not close dst.
func (r *Registry) Compress(name string, dst io.Writer, level Level) (io.WriteCloser, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if c.Compress == nil {
		return nil, fmt.Errorf("%w: %s cannot compress", ErrUnsupportedFormat, name)
	}
	return c.Compress(dst, level)
}

// Ext returns the file name extension of the named format.
func (r *Registry) Ext(name string) (string, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return c.Ext, nil
}

// ByExt returns the format that a file name with ext is written in. When
// several formats share an extension, the one that can also decompress and
// sorts first wins, so ".gz" maps to gzip rather than pgzip.
func (r *Registry) ByExt(ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, name := range r.Names() {
		c := r.codecs[name]
		if c.Ext == ext && c.Decompress != nil && c.Compress != nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: no format for extension %q", ErrUnsupportedFormat, ext)
}

// Default binds every format this package knows.
var Default = newDefault()

func newDefault() *Registry {
	r := NewRegistry()
	r.Register(Codec{
		Name: FormatNone,
		Ext:  "",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(src), nil
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			return nopWriteCloser{dst}, nil
		},
	})
	r.Register(Codec{
		Name: FormatGzip,
		Ext:  ".gz",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(src)
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, gzip.BestSpeed, gzip.DefaultCompression, gzip.BestCompression)
			if err != nil {
				return nil, err
			}
			return gzip.NewWriterLevel(dst, l)
		},
	})
	r.Register(Codec{
		Name: FormatPGzip,
		Ext:  ".gz",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return pgzip.NewReader(src)
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, pgzip.BestSpeed, pgzip.DefaultCompression, pgzip.BestCompression)
			if err != nil {
				return nil, err
			}
			return pgzip.NewWriterLevel(dst, l)
		},
	})
	r.Register(Codec{
		Name: FormatBzip2,
		Ext:  ".bz2",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return bzip2.NewReader(src, nil)
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, bzip2.BestSpeed, bzip2.DefaultCompression, bzip2.BestCompression)
			if err != nil {
				return nil, err
			}
			return bzip2.NewWriter(dst, &bzip2.WriterConfig{Level: l})
		},
	})
	r.Register(Codec{
		Name: FormatPBzip2,
		Ext:  ".bz2",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(pbzip2.NewReader(context.Background(), src)), nil
		},
	})
	r.Register(Codec{
		Name: FormatZstd,
		Ext:  ".zst",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(src)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, zstd.SpeedFastest, zstd.SpeedDefault, zstd.SpeedBestCompression)
			if err != nil {
				return nil, err
			}
			return zstd.NewWriter(dst, zstd.WithEncoderLevel(l))
		},
	})
	r.Register(Codec{
		Name: FormatXz,
		Ext:  ".xz",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(src)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			dictCap, err := pick(level, 1<<20, 8<<20, 64<<20)
			if err != nil {
				return nil, err
			}
			return xz.WriterConfig{DictCap: dictCap}.NewWriter(dst)
		},
	})
	r.Register(Codec{
		Name: FormatDeflate,
		Ext:  ".zz",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(src)
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, zlib.BestSpeed, zlib.DefaultCompression, zlib.BestCompression)
			if err != nil {
				return nil, err
			}
			return zlib.NewWriterLevel(dst, l)
		},
	})
	r.Register(Codec{
		Name: FormatLZ4,
		Ext:  ".lz4",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(src)), nil
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, lz4.Fast, lz4.Level5, lz4.Level9)
			if err != nil {
				return nil, err
			}
			lw := lz4.NewWriter(dst)
			if err := lw.Apply(lz4.CompressionLevelOption(l)); err != nil {
				return nil, err
			}
			return lw, nil
		},
	})
	r.Register(Codec{
		Name: FormatBrotli,
		Ext:  ".br",
		Decompress: func(src io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(src)), nil
		},
		Compress: func(dst io.Writer, level Level) (io.WriteCloser, error) {
			l, err := pick(level, brotli.BestSpeed, brotli.DefaultCompression, brotli.BestCompression)
			if err != nil {
				return nil, err
			}
			return brotli.NewWriterLevel(dst, l), nil
		},
	})
	return r
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
