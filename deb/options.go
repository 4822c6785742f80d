package deb

import (
	"fmt"
	"io"

	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/ustar"
)

// FileHandler receives every data archive entry while Parse streams it.
// body yields exactly hdr.Size bytes and is only valid during the call.
type FileHandler func(hdr *ustar.Header, body io.Reader) error

type options struct {
	listener Listener
	handler  FileHandler
	registry *compression.Registry
	level    compression.Level
	scan     bool
}

// Option configures Create and Parse.
type Option func(*options)

// WithListener reports progress events to l.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithFileHandler hands data archive entries to h while parsing.
func WithFileHandler(h FileHandler) Option {
	return func(o *options) { o.handler = h }
}

// WithRegistry selects the compression codecs. The default is
// compression.Default.
func WithRegistry(r *compression.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLevel sets the compression level used by Create.
func WithLevel(l compression.Level) Option {
	return func(o *options) { o.level = l }
}

// WithScan parses the outer ar archive in scan mode, recovering from
// garbage between members.
func WithScan() Option {
	return func(o *options) { o.scan = true }
}

func newOptions(opts []Option) *options {
	o := &options{registry: compression.Default}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) emit(e fmt.Stringer) {
	if o.listener != nil {
		o.listener(e)
	}
}
