package control

import (
	"fmt"
	"strings"
)

// Parse reads a single paragraph. Leading and trailing blank lines are
// ignored; more than one paragraph is an error.
//
// Maintainer fields must parse as a Person and integer fields as integers,
// otherwise ErrValidation is returned. Parse does not check that required
// fields are present, use Decode for that.
func Parse(text string) (*Record, error) {
	records, err := ParseAll(text)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, fmt.Errorf("%w: no paragraph", ErrParse)
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%w: %d paragraphs, want one", ErrParse, len(records))
	}
}

// ParseAll reads every blank line separated paragraph of text.
func ParseAll(text string) ([]*Record, error) {
	p := parser{}
	for i, line := range strings.Split(text, "\n") {
		p.line = i + 1
		if err := p.feed(strings.TrimSuffix(line, "\r")); err != nil {
			return nil, err
		}
	}
	if err := p.endParagraph(); err != nil {
		return nil, err
	}
	return p.records, nil
}

// Decode parses a single paragraph and validates it with Validate.
func Decode(text string) (*Record, error) {
	r, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeAll parses every paragraph and validates each of them.
func DecodeAll(text string) ([]*Record, error) {
	records, err := ParseAll(text)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i+1, err)
		}
	}
	return records, nil
}

// Validate checks that r describes a binary package: every required field
// is present and not empty, the maintainer parses and each Architecture
// token is a known architecture.
func Validate(r *Record) error {
	for _, name := range Required {
		if strings.TrimSpace(r.Get(name)) == "" {
			return fmt.Errorf("%w: missing required field %s", ErrValidation, name)
		}
	}
	if err := coerce(r); err != nil {
		return err
	}
	for _, arch := range strings.Fields(r.Get(FieldArchitecture)) {
		if !ValidArchitecture(arch) {
			return fmt.Errorf("%w: unknown architecture %q", ErrValidation, arch)
		}
	}
	return nil
}

// coerce checks and normalizes the typed fields that are present.
func coerce(r *Record) error {
	for _, name := range personFields {
		if !r.Has(name) {
			continue
		}
		p, err := r.Person(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.SetPerson(name, p)
	}
	for _, name := range intFields {
		if !r.Has(name) {
			continue
		}
		n, err := r.Int(name)
		if err != nil {
			return err
		}
		r.SetInt(name, n)
	}
	return nil
}

// parser folds lines into fields and fields into paragraphs.
type parser struct {
	line    int
	records []*Record
	current *Record

	name  Field    // field being read
	first string   // text after the colon
	cont  []string // raw continuation lines
}

func (p *parser) feed(line string) error {
	switch {
	case strings.HasPrefix(line, "#"):
		return nil
	case strings.TrimSpace(line) == "":
		return p.endParagraph()
	case line[0] == ' ' || line[0] == '\t':
		if p.name == "" {
			return fmt.Errorf("%w: line %d: continuation line without a field", ErrParse, p.line)
		}
		p.cont = append(p.cont, line)
		return nil
	}

	name, value, ok := strings.Cut(line, ":")
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return fmt.Errorf("%w: line %d: expected \"Field: value\", got %q", ErrParse, p.line, line)
	}
	p.endField()
	if p.current == nil {
		p.current = &Record{}
	}
	if p.current.Has(Field(name)) {
		return fmt.Errorf("%w: line %d: duplicate field %s", ErrParse, p.line, name)
	}
	p.name, p.first, p.cont = Field(name), strings.TrimSpace(value), nil
	return nil
}

// endField stores the field being read.
func (p *parser) endField() {
	if p.name == "" {
		return
	}
	p.current.Set(p.name, foldValue(p.first, p.cont))
	p.name, p.first, p.cont = "", "", nil
}

func (p *parser) endParagraph() error {
	p.endField()
	if p.current == nil {
		return nil
	}
	r := p.current
	p.current = nil
	if err := coerce(r); err != nil {
		return err
	}
	p.records = append(p.records, r)
	return nil
}

// foldValue joins the first line and the continuation lines. Continuations
// lose the indent they all share and a lone "." becomes an empty line.
func foldValue(first string, cont []string) string {
	if len(cont) == 0 {
		return first
	}
	indent := -1
	for _, l := range cont {
		trimmed := strings.TrimLeft(l, " \t")
		if trimmed == "." {
			continue
		}
		if n := len(l) - len(trimmed); indent < 0 || n < indent {
			indent = n
		}
	}
	lines := make([]string, 0, len(cont)+1)
	lines = append(lines, first)
	for _, l := range cont {
		l = strings.TrimRight(l, " \t")
		if strings.TrimLeft(l, " \t") == "." {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, l[indent:])
	}
	return strings.Join(lines, "\n")
}
