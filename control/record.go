package control

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Record is one control paragraph. Fields keep the order they were added
// in; lookups ignore case.
//
// Multi-line values are stored with their lines joined by "\n" and without
// the continuation indent. An empty line in a value is written as " ." in
// the text form.
type Record struct {
	fields []field
}

type field struct {
	name  Field
	value string
}

// NewRecord returns a Record holding the given name/value pairs, in order.
// It panics if pairs has an odd length.
func NewRecord(pairs ...string) *Record {
	if len(pairs)%2 != 0 {
		panic("control: NewRecord needs name/value pairs")
	}
	r := &Record{}
	for i := 0; i < len(pairs); i += 2 {
		r.Set(Field(pairs[i]), pairs[i+1])
	}
	return r
}

func (r *Record) find(name Field) int {
	for i, f := range r.fields {
		if strings.EqualFold(string(f.name), string(name)) {
			return i
		}
	}
	return -1
}

// Lookup returns the value of name and whether it is present.
func (r *Record) Lookup(name Field) (string, bool) {
	if i := r.find(name); i >= 0 {
		return r.fields[i].value, true
	}
	return "", false
}

// Get returns the value of name, or "" when absent.
func (r *Record) Get(name Field) string {
	v, _ := r.Lookup(name)
	return v
}

// Has reports whether name is present.
func (r *Record) Has(name Field) bool {
	return r.find(name) >= 0
}

// Set replaces the value of name in place, or appends the field.
func (r *Record) Set(name Field, value string) {
	if i := r.find(name); i >= 0 {
		r.fields[i].value = value
		return
	}
	r.fields = append(r.fields, field{name, value})
}

// Delete removes name.
func (r *Record) Delete(name Field) {
	if i := r.find(name); i >= 0 {
		r.fields = append(r.fields[:i], r.fields[i+1:]...)
	}
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.fields) }

// Names returns the field names in order.
func (r *Record) Names() []Field {
	names := make([]Field, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.name
	}
	return names
}

// All iterates over the fields in order.
func (r *Record) All() iter.Seq2[Field, string] {
	return func(yield func(Field, string) bool) {
		for _, f := range r.fields {
			if !yield(f.name, f.value) {
				return
			}
		}
	}
}

// Clone returns a copy of r.
func (r *Record) Clone() *Record {
	return &Record{fields: append([]field(nil), r.fields...)}
}

// Equal reports whether both records hold the same fields in the same order.
func (r *Record) Equal(other *Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i, f := range r.fields {
		if !strings.EqualFold(string(f.name), string(other.fields[i].name)) || f.value != other.fields[i].value {
			return false
		}
	}
	return true
}

// Person parses the named maintainer field.
func (r *Record) Person(name Field) (Person, error) {
	v, ok := r.Lookup(name)
	if !ok {
		return Person{}, fmt.Errorf("%w: missing %s", ErrValidation, name)
	}
	return ParsePerson(v)
}

// Maintainer returns the parsed Maintainer field.
func (r *Record) Maintainer() (Person, error) {
	return r.Person(FieldMaintainer)
}

// SetPerson stores p in the named field.
func (r *Record) SetPerson(name Field, p Person) {
	r.Set(name, p.String())
}

// Int parses the named field as a decimal integer.
func (r *Record) Int(name Field) (int64, error) {
	v, ok := r.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrValidation, name)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not an integer: %q", ErrValidation, name, v)
	}
	return n, nil
}

// SetInt stores n in the named field.
func (r *Record) SetInt(name Field, n int64) {
	r.Set(name, strconv.FormatInt(n, 10))
}

// List splits a comma separated field, such as Depends, into its trimmed
// elements. It returns nil for an absent or empty field.
func (r *Record) List(name Field) []string {
	v := strings.TrimSpace(r.Get(name))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

// Synopsis returns the first line of the Description.
func (r *Record) Synopsis() string {
	synopsis, _, _ := strings.Cut(r.Get(FieldDescription), "\n")
	return synopsis
}
