package control

import (
	"fmt"
	"strings"
)

// Person is a maintainer as written in Maintainer fields: "Name <Email>".
type Person struct {
	Name  string
	Email string
}

// ParsePerson splits s on its first "<...>" span. A value without brackets
// is a bare name; empty brackets are invalid.
func ParsePerson(s string) (Person, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '<')
	if open < 0 {
		return Person{Name: s}, nil
	}
	end := strings.IndexByte(s[open:], '>')
	if end < 0 {
		return Person{}, fmt.Errorf("%w: unterminated email in %q", ErrValidation, s)
	}
	email := strings.TrimSpace(s[open+1 : open+end])
	if email == "" {
		return Person{}, fmt.Errorf("%w: empty email in %q", ErrValidation, s)
	}
	return Person{
		Name:  strings.TrimSpace(s[:open]),
		Email: email,
	}, nil
}

// String renders p as "Name <Email>", or just the name without an email.
func (p Person) String() string {
	switch {
	case p.Email == "":
		return p.Name
	case p.Name == "":
		return "<" + p.Email + ">"
	default:
		return p.Name + " <" + p.Email + ">"
	}
}
