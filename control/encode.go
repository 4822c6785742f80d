package control

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Encode writes r as a control paragraph, fields in record order.
//
// The first line of a value follows the colon. Every further line is
// written with a single leading space and empty lines become " .".
func Encode(w io.Writer, r *Record) error {
	bw := bufio.NewWriter(w)
	for name, value := range r.All() {
		if strings.ContainsAny(string(name), ": \t\n") || name == "" {
			return fmt.Errorf("%w: invalid field name %q", ErrValidation, name)
		}
		first, rest, multi := strings.Cut(value, "\n")
		if first == "" {
			fmt.Fprintf(bw, "%s:\n", name)
		} else {
			fmt.Fprintf(bw, "%s: %s\n", name, first)
		}
		if !multi {
			continue
		}
		for _, line := range strings.Split(rest, "\n") {
			if strings.TrimSpace(line) == "" {
				bw.WriteString(" .\n")
				continue
			}
			bw.WriteString(" " + line + "\n")
		}
	}
	return bw.Flush()
}

// EncodeAll writes records as paragraphs separated by a blank line.
func EncodeAll(w io.Writer, records []*Record) error {
	for i, r := range records {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := Encode(w, r); err != nil {
			return err
		}
	}
	return nil
}

// String returns the encoded paragraph, or "" if r cannot be encoded.
func (r *Record) String() string {
	var b strings.Builder
	if err := Encode(&b, r); err != nil {
		return ""
	}
	return b.String()
}
