package control

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a Debian version: [epoch:]upstream[-revision].
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#version
type Version struct {
	Epoch    int
	Upstream string
	Revision string
}

// ParseVersion splits v into its parts. The revision is whatever follows the
// last hyphen; the epoch whatever precedes the first colon.
func ParseVersion(v string) (Version, error) {
	v = strings.TrimSpace(v)
	var res Version
	if e, rest, ok := strings.Cut(v, ":"); ok {
		n, err := strconv.Atoi(e)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%w: bad epoch in version %q", ErrValidation, v)
		}
		res.Epoch, v = n, rest
	}
	if i := strings.LastIndex(v, "-"); i >= 0 {
		res.Upstream, res.Revision = v[:i], v[i+1:]
	} else {
		res.Upstream = v
	}
	if res.Upstream == "" || (res.Upstream[0] < '0' || res.Upstream[0] > '9') {
		return Version{}, fmt.Errorf("%w: version %q must start with a digit", ErrValidation, v)
	}
	return res, nil
}

func (v Version) String() string {
	var b strings.Builder
	if v.Epoch > 0 {
		b.WriteString(strconv.Itoa(v.Epoch))
		b.WriteByte(':')
	}
	b.WriteString(v.Upstream)
	if v.Revision != "" {
		b.WriteByte('-')
		b.WriteString(v.Revision)
	}
	return b.String()
}

// Compare orders versions the way dpkg does and returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	if v.Epoch != o.Epoch {
		if v.Epoch < o.Epoch {
			return -1
		}
		return 1
	}
	if c := compareFragment(v.Upstream, o.Upstream); c != 0 {
		return c
	}
	return compareFragment(v.Revision, o.Revision)
}

// CompareVersions parses and compares two version strings. Strings that do
// not parse are compared as plain upstream versions.
func CompareVersions(a, b string) int {
	va, err := ParseVersion(a)
	if err != nil {
		va = Version{Upstream: a}
	}
	vb, err := ParseVersion(b)
	if err != nil {
		vb = Version{Upstream: b}
	}
	return va.Compare(vb)
}

// compareFragment alternates between non-digit and digit runs.
func compareFragment(a, b string) int {
	for a != "" || b != "" {
		var sa, sb string
		sa, a = span(a, false)
		sb, b = span(b, false)
		if c := compareLexical(sa, sb); c != 0 {
			return c
		}
		sa, a = span(a, true)
		sb, b = span(b, true)
		if c := compareNumeric(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func span(s string, digits bool) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// order ranks a byte: '~' before the end of the string, letters before
// everything else.
func order(c byte) int {
	switch {
	case c == '~':
		return -1
	case isDigit(c):
		return 0
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		return int(c)
	default:
		return int(c) + 256
	}
}

func compareLexical(a, b string) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		var ca, cb int
		if i < len(a) {
			ca = order(a[i])
		}
		if i < len(b) {
			cb = order(b[i])
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// BumpVersion increments the revision of a Debian version string so that
// the result sorts after v.
//
// Strategy:
//  1. If no revision (no hyphen), append "-1".
//  2. If the revision is purely numeric, increment it (e.g. "1.0-1" -> "1.0-2").
//  3. Otherwise, find the last alphanumeric character in the revision and bump it
//     using the range 0-9, a-z. (e.g. "1.0-1a" -> "1.0-1b", "1.0-19" -> "1.0-1a").
//     If the character is 'z', '0' is appended ("1.0-1z" -> "1.0-1z0").
func BumpVersion(v string) string {
	idx := strings.LastIndex(v, "-")
	if idx == -1 {
		return v + "-1"
	}
	prefix, rev := v[:idx+1], v[idx+1:]
	if rev == "" {
		return prefix + "1"
	}
	if i, err := strconv.Atoi(rev); err == nil {
		return prefix + strconv.Itoa(i+1)
	}
	b := []byte(rev)
	for i := len(b) - 1; i >= 0; i-- {
		switch c := b[i]; {
		case c >= '0' && c < '9', c >= 'a' && c < 'z':
			b[i]++
			return prefix + string(b)
		case c == '9':
			b[i] = 'a'
			return prefix + string(b)
		case c == 'z':
			return prefix + string(b[:i+1]) + "0" + string(b[i+1:])
		}
	}
	return v + "1"
}
