package ustar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PAX keywords applied by the Reader.
const (
	paxPath     = "path"
	paxLinkpath = "linkpath"
	paxSize     = "size"
	paxUID      = "uid"
	paxGID      = "gid"
	paxUname    = "uname"
	paxGname    = "gname"
	paxMtime    = "mtime"
)

// PAXRecord is one key=value pair of an extended header.
type PAXRecord struct {
	Key   string
	Value string
}

// EncodePAX renders records as "<length> <key>=<value>\n" lines, where
// length counts the whole line including its own digits.
func EncodePAX(records []PAXRecord) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		const fixed = len(" =\n")
		size := len(r.Key) + len(r.Value) + fixed
		size += len(strconv.Itoa(size))
		line := strconv.Itoa(size) + " " + r.Key + "=" + r.Value + "\n"
		// Adding the length may have added a digit.
		if len(line) != size {
			line = strconv.Itoa(len(line)) + " " + r.Key + "=" + r.Value + "\n"
		}
		buf.WriteString(line)
	}
	return buf.Bytes()
}

// DecodePAX parses extended header records. Decoding stops at the first
// malformed record; the records read so far are returned together with
// ErrParse, so callers can still use them as advisory data.
func DecodePAX(data []byte) (map[string]string, error) {
	records := make(map[string]string)
	s := string(data)
	for len(s) > 0 {
		sp := strings.IndexByte(s, ' ')
		if sp <= 0 {
			return records, fmt.Errorf("%w: missing length", ErrParse)
		}
		n, err := strconv.Atoi(s[:sp])
		if err != nil || n <= sp+1 || n > len(s) {
			return records, fmt.Errorf("%w: invalid length %q", ErrParse, s[:sp])
		}
		line := s[sp+1 : n]
		if !strings.HasSuffix(line, "\n") {
			return records, fmt.Errorf("%w: record not terminated by newline", ErrParse)
		}
		key, value, ok := strings.Cut(line[:len(line)-1], "=")
		if !ok || key == "" {
			return records, fmt.Errorf("%w: record without key", ErrParse)
		}
		records[key] = value
		s = s[n:]
	}
	return records, nil
}

// applyPAX overrides h with the records it understands. Values that do not
// parse are ignored.
func applyPAX(h *Header, records map[string]string) {
	for key, value := range records {
		switch key {
		case paxPath:
			h.Name = value
		case paxLinkpath:
			h.Linkname = value
		case paxUname:
			h.Uname = value
		case paxGname:
			h.Gname = value
		case paxSize:
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				h.Size = v
			}
		case paxUID:
			if v, err := strconv.Atoi(value); err == nil {
				h.UID = v
			}
		case paxGID:
			if v, err := strconv.Atoi(value); err == nil {
				h.GID = v
			}
		case paxMtime:
			if t, ok := parsePAXTime(value); ok {
				h.ModTime = t
			}
		}
	}
}

// parsePAXTime reads "<seconds>[.<fraction>]".
func parsePAXTime(s string) (time.Time, bool) {
	secs, frac, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var nsec int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		if nsec, err = strconv.ParseInt(frac, 10, 64); err != nil || nsec < 0 {
			return time.Time{}, false
		}
		if strings.HasPrefix(secs, "-") {
			nsec = -nsec
		}
	}
	return time.Unix(sec, nsec), true
}
