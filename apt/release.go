package apt

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/debstream/control"
)

// ArchiveInfo is the repository metadata written at the top of the Release
// file. Empty fields are omitted. See
// https://wiki.debian.org/DebianRepository/Format#Release_file for the
// meaning of each field.
type ArchiveInfo struct {
	Origin   string `yaml:"origin,omitempty"`   // e.g. "Debian"
	Label    string `yaml:"label,omitempty"`
	Suite    string `yaml:"suite,omitempty"`    // e.g. "stable"
	Version  string `yaml:"version,omitempty"`
	Codename string `yaml:"codename,omitempty"` // e.g. "bookworm"

	// Date and ValidUntil are RFC1123Z times. GenerateRelease fills an empty
	// Date with the current time.
	Date       string `yaml:"date,omitempty"`
	ValidUntil string `yaml:"valid_until,omitempty"`

	// Architectures and Components are space separated lists.
	Architectures string `yaml:"architectures,omitempty"`
	Components    string `yaml:"components,omitempty"`
	Description   string `yaml:"description,omitempty"`

	// Pinning hints read by apt: "yes" or empty.
	NotAutomatic         string `yaml:"not_automatic,omitempty"`
	ButAutomaticUpgrades string `yaml:"but_automatic_upgrades,omitempty"`
	AcquireByHash        string `yaml:"acquire_by_hash,omitempty"`
}

// ReleaseField names a field of a Release file.
type ReleaseField string

const (
	RelOrigin               ReleaseField = "Origin"
	RelLabel                ReleaseField = "Label"
	RelSuite                ReleaseField = "Suite"
	RelVersion              ReleaseField = "Version"
	RelCodename             ReleaseField = "Codename"
	RelDate                 ReleaseField = "Date"
	RelValidUntil           ReleaseField = "Valid-Until"
	RelArchitectures        ReleaseField = "Architectures"
	RelComponents           ReleaseField = "Components"
	RelDescription          ReleaseField = "Description"
	RelNotAutomatic         ReleaseField = "NotAutomatic"
	RelButAutomaticUpgrades ReleaseField = "ButAutomaticUpgrades"
	RelAcquireByHash        ReleaseField = "Acquire-By-Hash"
	RelMD5Sum               ReleaseField = "MD5Sum"
	RelSHA256               ReleaseField = "SHA256"
)

// fields pairs each Release field with its ArchiveInfo value, in file order.
func (info *ArchiveInfo) fields() []struct {
	name  ReleaseField
	value *string
} {
	return []struct {
		name  ReleaseField
		value *string
	}{
		{RelOrigin, &info.Origin},
		{RelLabel, &info.Label},
		{RelSuite, &info.Suite},
		{RelVersion, &info.Version},
		{RelCodename, &info.Codename},
		{RelDate, &info.Date},
		{RelValidUntil, &info.ValidUntil},
		{RelArchitectures, &info.Architectures},
		{RelComponents, &info.Components},
		{RelDescription, &info.Description},
		{RelNotAutomatic, &info.NotAutomatic},
		{RelButAutomaticUpgrades, &info.ButAutomaticUpgrades},
		{RelAcquireByHash, &info.AcquireByHash},
	}
}

// FileEntry is one index file listed in a Release file.
type FileEntry struct {
	Path   string
	Size   int64
	MD5    string
	SHA256 string
}

// NewFileEntry digests content.
func NewFileEntry(path string, content []byte) FileEntry {
	m := md5.Sum(content)
	s := sha256.Sum256(content)
	return FileEntry{
		Path:   path,
		Size:   int64(len(content)),
		MD5:    hex.EncodeToString(m[:]),
		SHA256: hex.EncodeToString(s[:]),
	}
}

// GenerateRelease renders the Release file for info listing files.
func GenerateRelease(info ArchiveInfo, files []FileEntry) []byte {
	if info.Date == "" {
		info.Date = time.Now().UTC().Format(time.RFC1123Z)
	}
	r := control.NewRecord()
	for _, f := range info.fields() {
		if *f.value != "" {
			r.Set(control.Field(f.name), *f.value)
		}
	}
	list := func(sum func(FileEntry) string) string {
		var b strings.Builder
		for _, e := range files {
			fmt.Fprintf(&b, "\n%s %d %s", sum(e), e.Size, e.Path)
		}
		return b.String()
	}
	r.Set(control.Field(RelMD5Sum), list(func(e FileEntry) string { return e.MD5 }))
	r.Set(control.Field(RelSHA256), list(func(e FileEntry) string { return e.SHA256 }))
	return []byte(r.String())
}

// ParseRelease reads a Release file back into its ArchiveInfo and the
// SHA256 file list.
func ParseRelease(content string) (ArchiveInfo, []FileEntry, error) {
	var info ArchiveInfo
	r, err := control.Parse(content)
	if err != nil {
		return info, nil, fmt.Errorf("parsing Release: %w", err)
	}
	for _, f := range info.fields() {
		*f.value = r.Get(control.Field(f.name))
	}
	var files []FileEntry
	for _, line := range strings.Split(r.Get(control.Field(RelSHA256)), "\n") {
		parts := strings.Fields(line)
		if len(parts) != 3 {
			continue
		}
		size, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return info, nil, fmt.Errorf("%w: bad size in %q", control.ErrParse, line)
		}
		files = append(files, FileEntry{Path: parts[2], Size: size, SHA256: parts[0]})
	}
	return info, files, nil
}
