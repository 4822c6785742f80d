package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener receives the progress events of Repository.Compile.
type Listener func(fmt.Stringer)

func jsonString(v any) string {
	b, _ := json.Marshal(map[string]any{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventIndexOpened reports the index a compilation starts from.
type EventIndexOpened struct {
	Dir      string `json:"dir,omitempty"`
	Packages int    `json:"packages"`
}

func (e EventIndexOpened) String() string { return jsonString(e) }

// EventPackagePublished reports a package definition or .deb file handled by
// Compile. Skipped is set when that name, version and architecture was
// already published.
type EventPackagePublished struct {
	Source  string `json:"source,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

func (e EventPackagePublished) String() string { return jsonString(e) }

// EventIndexWritten reports the directory the index files were written to.
type EventIndexWritten struct {
	Dir string `json:"dir,omitempty"`
}

func (e EventIndexWritten) String() string { return jsonString(e) }
