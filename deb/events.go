package deb

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events while a package is
// created or parsed.
type Listener func(fmt.Stringer)

func jsonString(v any) string {
	b, _ := json.Marshal(map[string]any{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventMemberWritten is emitted after an ar member has been written.
type EventMemberWritten struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Format string `json:"format,omitempty"`
}

func (e EventMemberWritten) String() string { return jsonString(e) }

// EventMemberRead is emitted after an ar member has been consumed.
type EventMemberRead struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Format string `json:"format,omitempty"`
}

func (e EventMemberRead) String() string { return jsonString(e) }

// EventPackageCreated is emitted when Create has written the whole package.
type EventPackageCreated struct {
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Size         int64  `json:"size"`
	Files        int    `json:"files"`
}

func (e EventPackageCreated) String() string { return jsonString(e) }

// EventPackageParsed is emitted when Parse has consumed the whole package.
type EventPackageParsed struct {
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Size         int64  `json:"size"`
	SHA256       string `json:"sha256,omitempty"`
	Files        int    `json:"files"`
}

func (e EventPackageParsed) String() string { return jsonString(e) }
