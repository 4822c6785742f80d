package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const helloManifest = `
control:
  Package: hello
  Version: "1.0"
  Architecture: all
  Maintainer: Test User <test@example.com>
  Description: says hello
files:
  - dst: /usr/share/hello/greeting
    body: "hello {{.who}}\n"
`

// run executes the command line with args and returns its standard output.
func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("debtool %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

// TestCommands chains the commands since flag values persist between runs
// of the same command tree.
func TestCommands(t *testing.T) {
	fsys = afero.NewMemMapFs()
	t.Cleanup(func() { fsys = afero.NewOsFs() })
	if err := afero.WriteFile(fsys, "/w/hello.yaml", []byte(helloManifest), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("pack", func(t *testing.T) {
		run(t, "pack", "-m", "/w/hello.yaml", "-o", "/w/hello.deb", "-D", "who=world")
		if ok, _ := afero.Exists(fsys, "/w/hello.deb"); !ok {
			t.Fatal("package not written")
		}
	})

	t.Run("list", func(t *testing.T) {
		out := run(t, "list", "/w/hello.deb")
		for _, want := range []string{"debian-binary", "control.tar.gz", "data.tar.xz", "gzip", "xz"} {
			if !strings.Contains(out, want) {
				t.Errorf("list output misses %q:\n%s", want, out)
			}
		}
	})

	t.Run("inspect", func(t *testing.T) {
		out := run(t, "inspect", "/w/hello.deb")
		for _, want := range []string{"Package: hello", "SHA256: ", "/usr/share/hello/greeting"} {
			if !strings.Contains(out, want) {
				t.Errorf("inspect output misses %q:\n%s", want, out)
			}
		}
	})

	t.Run("inspect json", func(t *testing.T) {
		out := run(t, "inspect", "--json", "/w/hello.deb")
		var r report
		if err := json.Unmarshal([]byte(out), &r); err != nil {
			t.Fatalf("invalid JSON report: %v\n%s", err, out)
		}
		if r.Control["Package"] != "hello" || len(r.Members) != 3 {
			t.Errorf("unexpected report: %+v", r)
		}
		var found bool
		for _, e := range r.Manifest {
			found = found || e.Path == "/usr/share/hello/greeting" && e.Size == int64(len("hello world\n"))
		}
		if !found {
			t.Errorf("manifest misses the rendered greeting: %+v", r.Manifest)
		}
	})

	t.Run("index", func(t *testing.T) {
		run(t, "index", "-o", "/w/repo", "--origin", "Tests", "/w/hello.deb")
		for _, name := range []string{"hello_1.0_all.deb", "Packages", "Packages.gz", "Release"} {
			if ok, _ := afero.Exists(fsys, "/w/repo/"+name); !ok {
				t.Errorf("missing /w/repo/%s", name)
			}
		}
		release, _ := afero.ReadFile(fsys, "/w/repo/Release")
		if !strings.Contains(string(release), "Origin: Tests") {
			t.Errorf("Release misses the origin:\n%s", release)
		}
	})

	t.Run("versions", func(t *testing.T) {
		if got := run(t, "compare-versions", "1.0", "1.0~rc1"); got != "1\n" {
			t.Errorf("compare-versions = %q, want 1", got)
		}
		if got := run(t, "bump-version", "1.0-1"); got != "1.0-2\n" {
			t.Errorf("bump-version = %q, want 1.0-2", got)
		}
	})
}
