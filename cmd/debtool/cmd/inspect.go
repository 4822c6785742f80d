package cmd

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etnz/debstream/deb"
	"github.com/etnz/debstream/ustar"
)

const jsonFlag = "json"

// report is the JSON rendering of a parsed package.
type report struct {
	Control      map[string]string   `json:"control"`
	Scripts      []string            `json:"scripts,omitempty"`
	ControlFiles []string            `json:"control_files,omitempty"`
	Conffiles    []string            `json:"conffiles,omitempty"`
	Members      []deb.Member        `json:"members"`
	Manifest     []deb.ManifestEntry `json:"manifest"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect file.deb",
	Short: "Print the control paragraph and file list of a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		f, err := fsys.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		p, err := deb.Parse(f, deb.WithListener(listener))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if viper.GetBool(jsonFlag) {
			r := report{
				Control:   make(map[string]string),
				Conffiles: p.Conffiles,
				Members:   p.Members,
				Manifest:  p.Manifest,
			}
			for name, value := range p.Control.All() {
				r.Control[string(name)] = value
			}
			for name, body := range map[deb.ControlFile]string{
				deb.FilePreinst: p.Scripts.PreInst, deb.FilePostinst: p.Scripts.PostInst,
				deb.FilePrerm: p.Scripts.PreRm, deb.FilePostrm: p.Scripts.PostRm,
				deb.FileConfig: p.Scripts.Config,
			} {
				if body != "" {
					r.Scripts = append(r.Scripts, string(name))
				}
			}
			for name := range p.ControlFiles {
				r.ControlFiles = append(r.ControlFiles, name)
			}
			slices.Sort(r.Scripts)
			slices.Sort(r.ControlFiles)
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}

		fmt.Fprint(out, p.Control.String())
		fmt.Fprintln(out)
		for _, e := range p.Manifest {
			mode := fs.FileMode(e.Mode).Perm()
			switch e.Type {
			case ustar.TypeDir:
				mode |= fs.ModeDir
			case ustar.TypeSymlink:
				mode |= fs.ModeSymlink
			}
			line := fmt.Sprintf("%s %10d %s", mode, e.Size, e.Path)
			if e.Linkname != "" {
				line += " -> " + e.Linkname
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().Bool(jsonFlag, false, "Print a JSON report")

	rootCmd.AddCommand(inspectCmd)
}
