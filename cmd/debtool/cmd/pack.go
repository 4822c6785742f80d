package cmd

import (
	"bytes"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/deb"
	"github.com/etnz/debstream/manifest"
)

const (
	manifestFlag = "manifest"
	levelFlag    = "level"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Build a package from a definition file",
	Long: `Build a package from a YAML or JSON definition file.

Without --output, the package is written to the current directory under its
canonical name, {Package}_{Version}_{Architecture}.deb.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		def, err := manifest.Load(fsys, viper.GetString(manifestFlag), viper.GetStringMapString(defineFlag))
		if err != nil {
			return err
		}
		spec, err := def.Spec()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		opts := []deb.Option{
			deb.WithListener(listener),
			deb.WithLevel(compression.Level(viper.GetString(levelFlag))),
		}
		if err := deb.Create(&buf, spec, opts...); err != nil {
			return err
		}

		out := viper.GetString(outputFlag)
		if out == "" {
			p, err := deb.Parse(bytes.NewReader(buf.Bytes()))
			if err != nil {
				return err
			}
			out = p.Filename()
		}
		if err := afero.WriteFile(fsys, out, buf.Bytes(), 0644); err != nil {
			return err
		}
		logger.Info("package written", "path", out, "size", buf.Len())
		return nil
	},
}

func init() {
	packCmd.Flags().StringP(manifestFlag, "m", "debian.yaml", "Package definition file")
	packCmd.Flags().StringP(outputFlag, "o", "", "Package file to write")
	packCmd.Flags().StringToStringP(defineFlag, "D", nil, "Template variable (KEY=VALUE), may be repeated")
	packCmd.Flags().String(levelFlag, string(compression.LevelBalanced), "Compression level: fastest, balanced or smallest")

	rootCmd.AddCommand(packCmd)
}
