package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etnz/debstream/apt"
	"github.com/etnz/debstream/compression"
	"github.com/etnz/debstream/deb"
)

const (
	archiveFlag       = "archive"
	formatsFlag       = "formats"
	originFlag        = "origin"
	labelFlag         = "label"
	suiteFlag         = "suite"
	codenameFlag      = "codename"
	architecturesFlag = "architectures"
	componentsFlag    = "components"
	descriptionFlag   = "description"
)

var indexCmd = &cobra.Command{
	Use:   "index file.deb...",
	Short: "Publish packages in a flat APT repository",
	Long: `Publish packages in a flat APT repository.

The packages are copied into the output directory next to the Packages,
Release and, when a GPG private key is given, InRelease files. Packages
already published in the directory are kept. With --archive, the repository
is written as a single tar.gz file instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		dir := viper.GetString(outputFlag)
		idx := apt.NewIndex(apt.ArchiveInfo{})
		if ok, err := afero.DirExists(fsys, dir); err != nil {
			return err
		} else if ok && viper.GetString(archiveFlag) == "" {
			if idx, err = apt.OpenDir(fsys, dir); err != nil {
				return err
			}
			logger.Debug("repository loaded", "path", dir, "packages", idx.Len())
		}

		info := &idx.Info
		for flag, field := range map[string]*string{
			originFlag:        &info.Origin,
			labelFlag:         &info.Label,
			suiteFlag:         &info.Suite,
			codenameFlag:      &info.Codename,
			architecturesFlag: &info.Architectures,
			componentsFlag:    &info.Components,
			descriptionFlag:   &info.Description,
		} {
			if v := viper.GetString(flag); v != "" {
				*field = v
			}
		}
		idx.GPGKey = viper.GetString(gpgKeyFlag)
		idx.Formats = viper.GetStringSlice(formatsFlag)
		idx.Listener = listener

		for _, path := range args {
			if err := idx.AddFile(fsys, path, deb.WithListener(listener)); err != nil {
				return err
			}
			logger.Info("package added", "path", path)
		}

		if archive := viper.GetString(archiveFlag); archive != "" {
			f, err := fsys.Create(archive)
			if err != nil {
				return err
			}
			n, err := idx.WriteTo(f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			logger.Info("repository archive written", "path", archive, "size", n, "packages", idx.Len())
			return nil
		}

		if err := idx.WriteToDir(fsys, dir); err != nil {
			return err
		}
		logger.Info("repository written", "path", dir, "packages", idx.Len(), "signed", idx.GPGKey != "")
		return nil
	},
}

func init() {
	indexCmd.Flags().StringP(outputFlag, "o", "repo", "Repository directory")
	indexCmd.Flags().String(archiveFlag, "", "Write the repository as a tar.gz file instead of a directory")
	indexCmd.Flags().StringSlice(formatsFlag, []string{compression.FormatGzip}, "Compressed variants of the Packages index")
	indexCmd.Flags().String(gpgKeyFlag, "", "Armored GPG private key used to sign InRelease")
	indexCmd.Flags().String(originFlag, "", "Release Origin field")
	indexCmd.Flags().String(labelFlag, "", "Release Label field")
	indexCmd.Flags().String(suiteFlag, "", "Release Suite field")
	indexCmd.Flags().String(codenameFlag, "", "Release Codename field")
	indexCmd.Flags().String(architecturesFlag, "", "Release Architectures field")
	indexCmd.Flags().String(componentsFlag, "", "Release Components field")
	indexCmd.Flags().String(descriptionFlag, "", "Release Description field")

	rootCmd.AddCommand(indexCmd)
}
