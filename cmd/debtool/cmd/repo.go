package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etnz/debstream/manifest"
)

var repoCmd = &cobra.Command{
	Use:   "repo repository.yaml",
	Short: "Build every package of a repository definition and publish them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		r, err := manifest.LoadRepository(fsys, args[0])
		if err != nil {
			return err
		}
		if err := r.Compile(viper.GetString(gpgKeyFlag), listener); err != nil {
			return err
		}
		logger.Info("repository written", "path", r.Path)
		return nil
	},
}

func init() {
	repoCmd.Flags().String(gpgKeyFlag, "", "Armored GPG private key used to sign InRelease")

	rootCmd.AddCommand(repoCmd)
}
