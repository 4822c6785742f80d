package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	verboseFlag = "verbose"
	outputFlag  = "output"
	defineFlag  = "define"
	gpgKeyFlag  = "gpg-key"
)

var (
	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "debtool"})

	// fsys is the filesystem every command works on.
	fsys afero.Fs = afero.NewOsFs()
)

var rootCmd = &cobra.Command{
	Use:   "debtool",
	Short: "Build and inspect Debian packages",
	Long: `debtool builds Debian binary packages from declarative definitions,
inspects existing packages and publishes them in flat APT repositories.

Every flag can also be set with a DEBTOOL_ environment variable, for
instance DEBTOOL_GPG_KEY for --gpg-key.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix("debtool")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		logger.SetOutput(cmd.ErrOrStderr())
		if viper.GetBool(verboseFlag) {
			logger.SetLevel(log.DebugLevel)
		} else {
			logger.SetLevel(log.InfoLevel)
		}
		return nil
	},
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP(verboseFlag, "v", false, "Log every step")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	viper.AutomaticEnv()
}

// listener logs library events at debug level.
func listener(e fmt.Stringer) {
	logger.Debug(fmt.Sprintf("%T", e), "event", e.String())
}
