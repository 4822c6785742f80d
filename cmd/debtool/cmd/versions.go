package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etnz/debstream/control"
)

var compareCmd = &cobra.Command{
	Use:   "compare-versions a b",
	Short: "Compare two package versions",
	Long: `Compare two package versions with the dpkg ordering rules and print
-1, 0 or 1 when a is lower than, equal to or greater than b.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, v := range args {
			if _, err := control.ParseVersion(v); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), control.CompareVersions(args[0], args[1]))
		return nil
	},
}

var bumpCmd = &cobra.Command{
	Use:   "bump-version version",
	Short: "Print the next revision of a package version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := control.ParseVersion(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), control.BumpVersion(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd, bumpCmd)
}
