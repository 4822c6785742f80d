package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/etnz/debstream/ar"
	"github.com/etnz/debstream/compression"
)

const scanFlag = "scan"

var listCmd = &cobra.Command{
	Use:   "list file.deb",
	Short: "List the ar members of a package",
	Long: `List the ar members of a package with their size, mode and, for
compressed members, the detected compression.

With --scan, garbage between members is skipped instead of failing, which
recovers the readable members of a damaged file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		f, err := fsys.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		var opts []ar.Option
		if viper.GetBool(scanFlag) {
			opts = append(opts, ar.WithScan())
		}
		r := ar.NewReader(f, opts...)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODE\tMODIFIED\tFORMAT")
		for {
			hdr, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				w.Flush()
				return err
			}
			format := "-"
			if zr, err := compression.NewReader(r); err != nil {
				logger.Debug("sniffing member", "name", hdr.Name, "err", err)
				format = "?"
			} else {
				if zr.Format() != compression.FormatNone {
					format = zr.Format()
				}
				zr.Close()
			}
			fmt.Fprintf(w, "%s\t%d\t%o\t%s\t%s\n", hdr.Name, hdr.Size, hdr.Mode, hdr.ModTime.UTC().Format("2006-01-02 15:04:05"), format)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().Bool(scanFlag, false, "Skip garbage between members")

	rootCmd.AddCommand(listCmd)
}
