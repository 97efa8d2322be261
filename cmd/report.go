package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// newReportCmd creates the 'report' subcommand, which prints the call
// statistics report. With --file the device's own statistics are appended.
func newReportCmd() *cobra.Command {
	var (
		file     string
		sizeOnly bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the call statistics report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if file != "" {
				if _, err := appInstance.OpenDevice(file); err != nil {
					return err
				}
			}
			stats := appInstance.Stats()
			out := cmd.OutOrStdout()
			if sizeOnly {
				size := stats.Report(nil)
				fmt.Fprintf(out, "%d (%s)\n", size, humanize.Bytes(uint64(size)))
				return nil
			}
			buf := make([]byte, stats.Report(nil))
			n := stats.Report(buf)
			_, err = out.Write(buf[:n])
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "raw memory dump whose device statistics to include")
	cmd.Flags().BoolVar(&sizeOnly, "size", false, "print only the report size in bytes")
	return cmd
}
