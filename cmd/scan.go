package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/memscope/internal/progress"
	"github.com/JakeFAU/memscope/internal/progress/sinks"
	"github.com/JakeFAU/memscope/internal/scan"
)

type scanOptions struct {
	file        string
	base        string
	max         string
	action      string
	noMemMap    bool
	logProgress bool
}

// newScanCmd creates the 'scan' subcommand, which reads a page range of a raw
// memory dump with the live progress display and prints the call statistics
// report once done.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read a page range from a memory dump",
		Long: `Reads every page in [--base, --max] from a raw memory dump, retrying failed
chunks page by page. Progress and the map of readable memory are repainted in
place on stdout; the call statistics report is printed when the scan ends.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.file, "file", "", "raw memory dump to read (required)")
	cmd.Flags().StringVar(&opts.base, "base", "0", "first address to read")
	cmd.Flags().StringVar(&opts.max, "max", "", "last address to read (default: end of the dump)")
	cmd.Flags().StringVar(&opts.action, "action", "Reading memory", "action label shown in the progress display")
	cmd.Flags().BoolVar(&opts.noMemMap, "no-memmap", false, "hide the memory map")
	cmd.Flags().BoolVar(&opts.logProgress, "log-progress", false, "also log every progress frame")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	dev, err := appInstance.OpenDevice(opts.file)
	if err != nil {
		return err
	}
	if dev.Size() == 0 {
		return errors.New("memory dump is empty")
	}
	base, err := parseAddress("base", opts.base)
	if err != nil {
		return err
	}
	maxAddr := uint64(dev.Size()) - 1
	if opts.max != "" {
		if maxAddr, err = parseAddress("max", opts.max); err != nil {
			return err
		}
	}
	if maxAddr < base {
		return fmt.Errorf("--max 0x%x is below --base 0x%x", maxAddr, base)
	}

	cfg := appInstance.ScanConfig()
	cfg.Action = opts.action
	cfg.Output = cmd.OutOrStdout()
	if opts.noMemMap {
		cfg.ShowMemoryMap = false
	}
	var progressSinks []progress.Sink
	if opts.logProgress {
		progressSinks = append(progressSinks, sinks.NewLogSink(logger.Named("progress")))
	}

	scanner, err := scan.New(dev, appInstance.Stats(), cfg, logger.Named("scan"), progressSinks...)
	if err != nil {
		return err
	}
	res, runErr := scanner.Run(cmd.Context(), base, maxAddr)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nScan %s: read %s, %d pages failed, %d readable extents in %s\n\n",
		res.ID,
		humanize.IBytes(res.Success*progress.PageSize),
		res.Fail,
		len(res.Runs),
		res.Elapsed.Round(time.Millisecond))
	fmt.Fprint(out, appInstance.Stats().String())
	return runErr
}
