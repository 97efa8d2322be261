// Package cmd defines and implements the CLI commands for the memscope executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/memscope/internal/app"
	"github.com/JakeFAU/memscope/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can inject a
// quieter App.
var newApp = func(cfg config.Config) (*app.App, error) {
	return app.NewApp(cfg, nil)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "memscope",
		Short: "Memory acquisition with call statistics and live page progress.",
		Long: `memscope reads physical memory through an acquisition device, times every
entry point into the engine and the device, and shows the progress of bulk
reads as a live console display with a map of the readable memory.`,
		SilenceUsage: true,

		// Builds the App once config is known and before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment overrides use the MEMSCOPE_ prefix)")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReportCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memscope: %v\n", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// parseAddress accepts decimal or 0x-prefixed hexadecimal addresses.
func parseAddress(flag, raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s: invalid address %q", flag, raw)
	}
	return v, nil
}
