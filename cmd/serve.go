package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/acquire"
	"github.com/JakeFAU/memscope/internal/api"
	"github.com/JakeFAU/memscope/internal/app"
	"github.com/JakeFAU/memscope/internal/progress/sinks"
	"github.com/JakeFAU/memscope/internal/scan"
	"github.com/JakeFAU/memscope/internal/vfs"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the 'serve' subcommand, which exposes the statistics
// report, the enable toggle, background scans and Prometheus metrics over HTTP.
func newServeCmd() *cobra.Command {
	var (
		file string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve call statistics and scans over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if port == 0 {
				port = appInstance.Config().Server.Port
			}
			return runServe(cmd.Context(), appInstance, file, port)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "raw memory dump to attach for scans")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: server.port)")
	return cmd
}

func runServe(ctx context.Context, appInstance *app.App, file string, port int) error {
	logger := appInstance.Logger()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	objects := vfs.NewRegistry()
	scans, err := buildScanHandler(ctx, appInstance, file, objects, reg)
	if err != nil {
		return err
	}
	apiServer, err := api.NewServer(appInstance.Stats(), objects, scans, reg, logger.Named("api"))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	scans.Wait()
	logger.Info("shutdown complete")
	return nil
}

// buildScanHandler attaches file as the acquisition device and exposes it
// under /v1/objects/device/0. Without a file the scan routes answer 503.
func buildScanHandler(ctx context.Context, appInstance *app.App, file string, objects *vfs.Registry, reg prometheus.Registerer) (*api.ScanHandler, error) {
	if file == "" {
		return nil, nil
	}
	dev, err := appInstance.OpenDevice(file)
	if err != nil {
		return nil, err
	}
	objects.Register(vfs.ObjectDevice, acquire.DeviceRenderer{
		Device: dev,
		Size:   dev.Size(),
		Report: appInstance.Stats(),
	})
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, err
	}
	jobs := api.NewScanJobs()
	cfg := appInstance.ScanConfig()
	cfg.Action = "Scanning"
	cfg.Output = io.Discard
	scanner, err := scan.New(dev, appInstance.Stats(), cfg, appInstance.Logger().Named("scan"), jobs, promSink)
	if err != nil {
		return nil, err
	}
	return api.NewScanHandler(ctx, scanner, jobs, appInstance.Logger().Named("scan")), nil
}
