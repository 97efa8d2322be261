// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/acquire"
	"github.com/JakeFAU/memscope/internal/callstat"
	"github.com/JakeFAU/memscope/internal/clock/system"
	"github.com/JakeFAU/memscope/internal/config"
	"github.com/JakeFAU/memscope/internal/logging"
	"github.com/JakeFAU/memscope/internal/scan"
)

// App holds the shared services for one process: the logger, the single call
// statistics registry and, once opened, the acquisition device.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	stats  *callstat.Registry
	device *acquire.FileDevice
	file   *os.File
}

// NewApp builds the services described by cfg. When logger is nil one is
// built from cfg.Logging.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		built, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		logger = built
	}
	stats := callstat.New(
		callstat.WithTicks(system.New()),
		callstat.WithLogger(logger.Named("callstat")),
	)
	stats.SetEnabled(cfg.Statistics.Enabled)
	return &App{
		cfg:    cfg,
		logger: logger,
		stats:  stats,
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Stats returns the process-wide call statistics registry.
func (a *App) Stats() *callstat.Registry {
	return a.stats
}

// Device returns the open acquisition device, or nil.
func (a *App) Device() *acquire.FileDevice {
	return a.device
}

// OpenDevice opens a raw memory dump as the acquisition device and registers
// it as the source of foreign call statistics.
func (a *App) OpenDevice(path string) (*acquire.FileDevice, error) {
	if a.device != nil {
		return nil, errors.New("acquisition device already open")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat dump: %w", err)
	}
	a.file = f
	a.device = acquire.NewFileDevice(f, info.Size())
	a.stats.SetForeign(acquire.StatisticsSource{Device: a.device})
	a.logger.Info("acquisition device opened",
		zap.String("path", path),
		zap.Int64("size", info.Size()))
	return a.device, nil
}

// ScanConfig maps the progress and scan configuration onto scan.Config.
func (a *App) ScanConfig() scan.Config {
	return scan.Config{
		ChunkPages:     a.cfg.Scan.ChunkPages,
		KMD:            a.cfg.KMD(),
		ShowMemoryMap:  a.cfg.Progress.ShowMemoryMap,
		Interval:       a.cfg.Progress.Interval,
		CloseTimeout:   a.cfg.Progress.CloseTimeout,
		MemMapCapacity: a.cfg.Progress.MemMapCapacity,
	}
}

// Close shuts down the device and flushes the logger. It is called by a Cobra
// hook after the command finishes.
func (a *App) Close() {
	if a.device != nil {
		a.stats.SetForeign(nil)
		if err := a.device.Close(); err != nil {
			a.logger.Warn("close acquisition device failed", zap.Error(err))
		}
		if err := a.file.Close(); err != nil {
			a.logger.Warn("close dump failed", zap.Error(err))
		}
		a.device = nil
	}
	_ = a.logger.Sync()
}
