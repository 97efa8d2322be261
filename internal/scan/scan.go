// Package scan performs bulk page reads over an acquisition device. Each
// device call is timed in the call statistics registry and every step is
// reported to a progress tracker.
package scan

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/acquire"
	"github.com/JakeFAU/memscope/internal/callstat"
	"github.com/JakeFAU/memscope/internal/id/uuid"
	"github.com/JakeFAU/memscope/internal/progress"
)

const (
	defaultChunkPages = 16
	// MaxChunkPages bounds Config.ChunkPages.
	MaxChunkPages = 4096
)

// Config controls a Scanner.
type Config struct {
	Action         string
	ChunkPages     int
	KMD            bool
	ShowMemoryMap  bool
	Interval       time.Duration
	CloseTimeout   time.Duration
	MemMapCapacity int
	Output         io.Writer
}

// Result summarizes a finished scan.
type Result struct {
	ID      string
	Total   uint64
	Success uint64
	Fail    uint64
	Runs    []progress.Run
	Elapsed time.Duration
}

// Scanner reads page ranges from a Device.
type Scanner struct {
	dev    acquire.Device
	stats  *callstat.Registry
	cfg    Config
	sinks  []progress.Sink
	logger *zap.Logger
}

// New builds a Scanner. stats may be nil or disabled.
func New(dev acquire.Device, stats *callstat.Registry, cfg Config, logger *zap.Logger, sinks ...progress.Sink) (*Scanner, error) {
	if dev == nil {
		return nil, fmt.Errorf("scan: device is required")
	}
	if cfg.ChunkPages == 0 {
		cfg.ChunkPages = defaultChunkPages
	}
	if cfg.ChunkPages < 0 || cfg.ChunkPages > MaxChunkPages {
		return nil, fmt.Errorf("scan: chunk pages %d out of range [1, %d]", cfg.ChunkPages, MaxChunkPages)
	}
	if cfg.Action == "" {
		cfg.Action = "Reading memory"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		dev:    dev,
		stats:  stats,
		cfg:    cfg,
		sinks:  sinks,
		logger: logger,
	}, nil
}

// NewID returns a time-ordered scan identifier.
func NewID() (string, error) {
	id, err := uuid.NewID()
	if err != nil {
		return "", fmt.Errorf("generate scan id: %w", err)
	}
	return id, nil
}

// Run reads every page in the inclusive range [base, maxAddr] under a fresh
// scan id. See RunWithID.
func (s *Scanner) Run(ctx context.Context, base, maxAddr uint64) (Result, error) {
	id, err := NewID()
	if err != nil {
		return Result{}, err
	}
	return s.RunWithID(ctx, id, base, maxAddr)
}

// RunWithID reads every page in the inclusive range [base, maxAddr]. A chunk
// that fails is retried one page at a time so that failures are page-accurate.
// Cancellation is checked between chunks; the partial result is returned
// along with the context error.
func (s *Scanner) RunWithID(ctx context.Context, id string, base, maxAddr uint64) (Result, error) {
	logger := s.logger.With(zap.String("scan_id", id))

	tr, err := progress.Initialize(progress.Config{
		BaseAddress:    base,
		MaxAddress:     maxAddr,
		Action:         s.cfg.Action,
		KMD:            s.cfg.KMD,
		ShowMemoryMap:  s.cfg.ShowMemoryMap,
		Interval:       s.cfg.Interval,
		CloseTimeout:   s.cfg.CloseTimeout,
		MemMapCapacity: s.cfg.MemMapCapacity,
		Output:         s.cfg.Output,
		Logger:         logger,
		ID:             id,
	}, s.sinks...)
	if err != nil {
		return Result{}, fmt.Errorf("start progress: %w", err)
	}

	total := tr.Total()
	buf := make([]byte, s.cfg.ChunkPages*progress.PageSize)
	addr := base
	var runErr error
	for done := uint64(0); done < total; {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("scan %s: %w", id, err)
			break
		}
		pages := min(uint64(s.cfg.ChunkPages), total-done)
		s.readChunk(tr, addr, buf[:pages*progress.PageSize])
		addr += pages * progress.PageSize
		done += pages
	}
	tr.Close()

	snap := tr.Snapshot()
	res := Result{
		ID:      id,
		Total:   total,
		Success: snap.Success,
		Fail:    snap.Fail,
		Runs:    snap.Runs,
		Elapsed: snap.Elapsed,
	}
	logger.Info("scan finished",
		zap.Uint64("pages_read", res.Success),
		zap.Uint64("pages_failed", res.Fail),
		zap.String("bytes_read", humanize.IBytes(res.Success*progress.PageSize)),
		zap.Int("memmap_runs", len(res.Runs)),
		zap.Duration("elapsed", res.Elapsed),
		zap.Error(runErr))
	return res, runErr
}

func (s *Scanner) readChunk(tr *progress.Tracker, addr uint64, p []byte) {
	pages := uint64(len(p) / progress.PageSize)
	if s.read(callstat.KindMemReadEx, addr, p) {
		tr.Update(addr+pages*progress.PageSize, pages, 0)
		return
	}
	if pages == 1 {
		tr.Update(addr+progress.PageSize, 0, 1)
		return
	}
	for i := uint64(0); i < pages; i++ {
		pageAddr := addr + i*progress.PageSize
		page := p[i*progress.PageSize : (i+1)*progress.PageSize]
		if s.read(callstat.KindMemReadScatter, pageAddr, page) {
			tr.Update(pageAddr+progress.PageSize, 1, 0)
		} else {
			tr.Update(pageAddr+progress.PageSize, 0, 1)
		}
	}
}

func (s *Scanner) read(kind callstat.OperationKind, addr uint64, p []byte) bool {
	start := s.stats.Start()
	_, err := s.dev.ReadPages(addr, p)
	s.stats.End(kind, start)
	return err == nil
}
