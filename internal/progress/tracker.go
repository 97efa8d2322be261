package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/clock/system"
)

// Clock supplies the time elapsed time and throughput are measured with.
// Readings should carry a monotonic component.
type Clock interface {
	Now() time.Time
}

// Config controls a Tracker.
//   - BaseAddress, MaxAddress: inclusive address range of the bulk read.
//   - Action: label shown as the current action.
//   - KMD: access mode flag (kernel module assisted DMA vs normal).
//   - ShowMemoryMap: render the run list above the status block.
//   - Interval: reporter wake interval (default 100ms).
//   - CloseTimeout: longest Close waits for the reporter (default 200ms).
//   - MemMapCapacity: maximum number of runs recorded (default 2048).
//   - SinkTimeout: per-sink timeout while forwarding a snapshot (default 1s);
//     after Close the sinks only get what is left of CloseTimeout.
//   - Output: console writer (default os.Stdout).
//   - Clock: time source (default system clock).
//   - Logger: optional structured logger used for lifecycle events.
//   - ID: optional identifier forwarded to sinks.
type Config struct {
	BaseAddress    uint64
	MaxAddress     uint64
	Action         string
	KMD            bool
	ShowMemoryMap  bool
	Interval       time.Duration
	CloseTimeout   time.Duration
	MemMapCapacity int
	SinkTimeout    time.Duration
	Output         io.Writer
	Clock          Clock
	Logger         *zap.Logger
	ID             string
}

const (
	defaultInterval       = 100 * time.Millisecond
	defaultCloseTimeout   = 200 * time.Millisecond
	defaultMemMapCapacity = 2048
	defaultSinkTimeout    = time.Second

	// MaxMemMapCapacity bounds MemMapCapacity.
	MaxMemMapCapacity = 1 << 20
)

// ErrResourceAllocation is returned when a Tracker cannot be allocated.
var ErrResourceAllocation = errors.New("progress: resource allocation failed")

type run struct {
	base  atomic.Uint64
	pages atomic.Uint32
}

// Tracker holds the state of one bulk read. Update must only be called from
// a single goroutine; the reporter reads the same fields concurrently.
type Tracker struct {
	cfg     Config
	total   uint64
	started time.Time
	logger  *zap.Logger
	sinks   []Sink
	console console

	address atomic.Uint64
	success atomic.Uint64
	fail    atomic.Uint64
	dirty   atomic.Bool

	runs    []run
	runsLen atomic.Int64

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	// deadline is the Close deadline in unix nanoseconds; zero while open.
	deadline  atomic.Int64
	abandoned atomic.Bool
}

// Initialize allocates a Tracker for the inclusive range [BaseAddress,
// MaxAddress] and starts its reporter goroutine.
func Initialize(cfg Config, sinks ...Sink) (*Tracker, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.MemMapCapacity == 0 {
		cfg.MemMapCapacity = defaultMemMapCapacity
	}
	if cfg.MemMapCapacity < 0 || cfg.MemMapCapacity > MaxMemMapCapacity {
		return nil, fmt.Errorf("%w: memory map capacity %d", ErrResourceAllocation, cfg.MemMapCapacity)
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		cfg:     cfg,
		total:   (cfg.MaxAddress - cfg.BaseAddress + 1) / PageSize,
		started: cfg.Clock.Now(),
		logger:  logger,
		sinks:   append([]Sink(nil), sinks...),
		console: console{w: cfg.Output, showMap: cfg.ShowMemoryMap},
		runs:    make([]run, cfg.MemMapCapacity),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	t.address.Store(cfg.BaseAddress)
	go t.run()
	logger.Debug("page progress started",
		zap.String("action", cfg.Action),
		zap.Uint64("total_pages", t.total))
	return t, nil
}

// Total returns the number of pages in the tracked range.
func (t *Tracker) Total() uint64 {
	return t.total
}

// Update records that the read has reached addr, with successPages and
// failPages processed since the previous call. A successful extent ending at
// addr either extends the last memory-map run or starts a new one; new runs
// are dropped once the map is full. Update never blocks.
func (t *Tracker) Update(addr, successPages, failPages uint64) {
	if t == nil {
		return
	}
	t.address.Store(addr)
	t.success.Add(successPages)
	t.fail.Add(failPages)
	if successPages > 0 {
		t.record(addr-successPages*PageSize, successPages)
	}
	t.dirty.Store(true)
}

func (t *Tracker) record(base, pages uint64) {
	n := int(t.runsLen.Load())
	if n > 0 {
		last := &t.runs[n-1]
		if last.base.Load()+uint64(last.pages.Load())*PageSize == base {
			last.pages.Add(uint32(pages))
			return
		}
	}
	if n == len(t.runs) {
		return
	}
	r := &t.runs[n]
	r.base.Store(base)
	r.pages.Store(uint32(pages))
	t.runsLen.Store(int64(n + 1))
}

// MemMap returns a copy of the recorded runs.
func (t *Tracker) MemMap() []Run {
	n := int(t.runsLen.Load())
	out := make([]Run, n)
	for i := range out {
		out[i] = Run{Base: t.runs[i].base.Load(), Pages: t.runs[i].pages.Load()}
	}
	return out
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	runs := t.MemMap()
	return Snapshot{
		ID:         t.cfg.ID,
		Action:     t.cfg.Action,
		KMD:        t.cfg.KMD,
		Address:    t.address.Load(),
		Total:      t.total,
		Success:    t.success.Load(),
		Fail:       t.fail.Load(),
		Elapsed:    t.elapsed(),
		Runs:       runs,
		MemMapFull: len(runs) == len(t.runs),
	}
}

func (t *Tracker) elapsed() time.Duration {
	d := t.cfg.Clock.Now().Sub(t.started)
	if d < 0 {
		return 0
	}
	return d
}

// Done is closed once the reporter goroutine has exited.
func (t *Tracker) Done() <-chan struct{} {
	return t.doneCh
}

// Close stops the reporter after it renders the final state and waits for it
// up to CloseTimeout. It is safe on a nil Tracker and on repeated calls.
func (t *Tracker) Close() {
	if t == nil {
		return
	}
	t.closeOnce.Do(func() {
		t.dirty.Store(true)
		t.deadline.Store(time.Now().Add(t.cfg.CloseTimeout).UnixNano())
		close(t.stopCh)
		timer := time.NewTimer(t.cfg.CloseTimeout)
		defer timer.Stop()
		select {
		case <-t.doneCh:
			t.logger.Debug("page progress closed", zap.String("action", t.cfg.Action))
		case <-timer.C:
			t.abandoned.Store(true)
			t.logger.Warn("page progress reporter did not stop in time",
				zap.String("action", t.cfg.Action),
				zap.Duration("timeout", t.cfg.CloseTimeout))
		}
	})
}

func (t *Tracker) run() {
	defer close(t.doneCh)
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.flush()
		case <-t.stopCh:
			t.flush()
			t.closeSinks()
			return
		}
	}
}

// flush renders one frame when an Update (or Close) happened since the last one.
func (t *Tracker) flush() {
	if !t.dirty.CompareAndSwap(true, false) {
		return
	}
	snap := t.Snapshot()
	if !t.abandoned.Load() {
		if err := t.console.render(snap); err != nil {
			t.logger.Warn("page progress render failed", zap.Error(err))
		}
	}
	for _, sink := range t.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := t.sinkContext()
		if err := sink.Consume(ctx, snap); err != nil {
			t.logger.Warn("page progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

// sinkContext bounds one sink call by SinkTimeout and, once Close has been
// called, by the Close deadline.
func (t *Tracker) sinkContext() (context.Context, context.CancelFunc) {
	deadline := time.Now().Add(t.cfg.SinkTimeout)
	if closeBy := t.deadline.Load(); closeBy != 0 && closeBy < deadline.UnixNano() {
		deadline = time.Unix(0, closeBy)
	}
	return context.WithDeadline(context.Background(), deadline)
}

func (t *Tracker) closeSinks() {
	ctx, cancel := t.sinkContext()
	defer cancel()
	for _, sink := range t.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			t.logger.Warn("page progress sink close failed", zap.Error(err))
		}
	}
}
