package callstat

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/acquire"
	"github.com/JakeFAU/memscope/internal/clock/system"
)

// TickSource supplies the monotonic counter used to time calls. Ticks must
// never return zero; zero is reserved for "instrumentation disabled".
type TickSource interface {
	Ticks() uint64
	Frequency() uint64
}

// ForeignSource supplies the acquisition layer's statistics block that is
// appended to the report.
type ForeignSource interface {
	Statistics() (*acquire.Statistics, error)
}

// Stat is a point-in-time copy of one kind's counters.
type Stat struct {
	Kind  OperationKind
	Name  string
	Count uint64
	Ticks uint64
}

type callStat struct {
	count atomic.Uint64
	ticks atomic.Uint64
}

type table [KindCount]callStat

// Registry is the per-engine call statistics table. The zero value is not
// usable; construct with New. A nil *Registry behaves as permanently disabled.
//
// The table is published through an atomic pointer. End loads it once, so a
// concurrent SetEnabled(false) retires the table without invalidating the
// caller's reference; counts added to a retired table are dropped.
type Registry struct {
	table    atomic.Pointer[table]
	toggleMu sync.Mutex
	clock    TickSource
	foreign  ForeignSource
	logger   *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTicks overrides the tick source.
func WithTicks(ts TickSource) Option {
	return func(r *Registry) {
		if ts != nil {
			r.clock = ts
		}
	}
}

// WithForeign sets the acquisition-layer statistics provider merged into Report.
func WithForeign(src ForeignSource) Option {
	return func(r *Registry) {
		r.foreign = src
	}
}

// WithLogger sets the logger used for enable/disable transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a disabled Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		clock:  system.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetForeign replaces the acquisition-layer statistics provider.
// It is meant for the engine's setup window, like SetEnabled.
func (r *Registry) SetForeign(src ForeignSource) {
	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()
	r.foreign = src
}

// SetEnabled allocates a zeroed table when enabling and drops it when
// disabling. Requests for the current state are no-ops.
func (r *Registry) SetEnabled(enabled bool) {
	if r == nil {
		return
	}
	r.toggleMu.Lock()
	defer r.toggleMu.Unlock()
	if enabled == (r.table.Load() != nil) {
		return
	}
	if enabled {
		r.table.Store(new(table))
	} else {
		r.table.Store(nil)
	}
	r.logger.Info("call statistics toggled", zap.Bool("enabled", enabled))
}

// IsEnabled reports whether a table is present.
func (r *Registry) IsEnabled() bool {
	return r != nil && r.table.Load() != nil
}

// Frequency returns the tick source's ticks per second.
func (r *Registry) Frequency() uint64 {
	if r == nil {
		return system.TicksPerSecond
	}
	return r.clock.Frequency()
}

// Start returns the current tick count, or 0 when disabled.
func (r *Registry) Start() uint64 {
	if r == nil || r.table.Load() == nil {
		return 0
	}
	return r.clock.Ticks()
}

// End accounts one call of kind that began at start and returns the elapsed
// ticks. It returns 0 without touching any counter when the registry is
// disabled, kind is out of range, or start is 0.
func (r *Registry) End(kind OperationKind, start uint64) uint64 {
	if r == nil {
		return 0
	}
	t := r.table.Load()
	if t == nil || kind > KindMax || start == 0 {
		return 0
	}
	elapsed := r.clock.Ticks() - start
	s := &t[kind]
	s.count.Add(1)
	s.ticks.Add(elapsed)
	return elapsed
}

// Snapshot copies every kind's counters. All values are zero when disabled.
func (r *Registry) Snapshot() []Stat {
	out := make([]Stat, KindCount)
	var t *table
	if r != nil {
		t = r.table.Load()
	}
	for i := range out {
		kind := OperationKind(i)
		out[i] = Stat{Kind: kind, Name: kind.Name()}
		if t != nil {
			out[i].Count = t[i].count.Load()
			out[i].Ticks = t[i].ticks.Load()
		}
	}
	return out
}

// foreignStatistics returns the acquisition block when it is present and valid.
func (r *Registry) foreignStatistics() *acquire.Statistics {
	r.toggleMu.Lock()
	src := r.foreign
	r.toggleMu.Unlock()
	if src == nil {
		return nil
	}
	stats, err := src.Statistics()
	if err != nil {
		r.logger.Debug("acquisition statistics unavailable", zap.Error(err))
		return nil
	}
	if err := stats.Valid(); err != nil {
		r.logger.Debug("acquisition statistics rejected", zap.Error(err))
		return nil
	}
	return stats
}
