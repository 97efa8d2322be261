package progress

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	snaps  []Snapshot
	closed bool
}

func (s *recordingSink) Consume(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snaps...)
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// quietTracker never renders on its own; only Close flushes.
func quietTracker(t *testing.T, cfg Config, sinks ...Sink) *Tracker {
	t.Helper()
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	tr, err := Initialize(cfg, sinks...)
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr
}

const base = 0x1000

// TestTrackerContiguousRun verifies sixteen adjacent successful pages coalesce into one run.
func TestTrackerContiguousRun(t *testing.T) {
	t.Parallel()

	tr := quietTracker(t, Config{BaseAddress: base, MaxAddress: base + 16*PageSize - 1})
	require.Equal(t, uint64(16), tr.Total())

	for i := uint64(1); i <= 16; i++ {
		tr.Update(base+i*PageSize, 1, 0)
	}

	require.Equal(t, []Run{{Base: base, Pages: 16}}, tr.MemMap())
	snap := tr.Snapshot()
	require.Equal(t, uint64(16), snap.Success)
	require.Zero(t, snap.Fail)
	require.Equal(t, uint64(base+16*PageSize), snap.Address)
}

// TestTrackerGapSplitsRun verifies a failed page splits the memory map.
func TestTrackerGapSplitsRun(t *testing.T) {
	t.Parallel()

	tr := quietTracker(t, Config{BaseAddress: base, MaxAddress: base + 16*PageSize - 1})
	for i := uint64(0); i < 16; i++ {
		addr := base + (i+1)*PageSize
		if i == 8 {
			tr.Update(addr, 0, 1)
			continue
		}
		tr.Update(addr, 1, 0)
	}

	require.Equal(t, []Run{
		{Base: base, Pages: 8},
		{Base: base + 9*PageSize, Pages: 7},
	}, tr.MemMap())
	snap := tr.Snapshot()
	require.Equal(t, uint64(15), snap.Success)
	require.Equal(t, uint64(1), snap.Fail)
}

// TestTrackerMultiPageUpdates verifies chunked updates coalesce on their start address.
func TestTrackerMultiPageUpdates(t *testing.T) {
	t.Parallel()

	tr := quietTracker(t, Config{BaseAddress: 0, MaxAddress: 64*PageSize - 1})
	tr.Update(16*PageSize, 16, 0)
	tr.Update(32*PageSize, 16, 0)
	tr.Update(48*PageSize, 4, 12)
	tr.Update(64*PageSize, 16, 0)

	require.Equal(t, []Run{
		{Base: 0, Pages: 32},
		{Base: 44 * PageSize, Pages: 20},
	}, tr.MemMap())
}

// TestTrackerCapacityCeiling verifies runs stop being recorded at capacity while totals continue.
func TestTrackerCapacityCeiling(t *testing.T) {
	t.Parallel()

	tr := quietTracker(t, Config{BaseAddress: 0, MaxAddress: 100*PageSize - 1, MemMapCapacity: 4})
	for i := uint64(0); i < 10; i++ {
		// every other page succeeds, so no two successes are adjacent
		tr.Update((2*i+1)*PageSize, 1, 0)
		tr.Update((2*i+2)*PageSize, 0, 1)
	}

	runs := tr.MemMap()
	require.Len(t, runs, 4)
	require.Equal(t, Run{Base: 6 * PageSize, Pages: 1}, runs[3])
	snap := tr.Snapshot()
	require.True(t, snap.MemMapFull)
	require.Equal(t, uint64(10), snap.Success)
	require.Equal(t, uint64(10), snap.Fail)
}

func TestTrackerNilSafe(t *testing.T) {
	t.Parallel()

	var tr *Tracker
	tr.Update(PageSize, 1, 0)
	tr.Close()
}

func TestInitializeRejectsCapacity(t *testing.T) {
	t.Parallel()

	_, err := Initialize(Config{MemMapCapacity: -1})
	require.ErrorIs(t, err, ErrResourceAllocation)
	_, err = Initialize(Config{MemMapCapacity: MaxMemMapCapacity + 1})
	require.ErrorIs(t, err, ErrResourceAllocation)
}

// TestTrackerRendersInPlace verifies the reporter paints frames and repositions the cursor.
func TestTrackerRendersInPlace(t *testing.T) {
	t.Parallel()

	out := &syncBuffer{}
	tr, err := Initialize(Config{
		BaseAddress:   base,
		MaxAddress:    base + 16*PageSize - 1,
		Action:        "Dumping memory",
		ShowMemoryMap: true,
		Interval:      5 * time.Millisecond,
		Output:        out,
	})
	require.NoError(t, err)
	defer tr.Close()

	tr.Update(base+PageSize, 1, 0)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Pages read:     1 / 16 (6%)")
	}, time.Second, 5*time.Millisecond)
	require.NotContains(t, out.String(), cursorUpWithMap)

	tr.Update(base+2*PageSize, 1, 0)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Pages read:     2 / 16 (13%)")
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, out.String(), cursorUpWithMap)
	require.Contains(t, out.String(), " Current Action: Dumping memory")
}

// TestTrackerCloseFlushesFinalFrame ensures Close renders pending state and closes sinks.
func TestTrackerCloseFlushesFinalFrame(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	tr, err := Initialize(Config{
		BaseAddress: 0,
		MaxAddress:  4*PageSize - 1,
		Interval:    time.Hour,
		Output:      io.Discard,
		ID:          "scan-1",
	}, sink)
	require.NoError(t, err)

	tr.Update(4*PageSize, 3, 1)
	tr.Close()

	select {
	case <-tr.Done():
	default:
		t.Fatal("reporter still running after Close")
	}
	snaps := sink.Snapshots()
	require.Len(t, snaps, 1)
	require.Equal(t, uint64(3), snaps[0].Success)
	require.Equal(t, uint64(1), snaps[0].Fail)
	require.Equal(t, "scan-1", snaps[0].ID)
	require.True(t, sink.Closed())

	tr.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Consume(context.Context, Snapshot) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

// TestTrackerCloseBounded verifies Close returns even when the reporter is stuck.
func TestTrackerCloseBounded(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	sink := &blockingSink{release: make(chan struct{})}
	tr, err := Initialize(Config{
		BaseAddress:  0,
		MaxAddress:   PageSize - 1,
		Interval:     time.Hour,
		CloseTimeout: 20 * time.Millisecond,
		Output:       io.Discard,
		Logger:       zap.New(core),
	}, sink)
	require.NoError(t, err)

	start := time.Now()
	tr.Close()
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1, logs.FilterMessage("page progress reporter did not stop in time").Len())

	close(sink.release)
	require.Eventually(t, func() bool {
		select {
		case <-tr.Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

// TestTrackerSnapshotElapsed verifies elapsed time comes from the configured clock.
func TestTrackerSnapshotElapsed(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	tr := quietTracker(t, Config{BaseAddress: 0, MaxAddress: 1024*PageSize - 1, Clock: clk})
	tr.Update(512*PageSize, 512, 0)
	clk.Advance(1500 * time.Millisecond)

	snap := tr.Snapshot()
	require.Equal(t, 1500*time.Millisecond, snap.Elapsed)
	speed, unit := snap.Speed()
	require.Equal(t, uint64(1024), speed)
	require.Equal(t, "kB/s", unit)
}

func TestTrackerConcurrentSnapshot(t *testing.T) {
	t.Parallel()

	tr := quietTracker(t, Config{BaseAddress: 0, MaxAddress: 4096*PageSize - 1, Interval: time.Millisecond})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = tr.Snapshot()
		}
	}()
	for i := uint64(1); i <= 4096; i++ {
		tr.Update(i*PageSize, i%2, (i+1)%2)
	}
	<-done
	snap := tr.Snapshot()
	require.Equal(t, uint64(4096), snap.Done())
}

// TestTrackerElapsedNeverNegative keeps throughput sane when the clock steps back.
func TestTrackerElapsedNeverNegative(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	tr := quietTracker(t, Config{BaseAddress: 0, MaxAddress: 1<<20*PageSize - 1, Clock: clk})
	tr.Update(1<<18*PageSize, 1<<18, 0)
	clk.Advance(-2 * time.Second)

	snap := tr.Snapshot()
	require.Equal(t, time.Duration(0), snap.Elapsed)
	speed, unit := snap.Speed()
	require.Equal(t, uint64(1024), speed)
	require.Equal(t, "MB/s", unit)
}

type deadlineSink struct {
	deadlines chan time.Time
}

func (s *deadlineSink) Consume(ctx context.Context, _ Snapshot) error {
	d, _ := ctx.Deadline()
	s.deadlines <- d
	<-ctx.Done()
	return ctx.Err()
}

func (*deadlineSink) Close(context.Context) error { return nil }

// TestTrackerFinalFlushHonorsCloseDeadline ensures a slow sink cannot keep the
// reporter running long past Close.
func TestTrackerFinalFlushHonorsCloseDeadline(t *testing.T) {
	t.Parallel()

	sink := &deadlineSink{deadlines: make(chan time.Time, 1)}
	tr, err := Initialize(Config{
		BaseAddress:  0,
		MaxAddress:   PageSize - 1,
		Interval:     time.Hour,
		CloseTimeout: 50 * time.Millisecond,
		SinkTimeout:  time.Hour,
		Output:       io.Discard,
	}, sink)
	require.NoError(t, err)

	start := time.Now()
	tr.Close()

	deadline := <-sink.deadlines
	require.True(t, deadline.Before(start.Add(time.Second)), "sink deadline %v not bounded by Close", deadline)
	require.Eventually(t, func() bool {
		select {
		case <-tr.Done():
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}
