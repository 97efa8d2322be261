// Package system exercises the real-time clock adapter.
package system

import (
	"strings"
	"testing"
	"time"
)

// TestClockNowMonotonic ensures readings carry the monotonic clock, which
// elapsed time is measured against.
func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	requireNotNil(t, clk)

	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	if !strings.Contains(got.String(), "m=") {
		t.Fatalf("expected a monotonic reading in %v", got)
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

// TestClockTicksMonotonic checks successive tick readings are non-decreasing and nonzero.
func TestClockTicksMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Ticks()
	time.Sleep(time.Millisecond)
	second := clk.Ticks()
	if first == 0 || second == 0 {
		t.Fatal("expected nonzero tick readings")
	}
	if second <= first {
		t.Fatalf("expected second reading %d to be > first %d", second, first)
	}
}

// TestClockFrequency pins the tick resolution to nanoseconds.
func TestClockFrequency(t *testing.T) {
	t.Parallel()

	if got := New().Frequency(); got != uint64(time.Second) {
		t.Fatalf("Frequency() = %d, want %d", got, uint64(time.Second))
	}
}

func TestFallbackTicksNonZero(t *testing.T) {
	t.Parallel()

	if fallbackTicks() == 0 {
		t.Fatal("expected fallback ticks to be nonzero")
	}
}

func requireNotNil(t *testing.T, v any) {
	t.Helper()
	if v == nil {
		t.Fatal("expected value to be non-nil")
	}
}
