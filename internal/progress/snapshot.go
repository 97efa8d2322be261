package progress

import (
	"math"
	"math/bits"
	"time"
)

const (
	// PageSize is the unit of every address range and count.
	PageSize = 4096
	// UnknownTotal is the smallest page total treated as "size unknown".
	UnknownTotal = 0x0FFFFFFFFF

	speedUnitThreshold = 2048
)

// Run is one contiguous extent of successfully read pages.
type Run struct {
	Base  uint64
	Pages uint32
}

// End returns the first address past the run.
func (r Run) End() uint64 {
	return r.Base + uint64(r.Pages)*PageSize
}

// Snapshot is a consistent-enough copy of a Tracker's state. Fields are read
// individually, so a snapshot taken during an Update may mix both sides of it.
type Snapshot struct {
	ID         string
	Action     string
	KMD        bool
	Address    uint64
	Total      uint64
	Success    uint64
	Fail       uint64
	Elapsed    time.Duration
	Runs       []Run
	MemMapFull bool
}

// Unknown reports whether the total page count is a placeholder.
func (s Snapshot) Unknown() bool {
	return s.Total >= UnknownTotal
}

// Done returns the number of pages processed either way.
func (s Snapshot) Done() uint64 {
	return s.Success + s.Fail
}

// PercentTotal is the truncated share of pages processed.
func (s Snapshot) PercentTotal() uint64 {
	return scaledRatio(s.Done(), 100, 0, s.Total)
}

// PercentSuccess is the share of pages read, rounded half up.
func (s Snapshot) PercentSuccess() uint64 {
	return roundedPercent(s.Success, s.Total)
}

// PercentFail is the share of pages failed, rounded half up.
func (s Snapshot) PercentFail() uint64 {
	return roundedPercent(s.Fail, s.Total)
}

// SpeedKB is the average throughput in kB/s over whole elapsed seconds.
func (s Snapshot) SpeedKB() uint64 {
	secs := uint64(s.Elapsed.Milliseconds()) / 1000
	return scaledRatio(s.Done(), 4, 0, 1+secs)
}

// Speed returns the throughput and its unit, switching to MB/s at 2048 kB/s.
func (s Snapshot) Speed() (uint64, string) {
	kb := s.SpeedKB()
	if kb >= speedUnitThreshold {
		return kb >> 10, "MB/s"
	}
	return kb, "kB/s"
}

func roundedPercent(n, total uint64) uint64 {
	if total == 0 || total >= math.MaxUint64/2 {
		return 0
	}
	return scaledRatio(n, 200, total, 2*total)
}

// scaledRatio computes (n*scale + bias) / den in 128-bit precision,
// saturating at MaxUint64. It returns 0 when den is 0.
func scaledRatio(n, scale, bias, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	hi, lo := bits.Mul64(n, scale)
	var carry uint64
	lo, carry = bits.Add64(lo, bias, 0)
	hi += carry
	if hi >= den {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}
