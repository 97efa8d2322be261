package callstat

import (
	"bytes"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/JakeFAU/memscope/internal/acquire"
)

const (
	// RowWidth is the width in bytes of every report line, newline included.
	RowWidth = 79

	headerLines = 4
	rowFormat   = "%-40.40s  %8d  %8d  %16d\n"

	// Largest values the count/average and total columns can print; larger
	// values are clamped so rows keep RowWidth.
	maxNarrowColumn = 99_999_999
	maxTotalColumn  = 9_999_999_999_999_999
)

var columnHeader = fmt.Sprintf("%-40s  %8s  %8s  %16s", "FUNCTION CALL NAME", "CALLS", "TIME AVG", "TIME TOTAL")

// Report writes the statistics table into buf and returns the number of
// bytes written. With a nil buf it writes nothing and returns the exact size
// a subsequent call needs. A short buf receives a truncated report; the last
// byte written is always a newline.
func (r *Registry) Report(buf []byte) int {
	out := r.render()
	if buf == nil {
		return len(out)
	}
	n := copy(buf, out)
	if n > 0 {
		buf[n-1] = '\n'
	}
	return n
}

// String returns the full report.
func (r *Registry) String() string {
	return string(r.render())
}

func (r *Registry) render() []byte {
	var b bytes.Buffer
	b.Grow(RowWidth * (headerLines + KindCount + int(acquire.KindMax) + 1))

	state := "DISABLED"
	if r.IsEnabled() {
		state = "ENABLED "
	}
	writeHeader(&b, "FUNCTION CALL STATISTICS:")
	writeHeader(&b, "VALUES IN DECIMAL, TIME IN MICROSECONDS uS, STATISTICS = "+state)
	writeHeader(&b, columnHeader)
	writeHeader(&b, strings.Repeat("=", RowWidth-1))

	freq := r.Frequency()
	for _, s := range r.Snapshot() {
		writeRow(&b, s.Name, s.Count, s.Ticks, freq)
	}

	if r != nil {
		if stats := r.foreignStatistics(); stats != nil {
			for i, c := range stats.Calls {
				writeRow(&b, acquire.Kind(i).Name(), c.Count, c.Ticks, stats.Frequency)
			}
		}
	}

	out := b.Bytes()
	out[len(out)-1] = '\n'
	return out
}

func writeHeader(b *bytes.Buffer, line string) {
	fmt.Fprintf(b, "%-*s\n", RowWidth-1, line)
}

func writeRow(b *bytes.Buffer, name string, count, ticks, freq uint64) {
	if count == 0 || freq == 0 {
		fmt.Fprintf(b, rowFormat, name, 0, 0, 0)
		return
	}
	us := Microseconds(ticks, freq)
	fmt.Fprintf(b, rowFormat, name,
		min(count, maxNarrowColumn), min(us/count, maxNarrowColumn), min(us, maxTotalColumn))
}

// Microseconds converts ticks at freq ticks per second to microseconds,
// saturating instead of overflowing. The report clamps further to its
// column widths.
func Microseconds(ticks, freq uint64) uint64 {
	if freq == 0 {
		return 0
	}
	hi, lo := bits.Mul64(ticks, 1_000_000)
	if hi >= freq {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, freq)
	return q
}
