package acquire

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/JakeFAU/memscope/internal/clock/system"
)

// TickSource supplies monotonic ticks for call timing.
type TickSource interface {
	Ticks() uint64
	Frequency() uint64
}

// FileDevice serves pages from a raw memory image, for example a dump file.
// Address 0 maps to offset 0 of the image. It keeps its own call statistics,
// reported through CommandStatisticsGet.
type FileDevice struct {
	r     io.ReaderAt
	size  int64
	clock TickSource
	calls [KindMax + 1]struct {
		count atomic.Uint64
		ticks atomic.Uint64
	}
}

// NewFileDevice wraps r, whose readable length is size bytes.
func NewFileDevice(r io.ReaderAt, size int64) *FileDevice {
	d := &FileDevice{r: r, size: size, clock: system.New()}
	d.record(KindOpen, d.clock.Ticks())
	return d
}

// Size returns the image length in bytes.
func (d *FileDevice) Size() int64 {
	return d.size
}

func (d *FileDevice) record(kind Kind, start uint64) {
	c := &d.calls[kind]
	c.count.Add(1)
	c.ticks.Add(d.clock.Ticks() - start)
}

// ReadPages implements Device.
func (d *FileDevice) ReadPages(addr uint64, p []byte) (int, error) {
	start := d.clock.Ticks()
	defer d.record(KindReadScatter, start)
	if addr >= uint64(d.size) {
		return 0, fmt.Errorf("read %#x: %w", addr, io.EOF)
	}
	n, err := d.r.ReadAt(p, int64(addr))
	if n < len(p) && err == nil {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return n, fmt.Errorf("read %#x: %w", addr, err)
	}
	return n, nil
}

// CommandData implements Device.
func (d *FileDevice) CommandData(cmd Command, _ []byte) ([]byte, error) {
	start := d.clock.Ticks()
	defer d.record(KindCommandData, start)
	switch cmd {
	case CommandStatisticsGet:
		s := d.snapshot()
		return s.MarshalBinary()
	default:
		return nil, fmt.Errorf("command %#x: %w", uint64(cmd), ErrUnsupportedCommand)
	}
}

// Close records the close call. The underlying reader is owned by the caller.
func (d *FileDevice) Close() error {
	d.record(KindClose, d.clock.Ticks())
	return nil
}

func (d *FileDevice) snapshot() *Statistics {
	s := &Statistics{
		Magic:     StatisticsMagic,
		Version:   StatisticsVersion,
		Frequency: d.clock.Frequency(),
	}
	for i := range d.calls {
		s.Calls[i] = Call{Count: d.calls[i].count.Load(), Ticks: d.calls[i].ticks.Load()}
	}
	return s
}
