package acquire

import (
	"fmt"
	"strconv"

	"github.com/JakeFAU/memscope/internal/vfs"
)

// Files exposed by DeviceRenderer.
const (
	StatisticsBinFileName = "statistics.bin"
	SizeFileName          = "size.txt"
)

// DeviceRenderer exposes the attached device as a vfs device object at
// address 0: its raw statistics block, its size and, when Report is set, the
// engine's call statistics report.
type DeviceRenderer struct {
	Device Device
	Size   int64
	Report vfs.Reporter
}

// List implements vfs.Renderer.
func (d DeviceRenderer) List(va uint64) ([]vfs.Entry, error) {
	if va != 0 {
		return nil, fmt.Errorf("%w: device at 0x%x", vfs.ErrNotFound, va)
	}
	entries := []vfs.Entry{
		{Name: SizeFileName, Size: int64(len(d.sizeText()))},
	}
	if raw, err := d.statistics(); err == nil {
		entries = append(entries, vfs.Entry{Name: StatisticsBinFileName, Size: int64(len(raw))})
	}
	if d.Report != nil {
		entries = append(entries, vfs.StatisticsFile{Source: d.Report}.Entry())
	}
	return entries, nil
}

// Read implements vfs.Renderer.
func (d DeviceRenderer) Read(name string, va uint64, p []byte, off int64) (int, error) {
	if va != 0 {
		return 0, fmt.Errorf("%w: device at 0x%x", vfs.ErrNotFound, va)
	}
	switch {
	case name == SizeFileName:
		return vfs.ReadAt(d.sizeText(), p, off)
	case name == StatisticsBinFileName:
		raw, err := d.statistics()
		if err != nil {
			return 0, err
		}
		return vfs.ReadAt(raw, p, off)
	case name == vfs.StatisticsFileName && d.Report != nil:
		return vfs.StatisticsFile{Source: d.Report}.ReadAt(p, off)
	}
	return 0, fmt.Errorf("%w: %s", vfs.ErrNotFound, name)
}

func (d DeviceRenderer) sizeText() []byte {
	return []byte(strconv.FormatInt(d.Size, 10) + "\n")
}

func (d DeviceRenderer) statistics() ([]byte, error) {
	if d.Device == nil {
		return nil, fmt.Errorf("statistics get: %w", ErrUnsupportedCommand)
	}
	raw, err := d.Device.CommandData(CommandStatisticsGet, nil)
	if err != nil {
		return nil, fmt.Errorf("statistics get: %w", err)
	}
	return raw, nil
}
