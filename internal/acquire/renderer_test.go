package acquire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/memscope/internal/vfs"
)

type fixedReport string

func (r fixedReport) Report(buf []byte) int {
	if buf == nil {
		return len(r)
	}
	return copy(buf, r)
}

func TestDeviceRendererList(t *testing.T) {
	t.Parallel()

	img := newImage(2)
	dev := NewFileDevice(bytes.NewReader(img), int64(len(img)))
	r := DeviceRenderer{Device: dev, Size: dev.Size(), Report: fixedReport("report\n")}

	entries, err := r.List(0)
	require.NoError(t, err)
	require.Equal(t, []vfs.Entry{
		{Name: SizeFileName, Size: 5},
		{Name: StatisticsBinFileName, Size: int64(StatisticsSize)},
		{Name: vfs.StatisticsFileName, Size: 7},
	}, entries)

	_, err = r.List(0x1000)
	require.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestDeviceRendererRead(t *testing.T) {
	t.Parallel()

	img := newImage(2)
	dev := NewFileDevice(bytes.NewReader(img), int64(len(img)))
	objects := vfs.NewRegistry()
	objects.Register(vfs.ObjectDevice, DeviceRenderer{Device: dev, Size: dev.Size(), Report: fixedReport("report\n")})

	buf := make([]byte, 64)
	n, err := objects.Read(vfs.ObjectDevice, SizeFileName, 0, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "8192\n", string(buf[:n]))

	n, err = objects.Read(vfs.ObjectDevice, vfs.StatisticsFileName, 0, buf, 2)
	require.NoError(t, err)
	require.Equal(t, "port\n", string(buf[:n]))

	raw := make([]byte, StatisticsSize)
	n, err = objects.Read(vfs.ObjectDevice, StatisticsBinFileName, 0, raw, 0)
	require.NoError(t, err)
	require.Equal(t, StatisticsSize, n)
	stats, err := DecodeStatistics(raw)
	require.NoError(t, err)
	require.NoError(t, stats.Valid())

	_, err = objects.Read(vfs.ObjectDevice, "missing.txt", 0, buf, 0)
	require.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestDeviceRendererWithoutReport(t *testing.T) {
	t.Parallel()

	r := DeviceRenderer{Size: 0}
	entries, err := r.List(0)
	require.NoError(t, err)
	require.Equal(t, []vfs.Entry{{Name: SizeFileName, Size: 2}}, entries)

	_, err = r.Read(vfs.StatisticsFileName, 0, make([]byte, 8), 0)
	require.ErrorIs(t, err, vfs.ErrNotFound)
	_, err = r.Read(StatisticsBinFileName, 0, make([]byte, 8), 0)
	require.ErrorIs(t, err, ErrUnsupportedCommand)
}
