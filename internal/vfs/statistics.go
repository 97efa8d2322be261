package vfs

import "bytes"

// StatisticsFileName is the file the call statistics report is served as.
const StatisticsFileName = "statistics.txt"

// Reporter writes a sized report; a nil buffer asks for the size.
type Reporter interface {
	Report(buf []byte) int
}

// StatisticsFile serves a Reporter as a read-only file.
type StatisticsFile struct {
	Source Reporter
}

// Entry lists the file with its current size.
func (f StatisticsFile) Entry() Entry {
	return Entry{Name: StatisticsFileName, Size: int64(f.Source.Report(nil))}
}

// Bytes renders the full report.
func (f StatisticsFile) Bytes() []byte {
	buf := make([]byte, f.Source.Report(nil))
	return buf[:f.Source.Report(buf)]
}

// ReadAt reads the report at off.
func (f StatisticsFile) ReadAt(p []byte, off int64) (int, error) {
	return ReadAt(f.Bytes(), p, off)
}

// Open returns a seekable reader over a single rendering of the report.
func (f StatisticsFile) Open() *bytes.Reader {
	return bytes.NewReader(f.Bytes())
}
