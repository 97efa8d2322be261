package acquire

import (
	"errors"
	"fmt"
)

// PageSize is the acquisition granularity in bytes.
const PageSize = 4096

// Command identifies a CommandData request.
type Command uint64

// Supported commands.
const (
	CommandStatisticsGet Command = 0x4000010000000000
)

// ErrUnsupportedCommand is returned for commands a Device does not implement.
var ErrUnsupportedCommand = errors.New("acquire: unsupported command")

// Device is the acquisition transport: it reads physical pages and answers
// out-of-band commands.
type Device interface {
	// ReadPages reads len(p) bytes starting at addr and returns the number
	// of bytes read. A short read returns a non-nil error.
	ReadPages(addr uint64, p []byte) (int, error)
	// CommandData executes cmd with the optional input and returns its output.
	CommandData(cmd Command, in []byte) ([]byte, error)
}

// StatisticsSource adapts a Device to a statistics provider by issuing
// CommandStatisticsGet.
type StatisticsSource struct {
	Device Device
}

// Statistics queries and decodes the device's statistics block.
func (s StatisticsSource) Statistics() (*Statistics, error) {
	if s.Device == nil {
		return nil, fmt.Errorf("statistics get: %w", ErrUnsupportedCommand)
	}
	raw, err := s.Device.CommandData(CommandStatisticsGet, nil)
	if err != nil {
		return nil, fmt.Errorf("statistics get: %w", err)
	}
	return DecodeStatistics(raw)
}
