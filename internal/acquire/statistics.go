package acquire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// StatisticsMagic tags a valid statistics block.
	StatisticsMagic uint32 = 0x2ff5d2a1
	// StatisticsVersion is the only block layout understood by this package.
	StatisticsVersion uint32 = 0xe1a10001

	statisticsHeaderSize = 16
	callRecordSize       = 16
)

// StatisticsSize is the encoded size of a full statistics block.
const StatisticsSize = statisticsHeaderSize + callRecordSize*int(KindMax+1)

// ErrBadStatistics reports a statistics block that is truncated or carries
// an unexpected magic, version or zero frequency.
var ErrBadStatistics = errors.New("acquire: malformed statistics block")

// Call is the accumulated count and elapsed ticks for one Kind.
type Call struct {
	Count uint64
	Ticks uint64
}

// Statistics is the block a Device returns for CommandStatisticsGet.
type Statistics struct {
	Magic     uint32
	Version   uint32
	Frequency uint64
	Calls     [KindMax + 1]Call
}

// Valid checks the magic, version and frequency fields.
func (s *Statistics) Valid() error {
	if s == nil {
		return ErrBadStatistics
	}
	if s.Magic != StatisticsMagic {
		return fmt.Errorf("%w: magic %#x", ErrBadStatistics, s.Magic)
	}
	if s.Version != StatisticsVersion {
		return fmt.Errorf("%w: version %#x", ErrBadStatistics, s.Version)
	}
	if s.Frequency == 0 {
		return fmt.Errorf("%w: zero frequency", ErrBadStatistics)
	}
	return nil
}

// MarshalBinary encodes s in the little-endian wire layout.
func (s *Statistics) MarshalBinary() ([]byte, error) {
	b := make([]byte, StatisticsSize)
	binary.LittleEndian.PutUint32(b[0:], s.Magic)
	binary.LittleEndian.PutUint32(b[4:], s.Version)
	binary.LittleEndian.PutUint64(b[8:], s.Frequency)
	off := statisticsHeaderSize
	for _, c := range s.Calls {
		binary.LittleEndian.PutUint64(b[off:], c.Count)
		binary.LittleEndian.PutUint64(b[off+8:], c.Ticks)
		off += callRecordSize
	}
	return b, nil
}

// DecodeStatistics parses a wire block. Only the length is checked here;
// callers validate the contents with Valid.
func DecodeStatistics(b []byte) (*Statistics, error) {
	if len(b) < StatisticsSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBadStatistics, len(b), StatisticsSize)
	}
	s := &Statistics{
		Magic:     binary.LittleEndian.Uint32(b[0:]),
		Version:   binary.LittleEndian.Uint32(b[4:]),
		Frequency: binary.LittleEndian.Uint64(b[8:]),
	}
	off := statisticsHeaderSize
	for i := range s.Calls {
		s.Calls[i].Count = binary.LittleEndian.Uint64(b[off:])
		s.Calls[i].Ticks = binary.LittleEndian.Uint64(b[off+8:])
		off += callRecordSize
	}
	return s, nil
}
