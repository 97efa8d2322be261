package progress

import (
	"bytes"
	"fmt"
	"io"
)

const (
	lineWidth = 49

	cursorUpWithMap = "\x1b[9A"
	cursorUpNoMap   = "\x1b[7A"

	accessKMD    = "KMD (kernel module assisted DMA)"
	accessNormal = "Normal"
)

// console repaints the progress block in place. It is used only by the
// reporter goroutine.
type console struct {
	w       io.Writer
	showMap bool
	printed bool
	// rowIdx is the last memory-map row already on screen; it is printed
	// again because the run may have grown since.
	rowIdx int
}

func (c *console) render(s Snapshot) error {
	if s.Total == 0 {
		return nil
	}
	var b bytes.Buffer
	if c.printed {
		if c.showMap {
			b.WriteString(cursorUpWithMap)
		} else {
			b.WriteString(cursorUpNoMap)
		}
	}
	if c.showMap {
		c.writeMemMap(&b, s)
	}
	writeStatus(&b, s)
	c.printed = true
	_, err := c.w.Write(b.Bytes())
	return err
}

func (c *console) writeMemMap(b *bytes.Buffer, s Snapshot) {
	if !c.printed {
		padLine(b, " Memory Map:")
		padLine(b, " START              END               #PAGES")
	}
	switch {
	case len(s.Runs) == 0:
		padLine(b, " (No memory successfully read yet)")
	case s.MemMapFull:
		padLine(b, " Maximum number of memory map entries reached.")
	default:
		for i := c.rowIdx; i < len(s.Runs); i++ {
			r := s.Runs[i]
			padLine(b, fmt.Sprintf(" %016x - %016x  %08x", r.Base, r.End()-1, r.Pages))
		}
		c.rowIdx = len(s.Runs) - 1
	}
	padLine(b, "")
}

// writeStatus renders the seven status lines.
func writeStatus(b *bytes.Buffer, s Snapshot) {
	mode := accessNormal
	if s.KMD {
		mode = accessKMD
	}
	speed, unit := s.Speed()
	padLine(b, " Current Action: "+s.Action)
	padLine(b, " Access Mode:    "+mode)
	if s.Unknown() {
		padLine(b, fmt.Sprintf(" Progress:       %d / (unknown)", s.Done()/256))
		padLine(b, fmt.Sprintf(" Speed:          %d %s", speed, unit))
		padLine(b, fmt.Sprintf(" Address:        0x%016X", s.Address))
		padLine(b, fmt.Sprintf(" Pages read:     %d", s.Success))
		padLine(b, fmt.Sprintf(" Pages failed:   %d", s.Fail))
		return
	}
	padLine(b, fmt.Sprintf(" Progress:       %d / %d (%d%%)", s.Done()/256, s.Total/256, s.PercentTotal()))
	padLine(b, fmt.Sprintf(" Speed:          %d %s", speed, unit))
	padLine(b, fmt.Sprintf(" Address:        0x%016X", s.Address))
	padLine(b, fmt.Sprintf(" Pages read:     %d / %d (%d%%)", s.Success, s.Total, s.PercentSuccess()))
	padLine(b, fmt.Sprintf(" Pages failed:   %d (%d%%)", s.Fail, s.PercentFail()))
}

// padLine writes line space-padded so it fully overwrites the previous frame.
func padLine(b *bytes.Buffer, line string) {
	fmt.Fprintf(b, "%-*s\n", lineWidth, line)
}
