package system

import "time"

var epoch = time.Now()

// fallbackTicks counts nanoseconds on the runtime monotonic clock since
// package init, offset by one so a valid reading is never zero.
func fallbackTicks() uint64 {
	return uint64(time.Since(epoch).Nanoseconds()) + 1
}
