//go:build !unix

package system

func ticks() uint64 {
	return fallbackTicks()
}
