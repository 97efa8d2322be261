// Package acquire models the memory acquisition layer the engine reads
// through. It defines the Device command interface, the binary statistics
// block a device reports about its own calls, and a FileDevice that serves
// pages from a raw memory dump. DeviceRenderer exposes an attached device as a
// vfs object.
package acquire
