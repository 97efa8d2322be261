// Package progress tracks long-running bulk page reads. A Tracker is owned
// by the goroutine driving the read, which reports each step through Update;
// a background reporter wakes on a fixed interval, renders the latest state
// to the console in place and forwards it to pluggable sinks such as
// Prometheus gauges or structured logs.
package progress
