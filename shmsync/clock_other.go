//go:build !linux

package shmsync

import "time"

// MonotonicNanos falls back to the Go runtime's monotonic clock reading on
// platforms without CLOCK_MONOTONIC via x/sys/unix. Not valid across
// processes that do not share this clock source, which in practice means
// this build is test/dev-only off Linux.
func MonotonicNanos() uint64 {
	return uint64(time.Now().UnixNano())
}
