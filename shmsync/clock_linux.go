//go:build linux

package shmsync

import "golang.org/x/sys/unix"

// MonotonicNanos returns a monotonic clock reading in nanoseconds, suitable
// for stamping lastAccess / writerLastAccess fields that must be comparable
// across processes sharing the same machine clock. Mirrors the original
// clock_gettime(CLOCK_MONOTONIC, &ts) call.
func MonotonicNanos() uint64 {
	var ts unix.Timespec
	// CLOCK_MONOTONIC cannot fail for a valid address; ignore the error the
	// same way the original C++ ignores clock_gettime's return value.
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
