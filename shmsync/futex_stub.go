//go:build !linux || !(amd64 || arm64)

package shmsync

import (
	"errors"
	"time"
)

// ErrUnsupported is returned on platforms without a futex syscall.
var ErrUnsupported = errors.New("shmsync: futex operations not supported on this platform")

// ErrFutexTimeout mirrors the Linux build's sentinel so callers can use
// errors.Is uniformly across platforms.
var ErrFutexTimeout = errors.New("shmsync: futex wait timed out")

func futexWait(addr *uint32, val uint32) error {
	return ErrUnsupported
}

func futexWaitTimeout(addr *uint32, val uint32, timeout time.Duration) error {
	return ErrUnsupported
}

func futexWake(addr *uint32, n int) int {
	return 0
}
