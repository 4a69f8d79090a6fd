//go:build linux && (amd64 || arm64)

/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package shmsync

import (
	"errors"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrFutexTimeout is returned by futexWaitTimeout when the wait times out
// without the observed value changing.
var ErrFutexTimeout = errors.New("shmsync: futex wait timed out")

// Linux futex(2) operation codes. Not exported by golang.org/x/sys/unix;
// these are stable kernel ABI values (linux/include/uapi/linux/futex.h).
const (
	futexWaitOp = 0
	futexWakeOp = 1
)

// futexWait blocks while *addr == val. Unlike FUTEX_WAIT_PRIVATE, this uses
// the plain (shared) futex operations so that a waiter in one process and a
// waker in another process, both addressing the same mapped word, rendezvous
// on the same kernel futex queue. Always re-check the caller's predicate
// after this returns: wakes may be spurious.
func futexWait(addr *uint32, val uint32) error {
	return futexWaitTimeout(addr, val, 0)
}

// futexWaitTimeout blocks while *addr == val, for at most timeout (<= 0 means
// wait indefinitely). Returns ErrFutexTimeout if the timeout elapsed without
// the value changing or a wake.
func futexWaitTimeout(addr *uint32, val uint32, timeout time.Duration) error {
	// Re-check before entering the syscall: avoids a pointless trap into the
	// kernel when the value already moved between the caller's load and here.
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var tsPtr unsafe.Pointer
	var ts unix.Timespec
	if timeout > 0 {
		ts = unix.NsecToTimespec(timeout.Nanoseconds())
		tsPtr = unsafe.Pointer(&ts)
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWaitOp),
		uintptr(val),
		uintptr(tsPtr),
		0,
		0,
	)

	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	case unix.ETIMEDOUT:
		return ErrFutexTimeout
	default:
		return errno
	}
}

// futexWake wakes up to n waiters blocked on addr and returns the number
// actually woken.
func futexWake(addr *uint32, n int) int {
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWakeOp),
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0
	}
	return int(r1)
}
