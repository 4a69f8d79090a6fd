package shmsync

import (
	"sync/atomic"
	"time"
)

// Cond is a process-shared condition variable realized as a sequence
// counter, the same pattern the teacher ring buffer already uses for its
// per-direction dataSeq/spaceSeq futex words (see ring.go's WriteBlocking /
// ReadBlocking: snapshot the sequence, test the predicate, wait on the
// snapshotted value, loop on wake). Cond packages that pattern once so
// every blocking predicate in the ring buffer (condRead, condWrite) shares
// it instead of re-deriving it.
//
// Correct use always follows the same shape:
//
//	for !predicate() {
//	    seen := cond.Seq()
//	    if predicate() {
//	        break
//	    }
//	    if err := cond.Wait(seen, timeout); err == ErrFutexTimeout {
//	        ...
//	    }
//	}
//
// Seq must be read before the predicate is (re-)checked so that a Broadcast
// landing between the check and the wait is not missed.
type Cond struct {
	seq uint32
}

// Seq returns the current sequence number. Capture this before testing the
// predicate you intend to Wait on.
func (c *Cond) Seq() uint32 {
	return atomic.LoadUint32(&c.seq)
}

// Wait blocks until the sequence number differs from seen, or timeout
// elapses (<=0 waits indefinitely). Returns ErrFutexTimeout on timeout.
// Always recheck the caller's predicate after Wait returns, even on nil
// error: wakes may be spurious or triggered by an unrelated Broadcast.
func (c *Cond) Wait(seen uint32, timeout time.Duration) error {
	return futexWaitTimeout(&c.seq, seen, timeout)
}

// Broadcast wakes every waiter blocked on the current sequence value.
func (c *Cond) Broadcast() {
	atomic.AddUint32(&c.seq, 1)
	futexWake(&c.seq, 1<<30)
}
