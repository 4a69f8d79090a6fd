package ringbuf

import (
	"sync/atomic"
	"time"

	"github.com/tnishiok/AVBStreamHandler/shmsync"
)

// WaitWrite blocks until at least n slots are free for writing, the
// timeout elapses, or the predicate is already satisfied. It does not
// consume data; it is a blocking form of UpdateAvailable(AccessWrite, ...).
// Callers must still use BeginAccess/EndAccess to transfer.
func (r *RingBufferShm) WaitWrite(n uint32, timeout time.Duration) error {
	if err := r.checkInitialized(); err != nil {
		return err
	}
	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	if n == 0 || n > numBuffers || timeout <= 0 {
		return ErrInvalidParam
	}

	atomic.StoreUint32(&r.cb.writeWaitLevel, numBuffers-n)

	deadline := time.Now().Add(timeout)
	for atomic.LoadUint32(&r.cb.bufferLevel) > atomic.LoadUint32(&r.cb.writeWaitLevel) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		seen := r.cb.condWrite.Seq()
		// Re-check right before waiting: a commit may have landed between
		// the loop condition above and capturing seen.
		if atomic.LoadUint32(&r.cb.bufferLevel) <= atomic.LoadUint32(&r.cb.writeWaitLevel) {
			break
		}
		err := r.cb.condWrite.Wait(seen, remaining)
		if err == shmsync.ErrFutexTimeout {
			if atomic.LoadUint32(&r.cb.bufferLevel) > atomic.LoadUint32(&r.cb.writeWaitLevel) {
				return ErrTimeout
			}
			return nil
		}
		if err != nil {
			return ErrCondWaitFailed
		}
		if time.Now().After(deadline) {
			break
		}
	}

	if atomic.LoadUint32(&r.cb.bufferLevel) > atomic.LoadUint32(&r.cb.writeWaitLevel) {
		return ErrTimeout
	}
	return nil
}

// WaitRead blocks until reader id has at least n slots available to read,
// the timeout elapses, or the predicate is already satisfied.
func (r *RingBufferShm) WaitRead(id int32, n uint32, timeout time.Duration) error {
	if err := r.checkInitialized(); err != nil {
		return err
	}
	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	reader := r.findReader(id)
	if n == 0 || n > numBuffers || timeout <= 0 || reader == nil {
		return ErrInvalidParam
	}

	// mutex protects readWaitLevel from being clobbered by a concurrent
	// waiting reader with a looser (larger) bound.
	r.cb.mutex.Lock()
	if n < atomic.LoadUint32(&r.cb.readWaitLevel) {
		atomic.StoreUint32(&r.cb.readWaitLevel, n)
	}
	r.cb.mutex.Unlock()

	atomic.StoreUint64(&reader.lastAccess, shmsync.MonotonicNanos())

	deadline := time.Now().Add(timeout)
	for r.calcReaderLevel(reader) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		seen := r.cb.condRead.Seq()
		if r.calcReaderLevel(reader) >= n {
			break
		}
		err := r.cb.condRead.Wait(seen, remaining)
		atomic.StoreUint64(&reader.lastAccess, shmsync.MonotonicNanos())
		if err == shmsync.ErrFutexTimeout {
			if r.calcReaderLevel(reader) < n {
				return ErrTimeout
			}
			return nil
		}
		if err != nil {
			return ErrCondWaitFailed
		}
		if time.Now().After(deadline) {
			break
		}
	}

	if r.calcReaderLevel(reader) < n {
		return ErrTimeout
	}
	return nil
}
