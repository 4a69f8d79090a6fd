package ringbuf

import (
	"sync/atomic"

	"github.com/tnishiok/AVBStreamHandler/shmsync"
)

// BeginAccess returns a contiguous run of up to req slots the caller may
// read (AccessRead) or write (AccessWrite) directly via Slots(offset, n).
// The run never wraps within a single borrow: a reader or writer consumes
// up to the physical end of the slot array, then wraps on its next call.
// Exactly one write borrow may be in flight at a time; any number of read
// borrows may be in flight concurrently, one per reader.
func (r *RingBufferShm) BeginAccess(access Access, id int32, req uint32) (offset uint32, n uint32, err error) {
	if err := r.checkInitialized(); err != nil {
		return 0, 0, err
	}

	switch access {
	case AccessRead:
		return r.beginAccessRead(id, req)
	case AccessWrite:
		return r.beginAccessWrite(req)
	default:
		return 0, 0, ErrInvalidParam
	}
}

func (r *RingBufferShm) beginAccessRead(id int32, req uint32) (uint32, uint32, error) {
	reader := r.findReader(id)
	if reader == nil {
		return 0, 0, ErrInvalidParam
	}

	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	level := r.calcReaderLevel(reader)
	offset := atomic.LoadUint32(&reader.offset)

	if req > level {
		req = level
	}
	if offset+req >= numBuffers {
		req = numBuffers - offset
	}

	atomic.StoreUint32(&reader.allowedToRead, req)
	atomic.StoreUint64(&reader.lastAccess, shmsync.MonotonicNanos())

	return offset, req, nil
}

func (r *RingBufferShm) beginAccessWrite(req uint32) (uint32, uint32, error) {
	if !atomic.CompareAndSwapUint32(&r.cb.writeInProgress, 0, 1) {
		return 0, 0, ErrNotAllowed
	}
	r.cb.mutexWriteInProgress.Lock()

	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	writeOffset := atomic.LoadUint32(&r.cb.writeOffset)
	readOffset := atomic.LoadUint32(&r.cb.readOffset)
	// bufferLevel is snapshotted once here: it may shrink concurrently as
	// readers commit, but never grow without a writer borrow in flight
	// (there can only be one), so a stale read never causes an overcommit.
	level := atomic.LoadUint32(&r.cb.bufferLevel)

	if req > numBuffers-level {
		req = numBuffers - level
	}
	if writeOffset+req >= numBuffers {
		req = numBuffers - writeOffset
	}
	if writeOffset < readOffset && req > readOffset-writeOffset-1 {
		// Leave a one-slot gap so writeOffset never catches up with
		// readOffset from behind, which is how "full" is told from "empty"
		// without an extra bit when the reader is physically ahead of the
		// writer in the array but behind it in sequence.
		req = readOffset - writeOffset - 1
	}

	atomic.StoreUint32(&r.cb.allowedToWrite, req)
	atomic.StoreUint64(&r.cb.writerLastAccess, shmsync.MonotonicNanos())

	return writeOffset, req, nil
}

// EndAccess commits n <= the slots granted by the matching BeginAccess as
// consumed (AccessRead) or produced (AccessWrite). offset is accepted for
// symmetry with BeginAccess but is not otherwise used: the ring always
// commits from the borrow's own tracked position.
func (r *RingBufferShm) EndAccess(access Access, id int32, offset uint32, n uint32) error {
	if err := r.checkInitialized(); err != nil {
		return err
	}

	switch access {
	case AccessRead:
		return r.endAccessRead(id, n)
	case AccessWrite:
		return r.endAccessWrite(n)
	default:
		return ErrInvalidParam
	}
}

func (r *RingBufferShm) endAccessRead(id int32, n uint32) error {
	reader := r.findReader(id)
	if reader == nil {
		return ErrInvalidParam
	}
	if n > atomic.LoadUint32(&reader.allowedToRead) {
		return ErrInvalidParam
	}

	atomic.StoreUint32(&reader.allowedToRead, 0)
	atomic.AddUint32(&reader.offset, n)

	r.aggregateReaderOffset()

	if atomic.LoadUint32(&r.cb.bufferLevel) <= atomic.LoadUint32(&r.cb.writeWaitLevel) {
		r.cb.condWrite.Broadcast()
	}

	atomic.StoreUint64(&reader.lastAccess, shmsync.MonotonicNanos())
	return nil
}

func (r *RingBufferShm) endAccessWrite(n uint32) error {
	if atomic.LoadUint32(&r.cb.writeInProgress) == 0 {
		return ErrNotAllowed
	}
	if n > atomic.LoadUint32(&r.cb.allowedToWrite) {
		return ErrInvalidParam
	}
	atomic.StoreUint32(&r.cb.allowedToWrite, 0)

	r.cb.mutex.Lock()
	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	writeOffset := atomic.LoadUint32(&r.cb.writeOffset)

	switch {
	case writeOffset+n == numBuffers:
		atomic.StoreUint32(&r.cb.writeOffset, 0)
	case writeOffset+n > numBuffers:
		r.cb.mutex.Unlock()
		return ErrInvalidParam
	default:
		atomic.StoreUint32(&r.cb.writeOffset, writeOffset+n)
	}
	atomic.AddUint32(&r.cb.bufferLevel, n)
	r.cb.mutex.Unlock()

	atomic.StoreUint32(&r.cb.writeInProgress, 0)
	r.cb.mutexWriteInProgress.Unlock()

	if atomic.LoadUint32(&r.cb.bufferLevel) >= atomic.LoadUint32(&r.cb.readWaitLevel) {
		r.cb.condRead.Broadcast()
	}

	atomic.StoreUint64(&r.cb.writerLastAccess, shmsync.MonotonicNanos())
	r.purgeUnresponsiveReaders()
	return nil
}
