package ringbuf

import (
	"sync/atomic"

	"github.com/tnishiok/AVBStreamHandler/shmsync"
)

// calcReaderLevel returns the number of slots reader has not yet consumed
// relative to the current write position: (writeOffset - reader.offset) mod
// numBuffers, with an explicit wrap branch rather than relying on unsigned
// underflow, so the arithmetic reads the same as the spec states it.
// A reader sitting on readOffset when writeOffset has lapped back onto it
// and bufferLevel is numBuffers is a full ring behind, not empty, and gets
// numBuffers.
func (r *RingBufferShm) calcReaderLevel(reader *readerEntry) uint32 {
	// writeOffset is read once locally: it may advance concurrently under
	// the writer, and using a slightly stale value only means we under-
	// report a just-written slot for one more call, never over-report.
	writeOffset := atomic.LoadUint32(&r.cb.writeOffset)
	offset := atomic.LoadUint32(&reader.offset)
	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)

	if writeOffset == offset && offset == atomic.LoadUint32(&r.cb.readOffset) &&
		atomic.LoadUint32(&r.cb.bufferLevel) == numBuffers {
		return numBuffers
	}
	if writeOffset >= offset {
		return writeOffset - offset
	}
	return numBuffers - offset + writeOffset
}

// updateSmallerReaderOffset scans the reader table for the minimum live
// offset, and if every live reader has reached the physical end of the
// array, wraps all of them back to zero. Returns the minimum offset found,
// or (0, false) if there are no live readers.
func (r *RingBufferShm) updateSmallerReaderOffset() (uint32, bool) {
	r.cb.mutexReaders.Lock()
	defer r.cb.mutexReaders.Unlock()

	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	smaller := numBuffers
	found := false

	for i := range r.cb.readers {
		e := &r.cb.readers[i]
		if atomic.LoadInt32(&e.id) == 0 {
			continue
		}
		found = true
		if off := atomic.LoadUint32(&e.offset); off < smaller {
			smaller = off
		}
	}

	if !found {
		return 0, false
	}

	if smaller == numBuffers {
		for i := range r.cb.readers {
			e := &r.cb.readers[i]
			if atomic.LoadInt32(&e.id) != 0 {
				atomic.StoreUint32(&e.offset, 0)
			}
		}
	}

	return smaller, true
}

// aggregateReaderOffset recomputes the slowest reader's offset and advances
// readOffset/bufferLevel to match. This is the sole mechanism that advances
// readOffset; the writer never touches it directly.
func (r *RingBufferShm) aggregateReaderOffset() {
	smaller, ok := r.updateSmallerReaderOffset()
	if !ok {
		return
	}

	r.cb.mutex.Lock()
	defer r.cb.mutex.Unlock()

	numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
	readOffset := atomic.LoadUint32(&r.cb.readOffset)
	bufferLevel := atomic.LoadUint32(&r.cb.bufferLevel)

	atomic.StoreUint32(&r.cb.bufferLevel, bufferLevel-(smaller-readOffset))

	if smaller == numBuffers {
		atomic.StoreUint32(&r.cb.readOffset, 0)
	} else {
		atomic.StoreUint32(&r.cb.readOffset, smaller)
	}
}

// purgeUnresponsiveReaders unilaterally evicts any reader whose lastAccess
// is older than readerTimeoutNS. Invoked only from the writer's EndAccess
// path: writer liveness does not depend on reader liveness, so there is no
// symmetric purge from the read path.
func (r *RingBufferShm) purgeUnresponsiveReaders() {
	now := shmsync.MonotonicNanos()

	r.cb.mutexReaders.Lock()
	defer r.cb.mutexReaders.Unlock()

	for i := range r.cb.readers {
		e := &r.cb.readers[i]
		if atomic.LoadInt32(&e.id) == 0 {
			continue
		}
		last := atomic.LoadUint64(&e.lastAccess)
		if now > last && now-last > readerTimeoutNS {
			zeroReaderEntry(e)
		}
	}
}
