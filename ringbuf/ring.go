package ringbuf

import (
	"sync/atomic"
	"unsafe"

	"github.com/tnishiok/AVBStreamHandler/shmsync"
)

// RingBufferShm is the per-process handle onto a shared ring buffer. The
// handle itself (the Go struct below) is ordinary process-local memory; what
// it points at — cb and data — is the shared region. Every process that
// attaches constructs its own RingBufferShm value from its own mapping of
// that region; RingBufferShm values are never shared directly, only the
// bytes they point into are.
type RingBufferShm struct {
	cb   *controlBlock
	data []byte // this process's view of the numBuffers*packetSize slot array
}

// State is a point-in-time snapshot of ring geometry for diagnostics, the
// same role the teacher's RingState plays for ShmRing.DebugState.
type State struct {
	PacketSize  uint32
	NumBuffers  uint32
	ReadOffset  uint32
	WriteOffset uint32
	BufferLevel uint32
	ReaderCount int
}

// Init carves a control block and slot array out of mem and initializes
// ring geometry. mem must be at least ControlBlockSize()+numBuffers*packetSize
// bytes and must not be touched by any other RingBufferShm while Init is in
// flight. shared is recorded for documentation purposes only: every
// synchronization primitive embedded in the control block is already safe
// to use from multiple processes, which is a construction-time property of
// shmsync.Mutex/Cond, not a runtime toggle.
func Init(mem []byte, packetSize, numBuffers uint32, shared bool) (*RingBufferShm, error) {
	if packetSize == 0 || numBuffers == 0 || mem == nil {
		return nil, ErrInvalidParam
	}
	need := controlBlockSize + uintptr(numBuffers)*uintptr(packetSize)
	if uintptr(len(mem)) < need {
		return nil, ErrInvalidParam
	}

	cb := (*controlBlock)(unsafe.Pointer(&mem[0]))
	*cb = controlBlock{}
	cb.packetSize = packetSize
	cb.numBuffers = numBuffers
	atomic.StoreUint32(&cb.initialized, 1)

	r := &RingBufferShm{
		cb:   cb,
		data: mem[controlBlockSize:need],
	}
	return r, nil
}

// Attach constructs a handle onto a control block that another process
// already initialized with Init. Returns ErrNotInitialized if mem's control
// block has not completed initialization.
func Attach(mem []byte) (*RingBufferShm, error) {
	if uintptr(len(mem)) < controlBlockSize {
		return nil, ErrInvalidParam
	}
	cb := (*controlBlock)(unsafe.Pointer(&mem[0]))
	if atomic.LoadUint32(&cb.initialized) == 0 {
		return nil, ErrNotInitialized
	}

	packetSize := atomic.LoadUint32(&cb.packetSize)
	numBuffers := atomic.LoadUint32(&cb.numBuffers)
	need := controlBlockSize + uintptr(numBuffers)*uintptr(packetSize)
	if uintptr(len(mem)) < need {
		return nil, ErrInvalidParam
	}

	return &RingBufferShm{cb: cb, data: mem[controlBlockSize:need]}, nil
}

func (r *RingBufferShm) checkInitialized() error {
	if r == nil || r.cb == nil || atomic.LoadUint32(&r.cb.initialized) == 0 {
		return ErrNotInitialized
	}
	return nil
}

// Slots returns the byte range backing n contiguous slots starting at
// offset. Callers obtain (offset, n) from BeginAccess and must not read or
// write outside the range a single BeginAccess/EndAccess borrow granted.
func (r *RingBufferShm) Slots(offset, n uint32) []byte {
	packetSize := atomic.LoadUint32(&r.cb.packetSize)
	start := uintptr(offset) * uintptr(packetSize)
	end := start + uintptr(n)*uintptr(packetSize)
	return r.data[start:end]
}

// PacketSize returns the immutable per-slot size established at Init.
func (r *RingBufferShm) PacketSize() uint32 {
	return atomic.LoadUint32(&r.cb.packetSize)
}

// NumBuffers returns the immutable slot count established at Init.
func (r *RingBufferShm) NumBuffers() uint32 {
	return atomic.LoadUint32(&r.cb.numBuffers)
}

// AddReader registers id as a new reader starting at the current read
// offset. Returns ErrInvalidParam if id <= 0, ErrTooManyReaders if the
// table is full.
func (r *RingBufferShm) AddReader(id int32) error {
	if err := r.checkInitialized(); err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidParam
	}

	r.cb.mutexReaders.Lock()
	defer r.cb.mutexReaders.Unlock()

	for i := range r.cb.readers {
		e := &r.cb.readers[i]
		if atomic.LoadInt32(&e.id) == 0 {
			atomic.StoreUint32(&e.offset, atomic.LoadUint32(&r.cb.readOffset))
			atomic.StoreUint64(&e.lastAccess, shmsync.MonotonicNanos())
			atomic.StoreUint32(&e.allowedToRead, 0)
			atomic.StoreInt32(&e.id, id)
			return nil
		}
	}
	return ErrTooManyReaders
}

// RemoveReader clears every reader table entry matching id. Idempotent:
// removing an id not present, or already removed, is not an error.
func (r *RingBufferShm) RemoveReader(id int32) error {
	if err := r.checkInitialized(); err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidParam
	}

	r.cb.mutexReaders.Lock()
	defer r.cb.mutexReaders.Unlock()

	for i := range r.cb.readers {
		e := &r.cb.readers[i]
		if atomic.LoadInt32(&e.id) == id {
			zeroReaderEntry(e)
		}
	}
	return nil
}

func zeroReaderEntry(e *readerEntry) {
	atomic.StoreInt32(&e.id, 0)
	atomic.StoreUint32(&e.offset, 0)
	atomic.StoreUint64(&e.lastAccess, 0)
	atomic.StoreUint32(&e.allowedToRead, 0)
}

// findReader returns the reader table entry for id, or nil if id is not
// (or no longer) registered. Callers must not hold mutexReaders.
func (r *RingBufferShm) findReader(id int32) *readerEntry {
	for i := range r.cb.readers {
		e := &r.cb.readers[i]
		if atomic.LoadInt32(&e.id) == id {
			return e
		}
	}
	return nil
}

// UpdateAvailable reports, without borrowing, how many slots are currently
// readable by reader id (AccessRead) or writable (AccessWrite).
//
// Note: the write-side report is numBuffers-bufferLevel and does not apply
// the one-slot full/empty disambiguation gap BeginAccess(write) enforces; a
// caller using this purely for capacity planning may see an over-report of
// one slot when the ring is at its effective maximum. This mirrors the
// original implementation exactly and is an open reconciliation the wider
// design intentionally leaves unresolved.
func (r *RingBufferShm) UpdateAvailable(access Access, id int32) (uint32, error) {
	if err := r.checkInitialized(); err != nil {
		return 0, err
	}
	if access == AccessUndefined {
		return 0, ErrInvalidParam
	}

	if access == AccessWrite {
		numBuffers := atomic.LoadUint32(&r.cb.numBuffers)
		level := atomic.LoadUint32(&r.cb.bufferLevel)
		return numBuffers - level, nil
	}

	reader := r.findReader(id)
	if reader == nil {
		return 0, ErrInvalidParam
	}
	return r.calcReaderLevel(reader), nil
}

// DebugState returns a snapshot of ring geometry for diagnostics.
func (r *RingBufferShm) DebugState() State {
	count := 0
	for i := range r.cb.readers {
		if atomic.LoadInt32(&r.cb.readers[i].id) != 0 {
			count++
		}
	}
	return State{
		PacketSize:  atomic.LoadUint32(&r.cb.packetSize),
		NumBuffers:  atomic.LoadUint32(&r.cb.numBuffers),
		ReadOffset:  atomic.LoadUint32(&r.cb.readOffset),
		WriteOffset: atomic.LoadUint32(&r.cb.writeOffset),
		BufferLevel: atomic.LoadUint32(&r.cb.bufferLevel),
		ReaderCount: count,
	}
}
