package ringbuf

import (
	"testing"
)

// newTestRing builds a RingBufferShm over a plain heap buffer. The core
// package only needs a []byte of the right size; whether that byte slice
// is backed by a shared mapping (shmseg) or ordinary Go memory is invisible
// to RingBufferShm, which is exactly the point of keeping "who maps the
// memory" out of scope for this package.
func newTestRing(t *testing.T, packetSize, numBuffers uint32) *RingBufferShm {
	t.Helper()
	size := ControlBlockSize() + uintptr(numBuffers)*uintptr(packetSize)
	mem := make([]byte, size)
	ring, err := Init(mem, packetSize, numBuffers, false)
	if err != nil {
		t.Fatalf("Init() = %v", err)
	}
	return ring
}

func TestInitRejectsInvalidParams(t *testing.T) {
	mem := make([]byte, 1024)

	cases := []struct {
		name       string
		packetSize uint32
		numBuffers uint32
		mem        []byte
	}{
		{"zero packet size", 0, 4, mem},
		{"zero num buffers", 1, 0, mem},
		{"nil mem", 1, 4, nil},
		{"mem too small", 1, 4096, mem},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Init(tc.mem, tc.packetSize, tc.numBuffers, false); err != ErrInvalidParam {
				t.Fatalf("Init() = %v, want ErrInvalidParam", err)
			}
		})
	}
}

func TestAttachBeforeInitFails(t *testing.T) {
	mem := make([]byte, ControlBlockSize()+16)
	if _, err := Attach(mem); err != ErrNotInitialized {
		t.Fatalf("Attach() = %v, want ErrNotInitialized", err)
	}
}

func TestAttachAfterInit(t *testing.T) {
	size := ControlBlockSize() + 4*1
	mem := make([]byte, size)
	if _, err := Init(mem, 1, 4, false); err != nil {
		t.Fatalf("Init() = %v", err)
	}

	ring, err := Attach(mem)
	if err != nil {
		t.Fatalf("Attach() = %v", err)
	}
	if ring.PacketSize() != 1 || ring.NumBuffers() != 4 {
		t.Fatalf("attached ring geometry = (%d, %d), want (1, 4)", ring.PacketSize(), ring.NumBuffers())
	}
}

// scenario 1 from spec.md §8: fill and drain. The writer fills all 4 slots
// of a brand-new ring in a single lap (writeOffset wraps from 0 straight
// back to 0) before the reader has touched it. The offset subtraction alone
// (writeOffset-r.offset == 0) would read that as "empty"; calcReaderLevel
// recognises the full ring (reader on readOffset, bufferLevel == numBuffers)
// and the reader's first beginAccess is granted all 4 slots.
func TestFillFromVirginRingIsVisibleToAReaderThatNeverRead(t *testing.T) {
	ring := newTestRing(t, 1, 4)

	const readerA = 100
	if err := ring.AddReader(readerA); err != nil {
		t.Fatalf("AddReader(A) = %v", err)
	}

	offset, n, err := ring.BeginAccess(AccessWrite, 0, 4)
	if err != nil {
		t.Fatalf("BeginAccess(write) = %v", err)
	}
	if offset != 0 || n != 4 {
		t.Fatalf("BeginAccess(write) = (%d, %d), want (0, 4)", offset, n)
	}
	if err := ring.EndAccess(AccessWrite, 0, offset, n); err != nil {
		t.Fatalf("EndAccess(write) = %v", err)
	}

	state := ring.DebugState()
	if state.WriteOffset != 0 || state.BufferLevel != 4 {
		t.Fatalf("state after write = %+v, want WriteOffset=0 BufferLevel=4", state)
	}

	roff, rn, err := ring.BeginAccess(AccessRead, readerA, 4)
	if err != nil {
		t.Fatalf("BeginAccess(read) = %v", err)
	}
	if roff != 0 || rn != 4 {
		t.Fatalf("BeginAccess(read) = (%d, %d), want (0, 4): the full first lap is readable", roff, rn)
	}
}

// scenario 1 from spec.md §8, from a primed ring: a one-slot write/drain
// moves writeOffset and readOffset to 1, so the fill below is clamped at
// the physical end to 3 slots and both readers drain that backlog down to
// empty.
func TestFillAndDrain(t *testing.T) {
	ring := newTestRing(t, 1, 4)

	const readerA, readerB = 100, 200
	if err := ring.AddReader(readerA); err != nil {
		t.Fatalf("AddReader(A) = %v", err)
	}
	if err := ring.AddReader(readerB); err != nil {
		t.Fatalf("AddReader(B) = %v", err)
	}

	// Prime the ring with one slot and drain it immediately so readOffset
	// and writeOffset both move off of 0 before the real fill below.
	offset, n, err := ring.BeginAccess(AccessWrite, 0, 1)
	if err != nil {
		t.Fatalf("priming BeginAccess(write) = %v", err)
	}
	if err := ring.EndAccess(AccessWrite, 0, offset, n); err != nil {
		t.Fatalf("priming EndAccess(write) = %v", err)
	}
	for _, id := range []int32{readerA, readerB} {
		roff, rn, err := ring.BeginAccess(AccessRead, id, 1)
		if err != nil {
			t.Fatalf("priming BeginAccess(read, %d) = %v", id, err)
		}
		if err := ring.EndAccess(AccessRead, id, roff, rn); err != nil {
			t.Fatalf("priming EndAccess(read, %d) = %v", id, err)
		}
	}

	state := ring.DebugState()
	if state.WriteOffset != 1 || state.ReadOffset != 1 || state.BufferLevel != 0 {
		t.Fatalf("state after priming = %+v, want WriteOffset=1 ReadOffset=1 BufferLevel=0", state)
	}

	offset, n, err = ring.BeginAccess(AccessWrite, 0, 4)
	if err != nil {
		t.Fatalf("BeginAccess(write) = %v", err)
	}
	if offset != 1 || n != 3 {
		t.Fatalf("BeginAccess(write) = (%d, %d), want (1, 3): clamped to the physical end", offset, n)
	}
	if err := ring.EndAccess(AccessWrite, 0, offset, n); err != nil {
		t.Fatalf("EndAccess(write) = %v", err)
	}

	state = ring.DebugState()
	if state.WriteOffset != 0 || state.BufferLevel != 3 {
		t.Fatalf("state after write = %+v, want WriteOffset=0 BufferLevel=3", state)
	}

	for _, id := range []int32{readerA, readerB} {
		roff, rn, err := ring.BeginAccess(AccessRead, id, 4)
		if err != nil {
			t.Fatalf("BeginAccess(read, %d) = %v", id, err)
		}
		if roff != 1 || rn != 3 {
			t.Fatalf("BeginAccess(read, %d) = (%d, %d), want (1, 3)", id, roff, rn)
		}
		if err := ring.EndAccess(AccessRead, id, roff, rn); err != nil {
			t.Fatalf("EndAccess(read, %d) = %v", id, err)
		}
	}

	state = ring.DebugState()
	if state.ReadOffset != 0 || state.BufferLevel != 0 {
		t.Fatalf("state after drain = %+v, want ReadOffset=0 BufferLevel=0", state)
	}
}

// scenario 2 from spec.md §8: writer clamp at physical end.
func TestWriterClampsAtPhysicalEnd(t *testing.T) {
	ring := newTestRing(t, 1, 4)
	ring.cb.writeOffset = 2

	offset, n, err := ring.BeginAccess(AccessWrite, 0, 4)
	if err != nil {
		t.Fatalf("BeginAccess(write) = %v", err)
	}
	if offset != 2 || n != 2 {
		t.Fatalf("BeginAccess(write) = (%d, %d), want (2, 2)", offset, n)
	}
}

// scenario 3 from spec.md §8: single-writer enforcement.
func TestSingleWriterEnforcement(t *testing.T) {
	ring := newTestRing(t, 1, 4)

	_, _, err := ring.BeginAccess(AccessWrite, 0, 4)
	if err != nil {
		t.Fatalf("first BeginAccess(write) = %v, want nil", err)
	}

	_, _, err = ring.BeginAccess(AccessWrite, 0, 4)
	if err != ErrNotAllowed {
		t.Fatalf("second BeginAccess(write) = %v, want ErrNotAllowed", err)
	}
}

func TestEndAccessReadRejectsOverClaim(t *testing.T) {
	ring := newTestRing(t, 1, 4)
	if err := ring.AddReader(1); err != nil {
		t.Fatalf("AddReader() = %v", err)
	}

	offset, n, err := ring.BeginAccess(AccessWrite, 0, 4)
	if err != nil {
		t.Fatalf("BeginAccess(write) = %v", err)
	}
	if err := ring.EndAccess(AccessWrite, 0, offset, n); err != nil {
		t.Fatalf("EndAccess(write) = %v", err)
	}

	roff, rn, err := ring.BeginAccess(AccessRead, 1, 2)
	if err != nil {
		t.Fatalf("BeginAccess(read) = %v", err)
	}

	if err := ring.EndAccess(AccessRead, 1, roff, rn+1); err != ErrInvalidParam {
		t.Fatalf("EndAccess(read) over-claim = %v, want ErrInvalidParam", err)
	}
}

// R1 from spec.md §8: addReader;removeReader round trip.
func TestAddRemoveReaderRoundTrip(t *testing.T) {
	ring := newTestRing(t, 1, 4)

	before := ring.cb.readers

	if err := ring.AddReader(42); err != nil {
		t.Fatalf("AddReader() = %v", err)
	}
	if err := ring.RemoveReader(42); err != nil {
		t.Fatalf("RemoveReader() = %v", err)
	}

	after := ring.cb.readers
	if before != after {
		t.Fatalf("reader table changed across add/remove round trip: before=%+v after=%+v", before, after)
	}
}

func TestAddReaderRejectsInvalidID(t *testing.T) {
	ring := newTestRing(t, 1, 4)
	if err := ring.AddReader(0); err != ErrInvalidParam {
		t.Fatalf("AddReader(0) = %v, want ErrInvalidParam", err)
	}
	if err := ring.AddReader(-1); err != ErrInvalidParam {
		t.Fatalf("AddReader(-1) = %v, want ErrInvalidParam", err)
	}
}

func TestAddReaderTableFull(t *testing.T) {
	ring := newTestRing(t, 1, 4)
	for i := int32(1); i <= cMaxReaders; i++ {
		if err := ring.AddReader(i); err != nil {
			t.Fatalf("AddReader(%d) = %v", i, err)
		}
	}
	if err := ring.AddReader(cMaxReaders + 1); err != ErrTooManyReaders {
		t.Fatalf("AddReader() on full table = %v, want ErrTooManyReaders", err)
	}
}

func TestUpdateAvailableWrite(t *testing.T) {
	ring := newTestRing(t, 1, 4)

	n, err := ring.UpdateAvailable(AccessWrite, 0)
	if err != nil {
		t.Fatalf("UpdateAvailable(write) = %v", err)
	}
	if n != 4 {
		t.Fatalf("UpdateAvailable(write) = %d, want 4", n)
	}

	offset, got, err := ring.BeginAccess(AccessWrite, 0, 2)
	if err != nil {
		t.Fatalf("BeginAccess(write) = %v", err)
	}
	if err := ring.EndAccess(AccessWrite, 0, offset, got); err != nil {
		t.Fatalf("EndAccess(write) = %v", err)
	}

	n, err = ring.UpdateAvailable(AccessWrite, 0)
	if err != nil {
		t.Fatalf("UpdateAvailable(write) = %v", err)
	}
	if n != 2 {
		t.Fatalf("UpdateAvailable(write) after 2-slot commit = %d, want 2", n)
	}
}

func TestUpdateAvailableUnknownReader(t *testing.T) {
	ring := newTestRing(t, 1, 4)
	if _, err := ring.UpdateAvailable(AccessRead, 999); err != ErrInvalidParam {
		t.Fatalf("UpdateAvailable(read, unknown) = %v, want ErrInvalidParam", err)
	}
}

func TestUpdateAvailableUndefinedAccess(t *testing.T) {
	ring := newTestRing(t, 1, 4)
	if _, err := ring.UpdateAvailable(AccessUndefined, 1); err != ErrInvalidParam {
		t.Fatalf("UpdateAvailable(undefined) = %v, want ErrInvalidParam", err)
	}
}

func TestOperationsBeforeInitFail(t *testing.T) {
	var ring RingBufferShm
	if err := ring.AddReader(1); err != ErrNotInitialized {
		t.Fatalf("AddReader() on zero-value ring = %v, want ErrNotInitialized", err)
	}
}
