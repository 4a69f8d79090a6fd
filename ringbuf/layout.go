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

// Package ringbuf implements a single-producer/multi-consumer video packet
// ring buffer designed to live in shared memory. A writer process and up to
// cMaxReaders reader processes, each identified by a nonzero integer token,
// exchange fixed-size packet slots without copying through a two-phase
// begin/end access borrow protocol.
package ringbuf

import (
	"unsafe"

	"github.com/tnishiok/AVBStreamHandler/shmsync"
)

const (
	// cMaxReaders is the fixed capacity of the reader table.
	cMaxReaders = 16

	// nsecPerSec converts between seconds and nanoseconds for monotonic
	// timestamp arithmetic.
	nsecPerSec = 1_000_000_000

	// readerTimeoutNS is the staleness threshold past which a reader is
	// unilaterally purged from the table by the writer's endAccess path.
	readerTimeoutNS = 2 * nsecPerSec
)

// Access selects which side of the ring an operation addresses. The zero
// value, AccessUndefined, is deliberately invalid so a caller that forgets
// to set it is rejected with ErrInvalidParam rather than silently treated
// as a read.
type Access int

const (
	AccessUndefined Access = iota
	AccessRead
	AccessWrite
)

// readerEntry is one slot of the fixed-size reader table. id == 0 means the
// slot is free and offset/lastAccess/allowedToRead are meaningless. Fields
// are read and written with sync/atomic because the owning reader, the
// aggregation pass run from every reader's EndAccess, and the writer's purge
// pass all touch an entry
// without a shared lock on the hot path.
type readerEntry struct {
	id            int32
	offset        uint32
	lastAccess    uint64
	allowedToRead uint32
}

// controlBlock is the control structure placed at the start of the shared
// region: fixed layout, no pointers, no slices, so that a writer process
// and reader processes compiled and running independently agree on its
// shape from the compiled layout alone; the geometry (packetSize,
// numBuffers) is stored in the block itself, which is where Attach reads
// it from. Mutexes and condition variables are embedded by value,
// not referenced, so the whole struct is one self-contained region of
// shared memory.
type controlBlock struct {
	packetSize  uint32
	numBuffers  uint32
	initialized uint32 // 0 or 1, atomic

	readOffset  uint32 // atomic; advanced only by aggregateReaderOffset
	writeOffset uint32 // atomic; advanced only by endAccess(write)
	bufferLevel uint32 // atomic

	writeInProgress  uint32 // 0 or 1, atomic CAS guards single-writer borrow
	allowedToWrite   uint32
	writerLastAccess uint64 // atomic, monotonic ns

	readWaitLevel  uint32 // atomic; smallest level any waiting reader wants
	writeWaitLevel uint32 // atomic; level a waiting writer wants to see

	mutex                shmsync.Mutex
	mutexReaders         shmsync.Mutex
	mutexWriteInProgress shmsync.Mutex
	condRead             shmsync.Cond
	condWrite            shmsync.Cond

	readers [cMaxReaders]readerEntry
}

// controlBlockSize is the number of bytes the control block occupies at the
// start of the shared region. The slot array begins immediately after it.
// Exported via ControlBlockSize for callers (e.g. the shmseg mapper) that
// need to compute the total region size before allocating it.
const controlBlockSize = unsafe.Sizeof(controlBlock{})

// ControlBlockSize is the fixed number of bytes a RingBufferShm's control
// block occupies at the start of its backing region, before the slot array.
func ControlBlockSize() uintptr {
	return controlBlockSize
}
