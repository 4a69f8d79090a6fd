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

package shmseg

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/tnishiok/AVBStreamHandler/ringbuf"
)

// Segment owns the mmapped region backing a RingBufferShm, and the open
// file it was mapped from. Closing it unmaps the region; it does not
// remove the backing file, so a fresh Create can detect a stale segment
// left behind by a crashed writer via os.O_EXCL and report it cleanly
// rather than silently truncating live readers' mapping out from under
// them.
type Segment struct {
	Ring *ringbuf.RingBufferShm

	file *os.File
	mem  []byte
	path string
}

// Create allocates a new shared memory segment sized for the given
// geometry, maps it, and initializes a fresh ring buffer over it. name is
// turned into a /dev/shm path (falling back to os.TempDir if /dev/shm is
// unavailable), mirroring the teacher's segment path resolution.
func Create(name string, packetSize, numBuffers uint32) (*Segment, error) {
	path := segmentPath(name)

	size := ringbuf.ControlBlockSize() + uintptr(numBuffers)*uintptr(packetSize)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shmseg: create segment %s: %w", path, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("shmseg: resize segment: %w", err)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("shmseg: mmap segment: %w", err)
	}

	ring, err := ringbuf.Init(mem, packetSize, numBuffers, true)
	if err != nil {
		unix.Munmap(mem)
		cleanup()
		return nil, fmt.Errorf("shmseg: init ring: %w", err)
	}

	return &Segment{Ring: ring, file: file, mem: mem, path: path}, nil
}

// Open attaches to an existing shared memory segment previously created by
// Create, in this or another process.
func Open(name string) (*Segment, error) {
	path := segmentPath(name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shmseg: open segment %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shmseg: stat segment: %w", err)
	}

	mem, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("shmseg: mmap segment: %w", err)
	}

	ring, err := ringbuf.Attach(mem)
	if err != nil {
		unix.Munmap(mem)
		file.Close()
		return nil, fmt.Errorf("shmseg: attach ring: %w", err)
	}

	return &Segment{Ring: ring, file: file, mem: mem, path: path}, nil
}

// Close unmaps the segment and closes its file descriptor. It does not
// remove the backing path; call Remove for that, typically only from the
// writer once every reader has detached.
func (s *Segment) Close() error {
	var firstErr error
	if s.mem != nil {
		if err := unix.Munmap(s.mem); err != nil && firstErr == nil {
			firstErr = err
		}
		s.mem = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}

// Remove deletes the backing shared memory file. Safe to call after Close.
func Remove(name string) error {
	return os.Remove(segmentPath(name))
}

func segmentPath(name string) string {
	if isDevShmAvailable() {
		return filepath.Join("/dev/shm", "avbvideo_"+name)
	}
	return filepath.Join(os.TempDir(), "avbvideo_"+name)
}

func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	return err == nil && info.IsDir()
}
