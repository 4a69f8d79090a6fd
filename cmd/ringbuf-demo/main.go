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

// Command ringbuf-demo exercises a RingBufferShm end to end in a single
// process: it creates a segment, registers a handful of readers, drives the
// writer through fill/drain cycles, and prints a debug snapshot after each
// one. It is the equivalent of the teacher's cmd/debug-capacity probe, for
// the video packet ring instead of the byte-stream ring.
package main

import (
	"flag"
	"log"

	"github.com/tnishiok/AVBStreamHandler/ringbuf"
	"github.com/tnishiok/AVBStreamHandler/shmseg"
)

func main() {
	packetSize := flag.Uint("packet-size", 188, "bytes per slot")
	slots := flag.Uint("slots", 8, "number of ring slots")
	readers := flag.Uint("readers", 2, "number of reader processes to simulate")
	name := flag.String("segment", "ringbuf-demo", "shared memory segment name")
	flag.Parse()

	seg, err := shmseg.Create(*name, uint32(*packetSize), uint32(*slots))
	if err != nil {
		log.Fatalf("create segment: %v", err)
	}
	defer seg.Close()
	defer shmseg.Remove(*name)

	ring := seg.Ring

	readerIDs := make([]int32, *readers)
	for i := range readerIDs {
		readerIDs[i] = int32(i + 1)
		if err := ring.AddReader(readerIDs[i]); err != nil {
			log.Fatalf("add reader %d: %v", readerIDs[i], err)
		}
	}

	for cycle := 0; cycle < 3; cycle++ {
		offset, n, err := ring.BeginAccess(ringbuf.AccessWrite, 0, uint32(*slots))
		if err != nil {
			log.Fatalf("begin write: %v", err)
		}
		buf := ring.Slots(offset, n)
		for i := range buf {
			buf[i] = byte(cycle)
		}
		if err := ring.EndAccess(ringbuf.AccessWrite, 0, offset, n); err != nil {
			log.Fatalf("end write: %v", err)
		}
		log.Printf("cycle %d: wrote %d slots at offset %d", cycle, n, offset)

		for _, id := range readerIDs {
			roff, rn, err := ring.BeginAccess(ringbuf.AccessRead, id, n)
			if err != nil {
				log.Fatalf("begin read (reader %d): %v", id, err)
			}
			if err := ring.EndAccess(ringbuf.AccessRead, id, roff, rn); err != nil {
				log.Fatalf("end read (reader %d): %v", id, err)
			}
			log.Printf("  reader %d: drained %d slots at offset %d", id, rn, roff)
		}

		state := ring.DebugState()
		log.Printf("  state: %+v", state)
	}
}
