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

// Package shmseg plays the role ringbuf.RingBufferShm deliberately leaves
// external: allocating and mapping the backing shared memory region. It
// knows nothing about the ring's internal layout beyond its declared size;
// it hands ringbuf.Init/Attach a raw byte slice and gets a *ringbuf.RingBufferShm
// back.
package shmseg
