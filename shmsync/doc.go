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

// Package shmsync provides process-shared synchronization primitives built
// on Linux futexes: a mutex and a condition variable that live as plain
// value fields inside a shared memory mapping, usable by any process that
// maps the same region.
//
// Unlike sync.Mutex and sync.Cond, these types carry no Go pointers and no
// runtime-registered state; every operation addresses the underlying word
// directly, so the zero value is ready to use the moment the backing memory
// is mapped by any process, including one that did not construct it.
package shmsync
