/*
 * Copyright 2024 CloudWeGo Authors
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
 */

// Package invariant holds the allocator's debug-only assertion helper.
// It is deliberately tiny and dependency-free: it exists so the
// mallocdebug build tag can pull in one shared panic path instead of
// every call site formatting its own message.
package invariant

import "fmt"

// Fail panics reporting that a consistency check failed at the given
// line hint. It is only ever called from code built under the
// mallocdebug tag.
func Fail(lineHint int) {
	panic(fmt.Sprintf("malloc: heap consistency check failed (line %d)", lineHint))
}
