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

package malloc

import "unsafe"

// Check walks the heap and every free list, verifying block alignment
// and minimum size, header/footer agreement, neighbor-flag consistency,
// the absence of adjacent free blocks, free-list linkage, and that both
// walks agree on the number of free blocks. lineHint is accepted for
// callers that report it alongside a failure; Check itself ignores it and
// it has no effect on the result. It returns false at the first violation
// found and true if the entire heap and free-index are consistent.
//
// Check is advisory: it is meant for use in tests and debug builds, not
// as a substitute for correct caller behavior. It never panics.
func (a *Allocator) Check(lineHint int) bool {
	_ = lineHint
	if !a.initialized {
		return true
	}

	heapWalkFree, ok := a.checkHeapWalk()
	if !ok {
		return false
	}

	listWalkFree, ok := a.checkFreeLists()
	if !ok {
		return false
	}

	return heapWalkFree == listWalkFree
}

// checkHeapWalk traverses the heap left to right from the first real
// block through the epilogue, verifying per-block shape and the
// neighbor flags, rejecting two consecutive free blocks, and checking
// non-mini free-block header/footer equality. It returns the number of
// free blocks seen.
func (a *Allocator) checkHeapWalk() (int, bool) {
	lo := a.h.Lo()
	hi := a.h.Hi()

	if a.prologue.size() != 0 || !a.prologue.allocated() {
		return 0, false
	}

	free := 0
	prevWasFree := false

	b := block{unsafe.Add(a.prologue.p, wordSize)}
	for b.p != a.epilogue.p {
		// The correct bound test is an OR: a block outside [lo+8, hi-7]
		// in either direction is invalid. An AND here would only ever
		// reject a block that is simultaneously before lo and after hi,
		// which no address can be.
		if uintptrOf(b.p) < uintptrOf(lo)+wordSize || uintptrOf(b.p) > uintptrOf(hi)-7 {
			return free, false
		}

		size := b.size()
		if size < minBlockSize || size%alignment != 0 {
			return free, false
		}
		// Alignment is promised on payloads, not headers: the header word
		// sits 8 bytes before each 16-aligned payload.
		if uintptrOf(payload(b))%alignment != 0 {
			return free, false
		}

		alloc := b.allocated()
		if !alloc {
			free++
			if prevWasFree {
				return free, false
			}
			if size > minBlockSize && b.header() != b.footer() {
				return free, false
			}
		}
		prevWasFree = !alloc

		// The epilogue's flags must describe the last real block the same
		// way any interior neighbor's do, so it is not exempt here.
		n := findNext(b)
		if n.prevAllocated() != alloc {
			return free, false
		}
		if n.prevIsMini() != (size == minBlockSize) {
			return free, false
		}

		b = n
	}

	if a.epilogue.size() != 0 || !a.epilogue.allocated() {
		return free, false
	}

	return free, true
}

// checkFreeLists walks every class of the free-index, verifying
// bidirectional linkage for classes 1..9, cycle closure for class 0
// terminating at miniTail, correct class membership for each member's
// size, and that every visited address lies in heap bounds. It returns
// the total number of free blocks found across all classes.
func (a *Allocator) checkFreeLists() (int, bool) {
	lo, hi := a.h.Lo(), a.h.Hi()
	total := 0

	head := a.free.head[0]
	if head.valid() {
		if a.free.miniTail.nextLink().p != head.p {
			return total, false
		}
		b := head
		for {
			if classOf(b.size()) != 0 {
				return total, false
			}
			if uintptrOf(b.p) < uintptrOf(lo) || uintptrOf(b.p) > uintptrOf(hi) {
				return total, false
			}
			total++
			b = b.nextLink()
			if b.p == head.p {
				break
			}
		}
	} else if a.free.miniTail.valid() {
		return total, false
	}

	for class := 1; class < numClasses; class++ {
		head := a.free.head[class]
		if !head.valid() {
			continue
		}
		b := head
		for {
			if classOf(b.size()) != class {
				return total, false
			}
			if uintptrOf(b.p) < uintptrOf(lo) || uintptrOf(b.p) > uintptrOf(hi) {
				return total, false
			}
			if b.nextLink().prevLink().p != b.p {
				return total, false
			}
			if b.prevLink().nextLink().p != b.p {
				return total, false
			}
			total++
			b = b.nextLink()
			if b.p == head.p {
				break
			}
		}
	}

	return total, true
}

func uintptrOf(p unsafe.Pointer) uintptr { return uintptr(p) }
