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

// extendHeap grows the backing heap by reqBytes (rounded up to 16),
// turns the fresh bytes into one free block, re-establishes the
// epilogue, and coalesces the new block with its left neighbor if that
// neighbor happens to be free. It returns the final free block, already
// registered with a.free by coalesce.
func (a *Allocator) extendHeap(reqBytes uint64) (block, error) {
	size := roundUp(reqBytes, alignment)

	newTop, err := a.h.Extend(int(size))
	if err != nil {
		return block{}, err
	}

	// newTop is the address right past the heap's previous end, i.e. one
	// word past the old epilogue. Backing up one word lands exactly on
	// that old epilogue's header — which becomes the new free block.
	b := block{unsafe.Add(newTop, -wordSize)}
	prevAlloc := b.prevAllocated()
	prevMini := b.prevIsMini()
	writeBlock(b, size, false, prevAlloc, prevMini)

	epilogue := findNext(b)
	writeBlock(epilogue, 0, true, false, size == minBlockSize)
	a.epilogue = epilogue

	return coalesce(&a.free, b), nil
}
