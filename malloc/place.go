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

// splitBlock marks the free block b (already removed from fi) allocated
// with size asize, carving off and re-registering whatever remainder is
// left over. b.size() must be >= asize.
//
// Because every size here is a multiple of 16, the remainder is either
// exactly 0 or at least minBlockSize — there is no case where leftover
// space is too small to hold a block but too big to discard.
func splitBlock(fi *freeIndex, b block, asize uint64) block {
	total := b.size()
	remainder := total - asize

	if remainder >= minBlockSize {
		writeBlock(b, asize, true, b.prevAllocated(), b.prevIsMini())

		r := findNext(b)
		writeBlock(r, remainder, false, true, asize == minBlockSize)
		fi.insert(r)

		if remainder == minBlockSize {
			beyond := findNext(r)
			beyond.setHeader(pack(beyond.size(), beyond.allocated(), beyond.prevAllocated(), true))
		}
		return b
	}

	writeBlock(b, total, true, b.prevAllocated(), b.prevIsMini())
	n := findNext(b)
	n.setHeader(pack(n.size(), n.allocated(), true, total == minBlockSize))
	return b
}
