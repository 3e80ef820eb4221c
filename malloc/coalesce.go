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

// coalesce merges a just-freed block b with its immediate heap neighbors
// using boundary tags and the prevAlloc flag, registers the resulting
// (possibly larger) free block with fi, and fixes up the neighbor flags
// that describe the merged range. b's header must already say
// allocated=false; b must not yet be a member of fi.
//
// It returns the block that now represents the merged free region, since
// a merge to the left changes which address is "the" free block.
func coalesce(fi *freeIndex, b block) block {
	n := findNext(b)
	leftFree := !b.prevAllocated()
	rightFree := !n.allocated()

	switch {
	case !leftFree && !rightFree:
		fi.insert(b)
		n.setHeader(pack(n.size(), true, false, b.size() == minBlockSize))
		return b

	case !leftFree && rightFree:
		fi.remove(n)
		writeBlock(b, b.size()+n.size(), false, true, b.prevIsMini())
		fi.insert(b)
		right := findNext(b)
		right.setHeader(pack(right.size(), right.allocated(), false, false))
		return b

	case leftFree && !rightFree:
		p := findPrev(b)
		fi.remove(p)
		writeBlock(p, p.size()+b.size(), false, true, p.prevIsMini())
		fi.insert(p)
		n.setHeader(pack(n.size(), true, false, false))
		return p

	default: // leftFree && rightFree
		p := findPrev(b)
		fi.remove(p)
		fi.remove(n)
		writeBlock(p, p.size()+b.size()+n.size(), false, true, p.prevIsMini())
		fi.insert(p)
		beyond := findNext(p)
		beyond.setHeader(pack(beyond.size(), beyond.allocated(), false, false))
		return p
	}
}
