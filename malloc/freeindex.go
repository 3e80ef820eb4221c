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

// numClasses is the number of segregated size classes: one mini class plus
// nine doubling classes from 17..64 up to >=8193.
const numClasses = 10

// classOf returns the size class a free block of the given size belongs
// to (and, for a requested size, the class find_first_fit should start
// scanning from).
func classOf(size uint64) int {
	switch {
	case size <= 16:
		return 0
	case size <= 64:
		return 1
	case size <= 128:
		return 2
	case size <= 256:
		return 3
	case size <= 512:
		return 4
	case size <= 1024:
		return 5
	case size <= 2048:
		return 6
	case size <= 4096:
		return 7
	case size <= 8192:
		return 8
	default:
		return 9
	}
}

// Linkage fields live inside a free block's own body, right after its
// header — there is no side table. A mini block (exactly 16 bytes) has
// room for one linkage word; a regular free block (>=32 bytes) has room
// for two, followed eventually by its footer.
func (b block) nextLink() block {
	return block{*(*unsafe.Pointer)(unsafe.Add(b.p, wordSize))}
}

func (b block) setNextLink(n block) {
	*(*unsafe.Pointer)(unsafe.Add(b.p, wordSize)) = n.p
}

func (b block) prevLink() block {
	return block{*(*unsafe.Pointer)(unsafe.Add(b.p, 2*wordSize))}
}

func (b block) setPrevLink(n block) {
	*(*unsafe.Pointer)(unsafe.Add(b.p, 2*wordSize)) = n.p
}

// freeIndex is the segregated collection of free lists: class 0 is a
// singly linked, FIFO-ordered circular list of mini (16-byte) blocks;
// classes 1..9 are LIFO-ordered doubly linked circular lists.
type freeIndex struct {
	head     [numClasses]block
	miniTail block
}

// insert adds b — already marked free, not yet a member of any list — to
// the class matching its size.
func (fi *freeIndex) insert(b block) {
	if classOf(b.size()) == 0 {
		fi.insertMini(b)
		return
	}
	fi.insertRegular(classOf(b.size()), b)
}

// insertMini appends b at the tail of the mini FIFO. Appending rather
// than prepending means a splitter that keeps re-freeing the same small
// cell doesn't churn the list — the intended semantics here are "mini
// always takes this path", never falling through to the regular-list
// splice below it.
func (fi *freeIndex) insertMini(b block) {
	head := fi.head[0]
	if !head.valid() {
		b.setNextLink(b)
		fi.head[0] = b
		fi.miniTail = b
		return
	}
	fi.miniTail.setNextLink(b)
	b.setNextLink(head)
	fi.miniTail = b
}

// insertRegular splices b in as the new head of class's ring (LIFO).
func (fi *freeIndex) insertRegular(class int, b block) {
	head := fi.head[class]
	if !head.valid() {
		b.setNextLink(b)
		b.setPrevLink(b)
		fi.head[class] = b
		return
	}
	tail := head.prevLink()
	b.setNextLink(head)
	b.setPrevLink(tail)
	tail.setNextLink(b)
	head.setPrevLink(b)
	fi.head[class] = b
}

// remove takes b out of its class's list.
func (fi *freeIndex) remove(b block) {
	class := classOf(b.size())
	if class == 0 {
		fi.removeMini(b)
		return
	}
	fi.removeRegular(class, b)
}

// removeMini handles the mini list's four shapes: b is the sole member;
// b is the head; b is the tail; or b is interior, which (links being
// one-way) needs a linear scan to find b's predecessor. This scan is
// O(n) in the mini list's length by design, not an oversight.
func (fi *freeIndex) removeMini(b block) {
	head := fi.head[0]
	if head.p == b.p && fi.miniTail.p == b.p {
		fi.head[0] = block{}
		fi.miniTail = block{}
		return
	}
	if head.p == b.p {
		fi.head[0] = b.nextLink()
		fi.miniTail.setNextLink(b.nextLink())
		return
	}
	pred := head
	for pred.nextLink().p != b.p {
		pred = pred.nextLink()
	}
	pred.setNextLink(b.nextLink())
	if fi.miniTail.p == b.p {
		fi.miniTail = pred
	}
}

// removeRegular unlinks b from a doubly linked circular list.
func (fi *freeIndex) removeRegular(class int, b block) {
	next := b.nextLink()
	prev := b.prevLink()
	if next.p == b.p {
		fi.head[class] = block{}
		return
	}
	prev.setNextLink(next)
	next.setPrevLink(prev)
	if fi.head[class].p == b.p {
		fi.head[class] = next
	}
}

// findFirstFit scans classes from class_of(asize) upward and returns the
// first free block big enough to hold asize, or the zero block if none
// exists anywhere in the index.
func (fi *freeIndex) findFirstFit(asize uint64) block {
	for class := classOf(asize); class < numClasses; class++ {
		head := fi.head[class]
		if !head.valid() {
			continue
		}
		if class == 0 {
			if asize <= minBlockSize {
				return head
			}
			continue
		}
		for b := head; ; {
			if b.size() >= asize {
				return b
			}
			b = b.nextLink()
			if b.p == head.p {
				break
			}
		}
	}
	return block{}
}
