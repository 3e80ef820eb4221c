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

const (
	// wordSize is the size in bytes of a header/footer word.
	wordSize = 8

	// minBlockSize is the minimum block size: one header word plus one
	// linkage word, with no room left for a footer.
	minBlockSize = 16

	// alignment every block size and every payload address must satisfy.
	// Block headers sit one word before their payload, at 8 mod 16.
	alignment = 16
)

// Header/footer bit layout (LSB first): bit0 alloc, bit1 prevAlloc,
// bit2 prevIsMini, bit3 reserved (always zero), bits 4..63 size. Expressed
// as explicit masks rather than a bitfield struct so the on-heap layout is
// exact and portable, per the packing contract every reader of this format
// must agree on.
const (
	allocMask     = uint64(0x1)
	prevAllocMask = uint64(0x2)
	prevMiniMask  = uint64(0x4)
	sizeMask      = ^uint64(0xF)
)

// pack encodes size and the three status flags into a header/footer word.
// size must already be 16-aligned; low bits beyond the mask are discarded
// rather than validated, keeping packing allocation-free and cheap on the
// hot path.
func pack(size uint64, alloc, prevAlloc, prevMini bool) uint64 {
	w := size & sizeMask
	if alloc {
		w |= allocMask
	}
	if prevAlloc {
		w |= prevAllocMask
	}
	if prevMini {
		w |= prevMiniMask
	}
	return w
}

func extractSize(w uint64) uint64    { return w & sizeMask }
func extractAlloc(w uint64) bool     { return w&allocMask != 0 }
func extractPrevAlloc(w uint64) bool { return w&prevAllocMask != 0 }
func extractPrevMini(w uint64) bool  { return w&prevMiniMask != 0 }

// block is a lightweight handle onto a header word somewhere inside a
// Heap's backing arena. It owns no memory; it is only ever a view into
// bytes owned by the Heap, which is why it is cheap to pass and return by
// value throughout this package.
type block struct {
	p unsafe.Pointer
}

// blockAt wraps a raw address as a block handle.
func blockAt(p unsafe.Pointer) block { return block{p} }

// valid reports whether b refers to an actual address, as opposed to the
// zero value used as a "no block" sentinel (an empty free-list head, an
// unset tail).
func (b block) valid() bool { return b.p != nil }

func (b block) header() uint64     { return *(*uint64)(b.p) }
func (b block) setHeader(w uint64) { *(*uint64)(b.p) = w }

func (b block) size() uint64        { return extractSize(b.header()) }
func (b block) allocated() bool     { return extractAlloc(b.header()) }
func (b block) prevAllocated() bool { return extractPrevAlloc(b.header()) }
func (b block) prevIsMini() bool    { return extractPrevMini(b.header()) }

func (b block) footerAddr() unsafe.Pointer {
	return unsafe.Add(b.p, int(b.size())-wordSize)
}

func (b block) footer() uint64     { return *(*uint64)(b.footerAddr()) }
func (b block) setFooter(w uint64) { *(*uint64)(b.footerAddr()) = w }

// writeBlock is the single point of truth for whether a footer gets
// written: footers exist only for free blocks bigger than the minimum
// size. Allocated blocks never carry one (their left neighbor only ever
// needs the prevAlloc bit, never their size); mini free blocks can't fit
// one (16 bytes is exactly header + one linkage word).
func writeBlock(b block, size uint64, alloc, prevAlloc, prevMini bool) {
	w := pack(size, alloc, prevAlloc, prevMini)
	b.setHeader(w)
	if !alloc && size > minBlockSize {
		b.setFooter(w)
	}
}

// findNext returns b's right neighbor. Undefined if b is the epilogue.
func findNext(b block) block {
	return block{unsafe.Add(b.p, int(b.size()))}
}

// findPrev returns b's left neighbor. The caller must already know
// !b.prevAllocated(): an allocated left neighbor's size can't be
// recovered since it carries no footer. A mini predecessor is found via
// prevIsMini; any other free predecessor via its footer.
func findPrev(b block) block {
	if b.prevIsMini() {
		return block{unsafe.Add(b.p, -minBlockSize)}
	}
	prevFooter := *(*uint64)(unsafe.Add(b.p, -wordSize))
	prevSize := extractSize(prevFooter)
	return block{unsafe.Add(b.p, -int(prevSize))}
}

// roundUp rounds size up to the next multiple of n.
func roundUp(size, n uint64) uint64 {
	return n * ((size + n - 1) / n)
}
