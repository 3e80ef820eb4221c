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

// Package heap simulates the sbrk-style, monotonically growing heap region
// that a real allocator would extend via brk(2)/sbrk(2). It supplies only
// the three host primitives an allocator kernel needs: grow the region,
// report its bounds. It knows nothing about blocks, headers, or free lists.
package heap

import (
	"errors"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// ErrOutOfMemory is returned by Extend once the pre-reserved backing
// region is exhausted. There is no way to grow past it: like a real
// process heap bumping into its address space limit, this is terminal.
var ErrOutOfMemory = errors.New("heap: backing region exhausted")

// DefaultCapacity is the virtual address space reserved for a Heap created
// with New. It is sized generously relative to the 4096-byte default
// extension chunk so ordinary test/driver workloads never hit it.
const DefaultCapacity = 64 << 20 // 64MiB

// baseAlignment is the alignment of the region's first byte. A real
// program break starts page-aligned; allocators layer their own payload
// alignment on top of that, so the simulated region must start aligned
// too.
const baseAlignment = 16

// Heap is a contiguous, monotonically growing byte region. The backing
// store is reserved once at construction and never moved: once Extend
// hands an address to a caller, that address must stay valid for the
// Heap's lifetime, so growth only ever advances a logical top within the
// pre-reserved capacity rather than reallocating.
type Heap struct {
	mem      []byte
	base     unsafe.Pointer
	top      int
	capacity int
}

// New creates a Heap with DefaultCapacity reserved.
func New() *Heap {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a Heap that can grow up to capacity bytes before
// Extend starts failing with ErrOutOfMemory. A capacity <= 0 falls back to
// DefaultCapacity.
func NewWithCapacity(capacity int) *Heap {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// The reservation is large and its contents carry no meaning until an
	// allocator writes block metadata into them, so skip the zeroing a
	// plain make would pay for. Callers wanting zeroed payloads go through
	// the allocator's Calloc, which zero-fills explicitly.
	mem := dirtmake.Bytes(capacity+baseAlignment, capacity+baseAlignment)
	base := unsafe.Pointer(&mem[0])
	if off := uintptr(base) % baseAlignment; off != 0 {
		base = unsafe.Add(base, baseAlignment-int(off))
	}
	return &Heap{
		mem:      mem,
		base:     base,
		capacity: capacity,
	}
}

// Extend grows the heap by n bytes and returns the address of the first
// newly available byte — the heap's previous top — mirroring sbrk(2)'s
// return convention of handing back the region's old break.
func (h *Heap) Extend(n int) (unsafe.Pointer, error) {
	if n < 0 {
		return nil, errors.New("heap: negative extension size")
	}
	if h.top+n > h.capacity {
		return nil, ErrOutOfMemory
	}
	p := unsafe.Add(h.base, h.top)
	h.top += n
	return p, nil
}

// Lo returns the address of the first byte of the heap. It is fixed for
// the Heap's lifetime.
func (h *Heap) Lo() unsafe.Pointer {
	return h.base
}

// Hi returns the address of the last valid byte currently in the heap.
// Unlike Lo, it moves forward every time Extend succeeds.
func (h *Heap) Hi() unsafe.Pointer {
	if h.top == 0 {
		return h.base
	}
	return unsafe.Add(h.base, h.top-1)
}

// Size returns the number of bytes the heap has grown to so far.
func (h *Heap) Size() int {
	return h.top
}

// Capacity returns the total reserved backing size.
func (h *Heap) Capacity() int {
	return h.capacity
}
