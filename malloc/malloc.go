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

// Package malloc is a segregated-fit dynamic memory allocator over a
// contiguous, sbrk-style heap supplied by package heap. It implements the
// block layout, free-list indexing, coalescing, and splitting described
// in the package's design notes: boundary-tag coalescing with footer
// elision for allocated blocks, and a dedicated singly linked "mini"
// free-list class for the 16-byte minimum block size.
//
// The allocator is not safe for concurrent use; callers that share an
// Allocator across goroutines must serialize their own access.
package malloc

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/segalloc/segalloc/heap"
)

// ErrOutOfMemory is returned by Malloc, Realloc, and Calloc when the
// backing heap cannot be extended any further. Callers that want to
// distinguish an out-of-memory condition from an invalid-size one
// (which always returns a plain nil with no error) can errors.Is against
// this sentinel.
var ErrOutOfMemory = errors.New("malloc: out of memory")

// DefaultChunkSize is how much the heap grows by when the free-index has
// no block big enough to satisfy a request and the request itself is
// smaller than this chunk.
const DefaultChunkSize = 4096

// sentinelSize is the on-heap footprint of the prologue and epilogue: one
// header word apiece, no body, no footer.
const sentinelSize = wordSize

// Allocator is a segregated-fit allocator kernel bound to one backing
// Heap. The zero value is not usable; construct one with New.
type Allocator struct {
	h           *heap.Heap
	free        freeIndex
	chunkSize   uint64
	prologue    block
	epilogue    block
	initialized bool
}

// Option configures an Allocator constructed by New.
type Option func(*Allocator)

// WithChunkSize overrides DefaultChunkSize, the number of bytes the heap
// grows by on a miss. n is rounded up to a multiple of 16; values below
// the minimum block size fall back to DefaultChunkSize.
func WithChunkSize(n uint64) Option {
	return func(a *Allocator) {
		if n < minBlockSize {
			return
		}
		a.chunkSize = roundUp(n, alignment)
	}
}

// New creates an Allocator over a fresh Heap and initializes it: writes
// the prologue/epilogue sentinels and performs the first extension.
func New(opts ...Option) (*Allocator, error) {
	a := &Allocator{
		h:         heap.New(),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.init(); err != nil {
		return nil, err
	}
	return a, nil
}

// init lays down the prologue and epilogue sentinels and performs the
// allocator's first heap extension. It is called once, from New; Malloc
// additionally calls it defensively in case an Allocator value is ever
// used without going through New.
func (a *Allocator) init() error {
	if a.chunkSize == 0 {
		a.chunkSize = DefaultChunkSize
	}
	base, err := a.h.Extend(2 * sentinelSize)
	if err != nil {
		return fmt.Errorf("malloc: init: %w", err)
	}

	a.prologue = block{base}
	writeBlock(a.prologue, 0, true, true, false)

	a.epilogue = block{unsafe.Add(base, sentinelSize)}
	writeBlock(a.epilogue, 0, true, true, false)

	a.free = freeIndex{}

	if _, err := a.extendHeap(a.chunkSize); err != nil {
		return fmt.Errorf("malloc: init: %w", err)
	}
	a.initialized = true
	return nil
}

// Malloc services an allocation request for size bytes, returning a
// pointer to the first byte of a writable payload of at least size
// bytes, or nil if size is zero or the heap could not be grown to
// satisfy the request.
func (a *Allocator) Malloc(size uintptr) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}
	if !a.initialized {
		if err := a.init(); err != nil {
			return nil, err
		}
	}

	asize := roundUp(uint64(size)+wordSize, alignment)
	if asize < minBlockSize {
		asize = minBlockSize
	}

	b := a.free.findFirstFit(asize)
	if !b.valid() {
		grow := asize
		if grow < a.chunkSize {
			grow = a.chunkSize
		}
		var err error
		b, err = a.extendHeap(grow)
		if err != nil {
			return nil, ErrOutOfMemory
		}
	}

	a.free.remove(b)
	splitBlock(&a.free, b, asize)

	a.debugCheck(0)
	return payload(b), nil
}

// Free releases the block whose payload begins at ptr, merging it with
// any free neighbors. Freeing a nil pointer is a no-op; freeing a
// pointer not obtained from this Allocator, or freeing the same pointer
// twice, is undefined behavior and is not detected outside of Check.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	b := blockFromPayload(ptr)
	writeBlock(b, b.size(), false, b.prevAllocated(), b.prevIsMini())
	coalesce(&a.free, b)

	a.debugCheck(0)
}

// Realloc resizes the allocation at ptr to size bytes, preserving the
// shared prefix bit-for-bit. A nil ptr behaves as Malloc(size); a zero
// size behaves as Free(ptr) followed by returning nil. Otherwise it
// always allocates fresh, copies min(size, old payload size) bytes, and
// frees the original; there is no in-place-shrink fast path.
func (a *Allocator) Realloc(ptr unsafe.Pointer, size uintptr) (unsafe.Pointer, error) {
	if ptr == nil {
		return a.Malloc(size)
	}
	if size == 0 {
		a.Free(ptr)
		return nil, nil
	}

	oldBlock := blockFromPayload(ptr)
	oldPayloadSize := oldBlock.size() - wordSize

	newPtr, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}

	n := oldPayloadSize
	if uint64(size) < n {
		n = uint64(size)
	}
	memCopy(newPtr, ptr, n)

	a.Free(ptr)
	return newPtr, nil
}

// Calloc allocates space for n elements of size bytes each, zero-filled,
// guarding against the n*size multiplication overflowing. It allocates
// first and zero-fills second, so a failed allocation never touches
// memory.
func (a *Allocator) Calloc(n, size uintptr) (unsafe.Pointer, error) {
	if n == 0 || size == 0 {
		return a.Malloc(0)
	}
	total := n * size
	if total/n != size {
		return nil, nil
	}

	ptr, err := a.Malloc(total)
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, nil
	}
	memZero(ptr, uint64(total))
	return ptr, nil
}

// payload returns the address of b's first payload byte, immediately
// after its header.
func payload(b block) unsafe.Pointer {
	return unsafe.Add(b.p, wordSize)
}

// blockFromPayload recovers the block handle owning a payload pointer
// previously returned by Malloc/Realloc/Calloc.
func blockFromPayload(ptr unsafe.Pointer) block {
	return block{unsafe.Add(ptr, -wordSize)}
}

// memCopy copies n bytes from src to dst. The two ranges never overlap
// in this allocator's usage (Realloc always copies from a just-freed-to
// -be block into a freshly chosen one), so a plain forward copy is
// sufficient.
func memCopy(dst, src unsafe.Pointer, n uint64) {
	if n == 0 {
		return
	}
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}

// memZero fills n bytes at ptr with zero.
func memZero(ptr unsafe.Pointer, n uint64) {
	if n == 0 {
		return
	}
	b := unsafe.Slice((*byte)(ptr), n)
	for i := range b {
		b[i] = 0
	}
}
