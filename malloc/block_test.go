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

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpack(t *testing.T) {
	tests := []struct {
		name      string
		size      uint64
		alloc     bool
		prevAlloc bool
		prevMini  bool
	}{
		{"all_false", 32, false, false, false},
		{"all_true", 48, true, true, true},
		{"alloc_only", 16, true, false, false},
		{"prev_alloc_only", 64, false, true, false},
		{"prev_mini_only", 32, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := pack(tt.size, tt.alloc, tt.prevAlloc, tt.prevMini)
			assert.Equal(t, tt.size, extractSize(w))
			assert.Equal(t, tt.alloc, extractAlloc(w))
			assert.Equal(t, tt.prevAlloc, extractPrevAlloc(w))
			assert.Equal(t, tt.prevMini, extractPrevMini(w))
		})
	}
}

func TestPackDiscardsLowBitsOfSize(t *testing.T) {
	// size is not itself validated for alignment by pack; a caller that
	// passes an unaligned size silently loses the low bits rather than
	// panicking, matching the package's unvalidated packing contract.
	w := pack(33, true, false, false)
	assert.Equal(t, uint64(32), extractSize(w))
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		size, n, want uint64
	}{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{24, 16, 32},
		{4096, 16, 4096},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundUp(tt.size, tt.n), "roundUp(%d,%d)", tt.size, tt.n)
	}
}

func TestWriteBlockFooterElision(t *testing.T) {
	buf := make([]byte, 64)
	base := unsafe.Pointer(&buf[0])

	// Allocated: never gets a footer, regardless of size.
	b := block{base}
	writeBlock(b, 32, true, false, false)
	footerBefore := *(*uint64)(unsafe.Add(base, 24))
	assert.Zero(t, footerBefore, "allocated block must not write a footer")

	// Free, >minBlockSize: footer must mirror the header exactly.
	writeBlock(b, 32, false, true, false)
	assert.Equal(t, b.header(), b.footer())

	// Free, exactly minBlockSize (mini): no footer, no room for one.
	mini := block{unsafe.Add(base, 32)}
	writeBlock(mini, 16, false, true, false)
	tail := *(*uint64)(unsafe.Add(mini.p, 8))
	assert.Zero(t, tail, "mini free block must not write a footer")
}

func TestFindNextFindPrev(t *testing.T) {
	buf := make([]byte, 96)
	base := unsafe.Pointer(&buf[0])

	first := block{base}
	writeBlock(first, 32, false, true, false)

	second := findNext(first)
	assert.Equal(t, unsafe.Add(base, 32), second.p)

	writeBlock(second, 32, false, true, false)
	assert.Equal(t, first.p, findPrev(second).p)
}

func TestFindPrevMini(t *testing.T) {
	buf := make([]byte, 48)
	base := unsafe.Pointer(&buf[0])

	mini := block{base}
	writeBlock(mini, 16, false, true, false)

	second := block{unsafe.Add(base, 16)}
	writeBlock(second, 32, false, false, true)

	assert.Equal(t, mini.p, findPrev(second).p)
}
