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
	"github.com/stretchr/testify/require"
)

// threeBlockArena lays out three adjacent blocks of the given sizes in a
// fresh buffer, writing whichever of left/middle/right start out
// allocated, and returns handles to all three plus a freeIndex with any
// free ones already registered.
func threeBlockArena(t *testing.T, leftSize, midSize, rightSize uint64, leftAlloc, rightAlloc bool) (block, block, block, *freeIndex) {
	t.Helper()
	total := leftSize + midSize + rightSize
	// Extra trailing bytes stand in for "whatever comes after right" on a
	// real heap (another block, or the epilogue): a full merge writes a
	// neighbor flag update at find_next of the merged range, which lands
	// past `right` whenever this coalesce absorbs it.
	buf := make([]byte, total+16)
	base := unsafe.Pointer(&buf[0])

	left := block{base}
	mid := block{unsafe.Add(base, int(leftSize))}
	right := block{unsafe.Add(base, int(leftSize+midSize))}

	fi := &freeIndex{}

	writeBlock(left, leftSize, leftAlloc, true, false)
	if !leftAlloc {
		fi.insert(left)
	}
	// mid starts allocated (about to be freed by the caller).
	writeBlock(mid, midSize, true, leftAlloc, leftSize == minBlockSize)
	writeBlock(right, rightSize, rightAlloc, true, midSize == minBlockSize)
	if !rightAlloc {
		fi.insert(right)
	}

	return left, mid, right, fi
}

func TestCoalesceNoMerge(t *testing.T) {
	_, mid, right, fi := threeBlockArena(t, 32, 32, 32, true, true)

	writeBlock(mid, mid.size(), false, true, false)
	result := coalesce(fi, mid)

	assert.Equal(t, mid.p, result.p)
	assert.Equal(t, uint64(32), result.size())
	assert.False(t, right.prevAllocated())
	assert.False(t, right.prevIsMini())
}

func TestCoalesceMergeRightOnly(t *testing.T) {
	_, mid, _, fi := threeBlockArena(t, 32, 32, 32, true, false)

	writeBlock(mid, mid.size(), false, true, false)
	result := coalesce(fi, mid)

	assert.Equal(t, mid.p, result.p)
	assert.Equal(t, uint64(64), result.size())
	assert.False(t, result.prevIsMini())

	beyond := findNext(result)
	assert.False(t, beyond.prevIsMini(), "merged block is >=32 bytes, never mini")
}

func TestCoalesceMergeLeftOnly(t *testing.T) {
	left, mid, right, fi := threeBlockArena(t, 32, 32, 32, false, true)

	writeBlock(mid, mid.size(), false, false, left.size() == minBlockSize)
	result := coalesce(fi, mid)

	assert.Equal(t, left.p, result.p)
	assert.Equal(t, uint64(64), result.size())
	assert.False(t, right.prevAllocated())
	assert.False(t, right.prevIsMini())
}

func TestCoalesceMergeBoth(t *testing.T) {
	left, mid, _, fi := threeBlockArena(t, 32, 32, 32, false, false)

	writeBlock(mid, mid.size(), false, false, left.size() == minBlockSize)
	result := coalesce(fi, mid)

	assert.Equal(t, left.p, result.p)
	assert.Equal(t, uint64(96), result.size())

	head := fi.head[classOf(96)]
	require.True(t, head.valid())
	assert.Equal(t, left.p, head.p)
}

func TestCoalescePreservesPrevIsMiniOfSurvivor(t *testing.T) {
	// Left neighbor is mini (16 bytes); freeing mid must not clobber
	// left's own prevIsMini when left absorbs mid.
	left, mid, right, fi := threeBlockArena(t, 16, 32, 32, false, true)

	writeBlock(mid, mid.size(), false, false, true)
	result := coalesce(fi, mid)

	assert.Equal(t, left.p, result.p)
	assert.Equal(t, uint64(48), result.size())
	assert.False(t, result.prevIsMini(), "left's own prevIsMini (false) must survive, not mid's (true)")
	assert.False(t, right.prevIsMini())
}
