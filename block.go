// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package robinhood

const (
	// blockLanes is the number of tags compared per step by the block lookup
	// path. Tables smaller than a block are probed with the scalar path.
	blockLanes = 16
	// laneMask has a bit set for every lane of a block.
	laneMask = 1<<blockLanes - 1

	pairLSB = 0x0000000100000001
	pairMSB = 0x8000000080000000
)

// block is a group of blockLanes consecutive tags aligned on a blockLanes
// boundary.
type block [blockLanes]tag

// pair packs lanes j and j+1 into a uint64 with lane j in the low half. The
// compiler merges this into a single load on little-endian targets.
func (b *block) pair(j int) uint64 {
	return uint64(b[j]) | uint64(b[j+1])<<32
}

// matchTag returns a bitset with bit j set if lane j matches t. Two lanes are
// compared per operation using the same SWAR technique as matching a group of
// control bytes:
//
//	v := lanes ^ broadcast(t)      // matching lanes become zero
//	((v - LSB) &^ v) & MSB         // high bit set for every zero lane
//
// Both t and any occupied lane have the presence bit set, so an occupied lane
// xored with t always has a clear high bit. The result can contain false
// positives: if lane j is a true match and lane j+1 differs from t only in
// bit 0, the borrow out of lane j makes lane j+1 look like a match as well.
// Empty lanes never match. Callers must confirm a match by comparing the tag.
func (b *block) matchTag(t tag) uint32 {
	x := pairLSB * uint64(t)
	var m uint32
	for j := 0; j < blockLanes; j += 2 {
		v := b.pair(j) ^ x
		z := ((v - pairLSB) &^ v) & pairMSB
		m |= uint32(z>>31)&1<<j | uint32(z>>63)<<(j+1)
	}
	return m
}

// matchEmpty returns a bitset with bit j set if lane j is empty. This is exact.
func (b *block) matchEmpty() uint32 {
	var m uint32
	for j := 0; j < blockLanes; j += 2 {
		z := ^b.pair(j) & pairMSB
		m |= uint32(z>>31)&1<<j | uint32(z>>63)<<(j+1)
	}
	return m
}

// matchCloser returns a bitset with bit j set if lane j holds an entry that
// is closer to its ideal slot than an entry whose ideal slot is ideal would
// be at the same position. base is the slot index of lane 0 and mask is
// capacity-1. Empty lanes are unspecified; combine with matchEmpty.
func (b *block) matchCloser(base, ideal, mask uintptr) uint32 {
	var m uint32
	for j := uintptr(0); j < blockLanes; j++ {
		i := base + j
		if b[j].distance(i, mask) < (i-ideal)&mask {
			m |= 1 << j
		}
	}
	return m
}
