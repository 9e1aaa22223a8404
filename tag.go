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

// Each slot in the table has a 32-bit tag stored in a separate array from
// the keys and values. A tag has one of two states:
//
//	   empty: 0 0000000 00000000 00000000 00000000
//	occupied: 1 hhhhhhh hhhhhhhh hhhhhhhh hhhhhhhh  // h: low 31 bits of hash(key)
//
// The presence bit keeps an occupied tag non-zero even if the hash bits are
// all zero, so a zeroed tag array is an empty table. The hash bits also
// determine a slot's ideal index which allows resizing and the displacement
// checks to work from the tag alone without rehashing keys.
type tag uint32

const (
	tagEmpty    tag = 0
	tagPresent  tag = 1 << 31
	tagHashMask tag = tagPresent - 1

	// maxCapacity is the largest table the 31 hash bits of a tag can
	// address.
	maxCapacity uintptr = 1 << 31
)

// MaxCapacity is the maximum capacity of a Map.
const MaxCapacity = int64(maxCapacity)

// tagState is the decoded state of a tag. Callers outside of this file should
// not inspect the packed representation directly.
type tagState uint8

const (
	slotEmpty tagState = iota
	slotOccupied
)

func (s tagState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotOccupied:
		return "occupied"
	default:
		return "unknown"
	}
}

// makeTag packs the low 31 bits of h with the presence bit.
func makeTag(h uint64) tag {
	return tag(h)&tagHashMask | tagPresent
}

// state returns the slot state and, for occupied slots, the hash signature.
func (t tag) state() (tagState, uint32) {
	if t&tagPresent == 0 {
		return slotEmpty, 0
	}
	return slotOccupied, uint32(t & tagHashMask)
}

func (t tag) occupied() bool {
	return t&tagPresent != 0
}

// ideal returns the index of the slot t hashes to in a table with the
// specified mask (capacity-1).
func (t tag) ideal(mask uintptr) uintptr {
	return uintptr(t&tagHashMask) & mask
}

// distance returns the probe distance of an entry with tag t residing at
// index i: the number of slots it sits past its ideal index, accounting for
// wraparound.
func (t tag) distance(i, mask uintptr) uintptr {
	return (i - t.ideal(mask)) & mask
}
