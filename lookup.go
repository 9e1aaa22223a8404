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

import (
	"fmt"
	"math/bits"
)

// findScalar returns the index of the slot holding key, probing one slot at
// a time.
//
// The probe stops at an empty slot, or at a resident whose probe distance is
// less than the query's distance at that slot: Robin Hood placement would
// have stored key no later than that slot.
func (s *storage[K, V]) findScalar(t tag, key K) (uintptr, bool) {
	if s.capacity == 0 {
		return 0, false
	}
	mask := s.mask
	i := t.ideal(mask)
	if debug {
		fmt.Printf("find(%v): tag=%08x ideal=%d\n", key, uint32(t), i)
	}

	for dist := uintptr(0); dist < s.capacity; dist++ {
		rt := s.tagAt(i)
		if !rt.occupied() {
			return 0, false
		}
		if rt == t && *s.keyAt(i) == key {
			return i, true
		}
		if rt.distance(i, mask) < dist {
			if debug {
				fmt.Printf("find(stopped): index=%d dist=%d resident-dist=%d\n",
					i, dist, rt.distance(i, mask))
			}
			return 0, false
		}
		i = (i + 1) & mask
	}
	return 0, false
}

// findBlock returns the index of the slot holding key, comparing blockLanes
// tags per step. It visits the same slots in the same order as findScalar
// and stops under the same conditions, so both always return the same
// result.
//
// The first block is entered at the lane of the ideal slot. For each block a
// stop set (empty lanes and lanes holding entries closer to home than the
// query) is computed and only lanes before the first stop are candidates.
// Candidate lanes whose tag matches are confirmed by key comparison.
func (s *storage[K, V]) findBlock(t tag, key K) (uintptr, bool) {
	if s.capacity < blockLanes {
		return s.findScalar(t, key)
	}
	mask := s.mask
	ideal := t.ideal(mask)
	base := ideal &^ (blockLanes - 1)
	// window is the set of lanes of the current block in the probe sequence.
	window := uint32(laneMask) &^ (1<<(ideal-base) - 1)
	remaining := s.capacity
	if debug {
		fmt.Printf("find-block(%v): tag=%08x ideal=%d base=%d\n", key, uint32(t), ideal, base)
	}

	for {
		b := s.block(base)
		stops := (b.matchEmpty() | b.matchCloser(base, ideal, mask)) & window
		candidates := window
		if stops != 0 {
			// Keep the lanes below the lowest stop.
			candidates &= (stops & -stops) - 1
		}

		match := b.matchTag(t) & candidates
		for match != 0 {
			j := uintptr(bits.TrailingZeros32(match))
			if b[j] == t && *s.keyAt(base+j) == key {
				return base + j, true
			}
			match &= match - 1
		}
		if stops != 0 {
			return 0, false
		}

		remaining -= uintptr(bits.OnesCount32(window))
		if remaining == 0 {
			return 0, false
		}
		base = (base + blockLanes) & mask
		window = laneMask
		if remaining < blockLanes {
			// Back at the first block: only the lanes before the ideal slot
			// are left.
			window = 1<<remaining - 1
		}
	}
}

// find dispatches to the lookup path selected by mode.
func (s *storage[K, V]) find(mode LookupMode, t tag, key K) (uintptr, bool) {
	if mode == LookupBlock {
		return s.findBlock(t, key)
	}
	return s.findScalar(t, key)
}
