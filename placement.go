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

import "fmt"

// rawInsert places an entry with tag t into the table using Robin Hood
// displacement. If an entry with an equal key is already present its value is
// replaced and the previous value is returned with replaced=true; the caller
// must not count this as a new entry.
//
// The table must have room for the entry: rawInsert is only called after the
// capacity manager has grown the table, so failing to find a slot within
// capacity probes is an invariant violation. rawInsert is shared by insertion
// and by resize.
func (s *storage[K, V]) rawInsert(t tag, key K, value V) (prev V, replaced bool) {
	mask := s.mask
	i := t.ideal(mask)
	if debug {
		fmt.Printf("insert(%v): tag=%08x ideal=%d capacity=%d\n", key, uint32(t), i, s.capacity)
	}

	// dist is the probe distance of the entry being placed if it were stored
	// at slot i. It is reset whenever the entry being placed is swapped for a
	// resident.
	var dist uintptr
	for n := uintptr(0); n < s.capacity; n++ {
		rt := s.tagAt(i)
		if !rt.occupied() {
			s.set(i, t, key, value)
			if debug {
				fmt.Printf("insert(placed): index=%d dist=%d\n", i, dist)
			}
			return prev, false
		}

		if rt == t && *s.keyAt(i) == key {
			v := s.valueAt(i)
			prev, *v = *v, value
			if debug {
				fmt.Printf("insert(updated): index=%d\n", i)
			}
			return prev, true
		}

		// The resident is closer to its ideal slot than the entry being
		// placed would be. Take its slot and continue placing the resident.
		// Ties do not swap.
		if rd := rt.distance(i, mask); rd < dist {
			if debug {
				fmt.Printf("insert(displacing): index=%d dist=%d resident-dist=%d\n", i, dist, rd)
			}
			t, key, value = s.swap(i, t, key, value)
			dist = rd
		}

		i = (i + 1) & mask
		dist++
	}

	panic(fmt.Sprintf("invariant failed: no free slot after probing %d slots (tag=%08x)", s.capacity, uint32(t)))
}

// removeAt removes the entry at slot i using backward-shift deletion: each
// following entry that is displaced from its ideal slot is moved back one
// slot until an empty slot or an entry sitting at its ideal slot is reached.
// No tombstones are left behind so lookups may continue to stop at the first
// empty slot or the first resident closer to home than the query.
func (s *storage[K, V]) removeAt(i uintptr) {
	mask := s.mask
	start := i
	for {
		next := (i + 1) & mask
		if next == start {
			// Every other slot was shifted. Only possible in a full table.
			break
		}
		nt := s.tagAt(next)
		if !nt.occupied() || nt.distance(next, mask) == 0 {
			break
		}
		if debug {
			fmt.Printf("remove(shifting): %d -> %d\n", next, i)
		}
		s.shift(i, next)
		i = next
	}
	s.erase(i)
}
