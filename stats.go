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

// Stats is a point in time summary of the shape of a Map.
type Stats struct {
	// Len is the number of entries.
	Len int
	// Capacity is the number of slots.
	Capacity int
	// LoadFactor is Len/Capacity, or 0 for a map without slots.
	LoadFactor float64
	// Grows and Shrinks count the resizes since the map was initialized.
	Grows   int
	Shrinks int
	// MaxProbeDistance and MeanProbeDistance summarize how far entries sit
	// past their ideal slots.
	MaxProbeDistance  int
	MeanProbeDistance float64
	// Lookup is the lookup path in use.
	Lookup LookupMode
}

// Stats walks the map and returns a summary of its shape. It runs in time
// proportional to the capacity.
func (m *Map[K, V]) Stats() Stats {
	s := &m.s
	st := Stats{
		Len:      m.used,
		Capacity: int(s.capacity),
		Grows:    m.grows,
		Shrinks:  m.shrinks,
		Lookup:   m.lookup,
	}
	if s.capacity == 0 {
		return st
	}
	st.LoadFactor = float64(m.used) / float64(s.capacity)

	var total uintptr
	for i := uintptr(0); i < s.capacity; i++ {
		t := s.tagAt(i)
		if !t.occupied() {
			continue
		}
		d := t.distance(i, s.mask)
		total += d
		st.MaxProbeDistance = max(st.MaxProbeDistance, int(d))
	}
	if m.used > 0 {
		st.MeanProbeDistance = float64(total) / float64(m.used)
	}
	return st
}
