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

// Package robinhood is a Go implementation of an open-addressing hash table
// using Robin Hood hashing with backward-shift deletion. See also:
// https://codecapsule.com/2013/11/11/robin-hood-hashing/ and
// https://codecapsule.com/2013/11/17/robin-hood-hashing-backward-shift-deletion/.
//
// # Robin Hood hashing
//
// A Map stores its entries in three parallel arrays of the same power of two
// length: 32-bit tags, keys and values. A tag packs a presence bit with the
// low 31 bits of hash(key), which distinguishes empty slots from occupied
// ones without a separate array and lets most mismatching slots be rejected
// without comparing keys. An entry's ideal slot is hash(key)&(capacity-1);
// collisions are resolved by linear probing forward with wraparound.
//
// The probe distance of an entry is how far it sits past its ideal slot.
// Insertion walks the probe sequence and, whenever it meets a resident that
// is closer to its own ideal slot than the entry being placed would be,
// swaps the two and continues placing the evicted resident. Entries which
// have travelled far take precedence over entries that are close to home,
// which bounds the variance of probe lengths. It also keeps every run of
// occupied slots ordered by displacement, so a lookup can stop as soon as it
// meets a resident closer to home than the key it is looking for would be.
//
// Deletion shifts the following displaced entries back by one slot instead
// of leaving a tombstone, which keeps the ordering intact and allows lookups
// to keep stopping at the first empty slot.
//
// # Lookup
//
// Lookups come in two equivalent flavors. The scalar path examines one slot
// at a time. The block path partitions the tags into aligned blocks of 16
// and compares a whole block against the target tag using SWAR (SIMD Within
// A Register) techniques, only comparing keys for lanes whose tag matches.
// Both stop under exactly the same conditions and always return the same
// result. LookupAuto picks one based on the CPU.
//
// # Capacity
//
// A Map grows by doubling once it is full (or half full with
// WithStrictGrowth) and shrinks by half once no more than a quarter of its
// slots are in use. Resizing allocates the new arrays first and re-places
// every live entry from its stored tag, so keys are never rehashed and a
// failed allocation leaves the Map untouched.
package robinhood

import (
	"fmt"
	"log/slog"
	"math/bits"
	"strings"
)

const debug = false

// Map is an unordered map from keys to values with Insert, Get, Remove and
// All operations. By default, a Map[K,V] uses the same hash function as Go's
// builtin map[K]V, though a different hashing strategy can be specified
// using the WithHasher or WithHash options.
//
// A Map is NOT goroutine-safe. Any number of goroutines may read a Map
// concurrently as long as no goroutine is mutating it.
type Map[K comparable, V any] struct {
	// The hashing strategy for keys of type K.
	hasher Hasher[K]
	// The allocator to use for the tags, keys and values slices.
	allocator Allocator[K, V]
	// Logger for capacity changes. Nil disables logging.
	logger *slog.Logger
	// The lookup path. Resolved from LookupAuto during Init.
	lookup LookupMode
	// The maximum load factor is loadNum/loadDen: the map grows before an
	// insertion would make used/capacity exceed it.
	loadNum, loadDen uintptr
	// The tags, keys and values.
	s storage[K, V]
	// The number of filled slots (i.e. the number of elements in the map).
	used int
	// The number of times the map has grown or shrunk.
	grows, shrinks int
}

// New constructs a new Map with the specified initial capacity, rounded up
// to a power of two. If initialCapacity is 0 the map will start out with
// zero capacity and will grow on the first insert. The zero value for a Map
// is not usable.
//
// New panics if the initial storage cannot be allocated; use NewWithError
// with an Allocator that can refuse allocations.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m, err := NewWithError(initialCapacity, options...)
	if err != nil {
		panic(err)
	}
	return m
}

// NewWithError is like New but returns an error if the initial storage
// cannot be allocated or initialCapacity is invalid.
func NewWithError[K comparable, V any](
	initialCapacity int, options ...option[K, V],
) (*Map[K, V], error) {
	m := &Map[K, V]{}
	if err := m.Init(initialCapacity, options...); err != nil {
		return nil, err
	}
	return m, nil
}

// Init initializes a Map with the specified initial capacity. Init can be
// invoked on a Map that has already been initialized in order to reuse the
// struct; the previous storage is released to the previous allocator.
func (m *Map[K, V]) Init(initialCapacity int, options ...option[K, V]) error {
	if m.allocator != nil {
		m.s.free(m.allocator)
	}
	*m = Map[K, V]{
		allocator: defaultAllocator[K, V]{},
		lookup:    LookupAuto,
		loadNum:   1,
		loadDen:   1,
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.hasher == nil {
		m.hasher = NewMapHasher[K]()
	}
	m.lookup = m.lookup.resolve()

	if initialCapacity < 0 {
		return fmt.Errorf("%w: negative initial capacity %d", ErrInvalidCapacity, initialCapacity)
	}
	if initialCapacity > 0 {
		if uint64(initialCapacity) > uint64(maxCapacity) {
			return &AllocError{Capacity: uint64(initialCapacity), Err: ErrCapacityOverflow}
		}
		if err := m.resize(nextPowerOfTwo(uintptr(initialCapacity))); err != nil {
			return err
		}
	}

	m.checkInvariants()
	return nil
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	m.s.free(m.allocator)
	m.used = 0
	m.allocator = nil
}

// Insert inserts an entry into the map. If an entry with the same key is
// already present its value is overwritten and the previous value is
// returned with replaced=true; the length of the map is unchanged in that
// case.
//
// Insert may need to grow the map. If the storage for the larger table
// cannot be allocated an *AllocError is returned and the map is unchanged.
// Overwriting an existing key never allocates.
func (m *Map[K, V]) Insert(key K, value V) (prev V, replaced bool, err error) {
	t := makeTag(m.hasher.Hash(key))

	if !m.fits(uintptr(m.used)+1, m.s.capacity) {
		// The map is at its maximum load. Check whether this is an update
		// before growing as an update does not need the room.
		if i, ok := m.s.find(m.lookup, t, key); ok {
			v := m.s.valueAt(i)
			prev, *v = *v, value
			return prev, true, nil
		}
		if err := m.tryGrow(); err != nil {
			return prev, false, err
		}
	}

	prev, replaced = m.s.rawInsert(t, key, value)
	if !replaced {
		m.used++
	}
	m.checkInvariants()
	return prev, replaced, nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. Put panics if the map needs to
// grow and its Allocator refuses the allocation; use Insert to handle that
// case.
func (m *Map[K, V]) Put(key K, value V) {
	if _, _, err := m.Insert(key, value); err != nil {
		panic(err)
	}
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	i, ok := m.find(key)
	if !ok {
		return value, false
	}
	return *m.s.valueAt(i), true
}

// GetPtr returns a pointer to the value stored for key, or nil if the key is
// not present. The pointer allows the value to be modified in place. It is
// only valid until the next mutation of the map.
func (m *Map[K, V]) GetPtr(key K) *V {
	i, ok := m.find(key)
	if !ok {
		return nil
	}
	return m.s.valueAt(i)
}

// GetEntry retrieves the stored key and value for the specified key. The
// stored key is equal to key but need not be identical (e.g. a string with a
// different backing array).
func (m *Map[K, V]) GetEntry(key K) (k K, v V, ok bool) {
	i, ok := m.find(key)
	if !ok {
		return k, v, false
	}
	return *m.s.keyAt(i), *m.s.valueAt(i), true
}

// Contains returns true if the map contains key.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.find(key)
	return ok
}

// Remove removes the entry for key from the map and returns its value, or
// ok=false if the key is not present.
func (m *Map[K, V]) Remove(key K) (value V, ok bool) {
	_, value, ok = m.RemoveEntry(key)
	return value, ok
}

// RemoveEntry removes the entry for key from the map and returns the stored
// key and value.
//
// Removing may shrink the map. A shrink whose allocation fails is skipped;
// the entry is removed regardless.
func (m *Map[K, V]) RemoveEntry(key K) (k K, v V, ok bool) {
	i, ok := m.find(key)
	if !ok {
		return k, v, false
	}
	k, v = *m.s.keyAt(i), *m.s.valueAt(i)
	m.s.removeAt(i)
	m.used--
	m.tryShrink()
	m.checkInvariants()
	return k, v, true
}

// Delete deletes the entry corresponding to the specified key from the map.
// It is a noop to delete a non-existent key.
func (m *Map[K, V]) Delete(key K) {
	m.RemoveEntry(key)
}

// Clear deletes all entries from the map resulting in an empty map. The
// capacity is retained.
func (m *Map[K, V]) Clear() {
	m.s.reset()
	m.used = 0
	m.checkInvariants()
}

// Reserve grows the map if needed so that at least additional more entries
// can be inserted without resizing.
func (m *Map[K, V]) Reserve(additional int) error {
	if additional < 0 {
		return fmt.Errorf("%w: negative reserve %d", ErrInvalidCapacity, additional)
	}
	if uint64(additional) > uint64(maxCapacity) {
		return &AllocError{Capacity: uint64(m.used) + uint64(additional), Err: ErrCapacityOverflow}
	}
	need := uintptr(m.used) + uintptr(additional)
	if m.fits(need, m.s.capacity) {
		return nil
	}
	return m.resize(m.capacityFor(need, nextPowerOfTwo(need)))
}

// ShrinkToFit shrinks the map to the smallest capacity able to hold its
// current entries.
func (m *Map[K, V]) ShrinkToFit() error {
	target := m.capacityFor(uintptr(m.used), nextPowerOfTwo(uintptr(m.used)))
	if target >= m.s.capacity {
		return nil
	}
	return m.resize(target)
}

// ShrinkTo shrinks the capacity of the map with a lower limit of
// minCapacity (rounded up to a power of two). An error wrapping
// ErrInvalidCapacity is returned if minCapacity exceeds the current capacity
// or is less than the number of entries in the map.
func (m *Map[K, V]) ShrinkTo(minCapacity int) error {
	if minCapacity < 0 || uint64(minCapacity) > uint64(m.s.capacity) {
		return fmt.Errorf("%w: minimum capacity %d exceeds capacity %d",
			ErrInvalidCapacity, minCapacity, m.s.capacity)
	}
	if minCapacity < m.used {
		return fmt.Errorf("%w: minimum capacity %d is less than length %d",
			ErrInvalidCapacity, minCapacity, m.used)
	}
	target := max(nextPowerOfTwo(uintptr(minCapacity)),
		m.capacityFor(uintptr(m.used), nextPowerOfTwo(uintptr(m.used))))
	if target >= m.s.capacity {
		return nil
	}
	return m.resize(target)
}

// Clone returns a copy of the map using the same hasher, allocator, logger
// and options. The copy has the same capacity and slot layout.
func (m *Map[K, V]) Clone() (*Map[K, V], error) {
	c := &Map[K, V]{
		hasher:    m.hasher,
		allocator: m.allocator,
		logger:    m.logger,
		lookup:    m.lookup,
		loadNum:   m.loadNum,
		loadDen:   m.loadDen,
	}
	s, err := newStorage(c.allocator, m.s.capacity)
	if err != nil {
		return nil, err
	}
	s.copyFrom(&m.s)
	c.s = s
	c.used = m.used
	c.checkInvariants()
	return c, nil
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, range stops the iteration. The map can be mutated
// during iteration, though there is no guarantee that the mutations will be
// visible to the iteration.
//
// All conforms to the range-over-function protocol:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the storage so that iteration remains valid if the map is
	// resized during iteration.
	s := m.s
	for i := uintptr(0); i < s.capacity; i++ {
		if s.tagAt(i).occupied() {
			if !yield(*s.keyAt(i), *s.valueAt(i)) {
				return
			}
		}
	}
}

// AllPtr is like All but yields a pointer to each value which allows values
// to be modified in place.
func (m *Map[K, V]) AllPtr(yield func(key K, value *V) bool) {
	s := m.s
	for i := uintptr(0); i < s.capacity; i++ {
		if s.tagAt(i).occupied() {
			if !yield(*s.keyAt(i), s.valueAt(i)) {
				return
			}
		}
	}
}

// Keys calls yield sequentially for each key present in the map.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	m.All(func(k K, _ V) bool {
		return yield(k)
	})
}

// Values calls yield sequentially for each value present in the map.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	m.All(func(_ K, v V) bool {
		return yield(v)
	})
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// IsEmpty returns true if the map contains no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// Capacity returns the number of slots in the map. It is always 0 or a power
// of two.
func (m *Map[K, V]) Capacity() int {
	return int(m.s.capacity)
}

// Hasher returns the hashing strategy of the map.
func (m *Map[K, V]) Hasher() Hasher[K] {
	return m.hasher
}

// Lookup returns the lookup path used by the map.
func (m *Map[K, V]) Lookup() LookupMode {
	return m.lookup
}

func (m *Map[K, V]) find(key K) (uintptr, bool) {
	return m.s.find(m.lookup, makeTag(m.hasher.Hash(key)), key)
}

// fits returns true if n entries fit in capacity slots without exceeding
// the maximum load factor.
func (m *Map[K, V]) fits(n, capacity uintptr) bool {
	return n*m.loadDen <= capacity*m.loadNum
}

// capacityFor returns the smallest power of two >= start that can hold n
// entries. The result may exceed maxCapacity, which resize reports as an
// error.
func (m *Map[K, V]) capacityFor(n, start uintptr) uintptr {
	c := start
	for !m.fits(n, c) && c <= maxCapacity {
		c <<= 1
	}
	return c
}

// tryGrow grows the map by doubling until there is room for one more entry.
func (m *Map[K, V]) tryGrow() error {
	need := uintptr(m.used) + 1
	if m.fits(need, m.s.capacity) {
		return nil
	}
	return m.resize(m.capacityFor(need, max(1, 2*m.s.capacity)))
}

// tryShrink halves the map if no more than a quarter of its slots are in
// use. It never shrinks below a single slot, and the halved table must have
// room for one more entry.
func (m *Map[K, V]) tryShrink() {
	c := m.s.capacity
	if c <= 1 || uintptr(m.used) > c/4 || !m.fits(uintptr(m.used)+1, c/2) {
		return
	}
	if err := m.resize(c / 2); err != nil && m.logger != nil {
		m.logger.Warn("robinhood: skipping shrink",
			"capacity", c, "len", m.used, "err", err)
	}
}

// resize allocates a table of newCapacity slots, re-places every entry of the
// current table into it and releases the current table. Entries are placed
// from their stored tags in slot order; the resulting mapping does not depend
// on the order. On allocation failure the map is left untouched.
func (m *Map[K, V]) resize(newCapacity uintptr) error {
	if newCapacity > maxCapacity {
		return &AllocError{Capacity: uint64(newCapacity), Err: ErrCapacityOverflow}
	}
	if newCapacity&(newCapacity-1) != 0 {
		panic(fmt.Sprintf("invariant failed: resize to %d which is not a power of two", newCapacity))
	}
	if newCapacity < uintptr(m.used) {
		panic(fmt.Sprintf("invariant failed: resize to %d below length %d", newCapacity, m.used))
	}

	s, err := newStorage(m.allocator, newCapacity)
	if err != nil {
		return err
	}

	old := m.s
	for i := uintptr(0); i < old.capacity; i++ {
		t := old.tagAt(i)
		if !t.occupied() {
			continue
		}
		s.rawInsert(t, *old.keyAt(i), *old.valueAt(i))
	}
	m.s = s
	// free zeroes old.
	oldCapacity := old.capacity
	old.free(m.allocator)

	switch {
	case newCapacity > oldCapacity:
		m.grows++
	case newCapacity < oldCapacity:
		m.shrinks++
	}
	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d\n", oldCapacity, newCapacity, m.used)
	}
	if m.logger != nil {
		m.logger.Debug("robinhood: resize",
			"from", oldCapacity, "to", newCapacity, "len", m.used)
	}

	m.checkInvariants()
	return nil
}

// nextPowerOfTwo returns the smallest power of two >= n. The result for 0 is
// 1.
func nextPowerOfTwo(n uintptr) uintptr {
	if n <= 1 {
		return 1
	}
	return uintptr(1) << bits.Len(uint(n-1))
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		s := &m.s
		if s.capacity&(s.capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", s.capacity))
		}
		if uintptr(m.used) > s.capacity {
			panic(fmt.Sprintf("invariant failed: used %d exceeds capacity %d", m.used, s.capacity))
		}

		var used int
		for i := uintptr(0); i < s.capacity; i++ {
			t := s.tagAt(i)
			if !t.occupied() {
				continue
			}
			used++

			key := *s.keyAt(i)
			if h := makeTag(m.hasher.Hash(key)); h != t {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v has tag %08x, expected %08x\n%s",
					i, key, uint32(t), uint32(h), m.debugString()))
			}

			// Displacement ordering: an entry that is not at its ideal slot
			// must follow an entry that is at most one slot less displaced.
			if d := t.distance(i, s.mask); d > 0 {
				p := (i - 1) & s.mask
				pt := s.tagAt(p)
				if !pt.occupied() || pt.distance(p, s.mask)+1 < d {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v at distance %d follows slot(%d)\n%s",
						i, key, d, p, m.debugString()))
				}
			}

			// For every non-empty slot, verify both lookup paths find it.
			if j, ok := s.findScalar(t, key); !ok || j != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v not found by scalar lookup [tag=%08x]\n%s",
					i, key, uint32(t), m.debugString()))
			}
			if j, ok := s.findBlock(t, key); !ok || j != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): %v not found by block lookup [tag=%08x]\n%s",
					i, key, uint32(t), m.debugString()))
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	s := &m.s
	fmt.Fprintf(&buf, "capacity=%d  used=%d  lookup=%s\n", s.capacity, m.used, m.lookup)
	for i := uintptr(0); i < s.capacity; i++ {
		t := s.tagAt(i)
		switch state, h := t.state(); state {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [hash=%08x ideal=%d dist=%d]\n",
				i, *s.keyAt(i), h, t.ideal(s.mask), t.distance(i, s.mask))
		}
	}
	return buf.String()
}
