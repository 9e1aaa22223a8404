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
	"math"
	"unsafe"
)

// storage holds the three parallel buffers of a table: tags, keys and
// values. All address arithmetic is confined to storage and unsafeSlice; the
// placement and lookup code only deals in slot indexes.
//
// Accesses are not bounds checked unless built with the invariants tag.
// Indexing past capacity is a programming error.
type storage[K comparable, V any] struct {
	tags unsafeSlice[tag]
	keys unsafeSlice[K]
	vals unsafeSlice[V]
	// The total number of slots (always 0 or 2^N).
	capacity uintptr
	// capacity-1, used to compute i%capacity with a bitwise &. Zero for an
	// empty table.
	mask uintptr
}

// newStorage allocates the buffers for a table with the specified capacity.
// On failure any buffers already obtained from a are released and the
// returned error is an *AllocError.
func newStorage[K comparable, V any](a Allocator[K, V], capacity uintptr) (storage[K, V], error) {
	var s storage[K, V]
	if capacity == 0 {
		return s, nil
	}
	if capacity > maxCapacity || uint64(capacity) > math.MaxInt {
		return s, &AllocError{Capacity: uint64(capacity), Err: ErrCapacityOverflow}
	}
	if invariants && capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", capacity))
	}

	n := int(capacity)
	tags, err := a.AllocTags(n)
	if err != nil {
		return s, &AllocError{Capacity: uint64(capacity), Err: err}
	}
	keys, err := a.AllocKeys(n)
	if err != nil {
		a.FreeTags(tags)
		return s, &AllocError{Capacity: uint64(capacity), Err: err}
	}
	vals, err := a.AllocValues(n)
	if err != nil {
		a.FreeKeys(keys)
		a.FreeTags(tags)
		return s, &AllocError{Capacity: uint64(capacity), Err: err}
	}
	if len(tags) != n || len(keys) != n || len(vals) != n {
		panic(fmt.Sprintf("allocator returned %d/%d/%d slots, expected %d",
			len(tags), len(keys), len(vals), n))
	}
	// An allocator may hand back recycled memory. Every slot must start out
	// empty.
	clear(tags)

	s.tags = makeUnsafeSlice(unsafeConvertSlice[tag](tags))
	s.keys = makeUnsafeSlice(keys)
	s.vals = makeUnsafeSlice(vals)
	s.capacity = capacity
	s.mask = capacity - 1
	return s, nil
}

// free releases the buffers back to a and leaves s as an empty table.
func (s *storage[K, V]) free(a Allocator[K, V]) {
	if s.capacity > 0 && a != nil {
		a.FreeTags(unsafeConvertSlice[uint32](s.tags.Slice(0, s.capacity)))
		a.FreeKeys(s.keys.Slice(0, s.capacity))
		a.FreeValues(s.vals.Slice(0, s.capacity))
	}
	*s = storage[K, V]{}
}

// copyFrom copies the contents of o into s. Both must have the same
// capacity.
func (s *storage[K, V]) copyFrom(o *storage[K, V]) {
	if s.capacity != o.capacity {
		panic(fmt.Sprintf("invariant failed: copy between capacities %d and %d", o.capacity, s.capacity))
	}
	if s.capacity == 0 {
		return
	}
	copy(s.tags.Slice(0, s.capacity), o.tags.Slice(0, o.capacity))
	copy(s.keys.Slice(0, s.capacity), o.keys.Slice(0, o.capacity))
	copy(s.vals.Slice(0, s.capacity), o.vals.Slice(0, o.capacity))
}

func (s *storage[K, V]) check(i uintptr) {
	if invariants && i >= s.capacity {
		panic(fmt.Sprintf("invariant failed: slot %d out of range [0,%d)", i, s.capacity))
	}
}

// tagAt returns the tag of slot i.
func (s *storage[K, V]) tagAt(i uintptr) tag {
	s.check(i)
	return *s.tags.At(i)
}

// keyAt returns a pointer to the key of slot i. The key is only meaningful
// if the slot is occupied.
func (s *storage[K, V]) keyAt(i uintptr) *K {
	s.check(i)
	return s.keys.At(i)
}

// valueAt returns a pointer to the value of slot i. The value is only
// meaningful if the slot is occupied.
func (s *storage[K, V]) valueAt(i uintptr) *V {
	s.check(i)
	return s.vals.At(i)
}

// set overwrites slot i.
func (s *storage[K, V]) set(i uintptr, t tag, key K, value V) {
	s.check(i)
	*s.tags.At(i) = t
	*s.keys.At(i) = key
	*s.vals.At(i) = value
}

// swap stores the supplied entry in slot i and returns the entry that was
// previously there.
func (s *storage[K, V]) swap(i uintptr, t tag, key K, value V) (tag, K, V) {
	s.check(i)
	pt, pk, pv := s.tags.At(i), s.keys.At(i), s.vals.At(i)
	*pt, t = t, *pt
	*pk, key = key, *pk
	*pv, value = value, *pv
	return t, key, value
}

// shift copies slot src to slot dst. The contents of src are left in place
// and must be overwritten or erased by the caller.
func (s *storage[K, V]) shift(dst, src uintptr) {
	s.check(dst)
	s.check(src)
	*s.tags.At(dst) = *s.tags.At(src)
	*s.keys.At(dst) = *s.keys.At(src)
	*s.vals.At(dst) = *s.vals.At(src)
}

// erase marks slot i empty and zeroes its key and value so the table does
// not retain references to removed entries.
func (s *storage[K, V]) erase(i uintptr) {
	s.check(i)
	var k K
	var v V
	*s.tags.At(i) = tagEmpty
	*s.keys.At(i) = k
	*s.vals.At(i) = v
}

// reset erases every slot, retaining the buffers.
func (s *storage[K, V]) reset() {
	if s.capacity == 0 {
		return
	}
	clear(s.tags.Slice(0, s.capacity))
	clear(s.keys.Slice(0, s.capacity))
	clear(s.vals.Slice(0, s.capacity))
}

// block returns the block of tags starting at base, which must be a
// multiple of blockLanes.
func (s *storage[K, V]) block(base uintptr) *block {
	if invariants && (base&(blockLanes-1) != 0 || base+blockLanes > s.capacity) {
		panic(fmt.Sprintf("invariant failed: block at %d out of range [0,%d)", base, s.capacity))
	}
	return (*block)(unsafe.Pointer(s.tags.At(base)))
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

func makeUnsafeSlice[T any](s []T) unsafeSlice[T] {
	return unsafeSlice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}

// Slice returns a Go slice akin to slice[start:end] for a Go builtin slice.
func (s unsafeSlice[T]) Slice(start, end uintptr) []T {
	return unsafe.Slice((*T)(s.ptr), end)[start:end]
}

func unsafeConvertSlice[Dest any, Src any](s []Src) []Dest {
	return unsafe.Slice((*Dest)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}
