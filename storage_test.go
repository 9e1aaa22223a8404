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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	a := &countingAllocator[string, int]{}
	s, err := newStorage[string, int](a, 8)
	require.NoError(t, err)
	require.EqualValues(t, 8, s.capacity)
	require.EqualValues(t, 7, s.mask)
	for i := uintptr(0); i < s.capacity; i++ {
		require.False(t, s.tagAt(i).occupied())
	}

	s.set(3, makeTag(3), "three", 3)
	require.True(t, s.tagAt(3).occupied())
	require.Equal(t, "three", *s.keyAt(3))
	require.Equal(t, 3, *s.valueAt(3))

	pt, pk, pv := s.swap(3, makeTag(4), "four", 4)
	require.Equal(t, makeTag(3), pt)
	require.Equal(t, "three", pk)
	require.Equal(t, 3, pv)
	require.Equal(t, "four", *s.keyAt(3))

	s.shift(2, 3)
	require.Equal(t, makeTag(4), s.tagAt(2))
	require.Equal(t, "four", *s.keyAt(2))
	require.Equal(t, 4, *s.valueAt(2))

	s.erase(3)
	require.False(t, s.tagAt(3).occupied())
	require.Equal(t, "", *s.keyAt(3))
	require.Equal(t, 0, *s.valueAt(3))

	c, err := newStorage[string, int](a, 8)
	require.NoError(t, err)
	c.copyFrom(&s)
	require.Equal(t, "four", *c.keyAt(2))

	s.reset()
	require.False(t, s.tagAt(2).occupied())
	require.Equal(t, "", *s.keyAt(2))
	require.Equal(t, "four", *c.keyAt(2))

	s.free(a)
	c.free(a)
	require.EqualValues(t, 0, s.capacity)
	require.EqualValues(t, 2, a.alloc)
	require.EqualValues(t, 2, a.free)
}

func TestStorageZeroCapacity(t *testing.T) {
	a := &countingAllocator[int, int]{}
	s, err := newStorage[int, int](a, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, s.capacity)
	require.EqualValues(t, 0, a.alloc)
	s.reset()
	s.free(a)
	require.EqualValues(t, 0, a.free)

	_, ok := s.findScalar(makeTag(1), 1)
	require.False(t, ok)
	_, ok = s.findBlock(makeTag(1), 1)
	require.False(t, ok)
}

// recyclingAllocator hands out tag buffers with garbage in them.
type recyclingAllocator[K comparable, V any] struct {
	defaultAllocator[K, V]
}

func (recyclingAllocator[K, V]) AllocTags(n int) ([]uint32, error) {
	tags := make([]uint32, n)
	for i := range tags {
		tags[i] = 0xdeadbeef
	}
	return tags, nil
}

func TestStorageClearsTags(t *testing.T) {
	s, err := newStorage[int, int](recyclingAllocator[int, int]{}, 16)
	require.NoError(t, err)
	for i := uintptr(0); i < s.capacity; i++ {
		require.False(t, s.tagAt(i).occupied())
	}
}

func TestStorageAllocError(t *testing.T) {
	a := &failingAllocator[int, int]{fail: true}
	_, err := newStorage[int, int](a, 16)
	var allocErr *AllocError
	require.ErrorAs(t, err, &allocErr)
	require.EqualValues(t, 16, allocErr.Capacity)
	require.ErrorIs(t, err, errInjected)
	require.ErrorIs(t, err, ErrAllocation)
	require.Contains(t, err.Error(), "allocating capacity 16")

	_, err = newStorage[int, int](a, 2*maxCapacity)
	require.ErrorIs(t, err, ErrCapacityOverflow)
}

type shortAllocator struct {
	defaultAllocator[int, int]
}

func (shortAllocator) AllocKeys(n int) ([]int, error) {
	return make([]int, n-1), nil
}

func TestStorageAllocatorLength(t *testing.T) {
	require.Panics(t, func() {
		_, _ = newStorage[int, int](shortAllocator{}, 4)
	})
}
