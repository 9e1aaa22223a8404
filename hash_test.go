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
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

type userID string

func TestHashers(t *testing.T) {
	mh := NewMapHasher[string]()
	require.Equal(t, mh.Hash("a"), mh.Hash("a"))
	require.NotEqual(t, mh.Hash("a"), mh.Hash("b"))

	require.Equal(t, xxhash.Sum64String("abc"), StringHasher[string]{}.Hash("abc"))
	require.Equal(t, xxhash.Sum64String("abc"), StringHasher[userID]{}.Hash("abc"))
	require.Equal(t, xxh3.HashString("abc"), XXH3Hasher[string]{}.Hash("abc"))
	require.Equal(t, xxh3.HashString("abc"), XXH3Hasher[userID]{}.Hash("abc"))

	require.EqualValues(t, 42, HashFunc[int](func(int) uint64 { return 42 }).Hash(1))

	ih := IntHasher[uint16]{}
	require.NotEqual(t, ih.Hash(1), ih.Hash(2))
	require.Equal(t, ih.Hash(7), ih.Hash(7))
}

// TestIntHasherSpread checks that sequential keys fill a table without long
// probe sequences.
func TestIntHasherSpread(t *testing.T) {
	const count = 1 << 12
	m := New[int64, int64](count, WithHasher[int64, int64](IntHasher[int64]{}))
	for i := int64(0); i < count/2; i++ {
		m.Put(i, i)
	}
	require.EqualValues(t, count, m.Capacity())
	require.Less(t, m.Stats().MeanProbeDistance, 2.0)
}

func TestMapWithHashers(t *testing.T) {
	test := func(t *testing.T, m *Map[string, int]) {
		for i := 0; i < 1000; i++ {
			m.Put(fmt.Sprint(i), i)
		}
		for i := 0; i < 1000; i++ {
			v, ok := m.Get(fmt.Sprint(i))
			require.True(t, ok)
			require.EqualValues(t, i, v)
		}
		verifyTable(t, m)
	}

	t.Run("maphash", func(t *testing.T) {
		test(t, New[string, int](0))
	})
	t.Run("xxhash", func(t *testing.T) {
		test(t, New[string, int](0, WithHasher[string, int](StringHasher[string]{})))
	})
	t.Run("xxh3", func(t *testing.T) {
		test(t, New[string, int](0, WithHasher[string, int](XXH3Hasher[string]{})))
	})
}

func TestMapHasherZeroValue(t *testing.T) {
	var h MapHasher[string]
	require.Equal(t, h.Hash("a"), h.Hash("a"))
	require.Equal(t, h.Hash("a"), MapHasher[string]{}.Hash("a"))

	m := New[string, int](0, WithHasher[string, int](MapHasher[string]{}))
	for i := 0; i < 100; i++ {
		m.Put(fmt.Sprint(i), i)
	}
	for i := 0; i < 100; i++ {
		v, ok := m.Get(fmt.Sprint(i))
		require.True(t, ok)
		require.EqualValues(t, i, v)
	}
	verifyTable(t, m)
}
