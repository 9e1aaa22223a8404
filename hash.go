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
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
	"golang.org/x/exp/constraints"
)

// Hasher is the hashing strategy of a Map. Hash must be deterministic for
// the lifetime of the Map and equal keys must hash equally. The low 31 bits
// of the result select a key's ideal slot and form its tag, so they should
// be well distributed.
type Hasher[K comparable] interface {
	Hash(key K) uint64
}

// HashFunc adapts an ordinary function to the Hasher interface.
type HashFunc[K comparable] func(key K) uint64

// Hash implements Hasher.
func (f HashFunc[K]) Hash(key K) uint64 {
	return f(key)
}

// processSeed is used by MapHashers constructed without NewMapHasher.
var processSeed = maphash.MakeSeed()

// MapHasher hashes any comparable key with hash/maphash, the same hash
// function used by Go's builtin map. It is the default Hasher. The zero value
// hashes with a seed shared by the whole process; NewMapHasher gives each
// hasher its own.
type MapHasher[K comparable] struct {
	seed maphash.Seed
}

// NewMapHasher returns a MapHasher with a random seed.
func NewMapHasher[K comparable]() MapHasher[K] {
	return MapHasher[K]{seed: maphash.MakeSeed()}
}

// Hash implements Hasher.
func (h MapHasher[K]) Hash(key K) uint64 {
	seed := h.seed
	if seed == (maphash.Seed{}) {
		seed = processSeed
	}
	return maphash.Comparable(seed, key)
}

// StringHasher hashes string keys with xxHash64. It is unseeded, so the
// layout of a Map using it is reproducible across processes.
type StringHasher[K ~string] struct{}

// Hash implements Hasher.
func (StringHasher[K]) Hash(key K) uint64 {
	return xxhash.Sum64String(string(key))
}

// XXH3Hasher hashes string keys with XXH3, which is faster than xxHash64
// for short keys.
type XXH3Hasher[K ~string] struct{}

// Hash implements Hasher.
func (XXH3Hasher[K]) Hash(key K) uint64 {
	return xxh3.HashString(string(key))
}

// IntHasher hashes integer keys with a Fibonacci multiplicative hash. The
// high half of the product is folded into the low half since only the low
// bits select slots.
type IntHasher[K constraints.Integer] struct{}

// Hash implements Hasher.
func (IntHasher[K]) Hash(key K) uint64 {
	h := uint64(key) * 0x9e3779b97f4a7c15
	return h ^ h>>32
}
