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

import "log/slog"

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hasherOption[K comparable, V any] struct {
	hasher Hasher[K]
}

func (op hasherOption[K, V]) apply(m *Map[K, V]) {
	m.hasher = op.hasher
}

// WithHasher is an option to specify the hashing strategy to use for a
// Map[K,V]. The default is a MapHasher with a random seed.
func WithHasher[K comparable, V any](hasher Hasher[K]) option[K, V] {
	return hasherOption[K, V]{hasher}
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
func WithHash[K comparable, V any](hash func(key K) uint64) option[K, V] {
	return hasherOption[K, V]{HashFunc[K](hash)}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// An allocator may refuse an allocation by returning an error. The Map
// operation that needed the memory fails with an *AllocError wrapping that
// error and the Map is left unmodified.
//
// If the allocator is manually managing memory and requires that tags, keys
// and values be freed then Map.Close must be called in order to ensure the
// Free methods are called.
type Allocator[K comparable, V any] interface {
	// AllocTags should return a slice equivalent to make([]uint32, n).
	AllocTags(n int) ([]uint32, error)

	// AllocKeys should return a slice equivalent to make([]K, n).
	AllocKeys(n int) ([]K, error)

	// AllocValues should return a slice equivalent to make([]V, n).
	AllocValues(n int) ([]V, error)

	// FreeTags can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocTags.
	FreeTags(v []uint32)

	// FreeKeys can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []K)

	// FreeValues can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocValues.
	FreeValues(v []V)
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocTags(n int) ([]uint32, error) {
	return make([]uint32, n), nil
}

func (defaultAllocator[K, V]) AllocKeys(n int) ([]K, error) {
	return make([]K, n), nil
}

func (defaultAllocator[K, V]) AllocValues(n int) ([]V, error) {
	return make([]V, n), nil
}

func (defaultAllocator[K, V]) FreeTags(v []uint32) {
}

func (defaultAllocator[K, V]) FreeKeys(v []K) {
}

func (defaultAllocator[K, V]) FreeValues(v []V) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K comparable, V any] struct {
	logger *slog.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	m.logger = op.logger
}

// WithLogger is an option to log capacity changes of a Map[K,V]. Resizes
// are logged at debug level. Nothing is logged by default.
func WithLogger[K comparable, V any](logger *slog.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

type lookupOption[K comparable, V any] struct {
	mode LookupMode
}

func (op lookupOption[K, V]) apply(m *Map[K, V]) {
	m.lookup = op.mode
}

// WithLookup is an option to select the lookup path of a Map[K,V]. The
// default is LookupAuto.
func WithLookup[K comparable, V any](mode LookupMode) option[K, V] {
	return lookupOption[K, V]{mode}
}

type strictGrowthOption[K comparable, V any] struct{}

func (strictGrowthOption[K, V]) apply(m *Map[K, V]) {
	m.loadNum, m.loadDen = 1, 2
}

// WithStrictGrowth is an option to keep a Map[K,V] at most half full. By
// default a Map only grows once every slot is occupied, which minimizes
// memory at the cost of long probe sequences near full load.
func WithStrictGrowth[K comparable, V any]() option[K, V] {
	return strictGrowthOption[K, V]{}
}
