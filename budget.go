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
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/semaphore"
)

// Budget limits the memory held by the maps whose allocators share it. A
// Budget is safe for concurrent use, so maps owned by different goroutines
// may share one even though the maps themselves are not.
//
// Acquisition never blocks: an allocation exceeding the remaining budget
// fails immediately with ErrMemoryLimitExceeded.
type Budget struct {
	limit int64
	sem   *semaphore.Weighted // nil if unlimited
	used  atomic.Int64
}

// NewBudget returns a Budget of limitBytes. If limitBytes is 0 no limit is
// enforced and the Budget only tracks usage.
func NewBudget(limitBytes int64) *Budget {
	b := &Budget{limit: limitBytes}
	if limitBytes > 0 {
		b.sem = semaphore.NewWeighted(limitBytes)
	}
	return b
}

func (b *Budget) acquire(bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	if b.sem != nil && !b.sem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}
	b.used.Add(bytes)
	return nil
}

func (b *Budget) release(bytes int64) {
	if bytes <= 0 {
		return
	}
	if b.sem != nil {
		b.sem.Release(bytes)
	}
	b.used.Add(-bytes)
}

// Used returns the number of bytes currently held.
func (b *Budget) Used() int64 {
	return b.used.Load()
}

// Limit returns the configured limit in bytes (0 if unlimited).
func (b *Budget) Limit() int64 {
	return b.limit
}

// BudgetAllocator is an Allocator which charges every buffer it hands out
// against a Budget. Memory is obtained with make() and returned to the
// Budget by the Free methods, so maps using a BudgetAllocator must be closed
// with Map.Close to give their memory back.
//
// A resize holds both the old and the new buffers until the new ones are
// populated, so the Budget must have room for both.
type BudgetAllocator[K comparable, V any] struct {
	budget *Budget
}

// NewBudgetAllocator returns a BudgetAllocator charging b.
func NewBudgetAllocator[K comparable, V any](b *Budget) *BudgetAllocator[K, V] {
	return &BudgetAllocator[K, V]{budget: b}
}

func sizeOf[T any](n int) int64 {
	var t T
	return int64(unsafe.Sizeof(t)) * int64(n)
}

// AllocTags implements Allocator.
func (a *BudgetAllocator[K, V]) AllocTags(n int) ([]uint32, error) {
	if err := a.budget.acquire(sizeOf[uint32](n)); err != nil {
		return nil, err
	}
	return make([]uint32, n), nil
}

// AllocKeys implements Allocator.
func (a *BudgetAllocator[K, V]) AllocKeys(n int) ([]K, error) {
	if err := a.budget.acquire(sizeOf[K](n)); err != nil {
		return nil, err
	}
	return make([]K, n), nil
}

// AllocValues implements Allocator.
func (a *BudgetAllocator[K, V]) AllocValues(n int) ([]V, error) {
	if err := a.budget.acquire(sizeOf[V](n)); err != nil {
		return nil, err
	}
	return make([]V, n), nil
}

// FreeTags implements Allocator.
func (a *BudgetAllocator[K, V]) FreeTags(v []uint32) {
	a.budget.release(sizeOf[uint32](len(v)))
}

// FreeKeys implements Allocator.
func (a *BudgetAllocator[K, V]) FreeKeys(v []K) {
	a.budget.release(sizeOf[K](len(v)))
}

// FreeValues implements Allocator.
func (a *BudgetAllocator[K, V]) FreeValues(v []V) {
	a.budget.release(sizeOf[V](len(v)))
}
