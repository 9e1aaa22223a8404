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
	"errors"
	"fmt"
)

var (
	// ErrAllocation is matched by errors.Is for every allocation failure
	// returned by a Map. The Map is left unmodified when it is returned.
	ErrAllocation = errors.New("robinhood: allocation failed")

	// ErrMemoryLimitExceeded is returned by a BudgetAllocator when an
	// allocation would exceed its Budget.
	ErrMemoryLimitExceeded = errors.New("robinhood: memory limit exceeded")

	// ErrCapacityOverflow indicates the requested capacity exceeds
	// MaxCapacity.
	ErrCapacityOverflow = errors.New("robinhood: capacity overflow")

	// ErrInvalidCapacity is returned when a capacity argument is out of
	// range, e.g. ShrinkTo below the number of entries in the map.
	ErrInvalidCapacity = errors.New("robinhood: invalid capacity")
)

// AllocError describes a failure to allocate storage for a table of the
// given capacity.
//
// The underlying error can be accessed via errors.Unwrap.
type AllocError struct {
	Capacity uint64
	Err      error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("robinhood: allocating capacity %d: %v", e.Capacity, e.Err)
}

func (e *AllocError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAllocation.
func (e *AllocError) Is(target error) bool { return target == ErrAllocation }
