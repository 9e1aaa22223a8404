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
	"os"
	"strings"
)

// LookupMode selects the implementation used to find keys.
type LookupMode uint8

const (
	// LookupAuto selects the block path on CPUs where it is expected to be
	// faster and the scalar path elsewhere. The choice can be overridden
	// with the ROBINHOOD_LOOKUP environment variable.
	LookupAuto LookupMode = iota
	// LookupScalar probes one slot at a time.
	LookupScalar
	// LookupBlock compares blocks of 16 tags per step.
	LookupBlock
)

// String returns the string representation of a LookupMode.
func (m LookupMode) String() string {
	switch m {
	case LookupAuto:
		return "auto"
	case LookupScalar:
		return "scalar"
	case LookupBlock:
		return "block"
	default:
		return "unknown"
	}
}

// ParseLookupMode parses a string into a LookupMode.
func ParseLookupMode(s string) (LookupMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return LookupAuto, true
	case "scalar":
		return LookupScalar, true
	case "block":
		return LookupBlock, true
	default:
		return LookupAuto, false
	}
}

// autoLookup is what LookupAuto resolves to. Never LookupAuto. Initialized
// once by the platform specific init function.
var autoLookup = LookupScalar

// initLookup is called from the platform specific init functions after CPU
// features are detected.
func initLookup(blockCapable bool) {
	if override := os.Getenv("ROBINHOOD_LOOKUP"); override != "" {
		if mode, ok := ParseLookupMode(override); ok && mode != LookupAuto {
			autoLookup = mode
			return
		}
		// Invalid override - fall through to auto-detection.
	}
	if blockCapable {
		autoLookup = LookupBlock
	} else {
		autoLookup = LookupScalar
	}
}

// DefaultLookup returns the mode LookupAuto resolves to on this machine.
func DefaultLookup() LookupMode {
	return autoLookup
}

// resolve returns m with LookupAuto replaced by the detected default.
func (m LookupMode) resolve() LookupMode {
	if m == LookupAuto {
		return autoLookup
	}
	return m
}
