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

package promstats

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/robinhood"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	m := robinhood.New[int, int](0)
	for i := 0; i < 6; i++ {
		m.Put(i, i)
	}

	c := NewCollector("test", "ints", m)
	require.Equal(t, 7, testutil.CollectAndCount(c))

	const expected = `
# HELP test_robinhood_capacity_slots Number of slots in the map.
# TYPE test_robinhood_capacity_slots gauge
test_robinhood_capacity_slots{map="ints"} 8
# HELP test_robinhood_entries Number of entries in the map.
# TYPE test_robinhood_entries gauge
test_robinhood_entries{map="ints"} 6
# HELP test_robinhood_grows_total Number of times the map has grown.
# TYPE test_robinhood_grows_total counter
test_robinhood_grows_total{map="ints"} 4
# HELP test_robinhood_load_ratio Entries divided by slots.
# TYPE test_robinhood_load_ratio gauge
test_robinhood_load_ratio{map="ints"} 0.75
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"test_robinhood_capacity_slots",
		"test_robinhood_entries",
		"test_robinhood_grows_total",
		"test_robinhood_load_ratio"))
}

func TestCollectorResizes(t *testing.T) {
	m := robinhood.New[int, int](0)
	c := NewCollector("", "ints", m)

	expect := func(grows, shrinks, capacity, entries int) string {
		return fmt.Sprintf(`
# HELP robinhood_capacity_slots Number of slots in the map.
# TYPE robinhood_capacity_slots gauge
robinhood_capacity_slots{map="ints"} %d
# HELP robinhood_entries Number of entries in the map.
# TYPE robinhood_entries gauge
robinhood_entries{map="ints"} %d
# HELP robinhood_grows_total Number of times the map has grown.
# TYPE robinhood_grows_total counter
robinhood_grows_total{map="ints"} %d
# HELP robinhood_shrinks_total Number of times the map has shrunk.
# TYPE robinhood_shrinks_total counter
robinhood_shrinks_total{map="ints"} %d
`, capacity, entries, grows, shrinks)
	}
	names := []string{
		"robinhood_capacity_slots",
		"robinhood_entries",
		"robinhood_grows_total",
		"robinhood_shrinks_total",
	}

	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	// 0 -> 1 -> 2 -> ... -> 128.
	require.NoError(t, testutil.CollectAndCompare(c,
		strings.NewReader(expect(8, 0, 128, 100)), names...))

	for i := 0; i < 90; i++ {
		m.Delete(i)
	}
	// 128 -> 64 -> 32.
	require.NoError(t, testutil.CollectAndCompare(c,
		strings.NewReader(expect(8, 2, 32, 10)), names...))
}

func TestCollectorStatsFunc(t *testing.T) {
	calls := 0
	src := StatsFunc(func() robinhood.Stats {
		calls++
		return robinhood.Stats{Len: 3, Capacity: 4, Shrinks: 2}
	})

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("", "fn", src)))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	values := make(map[string]float64)
	for _, f := range families {
		require.Len(t, f.GetMetric(), 1)
		m := f.GetMetric()[0]
		require.Equal(t, "fn", m.GetLabel()[0].GetValue())
		switch {
		case m.Gauge != nil:
			values[f.GetName()] = m.GetGauge().GetValue()
		case m.Counter != nil:
			values[f.GetName()] = m.GetCounter().GetValue()
		}
	}
	require.Equal(t, 3.0, values["robinhood_entries"])
	require.Equal(t, 4.0, values["robinhood_capacity_slots"])
	require.Equal(t, 2.0, values["robinhood_shrinks_total"])
	require.Equal(t, 0.0, values["robinhood_probe_distance_max"])
}
