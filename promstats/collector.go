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

// Package promstats exports the shape of robinhood maps as Prometheus
// metrics.
package promstats

import (
	"github.com/cockroachdb/robinhood"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything that can summarize itself as robinhood.Stats. A
// *robinhood.Map is a StatsSource.
type StatsSource interface {
	Stats() robinhood.Stats
}

// StatsFunc adapts a function to the StatsSource interface. It is useful for
// taking a lock around Map.Stats when the map is mutated concurrently with
// collection.
type StatsFunc func() robinhood.Stats

// Stats implements StatsSource.
func (f StatsFunc) Stats() robinhood.Stats {
	return f()
}

// Collector is a prometheus.Collector reporting the Stats of a single
// source. Stats are computed on every scrape.
type Collector struct {
	src StatsSource

	len           *prometheus.Desc
	capacity      *prometheus.Desc
	loadFactor    *prometheus.Desc
	grows         *prometheus.Desc
	shrinks       *prometheus.Desc
	maxProbeDist  *prometheus.Desc
	meanProbeDist *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a Collector for src. Metric names are prefixed with
// namespace and every metric carries a "map" label set to name.
func NewCollector(namespace, name string, src StatsSource) *Collector {
	labels := prometheus.Labels{"map": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "robinhood", metric), help, nil, labels)
	}
	return &Collector{
		src:           src,
		len:           desc("entries", "Number of entries in the map."),
		capacity:      desc("capacity_slots", "Number of slots in the map."),
		loadFactor:    desc("load_ratio", "Entries divided by slots."),
		grows:         desc("grows_total", "Number of times the map has grown."),
		shrinks:       desc("shrinks_total", "Number of times the map has shrunk."),
		maxProbeDist:  desc("probe_distance_max", "Largest distance of an entry from its ideal slot."),
		meanProbeDist: desc("probe_distance_mean", "Mean distance of entries from their ideal slots."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.len
	ch <- c.capacity
	ch <- c.loadFactor
	ch <- c.grows
	ch <- c.shrinks
	ch <- c.maxProbeDist
	ch <- c.meanProbeDist
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.len, prometheus.GaugeValue, float64(s.Len))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.loadFactor, prometheus.GaugeValue, s.LoadFactor)
	ch <- prometheus.MustNewConstMetric(c.grows, prometheus.CounterValue, float64(s.Grows))
	ch <- prometheus.MustNewConstMetric(c.shrinks, prometheus.CounterValue, float64(s.Shrinks))
	ch <- prometheus.MustNewConstMetric(c.maxProbeDist, prometheus.GaugeValue, float64(s.MaxProbeDistance))
	ch <- prometheus.MustNewConstMetric(c.meanProbeDist, prometheus.GaugeValue, s.MeanProbeDistance)
}
