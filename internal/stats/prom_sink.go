// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink reports the job's counters, histograms, and op timings to a
// Prometheus registry.
type PromSink struct {
	counters   *prometheus.CounterVec
	histograms *prometheus.HistogramVec
	timings    *prometheus.HistogramVec
}

// NewPromSink constructs a PromSink and registers its metrics with reg.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blobgc",
			Name:      "counter_total",
			Help:      "Blob GC counters, labeled by counter name.",
		}, []string{"name"}),
		histograms: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blobgc",
			Name:      "size_bytes",
			Help:      "Blob GC size distributions, labeled by histogram name.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"name"}),
		timings: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blobgc",
			Name:      "op_duration_seconds",
			Help:      "Blob GC op latencies, labeled by op name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),
	}
	reg.MustRegister(s.counters, s.histograms, s.timings)
	return s
}

// AddCount implements Sink.
func (s *PromSink) AddCount(c Counter, delta uint64) {
	s.counters.WithLabelValues(string(c)).Add(float64(delta))
}

// ObserveSize implements Sink.
func (s *PromSink) ObserveSize(h Histogram, bytes uint64) {
	s.histograms.WithLabelValues(string(h)).Observe(float64(bytes))
}

// ObserveDuration implements Sink.
func (s *PromSink) ObserveDuration(t OpTiming, d time.Duration) {
	s.timings.WithLabelValues(string(t)).Observe(d.Seconds())
}
