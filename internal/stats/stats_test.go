// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNoopSinkDiscardsEverything(t *testing.T) {
	var s Sink = NoopSink{}
	require.NotPanics(t, func() {
		s.AddCount(NumKeysRelocated, 1)
		s.ObserveSize(InputFileSize, 1024)
		s.ObserveDuration(ReadLSMMicros, time.Millisecond)
	})
}

func TestPromSinkRecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPromSink(reg)

	s.AddCount(NumKeysRelocated, 3)
	s.AddCount(NumKeysRelocated, 2)
	s.ObserveSize(OutputFileSize, 4096)
	s.ObserveDuration(UpdateLSMMicros, 5*time.Millisecond)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var counterValue float64
	for _, mf := range metricFamilies {
		if mf.GetName() != "blobgc_counter_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelMatches(m, "name", string(NumKeysRelocated)) {
				counterValue = m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, 5.0, counterValue)
}

func labelMatches(m *dto.Metric, key, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}
