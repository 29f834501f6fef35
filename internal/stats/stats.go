// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package stats defines the statistics sink contract the GC job reports
// through (§6), a no-op default, and a Prometheus-backed implementation.
// The sink is the classic "maybe-null sink" Design Note §9 describes: a
// capability the job holds, never global state.
package stats

import "time"

// Counter names the monotonic counters the job increments (§6).
type Counter string

// The counters the GC job emits.
const (
	BytesReadCheck            Counter = "gc_bytes_read_check"
	BytesReadBlob             Counter = "gc_bytes_read_blob"
	BytesReadCallback         Counter = "gc_bytes_read_callback"
	BytesWrittenLSM           Counter = "gc_bytes_written_lsm"
	BytesWrittenBlob          Counter = "gc_bytes_written_blob"
	NumKeysOverwrittenCheck   Counter = "gc_num_keys_overwritten_check"
	NumKeysOverwrittenCallback Counter = "gc_num_keys_overwritten_callback"
	BytesOverwrittenCheck     Counter = "gc_bytes_overwritten_check"
	BytesOverwrittenCallback  Counter = "gc_bytes_overwritten_callback"
	NumKeysRelocated          Counter = "gc_num_keys_relocated"
	BytesRelocated            Counter = "gc_bytes_relocated"
	NumKeysFallback           Counter = "gc_num_keys_fallback"
	BytesFallback             Counter = "gc_bytes_fallback"
	NumNewFiles               Counter = "gc_num_new_files"
	NumFiles                  Counter = "gc_num_files"
)

// Histogram names the distributions the job records (§6).
type Histogram string

// The histograms the GC job emits.
const (
	InputFileSize  Histogram = "gc_input_file_size"
	OutputFileSize Histogram = "gc_output_file_size"
)

// OpTiming names the op-latency timers the job records (§6, and the
// UpdateInternalOpStats equivalent noted in SPEC_FULL.md's supplemented
// features).
type OpTiming string

// The op timings the GC job emits.
const (
	ReadLSMMicros   OpTiming = "gc_read_lsm_micros"
	UpdateLSMMicros OpTiming = "gc_update_lsm_micros"
)

// Sink is the capability the job holds to report statistics. A nil-safe
// no-op implementation (NoopSink) is the default; callers needing real
// observability supply a PromSink.
type Sink interface {
	AddCount(c Counter, delta uint64)
	ObserveSize(h Histogram, bytes uint64)
	ObserveDuration(t OpTiming, d time.Duration)
}

// NoopSink discards every observation.
type NoopSink struct{}

// AddCount implements Sink.
func (NoopSink) AddCount(Counter, uint64) {}

// ObserveSize implements Sink.
func (NoopSink) ObserveSize(Histogram, uint64) {}

// ObserveDuration implements Sink.
func (NoopSink) ObserveDuration(OpTiming, time.Duration) {}
