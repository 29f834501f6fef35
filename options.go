// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blobgc implements the blob garbage collection job: given a set
// of input blob files chosen by an external picker, it produces output
// blob files containing only entries still live in the LSM, updates the
// LSM's indexes for live keys, and retires the inputs.
package blobgc

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/internal/stats"
)

// RunMode selects how the scan loop handles a live record (§4.3).
type RunMode int

// The two run modes.
const (
	// Normal rewrites live records into fresh blob files.
	Normal RunMode = iota
	// Fallback writes live values back into the LSM inline, producing no
	// new blob file for this run.
	Fallback
)

// String implements fmt.Stringer.
func (m RunMode) String() string {
	if m == Fallback {
		return "Fallback"
	}
	return "Normal"
}

// Options configures a Job. Call EnsureDefaults before constructing a Job
// from a partially populated Options, matching the teacher's
// Options.EnsureDefaults convention.
type Options struct {
	// CFID identifies the column family being collected.
	CFID uint32

	// BlobFileTargetSize bounds the size of each output blob file (§4.4).
	BlobFileTargetSize uint64

	// BlobFileCompression is passed to the output builder and the shadow
	// writer, but it does not change the codec: filemanager.Manager.NewFile
	// creates every output blob file and shadow table with
	// blob.SnappyCompression, whatever this field holds.
	BlobFileCompression blob.Compression

	// RunMode selects Normal or Fallback handling for live records.
	RunMode RunMode

	// RewriteShadow selects the shadow output path (§4.6) instead of the
	// write-callback path (§4.5). Mutually exclusive: a Job never runs
	// both for the same input set.
	RewriteShadow bool

	// ShadowTargetSize bounds the size of each per-level shadow table.
	ShadowTargetSize uint64

	// Comparer orders user keys for this column family.
	Comparer base.Compare

	// Logger receives job diagnostics and failures.
	Logger base.Logger

	// Stats receives the job's counters, histograms, and op timings.
	Stats stats.Sink

	// ShutdownSignal, when non-nil, is polled (with acquire-ordering Load,
	// §5) once per scanned record; a true value aborts the job with
	// ErrShutdownInProgress.
	ShutdownSignal *atomic.Bool

	// DBID and DBSessionID are recorded as table-property identifiers on
	// shadow tables only (§6); they have no effect in write-callback mode.
	DBID        string
	DBSessionID string
}

const defaultBlobFileTargetSize = 64 << 20     // 64 MiB
const defaultShadowTargetSize = 32 << 20        // 32 MiB

// EnsureDefaults returns a copy of o with zero-valued fields filled in,
// mirroring the teacher's Options.EnsureDefaults pattern.
func (o Options) EnsureDefaults() Options {
	if o.BlobFileTargetSize == 0 {
		o.BlobFileTargetSize = defaultBlobFileTargetSize
	}
	if o.ShadowTargetSize == 0 {
		o.ShadowTargetSize = defaultShadowTargetSize
	}
	if o.Comparer == nil {
		o.Comparer = base.DefaultComparer
	}
	if o.Logger == nil {
		o.Logger = base.NoopLogger{}
	}
	if o.Stats == nil {
		o.Stats = stats.NoopSink{}
	}
	if o.DBID == "" {
		o.DBID = uuid.NewString()
	}
	if o.DBSessionID == "" {
		o.DBSessionID = uuid.NewString()
	}
	return o
}

func (o *Options) shouldStop() bool {
	if o.ShutdownSignal == nil {
		return false
	}
	return o.ShutdownSignal.Load()
}
