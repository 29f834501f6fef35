// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import (
	"context"
	"time"

	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/internal/lsm"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/internal/stats"
)

// livenessOracle implements is_discardable (§4.2): a bitset fast path over
// the job's own input files, falling back to an authoritative LSM
// point-get.
type livenessOracle struct {
	cf       uint32
	inputs   map[uint64]*manifest.BlobFileMeta
	lsmr     lsm.Reader
	statsink stats.Sink
}

// result is the outcome of is_discardable.
type result struct {
	discardable bool
	level       int
	// viaBitset is true if the bitset fast path alone answered the
	// query (no LSM read was issued). The scan loop counts both paths
	// under the same "overwritten" counters and does not read it.
	viaBitset bool
}

func (o *livenessOracle) isDiscardable(ctx context.Context, key []byte, idx base.BlobIndex) (result, error) {
	// Step 1: bitset probe. No I/O; may false-negative, never
	// false-positive (invariant 4).
	meta, ok := o.inputs[idx.FileNum]
	if ok && !meta.IsLiveData(idx.Handle.Order) {
		return result{discardable: true, viaBitset: true}, nil
	}

	// Step 2: LSM probe, authoritative.
	start := time.Now()
	value, decoded, isBlobIndex, level, found, err := o.lsmr.GetWithBlobIndex(ctx, o.cf, key)
	o.statsink.ObserveDuration(stats.ReadLSMMicros, time.Since(start))
	if err != nil {
		return result{}, err
	}
	o.statsink.AddCount(stats.BytesReadCheck, uint64(len(key))+uint64(len(value)))
	if !found || !isBlobIndex {
		return result{discardable: true, level: level}, nil
	}
	if !decoded.Equal(idx) {
		return result{discardable: true, level: level}, nil
	}
	return result{discardable: false, level: level}, nil
}
