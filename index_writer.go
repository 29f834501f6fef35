// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/internal/lsm"
	"github.com/kvsep/blobgc/internal/stats"
)

// makeWriteCallback reproduces GarbageCollectionWriteCallback from the
// original job: an authoritative re-check run by the LSM's write path
// immediately before the write is sequenced (§4.5 steps 1-5).
func (j *Job) makeWriteCallback(cf uint32, key []byte, original base.BlobIndex) lsm.WriteCallback {
	return func(r lsm.Reader) error {
		_, decoded, isBlobIndex, _, found, err := r.GetWithBlobIndex(context.Background(), cf, key)
		if err != nil {
			return err
		}
		if !found {
			return base.Busy("key deleted")
		}
		if !isBlobIndex {
			return base.Busy("key overwritten with other value")
		}
		if !decoded.Equal(original) {
			return base.Busy("key overwritten with other blob")
		}
		return nil
	}
}

// runWriteCallbackIndexWriter drives every OutContext through the
// write-callback path in scan order, updating stats and the output file's
// liveness bitset on Busy outcomes (§4.5's per-batch outcomes table). The
// writer issues one WriteWithCallback per OutContext rather than batching
// them together, since each needs its own callback decision.
func runWriteCallbackIndexWriter(ctx context.Context, w lsm.Writer, cf uint32, job *Job, contexts []OutContext) error {
	for _, oc := range contexts {
		if job.opts.shouldStop() {
			return base.ErrShutdownInProgress
		}
		cb := job.makeWriteCallback(cf, oc.UserKey, oc.Original)

		var value []byte
		if !oc.New.Empty() {
			value = oc.New.EncodeTo(nil)
		} else {
			value = job.fallbackValues[string(oc.UserKey)]
		}
		batch := lsm.WriteBatch{CF: cf, Key: oc.UserKey, Value: value}

		start := time.Now()
		err := w.WriteWithCallback(ctx, batch, cb)
		job.opts.Stats.ObserveDuration(stats.UpdateLSMMicros, time.Since(start))
		switch {
		case err == nil:
			if oc.New.Empty() {
				job.opts.Stats.AddCount(stats.NumKeysFallback, 1)
				job.opts.Stats.AddCount(stats.BytesFallback, oc.Original.Handle.Size)
				job.numFallback++
			} else {
				job.opts.Stats.AddCount(stats.NumKeysRelocated, 1)
				job.opts.Stats.AddCount(stats.BytesRelocated, oc.Original.Handle.Size)
				job.numRelocated++
				job.bytesRelocated += oc.Original.Handle.Size
			}
			job.opts.Stats.AddCount(stats.BytesWrittenLSM, uint64(len(oc.UserKey))+uint64(len(value)))
		case base.IsBusy(err):
			job.opts.Stats.AddCount(stats.NumKeysOverwrittenCallback, 1)
			job.opts.Stats.AddCount(stats.BytesOverwrittenCallback, oc.New.Handle.Size)
			job.numOverwrittenCallback++
			if !oc.New.Empty() {
				meta, merr := job.outputs.metaFor(oc.New.FileNum)
				if merr != nil {
					return merr
				}
				meta.SetLiveDataBitset(oc.New.Handle.Order, false)
				meta.UpdateLiveDataSize(-int64(oc.New.Handle.Size))
			}
		default:
			return errors.Wrap(err, "blobgc: write-callback index rewrite")
		}
	}
	return w.FlushWAL(ctx, true)
}
