// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/internal/stats"
)

// finish executes the ordering in §4.7: install outputs before any LSM
// mutation, rewrite indexes (or install shadows) only if install
// succeeded, then retire inputs under the catalog mutex. Blob catalog and
// LSM catalog are separate manifests; this ordering guarantees that after
// a crash, every blob file_number the LSM can replay a reference to is
// already registered.
func (j *Job) finish(ctx context.Context) (Summary, error) {
	// Step 2: install output blob files. BatchFinishFiles takes the
	// catalog mutex internally, and the mutex is held explicitly around
	// LogAndApply below; the long scan above ran without holding it (§5).
	finished := j.outputs.finishedFiles()
	if err := j.fm.BatchFinishFiles(j.opts.CFID, finished); err != nil {
		if derr := j.outputs.abortAll(); derr != nil {
			return Summary{}, errors.WithSecondaryError(err, derr)
		}
		return Summary{}, errors.Wrap(err, "blobgc: installing output blob files")
	}
	for _, f := range finished {
		j.opts.Stats.ObserveSize(stats.OutputFileSize, f.Meta.FileSize())
	}

	var summary Summary
	summary.NumNewFiles = uint64(len(finished))

	// Step 3: rewrite indexes (write-callback) or install shadows. A
	// relocated/live record is indexed by exactly one of the two paths;
	// fallback records always go through the write-callback path since
	// an inline value has no representation in a shadow table.
	if len(j.contexts) > 0 {
		if err := runWriteCallbackIndexWriter(ctx, j.lsmw, j.opts.CFID, j, j.contexts); err != nil {
			// Outputs remain installed: they are dead data a later GC
			// will reclaim (§7 propagation policy). Input deletion is
			// suppressed below by returning early.
			return Summary{}, errors.Wrap(err, "blobgc: rewriting blob indexes")
		}
	}
	if j.shadow != nil {
		summary.ShadowTables = j.shadow.tables()
	}

	// Step 4/5: reacquire the catalog mutex and retire inputs, unless the
	// column family was dropped mid-Finish.
	j.catalog.Lock()
	droppedCF := j.lsmw.IsColumnFamilyDropped(j.opts.CFID)
	if !droppedCF {
		obsoleteSeq := uint64(j.lsmw.LatestSequenceNumber())
		edit := manifest.VersionEdit{CFID: j.opts.CFID}
		for _, in := range j.inputs {
			edit.DeleteBlobFile(in.Meta.FileNum, obsoleteSeq)
			j.opts.Stats.ObserveSize(stats.InputFileSize, in.Meta.FileSize())
		}
		if err := j.catalog.LogAndApply(edit); err != nil {
			j.catalog.Unlock()
			return Summary{}, errors.Wrap(err, "blobgc: retiring input blob files")
		}
		summary.NumFiles = uint64(len(j.inputs))
	}
	j.catalog.Unlock()
	summary.ColumnFamilyDropped = droppedCF

	// Step 6: update internal op stats.
	j.tallySummary(&summary)
	j.opts.Stats.AddCount(stats.NumNewFiles, summary.NumNewFiles)
	j.opts.Stats.AddCount(stats.NumFiles, summary.NumFiles)

	if droppedCF {
		j.opts.Logger.Infof("blobgc: column family %d dropped during finish; input files left for background deletion", j.opts.CFID)
	}

	return summary, nil
}

func (j *Job) tallySummary(s *Summary) {
	s.NumKeysRelocated = j.numRelocated
	s.BytesRelocated = j.bytesRelocated
	s.NumKeysFallback = j.numFallback
	s.NumKeysOverwrittenCheck = j.numOverwrittenCheck
	s.NumKeysOverwrittenCallback = j.numOverwrittenCallback
}
