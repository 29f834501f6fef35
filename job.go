// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/internal/filemanager"
	"github.com/kvsep/blobgc/internal/lsm"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/vfs"
)

// Input names one blob file the job will read from and its on-disk path.
type Input struct {
	Meta *manifest.BlobFileMeta
	Path string
}

// Summary reports what a completed Job.Run did, sufficient to assert
// against every scenario in §8.
type Summary struct {
	NumKeysRelocated           uint64
	BytesRelocated             uint64
	NumKeysFallback            uint64
	NumKeysOverwrittenCheck    uint64
	NumKeysOverwrittenCallback uint64
	NumNewFiles                uint64
	NumFiles                   uint64
	ColumnFamilyDropped        bool
	ShadowTables               []ShadowTable
}

// Job is a single-shot unit of blob garbage collection work: given a set of
// input blob files, it produces live-only output blob files, updates the
// LSM, and retires the inputs (§1, §2).
type Job struct {
	opts    Options
	fs      vfs.FS
	inputs  []Input
	catalog *manifest.BlobFileCatalog
	fm      *filemanager.Manager
	lsmw    lsm.Writer

	inputReaders []blob.InputFile
	inputMetaByFileNum map[uint64]*manifest.BlobFileMeta

	oracle  *livenessOracle
	outputs *outputBuilder
	shadow  *shadowWriter

	contexts       []OutContext
	fallbackValues map[string][]byte

	numOverwrittenCheck    uint64
	numOverwrittenCallback uint64
	numRelocated           uint64
	bytesRelocated         uint64
	numFallback            uint64

	// afterScanHook, when set, runs once the scan completes and before
	// outputs are sealed/installed. Used only by tests to simulate a
	// write racing with the job between the scan's liveness check and
	// the write-callback's later re-check (§8 S2). Not part of the
	// job's production control flow, which is single-threaded (§5).
	afterScanHook func()

	// onRecordScanned, when set, runs after each record is pulled off
	// the merge iterator, passed the 1-based count scanned so far. Used
	// only by tests to trigger a shutdown after a precise number of
	// records (§8 S5) without a real concurrent goroutine.
	onRecordScanned func(n int)
}

// NewJob constructs a Job over inputs, ready to Run. opts should already
// have EnsureDefaults applied (NewJob applies it again defensively).
func NewJob(opts Options, fs vfs.FS, inputs []Input, catalog *manifest.BlobFileCatalog, fm *filemanager.Manager, lsmw lsm.Writer) (*Job, error) {
	opts = opts.EnsureDefaults()
	j := &Job{
		opts:               opts,
		fs:                 fs,
		inputs:             inputs,
		catalog:            catalog,
		fm:                 fm,
		lsmw:               lsmw,
		inputMetaByFileNum: make(map[uint64]*manifest.BlobFileMeta),
		fallbackValues:     make(map[string][]byte),
	}
	for _, in := range inputs {
		if err := in.Meta.Transition(manifest.FileStatePendingGC, 0); err != nil {
			return nil, err
		}
		j.inputMetaByFileNum[in.Meta.FileNum] = in.Meta

		f, err := fs.Open(in.Path)
		if err != nil {
			return nil, errors.Wrap(err, "blobgc: opening input blob file")
		}
		reader := blob.NewFileReader(f, in.Meta.FileSize())
		j.inputReaders = append(j.inputReaders, blob.InputFile{FileNum: in.Meta.FileNum, Reader: blob.NewSeqReader(reader)})
	}

	j.oracle = &livenessOracle{cf: opts.CFID, inputs: j.inputMetaByFileNum, lsmr: lsmw, statsink: opts.Stats}
	j.outputs = newOutputBuilder(fm, opts.Comparer, opts.BlobFileTargetSize, opts.BlobFileCompression)
	if opts.RewriteShadow {
		j.shadow = newShadowWriter(fm, opts.Comparer, opts.ShadowTargetSize, opts.BlobFileCompression, opts.DBID, opts.DBSessionID)
	}
	return j, nil
}

// Prepare marks the input files PendingGC and opens their readers (done
// eagerly in NewJob). Kept as an explicit step for symmetry with the
// three-phase Prepare/Run/Finish pipeline the job is specified around
// (§2); there is currently nothing else to stage before the scan.
func (j *Job) Prepare() {}

// Run executes Prepare, the scan, and Finish in sequence, returning a
// Summary on success. An error from the scan, from sealing outputs, or from
// installing them leaves the LSM untouched and discards every output blob
// file (§4.4, §4.7). An error during the index rewrite leaves the outputs
// installed and the index writes already applied in place, and the inputs
// are not retired. Every error is logged via Logger.Errorf with the column
// family id.
func (j *Job) Run(ctx context.Context) (summary Summary, err error) {
	defer func() {
		if err != nil {
			j.opts.Logger.Errorf("blobgc: column family %d: job failed: %v", j.opts.CFID, err)
		}
	}()
	j.Prepare()

	if err := j.runScan(ctx); err != nil {
		j.abortOutputs()
		return Summary{}, err
	}

	if j.afterScanHook != nil {
		j.afterScanHook()
	}

	if err := j.outputs.finishAll(); err != nil {
		j.abortOutputs()
		return Summary{}, err
	}
	if j.shadow != nil {
		if err := j.shadow.finishAll(); err != nil {
			j.abortOutputs()
			return Summary{}, err
		}
	}

	return j.finish(ctx)
}

func (j *Job) abortOutputs() {
	_ = j.outputs.abortAll()
	if j.shadow != nil {
		_ = j.shadow.abortAll()
	}
}
