// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/internal/filemanager"
	"github.com/kvsep/blobgc/internal/lsm"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/vfs"
	"github.com/stretchr/testify/require"
)

const testCF uint32 = 1

// writeInputBlobFile writes records to a new blob file at path on fs and
// registers its resulting metadata in catalog under testCF.
func writeInputBlobFile(t *testing.T, fs vfs.FS, catalog *manifest.BlobFileCatalog, fileNum uint64, path string, records []blob.Record) (*manifest.BlobFileMeta, []base.BlobHandle) {
	t.Helper()
	f, err := fs.Create(path, vfs.IOPriorityHigh)
	require.NoError(t, err)
	w := blob.NewFileWriter(f, blob.NoCompression, base.DefaultComparer)
	handles := make([]base.BlobHandle, len(records))
	for i, r := range records {
		h, err := w.AddRecord(r)
		require.NoError(t, err)
		handles[i] = h
	}
	size, err := w.Finish()
	require.NoError(t, err)
	meta := manifest.NewBlobFileMeta(fileNum, size, w.EntryCount(), w.Smallest(), w.Largest())
	catalog.RegisterDirect(testCF, meta)
	return meta, handles
}

func newHarness(t *testing.T) (vfs.FS, *manifest.BlobFileCatalog, *lsm.MemLSM, *filemanager.Manager) {
	t.Helper()
	fs := vfs.NewMem()
	catalog := manifest.NewBlobFileCatalog()
	mem := lsm.NewMemLSM()
	fm := filemanager.New(fs, "/", catalog, 100, base.DefaultComparer)
	return fs, catalog, mem, fm
}

// S1: baseline relocation.
func TestJobBaselineRelocation(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", []blob.Record{
		{UserKey: []byte("k"), Value: []byte("v1")},
	})
	mem.PutBlobIndex(testCF, []byte("k"), base.BlobIndex{FileNum: 1, Handle: handles[0]})

	opts := Options{CFID: testCF, RunMode: Normal}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.NumKeysRelocated)

	_, idx, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, isBlobIndex)
	require.NotEqual(t, uint64(1), idx.FileNum)
	require.Equal(t, manifest.FileStateObsolete, meta.State())
}

// S2: overwrite race. An external writer overwrites "k" with an inline
// value before the write-callback fires.
func TestJobOverwriteRace(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", []blob.Record{
		{UserKey: []byte("k"), Value: []byte("v1")},
	})
	mem.PutBlobIndex(testCF, []byte("k"), base.BlobIndex{FileNum: 1, Handle: handles[0]})

	opts := Options{CFID: testCF, RunMode: Normal}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	// Simulate the race by overwriting "k" with an inline value after
	// the scan's liveness check observed the original blob index but
	// before the write-callback's authoritative re-check runs.
	job.afterScanHook = func() {
		mem.PutInline(testCF, []byte("k"), []byte("w"))
	}

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.NumKeysOverwrittenCallback)
	require.EqualValues(t, 0, summary.NumKeysRelocated)

	value, _, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, isBlobIndex)
	require.Equal(t, []byte("w"), value)
	require.Equal(t, manifest.FileStateObsolete, meta.State())
}

// S3: bitset dead. F1 has two records; LSM maps "k" elsewhere and the
// bitset for order=0 is already clear.
func TestJobBitsetDead(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", []blob.Record{
		{UserKey: []byte("k"), Value: []byte("v1")},
		{UserKey: []byte("k2"), Value: []byte("v2")},
	})
	meta.SetLiveDataBitset(0, false)
	mem.PutBlobIndex(testCF, []byte("k2"), base.BlobIndex{FileNum: 1, Handle: handles[1]})
	// "k" is mapped elsewhere in the LSM (not to this file at all).
	mem.PutInline(testCF, []byte("k"), []byte("elsewhere"))

	opts := Options{CFID: testCF, RunMode: Normal}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.NumKeysRelocated)

	_, idx, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, []byte("k2"))
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, isBlobIndex)
	require.NotEqual(t, uint64(1), idx.FileNum)
}

// S4: fallback mode. The live value is written back inline; no new blob
// file is created.
func TestJobFallbackMode(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", []blob.Record{
		{UserKey: []byte("k"), Value: []byte("v1")},
	})
	mem.PutBlobIndex(testCF, []byte("k"), base.BlobIndex{FileNum: 1, Handle: handles[0]})

	opts := Options{CFID: testCF, RunMode: Fallback}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.NumKeysFallback)
	require.EqualValues(t, 0, summary.NumNewFiles)

	value, _, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, isBlobIndex)
	require.Equal(t, []byte("v1"), value)
}

// S5: shutdown mid-scan.
func TestJobShutdownMidScan(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	var records []blob.Record
	for i := 0; i < 1000; i++ {
		records = append(records, blob.Record{UserKey: []byte{byte(i >> 8), byte(i)}, Value: []byte("v")})
	}
	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", records)
	for i, h := range handles {
		mem.PutBlobIndex(testCF, records[i].UserKey, base.BlobIndex{FileNum: 1, Handle: h})
	}

	var stop atomic.Bool
	opts := Options{CFID: testCF, RunMode: Normal, ShutdownSignal: &stop}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	// Trigger the shutdown after exactly 100 of the 1000 records have
	// been scanned, so the abort path is exercised mid-scan rather than
	// on the very first iteration.
	job.onRecordScanned = func(n int) {
		if n == 100 {
			stop.Store(true)
		}
	}

	_, err = job.Run(context.Background())
	require.ErrorIs(t, err, base.ErrShutdownInProgress)

	_, _, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, records[0].UserKey)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, isBlobIndex)
}

// S6: output-install failure.
func TestJobOutputInstallFailure(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", []blob.Record{
		{UserKey: []byte("k"), Value: []byte("v1")},
	})
	mem.PutBlobIndex(testCF, []byte("k"), base.BlobIndex{FileNum: 1, Handle: handles[0]})

	fm.FailFinish = true

	opts := Options{CFID: testCF, RunMode: Normal}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	require.Error(t, err)

	_, idx, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, isBlobIndex)
	require.Equal(t, uint64(1), idx.FileNum)
	require.Equal(t, manifest.FileStatePendingGC, meta.State())
}

// Shadow mode: live records are rewritten to per-level shadow tables
// instead of going through the write-callback path, and the LSM itself is
// left untouched until the shadow-ingest consumer applies the result
// (§4.6, Open Question §9).
func TestJobShadowMode(t *testing.T) {
	fs, catalog, mem, fm := newHarness(t)

	meta, handles := writeInputBlobFile(t, fs, catalog, 1, "/001.blob", []blob.Record{
		{UserKey: []byte("k"), Value: []byte("v1")},
		{UserKey: []byte("k2"), Value: []byte("v2")},
	})
	mem.PutBlobIndex(testCF, []byte("k"), base.BlobIndex{FileNum: 1, Handle: handles[0]})
	mem.PutBlobIndex(testCF, []byte("k2"), base.BlobIndex{FileNum: 1, Handle: handles[1]})

	opts := Options{CFID: testCF, RunMode: Normal, RewriteShadow: true}.EnsureDefaults()
	job, err := NewJob(opts, fs, []Input{{Meta: meta, Path: "/001.blob"}}, catalog, fm, mem)
	require.NoError(t, err)

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	// Shadow mode never runs the write-callback path, so the
	// LSM-rewrite-specific counter stays at zero; the rewritten records
	// show up in the shadow tables instead.
	require.EqualValues(t, 0, summary.NumKeysRelocated)
	require.Len(t, summary.ShadowTables, 1)
	require.EqualValues(t, 2, summary.ShadowTables[0].EntryCount)
	require.Equal(t, "Shadow", summary.ShadowTables[0].CreationReason)
	require.Equal(t, opts.DBID, summary.ShadowTables[0].DBID)
	require.Equal(t, opts.DBSessionID, summary.ShadowTables[0].DBSessionID)

	// The LSM is untouched: shadow mode never writes through it.
	_, idx, isBlobIndex, _, found, err := mem.GetWithBlobIndex(context.Background(), testCF, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, isBlobIndex)
	require.Equal(t, uint64(1), idx.FileNum)
	require.Equal(t, manifest.FileStateObsolete, meta.State())
}
