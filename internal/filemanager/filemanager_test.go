// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package filemanager

import (
	"testing"

	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/vfs"
	"github.com/stretchr/testify/require"
)

func TestManagerNewFileAllocatesIncreasingFileNumbers(t *testing.T) {
	fs := vfs.NewMem()
	catalog := manifest.NewBlobFileCatalog()
	m := New(fs, "/", catalog, 10, base.DefaultComparer)

	h1, _, err := m.NewFile(vfs.IOPriorityLow)
	require.NoError(t, err)
	h2, _, err := m.NewFile(vfs.IOPriorityLow)
	require.NoError(t, err)
	require.Equal(t, uint64(11), h1.FileNum)
	require.Equal(t, uint64(12), h2.FileNum)
	require.NotEqual(t, h1.Path, h2.Path)
}

func TestManagerBatchFinishFilesRegistersInCatalog(t *testing.T) {
	fs := vfs.NewMem()
	catalog := manifest.NewBlobFileCatalog()
	m := New(fs, "/", catalog, 0, base.DefaultComparer)

	h, w, err := m.NewFile(vfs.IOPriorityLow)
	require.NoError(t, err)
	_, err = w.AddRecord(blob.Record{UserKey: []byte("a"), Value: []byte("v")})
	require.NoError(t, err)
	size, err := w.Finish()
	require.NoError(t, err)
	meta := manifest.NewBlobFileMeta(h.FileNum, size, w.EntryCount(), w.Smallest(), w.Largest())
	// Output builders seal a freshly-written file into GCOutput before
	// handing it to BatchFinishFiles; installation must promote it to
	// Normal, the only way out of that state.
	require.NoError(t, meta.Transition(manifest.FileStateGCOutput, 0))

	require.NoError(t, m.BatchFinishFiles(1, []FinishedFile{{Handle: h, Meta: meta}}))

	found, ok := catalog.GetBlobStorage(1).FindFile(h.FileNum)
	require.True(t, ok)
	require.Same(t, meta, found)
	require.Equal(t, manifest.FileStateNormal, meta.State())
}

func TestManagerBatchFinishFilesForcedFailureDoesNotRegister(t *testing.T) {
	fs := vfs.NewMem()
	catalog := manifest.NewBlobFileCatalog()
	m := New(fs, "/", catalog, 0, base.DefaultComparer)
	m.FailFinish = true

	h, w, err := m.NewFile(vfs.IOPriorityLow)
	require.NoError(t, err)
	size, err := w.Finish()
	require.NoError(t, err)
	meta := manifest.NewBlobFileMeta(h.FileNum, size, 0, nil, nil)

	err = m.BatchFinishFiles(1, []FinishedFile{{Handle: h, Meta: meta}})
	require.Error(t, err)
	require.False(t, m.FailFinish, "the forced failure is consumed, not sticky")

	_, ok := catalog.GetBlobStorage(1).FindFile(h.FileNum)
	require.False(t, ok)
}

func TestManagerBatchDeleteFilesRemovesFromDisk(t *testing.T) {
	fs := vfs.NewMem()
	catalog := manifest.NewBlobFileCatalog()
	m := New(fs, "/", catalog, 0, base.DefaultComparer)

	h, w, err := m.NewFile(vfs.IOPriorityLow)
	require.NoError(t, err)
	_, err = w.AddRecord(blob.Record{UserKey: []byte("a"), Value: []byte("v")})
	require.NoError(t, err)
	_, err = w.Finish()
	require.NoError(t, err)

	require.NoError(t, m.BatchDeleteFiles([]Handle{h}))
	_, err = fs.Stat(h.Path)
	require.Error(t, err)
}
