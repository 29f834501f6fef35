// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobFileMetaLivenessBitset(t *testing.T) {
	m := NewBlobFileMeta(1, 1000, 3, []byte("a"), []byte("c"))
	require.True(t, m.IsLiveData(0))
	require.True(t, m.IsLiveData(1))
	require.True(t, m.IsLiveData(2))

	m.SetLiveDataBitset(1, false)
	require.True(t, m.IsLiveData(0))
	require.False(t, m.IsLiveData(1))
	require.True(t, m.IsLiveData(2))
}

func TestBlobFileMetaLiveDataSizeClampsAtZero(t *testing.T) {
	m := NewBlobFileMeta(1, 100, 1, nil, nil)
	m.UpdateLiveDataSize(-1000)
	require.EqualValues(t, 0, m.LiveDataSize())
}

func TestBlobFileMetaStateTransitions(t *testing.T) {
	m := NewBlobFileMeta(1, 100, 1, nil, nil)
	require.Equal(t, FileStateNormal, m.State())

	require.NoError(t, m.Transition(FileStatePendingGC, 0))
	require.Equal(t, FileStatePendingGC, m.State())

	require.NoError(t, m.Transition(FileStateObsolete, 42))
	require.Equal(t, FileStateObsolete, m.State())
	require.EqualValues(t, 42, m.ObsoleteSequence())
}

func TestBlobFileMetaIllegalTransition(t *testing.T) {
	m := NewBlobFileMeta(1, 100, 1, nil, nil)
	require.NoError(t, m.Transition(FileStatePendingGC, 0))
	err := m.Transition(FileStatePendingGC, 0)
	require.Error(t, err)
}

func TestCatalogLogAndApplyRetiresFile(t *testing.T) {
	c := NewBlobFileCatalog()
	m := NewBlobFileMeta(7, 100, 1, nil, nil)
	c.RegisterDirect(1, m)
	require.NoError(t, m.Transition(FileStatePendingGC, 0))

	edit := VersionEdit{CFID: 1}
	edit.DeleteBlobFile(7, 99)
	require.NoError(t, c.LogAndApply(edit))
	require.Equal(t, FileStateObsolete, m.State())

	found, ok := c.GetBlobStorage(1).FindFile(7)
	require.True(t, ok)
	require.Same(t, m, found)
}
