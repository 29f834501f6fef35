// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFSCreateWriteReadRoundTrip(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/a.blob", IOPriorityHigh)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	rf, err := fs.Open("/a.blob")
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := rf.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestMemFSOpenMissingReturnsNotExist(t *testing.T) {
	fs := NewMem()
	_, err := fs.Open("/missing")
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestMemFSDropUnsyncedDiscardsPendingWrites(t *testing.T) {
	fs := NewMem()
	f, err := fs.Create("/a.blob", IOPriorityHigh)
	require.NoError(t, err)
	_, err = f.Write([]byte("synced-"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	_, err = f.Write([]byte("unsynced"))
	require.NoError(t, err)

	fs.DropUnsynced()

	info, err := fs.Stat("/a.blob")
	require.NoError(t, err)
	require.EqualValues(t, len("synced-"), info.Size())
}

func TestMemFSRemove(t *testing.T) {
	fs := NewMem()
	_, err := fs.Create("/a.blob", IOPriorityHigh)
	require.NoError(t, err)
	require.NoError(t, fs.Remove("/a.blob"))
	_, err = fs.Stat("/a.blob")
	require.Error(t, err)
}

func TestMemFSList(t *testing.T) {
	fs := NewMem()
	for _, name := range []string{"/dir/a.blob", "/dir/b.blob", "/other/c.blob"} {
		_, err := fs.Create(name, IOPriorityHigh)
		require.NoError(t, err)
	}
	names, err := fs.List("/dir")
	require.NoError(t, err)
	require.Equal(t, []string{"a.blob", "b.blob"}, names)
}
