// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"testing"

	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/vfs"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, fs vfs.FS, path string, recs []Record) uint64 {
	t.Helper()
	f, err := fs.Create(path, vfs.IOPriorityHigh)
	require.NoError(t, err)
	w := NewFileWriter(f, SnappyCompression, base.DefaultComparer)
	for _, r := range recs {
		_, err := w.AddRecord(r)
		require.NoError(t, err)
	}
	size, err := w.Finish()
	require.NoError(t, err)
	return size
}

func openTestFile(t *testing.T, fs vfs.FS, path string, size uint64) *SeqReader {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	return NewSeqReader(NewFileReader(f, size))
}

func TestMergeIteratorOrdersAcrossFiles(t *testing.T) {
	fs := vfs.NewMem()
	size1 := writeTestFile(t, fs, "/1.blob", []Record{
		{UserKey: []byte("a"), Value: []byte("a1")},
		{UserKey: []byte("c"), Value: []byte("c1")},
	})
	size2 := writeTestFile(t, fs, "/2.blob", []Record{
		{UserKey: []byte("b"), Value: []byte("b1")},
		{UserKey: []byte("d"), Value: []byte("d1")},
	})

	it, err := NewMergeIterator(base.DefaultComparer, []InputFile{
		{FileNum: 1, Reader: openTestFile(t, fs, "/1.blob", size1)},
		{FileNum: 2, Reader: openTestFile(t, fs, "/2.blob", size2)},
	})
	require.NoError(t, err)

	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, string(it.Tuple().UserKey))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"a", "b", "c", "d"}, keys)
}

func TestMergeIteratorDuplicateKeyTieBreak(t *testing.T) {
	fs := vfs.NewMem()
	size1 := writeTestFile(t, fs, "/1.blob", []Record{{UserKey: []byte("k"), Value: []byte("from-1")}})
	size2 := writeTestFile(t, fs, "/2.blob", []Record{{UserKey: []byte("k"), Value: []byte("from-2")}})

	it, err := NewMergeIterator(base.DefaultComparer, []InputFile{
		{FileNum: 2, Reader: openTestFile(t, fs, "/2.blob", size2)},
		{FileNum: 1, Reader: openTestFile(t, fs, "/1.blob", size1)},
	})
	require.NoError(t, err)

	require.True(t, it.First())
	// Lower file number wins the tie-break regardless of input order.
	require.Equal(t, uint64(1), it.Tuple().BlobIndex.FileNum)
	require.True(t, it.Next())
	require.Equal(t, uint64(2), it.Tuple().BlobIndex.FileNum)
	require.False(t, it.Next())
}

func TestFileRoundTripWithCompression(t *testing.T) {
	for _, c := range []Compression{NoCompression, SnappyCompression, ZstdCompression, MinlzCompression} {
		fs := vfs.NewMem()
		f, err := fs.Create("/x.blob", vfs.IOPriorityHigh)
		require.NoError(t, err)
		w := NewFileWriter(f, c, base.DefaultComparer)
		h, err := w.AddRecord(Record{UserKey: []byte("hello"), Value: []byte("world-value-payload")})
		require.NoError(t, err)
		_, err = w.Finish()
		require.NoError(t, err)

		rf, err := fs.Open("/x.blob")
		require.NoError(t, err)
		reader := NewFileReader(rf, h.Size)
		rec, err := reader.ReadRecordAt(h)
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), rec.UserKey)
		require.Equal(t, []byte("world-value-payload"), rec.Value)
	}
}
