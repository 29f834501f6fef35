// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"container/heap"

	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/base"
)

// MergeTuple is a single (user_key, blob_index, value) tuple produced by
// the merge iterator (§4.1).
type MergeTuple struct {
	UserKey   []byte
	BlobIndex base.BlobIndex
	Value     []byte
}

// InputFile pairs a blob file's identity with the sequential reader used to
// walk it.
type InputFile struct {
	FileNum uint64
	Reader  *SeqReader
}

// MergeIterator produces a lazy, forward-only, key-ordered sequence of
// tuples across N input blob files (§4.1). Duplicate keys across inputs are
// emitted in comparator order with a stable (by file number) tie-break; the
// caller (the scan loop, §4.3) is responsible for suppressing older
// duplicates.
//
// The iterator is not restartable: once exhausted or errored, construct a
// new one.
type MergeIterator struct {
	cmp   base.Compare
	heap  cursorHeap
	err   error
	valid bool
	cur   MergeTuple
}

type cursor struct {
	fileNum uint64
	reader  *SeqReader
	rec     Record
	handle  base.BlobHandle
}

type cursorHeap struct {
	cmp  base.Compare
	data []*cursor
}

func (h cursorHeap) Len() int { return len(h.data) }
func (h cursorHeap) Less(i, j int) bool {
	c := h.cmp(h.data[i].rec.UserKey, h.data[j].rec.UserKey)
	if c != 0 {
		return c < 0
	}
	return h.data[i].fileNum < h.data[j].fileNum
}
func (h cursorHeap) Swap(i, j int) { h.data[i], h.data[j] = h.data[j], h.data[i] }
func (h *cursorHeap) Push(x any)   { h.data = append(h.data, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := h.data
	n := len(old)
	item := old[n-1]
	h.data = old[:n-1]
	return item
}

// NewMergeIterator constructs a merge iterator over inputs, using cmp as
// the key comparator. The caller must call First to position the iterator
// before calling Key/Value/Next.
func NewMergeIterator(cmp base.Compare, inputs []InputFile) (*MergeIterator, error) {
	if cmp == nil {
		cmp = base.DefaultComparer
	}
	it := &MergeIterator{cmp: cmp, heap: cursorHeap{cmp: cmp}}
	for _, in := range inputs {
		rec, handle, done, err := in.Reader.Next()
		if err != nil {
			return nil, errors.Wrap(err, "blobgc: initializing merge iterator")
		}
		if done {
			continue
		}
		heap.Push(&it.heap, &cursor{fileNum: in.FileNum, reader: in.Reader, rec: rec, handle: handle})
	}
	return it, nil
}

// First positions the iterator at the first tuple, if any.
func (it *MergeIterator) First() bool {
	return it.advance()
}

// Next advances to the next tuple in key order.
func (it *MergeIterator) Next() bool {
	return it.advance()
}

func (it *MergeIterator) advance() bool {
	if it.err != nil || it.heap.Len() == 0 {
		it.valid = false
		return false
	}
	top := heap.Pop(&it.heap).(*cursor)
	it.cur = MergeTuple{
		UserKey:   top.rec.UserKey,
		BlobIndex: base.BlobIndex{FileNum: top.fileNum, Handle: top.handle},
		Value:     top.rec.Value,
	}
	it.valid = true

	rec, handle, done, err := top.reader.Next()
	if err != nil {
		it.err = errors.Wrap(err, "blobgc: advancing merge iterator")
		return true
	}
	if !done {
		heap.Push(&it.heap, &cursor{fileNum: top.fileNum, reader: top.reader, rec: rec, handle: handle})
	}
	return true
}

// Valid reports whether the iterator is positioned at a tuple.
func (it *MergeIterator) Valid() bool { return it.valid }

// Tuple returns the tuple at the iterator's current position.
func (it *MergeIterator) Tuple() MergeTuple { return it.cur }

// Error returns the first error encountered, corresponding to the spec's
// IteratorError: any underlying blob file read failure aborts the job
// without touching the LSM (§4.1).
func (it *MergeIterator) Error() error { return it.err }
