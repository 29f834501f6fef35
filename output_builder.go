// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import (
	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/internal/filemanager"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/vfs"
)

// OutContext carries the original and new blob index for one rewritten
// record, the unit the index writer consumes (§3, §4.4).
type OutContext struct {
	UserKey  []byte
	Original base.BlobIndex
	New      base.BlobIndex
}

type openOutput struct {
	handle filemanager.Handle
	writer *blob.FileWriter
	meta   *manifest.BlobFileMeta
}

// outputBuilder maintains at most one open output blob file, sealing and
// enqueueing it for install once it reaches the target size (§4.4).
type outputBuilder struct {
	fm          *filemanager.Manager
	cmp         base.Compare
	targetSize  uint64
	compression blob.Compression

	cur    *openOutput
	sealed []*openOutput
}

func newOutputBuilder(fm *filemanager.Manager, cmp base.Compare, targetSize uint64, compression blob.Compression) *outputBuilder {
	return &outputBuilder{fm: fm, cmp: cmp, targetSize: targetSize, compression: compression}
}

// addRecord writes (userKey, value) to the current output file, opening a
// new one first if none is open or the current one has reached
// targetSize. It returns the OutContext pairing original with the freshly
// stamped new index.
func (b *outputBuilder) addRecord(userKey, value []byte, original base.BlobIndex) (OutContext, error) {
	if b.cur == nil {
		if err := b.openNext(); err != nil {
			return OutContext{}, err
		}
	}
	handle, err := b.cur.writer.AddRecord(blob.Record{UserKey: userKey, Value: value})
	if err != nil {
		return OutContext{}, err
	}
	newIdx := base.BlobIndex{FileNum: b.cur.handle.FileNum, Handle: handle}
	ctx := OutContext{UserKey: append([]byte(nil), userKey...), Original: original, New: newIdx}

	if b.cur.writer.Size() >= b.targetSize {
		if err := b.seal(); err != nil {
			return OutContext{}, err
		}
	}
	return ctx, nil
}

func (b *outputBuilder) openNext() error {
	handle, writer, err := b.fm.NewFile(vfs.IOPriorityLow)
	if err != nil {
		return err
	}
	b.cur = &openOutput{handle: handle, writer: writer}
	return nil
}

// seal finalizes the current output file and moves it to the sealed list,
// pending install during Finish.
func (b *outputBuilder) seal() error {
	if b.cur == nil {
		return nil
	}
	fileSize, err := b.cur.writer.Finish()
	if err != nil {
		return err
	}
	meta := manifest.NewBlobFileMeta(b.cur.handle.FileNum, fileSize, b.cur.writer.EntryCount(),
		b.cur.writer.Smallest(), b.cur.writer.Largest())
	// The file is the output of this job, not yet a generally available
	// blob file (§4.7 state machine); BatchFinishFiles promotes it to
	// Normal once installed in the catalog.
	if err := meta.Transition(manifest.FileStateGCOutput, 0); err != nil {
		return err
	}
	b.cur.meta = meta
	b.sealed = append(b.sealed, b.cur)
	b.cur = nil
	return nil
}

// finishAll seals any still-open output file. Call once the scan is
// complete and successful.
func (b *outputBuilder) finishAll() error {
	return b.seal()
}

// abortAll discards every output file, sealed or still open, via
// BatchDeleteFiles, and performs no catalog mutation (§4.4 failure
// handling, §4.7 step 2 on install failure).
func (b *outputBuilder) abortAll() error {
	var handles []filemanager.Handle
	if b.cur != nil {
		handles = append(handles, b.cur.handle)
		b.cur = nil
	}
	for _, o := range b.sealed {
		handles = append(handles, o.handle)
	}
	b.sealed = nil
	if len(handles) == 0 {
		return nil
	}
	return b.fm.BatchDeleteFiles(handles)
}

// finishedFiles returns the FinishedFile list for every sealed output,
// ready for filemanager.Manager.BatchFinishFiles.
func (b *outputBuilder) finishedFiles() []filemanager.FinishedFile {
	out := make([]filemanager.FinishedFile, len(b.sealed))
	for i, o := range b.sealed {
		out[i] = filemanager.FinishedFile{Handle: o.handle, Meta: o.meta}
	}
	return out
}

// metaFor returns the sealed output file's metadata for fileNum, used by
// the write-callback path to clear bits on a Busy outcome (§4.5).
func (b *outputBuilder) metaFor(fileNum uint64) (*manifest.BlobFileMeta, error) {
	for _, o := range b.sealed {
		if o.handle.FileNum == fileNum {
			return o.meta, nil
		}
	}
	return nil, errors.Newf("blobgc: no sealed output file %d", fileNum)
}
