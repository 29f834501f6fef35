// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package filemanager implements the blob file manager contract (§6):
// allocating new output files at a given I/O priority, and batch
// install/delete of finished or abandoned output files.
package filemanager

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/internal/manifest"
	"github.com/kvsep/blobgc/vfs"
)

// Handle identifies an open output blob file pending install or delete.
type Handle struct {
	FileNum uint64
	Path    string
	Writer  *blob.FileWriter
}

// FinishedFile pairs a handle with the metadata the writer finalized,
// ready for BatchFinishFiles.
type FinishedFile struct {
	Handle Handle
	Meta   *manifest.BlobFileMeta
}

// Manager allocates and retires blob files on a vfs.FS. BatchFinishFiles
// registers newly written files in the catalog; BatchDeleteFiles discards
// files that were written but must not be installed (§4.4, §4.7 step 2).
type Manager struct {
	fs       vfs.FS
	dir      string
	cmp      blobCompare
	nextFile atomic.Uint64
	catalog  *manifest.BlobFileCatalog

	// FailFinish, when set, makes the next BatchFinishFiles call fail
	// without touching the file system, modeling a forced
	// install-failure for scenario S6.
	FailFinish bool
}

type blobCompare = func(a, b []byte) int

// New constructs a Manager writing into dir on fs, backed by catalog.
// startFileNum seeds the file number allocator.
func New(fs vfs.FS, dir string, catalog *manifest.BlobFileCatalog, startFileNum uint64, cmp blobCompare) *Manager {
	m := &Manager{fs: fs, dir: dir, catalog: catalog, cmp: cmp}
	m.nextFile.Store(startFileNum)
	return m
}

// NewFile allocates a new output blob file at the given I/O priority,
// matching §6's new_file(io_priority) -> handle.
func (m *Manager) NewFile(priority vfs.IOPriority) (Handle, *blob.FileWriter, error) {
	fileNum := m.nextFile.Add(1)
	path := m.fs.PathJoin(m.dir, fmt.Sprintf("%06d.blob", fileNum))
	f, err := m.fs.Create(path, priority)
	if err != nil {
		return Handle{}, nil, errors.Wrap(err, "blobgc: creating blob file")
	}
	w := blob.NewFileWriter(f, blob.SnappyCompression, m.cmp)
	return Handle{FileNum: fileNum, Path: path, Writer: w}, w, nil
}

// BatchFinishFiles installs files into the catalog under cfID, matching
// §6's batch_finish_files(cf_id, [(meta, handle)]). Callers must have
// already called Writer.Finish on each handle so Meta reflects the final
// file size and bounds; this only registers the result in the catalog.
func (m *Manager) BatchFinishFiles(cfID uint32, files []FinishedFile) error {
	if m.FailFinish {
		m.FailFinish = false
		return errors.New("blobgc: forced blob file install failure")
	}
	for _, f := range files {
		if err := f.Meta.Transition(manifest.FileStateNormal, 0); err != nil {
			return err
		}
		m.catalog.RegisterDirect(cfID, f.Meta)
	}
	return nil
}

// BatchDeleteFiles discards output files that must not be installed,
// matching §6's batch_delete_files([handle]). Used on builder failure
// (§4.4) and on install failure (§4.7 step 2).
func (m *Manager) BatchDeleteFiles(handles []Handle) error {
	var firstErr error
	for _, h := range handles {
		if err := h.Writer.Abort(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := m.fs.Remove(h.Path); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "blobgc: removing abandoned blob file")
		}
	}
	return firstErr
}
