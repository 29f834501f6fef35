// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// NewMem returns a new memory-backed FS implementation, used by tests to
// run the GC job without touching disk. A file is visible to Stat/Open/List
// as soon as it is created, and reads see unsynced writes; each file keeps
// its unsynced bytes apart so DropUnsynced can simulate a crash between a
// write and its fsync.
func NewMem() *MemFS {
	return &MemFS{files: make(map[string]*memNode)}
}

// MemFS implements FS.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memNode
}

var _ FS = (*MemFS)(nil)

type memNode struct {
	synced  []byte
	pending []byte
	mode    os.FileMode
	modTime time.Time
}

func (y *MemFS) Create(name string, _ IOPriority) (File, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	n := &memNode{modTime: time.Now()}
	y.files[name] = n
	return &memFile{fs: y, name: name, n: n, writable: true}, nil
}

func (y *MemFS) Open(name string) (File, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	n, ok := y.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return &memFile{fs: y, name: name, n: n}, nil
}

func (y *MemFS) Remove(name string) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if _, ok := y.files[name]; !ok {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrNotExist}
	}
	delete(y.files, name)
	return nil
}

func (y *MemFS) MkdirAll(string, os.FileMode) error { return nil }

func (y *MemFS) List(dir string) ([]string, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	dir = filepath.Clean(dir) + "/"
	var names []string
	for name := range y.files {
		if rest, ok := strings.CutPrefix(name, dir); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (y *MemFS) Stat(name string) (os.FileInfo, error) {
	y.mu.Lock()
	defer y.mu.Unlock()
	n, ok := y.files[name]
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return &memFileInfo{name: filepath.Base(name), n: n}, nil
}

func (y *MemFS) PathJoin(elem ...string) string { return filepath.Join(elem...) }

// DropUnsynced discards any pending (unsynced) writes across every file,
// simulating the data loss that would follow a crash before the writes
// reached durable storage.
func (y *MemFS) DropUnsynced() {
	y.mu.Lock()
	defer y.mu.Unlock()
	for _, n := range y.files {
		n.pending = nil
	}
}

type memFile struct {
	fs       *MemFS
	name     string
	n        *memNode
	writable bool
	rOff     int64
}

func (f *memFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.n.pending = append(f.n.pending, p...)
	return len(p), nil
}

func (f *memFile) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	data := f.n.visible()
	f.fs.mu.Unlock()
	if f.rOff >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[f.rOff:])
	f.rOff += int64(n)
	return n, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	data := f.n.visible()
	f.fs.mu.Unlock()
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) Close() error { return nil }

func (f *memFile) Sync() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.n.synced = append(f.n.synced, f.n.pending...)
	f.n.pending = nil
	return nil
}

func (f *memFile) Stat() (os.FileInfo, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	return &memFileInfo{name: filepath.Base(f.name), n: f.n}, nil
}

// visible returns the bytes a reader opened after this point would see: all
// synced data, plus pending data (tests only drop pending data explicitly via
// DropUnsynced, so ordinary reads observe their own writes).
func (n *memNode) visible() []byte {
	if len(n.pending) == 0 {
		return n.synced
	}
	return append(append([]byte(nil), n.synced...), n.pending...)
}

type memFileInfo struct {
	name string
	n    *memNode
}

func (fi *memFileInfo) Name() string       { return fi.name }
func (fi *memFileInfo) Size() int64        { return int64(len(fi.n.visible())) }
func (fi *memFileInfo) Mode() os.FileMode  { return fi.n.mode }
func (fi *memFileInfo) ModTime() time.Time { return fi.n.modTime }
func (fi *memFileInfo) IsDir() bool        { return false }
func (fi *memFileInfo) Sys() any           { return nil }
