// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package manifest holds the catalog-facing metadata for blob files: their
// lifecycle state, liveness bitset, and the version-edit bookkeeping used to
// install new files and retire old ones. It intentionally says nothing about
// how blob records are encoded on disk; that's internal/blob's job.
package manifest

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// FileState enumerates a blob file's position in the GC lifecycle. A file
// only ever reaches Obsolete by first passing through PendingGC; direct
// Normal->Obsolete transitions are a bug in the caller.
type FileState uint8

// The blob file states, matching the lifecycle diagram in §4.7.
const (
	FileStateNormal FileState = iota
	FileStatePendingGC
	FileStateGCOutput
	FileStateObsolete
)

// String implements fmt.Stringer.
func (s FileState) String() string {
	switch s {
	case FileStateNormal:
		return "Normal"
	case FileStatePendingGC:
		return "PendingGC"
	case FileStateGCOutput:
		return "GCOutput"
	case FileStateObsolete:
		return "Obsolete"
	default:
		return "Unknown"
	}
}

// BlobFileMeta describes a single blob file: its identity, size, and the
// mutable liveness tracking the GC job consults and updates. The catalog
// owns the canonical instance; a GC job holds a shared *BlobFileMeta
// sufficient to outlive the job itself (invariant: "Ownership" in §3).
type BlobFileMeta struct {
	FileNum     uint64
	SmallestKey []byte
	LargestKey  []byte

	mu struct {
		sync.Mutex
		fileSize      uint64
		entryCount    uint64
		liveDataSize  uint64
		liveness      bitset
		state         FileState
		obsoleteAtSeq uint64
	}
}

// NewBlobFileMeta constructs the metadata for a freshly written blob file
// with entryCount records, all initially live.
func NewBlobFileMeta(fileNum, fileSize, entryCount uint64, smallest, largest []byte) *BlobFileMeta {
	m := &BlobFileMeta{FileNum: fileNum, SmallestKey: smallest, LargestKey: largest}
	m.mu.fileSize = fileSize
	m.mu.entryCount = entryCount
	m.mu.liveDataSize = fileSize
	m.mu.liveness = newBitset(entryCount)
	m.mu.state = FileStateNormal
	return m
}

// FileSize returns the on-disk size of the blob file in bytes.
func (m *BlobFileMeta) FileSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.fileSize
}

// EntryCount returns the number of records the blob file holds.
func (m *BlobFileMeta) EntryCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.entryCount
}

// LiveDataSize returns the estimated number of live bytes remaining in the
// file. A GC picker uses this (relative to FileSize) to compute a file's
// discardable ratio; this job only mutates it, never scores it (out of
// scope, §1).
func (m *BlobFileMeta) LiveDataSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.liveDataSize
}

// State returns the file's current lifecycle state.
func (m *BlobFileMeta) State() FileState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.state
}

// IsLiveData is the bitset fast-path probe used by the liveness oracle
// (§4.2 step 1). It may return a false negative (claim live when the record
// is actually dead) but must never return a false positive.
func (m *BlobFileMeta) IsLiveData(order uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.liveness.get(order)
}

// SetLiveDataBitset clears or sets the liveness bit for order. The GC job
// calls this with live=false after a write-callback Busy outcome drops a
// rewritten record (invariant 4: bitset mutation never introduces a false
// positive, only corrects a false negative).
func (m *BlobFileMeta) SetLiveDataBitset(order uint64, live bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.liveness.set(order, live)
}

// UpdateLiveDataSize adds delta (possibly negative) to the file's live data
// size accounting.
func (m *BlobFileMeta) UpdateLiveDataSize(delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delta < 0 && uint64(-delta) > m.mu.liveDataSize {
		m.mu.liveDataSize = 0
		return
	}
	m.mu.liveDataSize = uint64(int64(m.mu.liveDataSize) + delta)
}

// ObsoleteSequence returns the LSM sequence number recorded when the file
// was retired, valid only once State() == FileStateObsolete.
func (m *BlobFileMeta) ObsoleteSequence() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.obsoleteAtSeq
}

// Transition moves the file to a new state, enforcing the lifecycle diagram
// in §4.7: a file can only become Obsolete from PendingGC, and Obsolete
// transitions record the sequence number reads must still honor.
func (m *BlobFileMeta) Transition(to FileState, obsoleteAtSeq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch to {
	case FileStatePendingGC:
		if m.mu.state != FileStateNormal {
			return errors.AssertionFailedf("blob file %d: PendingGC transition from %s", m.FileNum, m.mu.state)
		}
	case FileStateGCOutput:
		// Newly produced output files are created directly in GCOutput.
	case FileStateObsolete:
		if m.mu.state != FileStatePendingGC {
			return errors.AssertionFailedf("blob file %d: Obsolete transition from %s", m.FileNum, m.mu.state)
		}
		m.mu.obsoleteAtSeq = obsoleteAtSeq
	}
	m.mu.state = to
	return nil
}

// SafeFormat implements redact.SafeFormatter.
func (m *BlobFileMeta) SafeFormat(w redact.SafePrinter, _ rune) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Printf("file %d size:%d live:%d entries:%d state:%s",
		redact.Safe(m.FileNum), redact.Safe(m.mu.fileSize), redact.Safe(m.mu.liveDataSize),
		redact.Safe(m.mu.entryCount), redact.Safe(m.mu.state.String()))
}

// String implements fmt.Stringer.
func (m *BlobFileMeta) String() string {
	return redact.StringWithoutMarkers(m)
}

// bitset is a small growable bit array, one bit per blob-file record,
// indexed by the record's "order". It is not safe for concurrent use on its
// own; callers serialize access through BlobFileMeta.mu.
type bitset struct {
	bits []uint64
}

func newBitset(n uint64) bitset {
	words := (n + 63) / 64
	b := bitset{bits: make([]uint64, words)}
	for i := uint64(0); i < n; i++ {
		b.set(i, true)
	}
	return b
}

func (b *bitset) get(i uint64) bool {
	w := i / 64
	if w >= uint64(len(b.bits)) {
		// Liveness bitsets only shrink conceptually, never grow past their
		// construction size; an out-of-range probe is a bug in the caller,
		// not a legitimate "unknown" state. Treat it as live so the
		// authoritative LSM probe (which must not be skipped on bugs) runs.
		return true
	}
	return b.bits[w]&(1<<(i%64)) != 0
}

func (b *bitset) set(i uint64, v bool) {
	w := i / 64
	if w >= uint64(len(b.bits)) {
		panic(fmt.Sprintf("bitset: order %d out of range (%d words)", i, len(b.bits)))
	}
	if v {
		b.bits[w] |= 1 << (i % 64)
	} else {
		b.bits[w] &^= 1 << (i % 64)
	}
}
