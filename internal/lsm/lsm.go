// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package lsm defines the narrow contract the blob GC job needs from the
// LSM engine: a point-get that can return a blob index verbatim, writes
// guarded by a callback, and a handful of status queries (§6). It also
// supplies an in-memory reference implementation sufficient to exercise
// every scenario the job is tested against.
package lsm

import (
	"context"
	"sync"

	"github.com/kvsep/blobgc/internal/base"
)

// Reader is the read-side contract the liveness oracle and the
// write-callback's re-check both use.
type Reader interface {
	// GetWithBlobIndex performs a point-get for key in column family cf.
	// If the current entry is a blob index, it is returned verbatim
	// (isBlobIndex=true) rather than dereferenced; otherwise value holds
	// the inline value. level reports the LSM level that serviced the
	// read (§4.2). found=false means the key has no current entry.
	GetWithBlobIndex(ctx context.Context, cf uint32, key []byte) (value []byte, blobIndex base.BlobIndex, isBlobIndex bool, level int, found bool, err error)
}

// WriteCallback is the function-object shape Design Note §9 calls for: a
// downcall invoked by the write path with a read-only handle to the LSM,
// immediately before the write is sequenced, returning an error that vetoes
// the write (typically base.Busy).
type WriteCallback func(r Reader) error

// WriteBatch holds a single key/value mutation. The callback that must
// approve it before it is sequenced is passed to WriteWithCallback
// alongside it. The GC job's index writer
// constructs one WriteBatch per OutContext (§4.5): "the writer disables the
// LSM's internal write-batching for these batches."
type WriteBatch struct {
	CF    uint32
	Key   []byte
	Value []byte
}

// Writer is the write-side contract.
type Writer interface {
	Reader

	// WriteWithCallback sequences batch only if cb succeeds when evaluated
	// against the LSM's current state, atomically with the write.
	WriteWithCallback(ctx context.Context, batch WriteBatch, cb WriteCallback) error

	// FlushWAL flushes (and if sync, fsyncs) the write-ahead log.
	FlushWAL(ctx context.Context, sync bool) error

	// LatestSequenceNumber returns the most recently assigned sequence
	// number, used as the obsolete_sequence stamped on retired blob files
	// (§4.7 step 5).
	LatestSequenceNumber() base.SeqNum

	// IsColumnFamilyDropped reports whether cf has been dropped, checked
	// during Finish to skip input deletion (§4.7, §7).
	IsColumnFamilyDropped(cf uint32) bool
}

// entry is the current value for a key: either an inline value or a blob
// index, never both.
type entry struct {
	value      []byte
	blobIndex  base.BlobIndex
	isBlobIndex bool
	level      int
}

// MemLSM is an in-memory reference LSM sufficient to drive the blob GC
// job's tests. All keys are reported at a single configurable level
// (Level, default 0) since level placement is otherwise outside this
// core's concerns.
type MemLSM struct {
	mu struct {
		sync.Mutex
		cf      map[uint32]map[string]entry
		seq     base.SeqNum
		dropped map[uint32]bool
	}
	// Level is the LSM level GetWithBlobIndex reports for every key.
	Level int
}

// NewMemLSM constructs an empty in-memory LSM.
func NewMemLSM() *MemLSM {
	m := &MemLSM{}
	m.mu.cf = make(map[uint32]map[string]entry)
	m.mu.dropped = make(map[uint32]bool)
	return m
}

func (m *MemLSM) cfMap(cf uint32) map[string]entry {
	cfm, ok := m.mu.cf[cf]
	if !ok {
		cfm = make(map[string]entry)
		m.mu.cf[cf] = cfm
	}
	return cfm
}

// PutInline installs key->value as an inline (non-blob) entry, used by
// tests to seed state and by concurrent-writer simulation (S2).
func (m *MemLSM) PutInline(cf uint32, key, value []byte) base.SeqNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.seq++
	m.cfMap(cf)[string(key)] = entry{value: append([]byte(nil), value...), level: m.Level}
	return m.mu.seq
}

// PutBlobIndex installs key->blobIndex as a blob-index entry, used by tests
// to seed the pre-GC state (S1, S3).
func (m *MemLSM) PutBlobIndex(cf uint32, key []byte, idx base.BlobIndex) base.SeqNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.seq++
	m.cfMap(cf)[string(key)] = entry{blobIndex: idx, isBlobIndex: true, level: m.Level}
	return m.mu.seq
}

// Delete removes key's current entry, used to simulate a racing delete.
func (m *MemLSM) Delete(cf uint32, key []byte) base.SeqNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.seq++
	delete(m.cfMap(cf), string(key))
	return m.mu.seq
}

// SetColumnFamilyDropped marks cf as dropped, exercised by the
// ColumnFamilyDropped Finish path.
func (m *MemLSM) SetColumnFamilyDropped(cf uint32, dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mu.dropped[cf] = dropped
}

// GetWithBlobIndex implements Reader.
func (m *MemLSM) GetWithBlobIndex(_ context.Context, cf uint32, key []byte) ([]byte, base.BlobIndex, bool, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cfMap(cf)[string(key)]
	if !ok {
		return nil, base.BlobIndex{}, false, 0, false, nil
	}
	return e.value, e.blobIndex, e.isBlobIndex, e.level, true, nil
}

// WriteWithCallback implements Writer. The callback is evaluated while
// holding the LSM's mutex, giving it the "brief window of exclusive access"
// Design Note §9 describes; on success the batch is applied and a fresh
// sequence number assigned.
func (m *MemLSM) WriteWithCallback(_ context.Context, batch WriteBatch, cb WriteCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb != nil {
		if err := cb((*lockedReader)(m)); err != nil {
			return err
		}
	}
	m.mu.seq++
	m.cfMap(batch.CF)[string(batch.Key)] = entry{value: append([]byte(nil), batch.Value...), level: m.Level}
	return nil
}

// lockedReader adapts *MemLSM to Reader for use inside WriteWithCallback,
// where the mutex is already held.
type lockedReader MemLSM

func (m *lockedReader) GetWithBlobIndex(_ context.Context, cf uint32, key []byte) ([]byte, base.BlobIndex, bool, int, bool, error) {
	e, ok := (*MemLSM)(m).cfMap(cf)[string(key)]
	if !ok {
		return nil, base.BlobIndex{}, false, 0, false, nil
	}
	return e.value, e.blobIndex, e.isBlobIndex, e.level, true, nil
}

// FlushWAL implements Writer. The in-memory LSM has no WAL; this is a no-op
// retained so callers exercise the real call sequence.
func (m *MemLSM) FlushWAL(context.Context, bool) error { return nil }

// LatestSequenceNumber implements Writer.
func (m *MemLSM) LatestSequenceNumber() base.SeqNum {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.seq
}

// IsColumnFamilyDropped implements Writer.
func (m *MemLSM) IsColumnFamilyDropped(cf uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mu.dropped[cf]
}
