// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"github.com/cockroachdb/errors"
)

// ErrNotFound means that a point lookup did not find the requested key.
var ErrNotFound = errors.New("blobgc: not found")

// ErrShutdownInProgress is returned by the scan loop when the job's shutdown
// flag has been observed set. It is always fatal to the job: the scan aborts
// without touching the LSM or installing any output blob file.
var ErrShutdownInProgress = errors.New("blobgc: shutdown in progress")

// ErrColumnFamilyDropped names the column-family-dropped condition. No code
// in this module returns it: the index-rewrite loop does not check for a
// dropped column family. Finish checks for the drop only after the rewrite
// loop; on a drop it skips input deletion, leaves installed blob files in
// place, and reports the drop in Summary.ColumnFamilyDropped.
var ErrColumnFamilyDropped = errors.New("blobgc: column family dropped")

var errBusyMark = errors.New("blobgc: busy")

// Busy wraps reason as a "Busy" status: a per-record race outcome reported by
// the write-callback path when a concurrent writer has overwritten, deleted,
// or relocated the key since the GC scan read it. Busy is always recoverable:
// the caller drops the rewrite, accounts it, and continues with the next
// record.
func Busy(reason string) error {
	return errors.Mark(errors.Newf("blobgc: busy: %s", errors.Safe(reason)), errBusyMark)
}

// IsBusy reports whether err is (or wraps) a Busy status.
func IsBusy(err error) bool {
	return errors.Is(err, errBusyMark)
}

// CorruptionErrorf formats a fatal corruption error, analogous to a failed
// BlobIndex or internal key decode. The offending key or file should be
// included in the format arguments so it surfaces in logs.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), errCorruptionMark)
}

var errCorruptionMark = errors.New("blobgc: corruption")

// IsCorruption reports whether err is (or wraps) a corruption error.
func IsCorruption(err error) bool {
	return errors.Is(err, errCorruptionMark)
}
