// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blobgc

import "github.com/kvsep/blobgc/internal/base"

// Re-exported error sentinels, so callers of this package don't need to
// import internal/base directly to check job failure kinds (§7).
var (
	ErrShutdownInProgress  = base.ErrShutdownInProgress
	ErrNotFound            = base.ErrNotFound
	ErrColumnFamilyDropped = base.ErrColumnFamilyDropped
)

// IsBusy reports whether err is the per-batch race outcome from a write
// callback (§4.5, §7): recovered locally, never propagated as a job
// failure.
func IsBusy(err error) bool { return base.IsBusy(err) }

// IsCorruption reports whether err is a decode failure, which is fatal
// (§7). The decode errors name the bad length or checksum; they do not
// carry the user key.
func IsCorruption(err error) bool { return base.IsCorruption(err) }
