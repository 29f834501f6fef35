// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"

	"github.com/cockroachdb/redact"
)

// BlobHandle locates a single record within a blob file: its byte offset and
// length, plus the monotonically assigned per-file "order" used to address
// the file's liveness bitset.
type BlobHandle struct {
	Offset uint64
	Size   uint64
	Order  uint64
}

// BlobIndex is the compact reference stored in the LSM in place of a value
// that has been externalized to a blob file. Equality is defined pointwise
// over every field: any change to the file number or handle means the LSM no
// longer considers the referencing record current.
type BlobIndex struct {
	FileNum uint64
	Handle  BlobHandle
}

// Empty reports whether the index is the zero value, the convention used by
// the index writer to mean "no new blob; rewritten as an inline value" (see
// fallback mode, §4.3).
func (b BlobIndex) Empty() bool {
	return b == BlobIndex{}
}

// Equal implements the pointwise equality the oracle and the write callback
// use to detect that a key has been overwritten since the GC scan observed
// it (invariant 5).
func (b BlobIndex) Equal(o BlobIndex) bool {
	return b == o
}

// SafeFormat implements redact.SafeFormatter.
func (b BlobIndex) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("blob{file:%d off:%d sz:%d order:%d}",
		redact.Safe(b.FileNum), redact.Safe(b.Handle.Offset), redact.Safe(b.Handle.Size), redact.Safe(b.Handle.Order))
}

// String implements fmt.Stringer.
func (b BlobIndex) String() string {
	return redact.StringWithoutMarkers(b)
}

// EncodedBlobIndexLen is the fixed encoded size of a BlobIndex: three
// uint64 handle fields plus the file number, each varint-free for
// simplicity since blob indexes are tiny and decoded far more often than
// they cross the network.
const EncodedBlobIndexLen = 4 * 8

// EncodeTo appends the binary encoding of b to dst and returns the result.
func (b BlobIndex) EncodeTo(dst []byte) []byte {
	var buf [EncodedBlobIndexLen]byte
	binary.LittleEndian.PutUint64(buf[0:], b.FileNum)
	binary.LittleEndian.PutUint64(buf[8:], b.Handle.Offset)
	binary.LittleEndian.PutUint64(buf[16:], b.Handle.Size)
	binary.LittleEndian.PutUint64(buf[24:], b.Handle.Order)
	return append(dst, buf[:]...)
}

// DecodeBlobIndex is the inverse of EncodeTo.
func DecodeBlobIndex(b []byte) (BlobIndex, error) {
	if len(b) != EncodedBlobIndexLen {
		return BlobIndex{}, CorruptionErrorf("blobgc: invalid blob index encoding length %d", len(b))
	}
	return BlobIndex{
		FileNum: binary.LittleEndian.Uint64(b[0:]),
		Handle: BlobHandle{
			Offset: binary.LittleEndian.Uint64(b[8:]),
			Size:   binary.LittleEndian.Uint64(b[16:]),
			Order:  binary.LittleEndian.Uint64(b[24:]),
		},
	}, nil
}
