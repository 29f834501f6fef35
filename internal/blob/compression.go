// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package blob implements the on-disk blob file format: compressed,
// checksummed records written sequentially and read back either randomly
// (for rewrite/fallback) or via a forward merge iterator across several
// files (§4.1).
package blob

import (
	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minlz"
)

// Compression identifies the per-record compression algorithm, mirroring
// the compression enum a blob file's configuration carries (§6,
// blob_file_compression).
type Compression uint8

// The supported compression algorithms. NoCompression is the zero value.
// Files created through filemanager.Manager.NewFile always use
// SnappyCompression.
const (
	NoCompression Compression = iota
	SnappyCompression
	ZstdCompression
	MinlzCompression
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "NoCompression"
	case SnappyCompression:
		return "Snappy"
	case ZstdCompression:
		return "ZSTD"
	case MinlzCompression:
		return "Minlz"
	default:
		return "Unknown"
	}
}

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
var zstdDecoder, _ = zstd.NewReader(nil)

func compress(c Compression, dst, src []byte) []byte {
	switch c {
	case NoCompression:
		return append(dst, src...)
	case SnappyCompression:
		return snappy.Encode(nil, src)
	case ZstdCompression:
		return zstdEncoder.EncodeAll(src, dst)
	case MinlzCompression:
		out, err := minlz.Encode(nil, src, minlz.LevelBalanced)
		if err != nil {
			// minlz.Encode only errors on an encoder-level misconfiguration,
			// never on input content; a failure here is a bug, not a
			// runtime condition to recover from.
			panic(err)
		}
		return out
	default:
		panic(errors.AssertionFailedf("blobgc: unknown compression %d", c))
	}
}

func decompress(c Compression, decodedLen int, src []byte) ([]byte, error) {
	switch c {
	case NoCompression:
		return src, nil
	case SnappyCompression:
		dst := make([]byte, decodedLen)
		return snappy.Decode(dst, src)
	case ZstdCompression:
		return zstdDecoder.DecodeAll(src, make([]byte, 0, decodedLen))
	case MinlzCompression:
		dst := make([]byte, decodedLen)
		return minlz.Decode(dst, src)
	default:
		return nil, errors.Newf("blobgc: unknown compression %d", c)
	}
}
