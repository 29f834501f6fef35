// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import "github.com/kvsep/blobgc/internal/base"

var errCorruptPayload = base.CorruptionErrorf("blobgc: corrupt blob record payload")

// Record is a single (key, value) pair as read from or written to a blob
// file. This is the "BlobRecord" entity of the data model: read from an
// input blob, rewritten unchanged (modulo re-compression) to an output
// blob.
type Record struct {
	UserKey []byte
	Value   []byte
}

func encodeRecordPayload(r Record, dst []byte) []byte {
	dst = appendUvarint(dst, uint64(len(r.UserKey)))
	dst = append(dst, r.UserKey...)
	dst = appendUvarint(dst, uint64(len(r.Value)))
	dst = append(dst, r.Value...)
	return dst
}

func decodeRecordPayload(payload []byte) (Record, error) {
	userKeyLen, n, err := readUvarint(payload)
	if err != nil {
		return Record{}, err
	}
	payload = payload[n:]
	if uint64(len(payload)) < userKeyLen {
		return Record{}, errCorruptPayload
	}
	userKey := payload[:userKeyLen]
	payload = payload[userKeyLen:]

	valueLen, n, err := readUvarint(payload)
	if err != nil {
		return Record{}, err
	}
	payload = payload[n:]
	if uint64(len(payload)) < valueLen {
		return Record{}, errCorruptPayload
	}
	value := payload[:valueLen]
	return Record{UserKey: userKey, Value: value}, nil
}

func appendUvarint(dst []byte, v uint64) []byte {
	var buf [10]byte
	n := 0
	for v >= 0x80 {
		buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	buf[n] = byte(v)
	n++
	return append(dst, buf[:n]...)
}

func readUvarint(b []byte) (v uint64, n int, err error) {
	for shift := uint(0); ; shift += 7 {
		if n >= len(b) || shift >= 64 {
			return 0, 0, errCorruptPayload
		}
		x := b[n]
		n++
		v |= uint64(x&0x7f) << shift
		if x < 0x80 {
			return v, n, nil
		}
	}
}
