// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/vfs"
)

// blockHeaderLen is the fixed-size header preceding every record's
// compressed payload: 1 byte compression indicator, 4 bytes decoded
// length, 4 bytes compressed length.
const blockHeaderLen = 1 + 4 + 4

// checksumLen is the size of the trailing xxhash64 checksum covering the
// header and compressed payload.
const checksumLen = 8

var fileMagic = [8]byte{'b', 'l', 'o', 'b', 'g', 'c', 'f', '1'}

// footerLen is magic (8) + entry count (8) + checksum (8).
const footerLen = 8 + 8 + 8

// FileWriter appends records to a new blob file, byte-identical in shape to
// a file written at flush time (§6: "no new on-disk format is introduced by
// GC").
type FileWriter struct {
	file        vfs.File
	compression Compression
	offset      uint64
	order       uint64
	entryCount  uint64
	smallest    []byte
	largest     []byte
	cmp         base.Compare
}

// NewFileWriter constructs a writer appending to file using the given
// compression algorithm and key comparator (for smallest/largest tracking).
func NewFileWriter(file vfs.File, compression Compression, cmp base.Compare) *FileWriter {
	if cmp == nil {
		cmp = base.DefaultComparer
	}
	return &FileWriter{file: file, compression: compression, cmp: cmp}
}

// AddRecord appends r and returns the handle locating it within the file.
// Records must be added in ascending user-key order, matching the scan
// loop's (§4.3) and the merge iterator's (§4.1) ordering guarantee.
func (w *FileWriter) AddRecord(r Record) (base.BlobHandle, error) {
	payload := encodeRecordPayload(r, nil)
	compressed := compress(w.compression, nil, payload)

	block := make([]byte, blockHeaderLen+len(compressed)+checksumLen)
	block[0] = byte(w.compression)
	binary.LittleEndian.PutUint32(block[1:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(block[5:], uint32(len(compressed)))
	copy(block[blockHeaderLen:], compressed)
	sum := xxhash.Sum64(block[:blockHeaderLen+len(compressed)])
	binary.LittleEndian.PutUint64(block[blockHeaderLen+len(compressed):], sum)

	if _, err := w.file.Write(block); err != nil {
		return base.BlobHandle{}, errors.Wrap(err, "blobgc: writing blob record")
	}

	h := base.BlobHandle{Offset: w.offset, Size: uint64(len(block)), Order: w.order}
	w.offset += uint64(len(block))
	w.order++
	w.entryCount++

	if w.smallest == nil || w.cmp(r.UserKey, w.smallest) < 0 {
		w.smallest = append([]byte(nil), r.UserKey...)
	}
	if w.largest == nil || w.cmp(r.UserKey, w.largest) > 0 {
		w.largest = append([]byte(nil), r.UserKey...)
	}
	return h, nil
}

// Size reports the number of bytes written so far, used by the output
// builder to decide when a file has reached blob_file_target_size (§4.4).
func (w *FileWriter) Size() uint64 {
	return w.offset
}

// EntryCount reports the number of records written so far.
func (w *FileWriter) EntryCount() uint64 {
	return w.entryCount
}

// Smallest and Largest report the key bounds observed so far.
func (w *FileWriter) Smallest() []byte { return w.smallest }
func (w *FileWriter) Largest() []byte  { return w.largest }

// Finish writes the trailing footer and syncs the file. It returns the
// final file size, used by the caller to populate BlobFileMeta.
func (w *FileWriter) Finish() (fileSize uint64, err error) {
	footer := make([]byte, footerLen)
	copy(footer, fileMagic[:])
	binary.LittleEndian.PutUint64(footer[8:], w.entryCount)
	sum := xxhash.Sum64(footer[:16])
	binary.LittleEndian.PutUint64(footer[16:], sum)

	if _, err := w.file.Write(footer); err != nil {
		return 0, errors.Wrap(err, "blobgc: writing blob file footer")
	}
	w.offset += uint64(len(footer))
	if err := w.file.Sync(); err != nil {
		return 0, errors.Wrap(err, "blobgc: syncing blob file")
	}
	return w.offset, nil
}

// Abort closes the underlying file without finishing it, used when the
// output builder's caller aborts the scan (§4.4 failure handling).
func (w *FileWriter) Abort() error {
	return w.file.Close()
}

// Close closes the underlying file handle. Callers must call Finish before
// Close on the success path.
func (w *FileWriter) Close() error {
	return w.file.Close()
}

// FileReader reads records back out of a blob file, either randomly (for
// rewrite) or sequentially (for the merge iterator, §4.1).
type FileReader struct {
	file vfs.File
	size uint64
}

// NewFileReader wraps an open file of the given total size.
func NewFileReader(file vfs.File, size uint64) *FileReader {
	return &FileReader{file: file, size: size}
}

// ReadRecordAt reads the record located at h.
func (r *FileReader) ReadRecordAt(h base.BlobHandle) (Record, error) {
	block := make([]byte, h.Size)
	if _, err := r.file.ReadAt(block, int64(h.Offset)); err != nil {
		return Record{}, errors.Wrap(err, "blobgc: reading blob record")
	}
	return decodeBlock(block)
}

func decodeBlock(block []byte) (Record, error) {
	if len(block) < blockHeaderLen+checksumLen {
		return Record{}, base.CorruptionErrorf("blobgc: blob block too short (%d bytes)", len(block))
	}
	compression := Compression(block[0])
	decodedLen := binary.LittleEndian.Uint32(block[1:])
	compressedLen := binary.LittleEndian.Uint32(block[5:])
	payloadEnd := blockHeaderLen + int(compressedLen)
	if payloadEnd+checksumLen != len(block) {
		return Record{}, base.CorruptionErrorf("blobgc: blob block length mismatch")
	}
	wantSum := binary.LittleEndian.Uint64(block[payloadEnd:])
	gotSum := xxhash.Sum64(block[:payloadEnd])
	if wantSum != gotSum {
		return Record{}, base.CorruptionErrorf("blobgc: blob block checksum mismatch")
	}
	payload, err := decompress(compression, int(decodedLen), block[blockHeaderLen:payloadEnd])
	if err != nil {
		return Record{}, errors.Wrap(err, "blobgc: decompressing blob record")
	}
	rec, err := decodeRecordPayload(payload)
	if err != nil {
		return Record{}, err
	}
	// decodeRecordPayload aliases into payload, which for NoCompression
	// aliases the input block slice; clone so callers can safely retain it
	// past the next read.
	return Record{UserKey: append([]byte(nil), rec.UserKey...), Value: append([]byte(nil), rec.Value...)}, nil
}

// SeqReader walks a blob file's records in on-disk (ascending key) order,
// the shape the merge iterator (§4.1) needs per input file.
type SeqReader struct {
	r      *FileReader
	offset uint64
	order  uint64
	limit  uint64
}

// NewSeqReader constructs a sequential reader over the record region of the
// file (excluding the trailing footer).
func NewSeqReader(r *FileReader) *SeqReader {
	limit := r.size
	if limit >= footerLen {
		limit -= footerLen
	}
	return &SeqReader{r: r, limit: limit}
}

// Next returns the next record and its handle, or io.EOF-shaped done=true
// when the record region is exhausted.
func (s *SeqReader) Next() (rec Record, handle base.BlobHandle, done bool, err error) {
	if s.offset >= s.limit {
		return Record{}, base.BlobHandle{}, true, nil
	}
	header := make([]byte, blockHeaderLen)
	if _, err := s.r.file.ReadAt(header, int64(s.offset)); err != nil {
		return Record{}, base.BlobHandle{}, false, errors.Wrap(err, "blobgc: reading blob block header")
	}
	compressedLen := binary.LittleEndian.Uint32(header[5:])
	blockLen := uint64(blockHeaderLen) + uint64(compressedLen) + checksumLen
	h := base.BlobHandle{Offset: s.offset, Size: blockLen, Order: s.order}
	rec, err = s.r.ReadRecordAt(h)
	if err != nil {
		return Record{}, base.BlobHandle{}, false, err
	}
	s.offset += blockLen
	s.order++
	return rec, h, false, nil
}
