// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package blob

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/kvsep/blobgc/internal/base"
	"github.com/kvsep/blobgc/vfs"
	"github.com/stretchr/testify/require"
)

// TestMergeIteratorDataDriven drives the merge iterator across a fixed set
// of built blob files using a small script language:
//
//	build file=<num>
//	<key> <value>
//	...
//
//	iter files=(<num>,<num>,...)
//	first
//	next
//	...
func TestMergeIteratorDataDriven(t *testing.T) {
	fs := vfs.NewMem()
	files := make(map[uint64]uint64) // file num -> size

	datadriven.RunTest(t, "testdata/merge_iterator", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "build":
			var fileNum uint64
			for _, arg := range d.CmdArgs {
				if arg.Key == "file" {
					fileNum, _ = strconv.ParseUint(arg.Vals[0], 10, 64)
				}
			}
			path := fmt.Sprintf("/%d.blob", fileNum)
			f, err := fs.Create(path, vfs.IOPriorityHigh)
			require.NoError(t, err)
			w := NewFileWriter(f, SnappyCompression, base.DefaultComparer)
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				fields := strings.Fields(line)
				require.Len(t, fields, 2)
				_, err := w.AddRecord(Record{UserKey: []byte(fields[0]), Value: []byte(fields[1])})
				require.NoError(t, err)
			}
			size, err := w.Finish()
			require.NoError(t, err)
			files[fileNum] = size
			return ""

		case "iter":
			var fileNums []uint64
			for _, arg := range d.CmdArgs {
				if arg.Key == "files" {
					for _, v := range arg.Vals {
						n, _ := strconv.ParseUint(v, 10, 64)
						fileNums = append(fileNums, n)
					}
				}
			}
			var inputs []InputFile
			for _, fn := range fileNums {
				f, err := fs.Open(fmt.Sprintf("/%d.blob", fn))
				require.NoError(t, err)
				inputs = append(inputs, InputFile{FileNum: fn, Reader: NewSeqReader(NewFileReader(f, files[fn]))})
			}
			it, err := NewMergeIterator(base.DefaultComparer, inputs)
			require.NoError(t, err)

			var buf strings.Builder
			valid := false
			for _, op := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				switch op {
				case "first":
					valid = it.First()
				case "next":
					valid = it.Next()
				default:
					t.Fatalf("unknown op %q", op)
				}
				if !valid {
					fmt.Fprintf(&buf, "<done>\n")
					continue
				}
				tuple := it.Tuple()
				fmt.Fprintf(&buf, "%s=%s file=%d\n", tuple.UserKey, tuple.Value, tuple.BlobIndex.FileNum)
			}
			if it.Error() != nil {
				fmt.Fprintf(&buf, "error: %s\n", it.Error())
			}
			return buf.String()

		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}
