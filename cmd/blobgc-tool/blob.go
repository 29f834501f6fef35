// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/kvsep/blobgc/internal/blob"
	"github.com/kvsep/blobgc/vfs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// newBlobCommand builds the "blob" introspection command tree: "dump"
// prints every record in a blob file, "stat" summarizes its layout.
func newBlobCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "blob",
		Short: "blob file introspection tools",
	}
	root.AddCommand(&cobra.Command{
		Use:   "stat <blob files>",
		Short: "print record counts and sizes for the given blob files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBlobStat,
	})
	root.AddCommand(&cobra.Command{
		Use:   "dump <blob file>",
		Short: "print every record in a blob file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBlobDump,
	})
	return root
}

func runBlobStat(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"file", "size", "records"})

	for _, path := range args {
		info, err := vfs.Default.Stat(path)
		if err != nil {
			return errors.Wrapf(err, "stat %s", path)
		}
		f, err := vfs.Default.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		reader := blob.NewFileReader(f, uint64(info.Size()))
		seq := blob.NewSeqReader(reader)
		var count uint64
		for {
			_, _, done, err := seq.Next()
			if err != nil {
				return err
			}
			if done {
				break
			}
			count++
		}
		table.Append([]string{path, fmt.Sprint(info.Size()), fmt.Sprint(count)})
		_ = f.Close()
	}
	table.Render()
	return nil
}

func runBlobDump(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := vfs.Default.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	f, err := vfs.Default.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	reader := blob.NewFileReader(f, uint64(info.Size()))
	seq := blob.NewSeqReader(reader)
	for {
		rec, handle, done, err := seq.Next()
		if err != nil {
			return err
		}
		if done {
			break
		}
		fmt.Printf("order=%d offset=%d size=%d key=%q value_len=%d\n",
			handle.Order, handle.Offset, handle.Size, rec.UserKey, len(rec.Value))
	}
	return nil
}
