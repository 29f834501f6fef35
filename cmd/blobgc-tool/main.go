// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command blobgc-tool introspects blob files offline ("blob stat", "blob
// dump"), in the style of the library's own tool subcommands. It has no
// command for catalog state.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newBlobCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
