// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "bytes"

// Compare returns -1, 0, or +1 depending on whether a is less than, equal
// to, or greater than b, according to the column family's key ordering.
type Compare func(a, b []byte) int

// DefaultComparer compares keys lexicographically, the ordering used when a
// column family doesn't supply its own comparator.
var DefaultComparer Compare = bytes.Compare
