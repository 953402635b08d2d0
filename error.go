// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/indexroots"
	"github.com/cockroachdb/errors"
)

// ErrDuplicateKey is returned by Insert when the key is already present.
var ErrDuplicateKey = errors.New("bptree: duplicate key")

// ErrOutOfMemory marks errors caused by the buffer pool failing to provide a
// new page. An operation failing with it leaves the tree unchanged.
var ErrOutOfMemory = errors.New("bptree: out of memory")

// ErrCorruption exports base.ErrCorruption.
var ErrCorruption = base.ErrCorruption

// ErrPageNotFound exports base.ErrPageNotFound.
var ErrPageNotFound = base.ErrPageNotFound

// ErrDirectoryFull is returned by the first insert into an index when the
// index roots directory has no room left to register it.
var ErrDirectoryFull = indexroots.ErrFull
