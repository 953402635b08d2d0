// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/bufferpool"
	"github.com/cockroachdb/bptree/internal/base"
)

// PageID exports the base.PageID type.
type PageID = base.PageID

// InvalidPageID is the id of no page.
const InvalidPageID = base.InvalidPageID

// IndexRootsPageID is the page holding the index roots directory.
const IndexRootsPageID = base.IndexRootsPageID

// PageSize exports base.PageSize.
const PageSize = base.PageSize

// RowID exports the base.RowID type.
type RowID = base.RowID

// IndexID exports the base.IndexID type.
type IndexID = base.IndexID

// Comparer exports the base.Comparer type.
type Comparer = base.Comparer

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger exports the base.DefaultLogger type.
type DefaultLogger = base.DefaultLogger

// BufferPool is the page cache a tree reads and writes its pages through.
// Every page returned by FetchPage or NewPage is pinned and must be released
// with exactly one UnpinPage. *bufferpool.Pool implements it.
type BufferPool interface {
	// FetchPage pins an existing page. It returns an error marked
	// base.ErrPageNotFound if id is not allocated.
	FetchPage(id PageID) (*bufferpool.Page, error)
	// NewPage allocates and pins a zeroed page.
	NewPage() (*bufferpool.Page, error)
	// UnpinPage releases one pin, recording whether the page was modified.
	UnpinPage(id PageID, dirty bool) error
	// DeletePage frees an unpinned page.
	DeletePage(id PageID) error
	// CheckAllUnpinned returns true if no page is pinned.
	CheckAllUnpinned() bool
}

var _ BufferPool = (*bufferpool.Pool)(nil)

// Txn is the transaction on whose behalf an operation runs. The tree does
// not interpret it; it is carried for lock and log managers layered above.
type Txn struct {
	ID uint64
}
