// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package indexroots implements the index roots directory: the page at
// base.IndexRootsPageID mapping each index id to the page id of its root.
//
// Layout, little-endian:
//
//	offset  size  field
//	0       4     magic
//	4       4     count
//	8       8*n   entries of (index id uint32, root page id int32)
package indexroots

import (
	"encoding/binary"

	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/errors"
)

const (
	magic       = 0x62707472
	magicOffset = 0
	countOffset = 4
	headerSize  = 8
	entrySize   = 8
)

// MaxEntries is the number of indexes a directory page can record.
const MaxEntries = (base.PageSize - headerSize) / entrySize

// ErrFull is returned when registering an index in a full directory.
var ErrFull = errors.New("bptree: index roots directory is full")

// Page is a view of the directory page.
type Page []byte

// Init formats an empty directory.
func (p Page) Init() {
	clear(p)
	binary.LittleEndian.PutUint32(p[magicOffset:], magic)
}

// Validate returns a corruption error if p does not hold a directory.
func (p Page) Validate() error {
	if m := binary.LittleEndian.Uint32(p[magicOffset:]); m != magic {
		return base.CorruptionErrorf("bptree: page %s is not an index roots directory (magic %#x)",
			base.IndexRootsPageID, m)
	}
	if n := p.Count(); n > MaxEntries {
		return base.CorruptionErrorf("bptree: index roots directory holds %d entries", n)
	}
	return nil
}

// Count returns the number of registered indexes.
func (p Page) Count() int {
	return int(binary.LittleEndian.Uint32(p[countOffset:]))
}

func (p Page) setCount(n int) {
	binary.LittleEndian.PutUint32(p[countOffset:], uint32(n))
}

func (p Page) entry(i int) []byte {
	off := headerSize + i*entrySize
	return p[off : off+entrySize]
}

// At returns the i-th registered index and its root.
func (p Page) At(i int) (base.IndexID, base.PageID) {
	e := p.entry(i)
	return base.IndexID(binary.LittleEndian.Uint32(e[0:4])),
		base.PageID(int32(binary.LittleEndian.Uint32(e[4:8])))
}

func (p Page) find(id base.IndexID) int {
	for i, n := 0, p.Count(); i < n; i++ {
		if got, _ := p.At(i); got == id {
			return i
		}
	}
	return -1
}

// GetRootID returns the root recorded for id.
func (p Page) GetRootID(id base.IndexID) (base.PageID, bool) {
	i := p.find(id)
	if i < 0 {
		return base.InvalidPageID, false
	}
	_, root := p.At(i)
	return root, true
}

// Insert registers id with the given root. It returns false if id is already
// registered.
func (p Page) Insert(id base.IndexID, root base.PageID) (bool, error) {
	if p.find(id) >= 0 {
		return false, nil
	}
	n := p.Count()
	if n >= MaxEntries {
		return false, ErrFull
	}
	p.setEntry(n, id, root)
	p.setCount(n + 1)
	return true, nil
}

// Update changes the root recorded for id. It returns false if id is not
// registered.
func (p Page) Update(id base.IndexID, root base.PageID) bool {
	i := p.find(id)
	if i < 0 {
		return false
	}
	p.setEntry(i, id, root)
	return true
}

// Delete unregisters id. It returns false if id is not registered.
func (p Page) Delete(id base.IndexID) bool {
	i := p.find(id)
	if i < 0 {
		return false
	}
	n := p.Count()
	copy(p[headerSize+i*entrySize:headerSize+(n-1)*entrySize], p[headerSize+(i+1)*entrySize:headerSize+n*entrySize])
	p.setCount(n - 1)
	return true
}

func (p Page) setEntry(i int, id base.IndexID, root base.PageID) {
	e := p.entry(i)
	binary.LittleEndian.PutUint32(e[0:4], uint32(id))
	binary.LittleEndian.PutUint32(e[4:8], uint32(root))
}
