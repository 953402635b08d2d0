// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bpage

import (
	"sort"

	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Leaf is a view of a page holding a leaf node. Leaf entries are sorted by
// key and leaves are chained left to right through their next page ids.
type Leaf struct {
	Header
}

// AsLeaf returns a leaf view of data.
func AsLeaf(data []byte) Leaf {
	return Leaf{Header: Header(data)}
}

// Init formats the page as an empty leaf.
func (l Leaf) Init(id, parent base.PageID, keySize, maxSize int) {
	if maxSize+1 > (len(l.Header)-LeafHeaderSize)/(keySize+base.RowIDSize) {
		panic(errors.AssertionFailedf("leaf max size %d too large for key size %d", maxSize, keySize))
	}
	l.Header.init(KindLeaf, id, parent, keySize, maxSize)
	l.SetNextPageID(base.InvalidPageID)
}

// NextPageID returns the id of the leaf to the right, or base.InvalidPageID
// for the rightmost leaf.
func (l Leaf) NextPageID() base.PageID {
	return base.PageID(int32(l.uint32At(nextPageIDOffset)))
}

// SetNextPageID sets the id of the leaf to the right.
func (l Leaf) SetNextPageID(id base.PageID) {
	l.setUint32(nextPageIDOffset, uint32(id))
}

func (l Leaf) entrySize() int {
	return l.KeySize() + base.RowIDSize
}

func (l Leaf) entries(start, end int) []byte {
	es := l.entrySize()
	return l.Header[LeafHeaderSize+start*es : LeafHeaderSize+end*es]
}

func (l Leaf) entry(i int) []byte {
	return l.entries(i, i+1)
}

func (l Leaf) capacity() int {
	return (len(l.Header) - LeafHeaderSize) / l.entrySize()
}

// KeyAt returns the key at index i. The returned slice aliases the page.
func (l Leaf) KeyAt(i int) []byte {
	if invariants.Enabled {
		invariants.CheckBounds(i, l.Size())
	}
	ks := l.KeySize()
	return l.entry(i)[:ks:ks]
}

// ValueAt returns the RowID at index i.
func (l Leaf) ValueAt(i int) base.RowID {
	if invariants.Enabled {
		invariants.CheckBounds(i, l.Size())
	}
	return base.DecodeRowID(l.entry(i)[l.KeySize():])
}

// KeyIndex returns the index of the first key greater than or equal to key.
// It returns Size() if every key is smaller.
func (l Leaf) KeyIndex(key []byte, cmp base.Compare) int {
	return sort.Search(l.Size(), func(i int) bool {
		return cmp(l.KeyAt(i), key) >= 0
	})
}

// Lookup returns the value stored under key.
func (l Leaf) Lookup(key []byte, cmp base.Compare) (base.RowID, bool) {
	i := l.KeyIndex(key, cmp)
	if i < l.Size() && cmp(l.KeyAt(i), key) == 0 {
		return l.ValueAt(i), true
	}
	return base.RowID{}, false
}

// Insert adds key in sorted position and returns the new size. The key must
// not already be present. The leaf may temporarily hold MaxSize()+1 entries.
func (l Leaf) Insert(key []byte, value base.RowID, cmp base.Compare) int {
	n := l.Size()
	if n >= l.capacity() {
		panic(errors.AssertionFailedf("leaf %s is full", l.PageID()))
	}
	i := l.KeyIndex(key, cmp)
	if invariants.Enabled && i < n && cmp(l.KeyAt(i), key) == 0 {
		panic(errors.AssertionFailedf("duplicate key inserted into leaf %s", l.PageID()))
	}
	copy(l.entries(i+1, n+1), l.entries(i, n))
	l.setEntry(i, key, value)
	l.setSize(n + 1)
	return n + 1
}

func (l Leaf) setEntry(i int, key []byte, value base.RowID) {
	e := l.entry(i)
	copy(e, key)
	value.Encode(e[l.KeySize():])
}

// RemoveAt removes the entry at index i.
func (l Leaf) RemoveAt(i int) {
	n := l.Size()
	if invariants.Enabled {
		invariants.CheckBounds(i, n)
	}
	copy(l.entries(i, n-1), l.entries(i+1, n))
	l.setSize(n - 1)
}

// RemoveAndDeleteRecord removes key if present and returns the resulting
// size. The leaf is unchanged if key is absent.
func (l Leaf) RemoveAndDeleteRecord(key []byte, cmp base.Compare) int {
	i := l.KeyIndex(key, cmp)
	if i < l.Size() && cmp(l.KeyAt(i), key) == 0 {
		l.RemoveAt(i)
	}
	return l.Size()
}

// MoveHalfTo moves the upper half of the entries into the empty leaf dst.
// The receiver keeps the first Size()/2 entries. Sibling links are left to
// the caller.
func (l Leaf) MoveHalfTo(dst Leaf) {
	n := l.Size()
	keep := n / 2
	moved := invariants.SafeSub(n, keep)
	copy(dst.entries(0, moved), l.entries(keep, n))
	dst.setSize(moved)
	l.setSize(keep)
}

// MoveAllTo appends every entry to dst, the left neighbor, and hands the
// receiver's next link to dst.
func (l Leaf) MoveAllTo(dst Leaf) {
	n, m := l.Size(), dst.Size()
	if m+n > dst.capacity() {
		panic(errors.AssertionFailedf("leaf %s cannot absorb %d entries", dst.PageID(), n))
	}
	copy(dst.entries(m, m+n), l.entries(0, n))
	dst.setSize(m + n)
	dst.SetNextPageID(l.NextPageID())
	l.setSize(0)
}

// MoveFirstToEndOf moves the first entry to the end of dst, the left
// neighbor.
func (l Leaf) MoveFirstToEndOf(dst Leaf) {
	m := dst.Size()
	copy(dst.entries(m, m+1), l.entry(0))
	dst.setSize(m + 1)
	l.RemoveAt(0)
}

// MoveLastToFrontOf moves the last entry to the front of dst, the right
// neighbor.
func (l Leaf) MoveLastToFrontOf(dst Leaf) {
	n, m := l.Size(), dst.Size()
	last := invariants.SafeSub(n, 1)
	copy(dst.entries(1, m+1), dst.entries(0, m))
	copy(dst.entries(0, 1), l.entry(last))
	dst.setSize(m + 1)
	l.setSize(last)
}
