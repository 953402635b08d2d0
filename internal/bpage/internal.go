// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bpage

import (
	"encoding/binary"
	"sort"

	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Internal is a view of a page holding an internal node. An internal node
// with Size() n holds n children and n-1 separator keys at indexes 1..n-1.
// Every key in child i is >= KeyAt(i) and < KeyAt(i+1).
type Internal struct {
	Header
}

// AsInternal returns an internal node view of data.
func AsInternal(data []byte) Internal {
	return Internal{Header: Header(data)}
}

// Init formats the page as an empty internal node.
func (n Internal) Init(id, parent base.PageID, keySize, maxSize int) {
	if maxSize+1 > (len(n.Header)-InternalHeaderSize)/(keySize+childIDSize) {
		panic(errors.AssertionFailedf("internal max size %d too large for key size %d", maxSize, keySize))
	}
	n.Header.init(KindInternal, id, parent, keySize, maxSize)
}

func (n Internal) entrySize() int {
	return n.KeySize() + childIDSize
}

func (n Internal) entries(start, end int) []byte {
	es := n.entrySize()
	return n.Header[InternalHeaderSize+start*es : InternalHeaderSize+end*es]
}

func (n Internal) entry(i int) []byte {
	return n.entries(i, i+1)
}

func (n Internal) capacity() int {
	return (len(n.Header) - InternalHeaderSize) / n.entrySize()
}

// KeyAt returns the separator key at index i. The key at index 0 carries no
// meaning. The returned slice aliases the page.
func (n Internal) KeyAt(i int) []byte {
	if invariants.Enabled {
		invariants.CheckBounds(i, n.Size())
	}
	ks := n.KeySize()
	return n.entry(i)[:ks:ks]
}

// SetKeyAt overwrites the separator key at index i.
func (n Internal) SetKeyAt(i int, key []byte) {
	if invariants.Enabled {
		invariants.CheckBounds(i, n.Size())
	}
	copy(n.entry(i)[:n.KeySize()], key)
}

// ValueAt returns the child page id at index i.
func (n Internal) ValueAt(i int) base.PageID {
	if invariants.Enabled {
		invariants.CheckBounds(i, n.Size())
	}
	return base.PageID(int32(binary.LittleEndian.Uint32(n.entry(i)[n.KeySize():])))
}

// SetValueAt overwrites the child page id at index i.
func (n Internal) SetValueAt(i int, id base.PageID) {
	if invariants.Enabled {
		invariants.CheckBounds(i, n.Size())
	}
	binary.LittleEndian.PutUint32(n.entry(i)[n.KeySize():], uint32(id))
}

// ValueIndex returns the index of child id, or -1 if id is not a child.
func (n Internal) ValueIndex(id base.PageID) int {
	for i, size := 0, n.Size(); i < size; i++ {
		if n.ValueAt(i) == id {
			return i
		}
	}
	return -1
}

// Lookup returns the child whose key range contains key: the child of the
// last separator <= key, or child 0 if key sorts before every separator.
func (n Internal) Lookup(key []byte, cmp base.Compare) base.PageID {
	size := n.Size()
	i := sort.Search(size-1, func(i int) bool {
		return cmp(n.KeyAt(i+1), key) > 0
	})
	return n.ValueAt(i)
}

// PopulateNewRoot fills an empty node with two children separated by key.
func (n Internal) PopulateNewRoot(left base.PageID, key []byte, right base.PageID) {
	n.setSize(2)
	n.SetValueAt(0, left)
	n.SetKeyAt(1, key)
	n.SetValueAt(1, right)
}

// InsertNodeAfter inserts (key, newChild) immediately after the entry for
// oldChild and returns the new size. The node may temporarily hold
// MaxSize()+1 children.
func (n Internal) InsertNodeAfter(oldChild base.PageID, key []byte, newChild base.PageID) int {
	i := n.ValueIndex(oldChild)
	if i < 0 {
		panic(errors.AssertionFailedf("page %s is not a child of %s", oldChild, n.PageID()))
	}
	size := n.Size()
	if size >= n.capacity() {
		panic(errors.AssertionFailedf("internal node %s is full", n.PageID()))
	}
	i++
	copy(n.entries(i+1, size+1), n.entries(i, size))
	n.setSize(size + 1)
	n.SetKeyAt(i, key)
	n.SetValueAt(i, newChild)
	return size + 1
}

// Remove removes the entry at index i.
func (n Internal) Remove(i int) {
	size := n.Size()
	if invariants.Enabled {
		invariants.CheckBounds(i, size)
	}
	copy(n.entries(i, size-1), n.entries(i+1, size))
	n.setSize(size - 1)
}

// RemoveAndReturnOnlyChild empties a node with a single child and returns
// that child.
func (n Internal) RemoveAndReturnOnlyChild() base.PageID {
	if n.Size() != 1 {
		panic(errors.AssertionFailedf("internal node %s has %d children", n.PageID(), n.Size()))
	}
	child := n.ValueAt(0)
	n.setSize(0)
	return child
}

func (n Internal) children(start, end int) []base.PageID {
	ids := make([]base.PageID, 0, end-start)
	for i := start; i < end; i++ {
		ids = append(ids, n.ValueAt(i))
	}
	return ids
}

// MoveHalfTo moves the upper half of the entries into the empty node dst and
// returns the moved children, whose parent pointers the caller must update.
// The receiver keeps the first Size()/2 children. dst.KeyAt(0) holds the
// separator to push into the parent.
func (n Internal) MoveHalfTo(dst Internal) []base.PageID {
	size := n.Size()
	keep := size / 2
	moved := invariants.SafeSub(size, keep)
	copy(dst.entries(0, moved), n.entries(keep, size))
	dst.setSize(moved)
	n.setSize(keep)
	return dst.children(0, dst.Size())
}

// MoveAllTo appends every entry to dst, the left neighbor. middleKey is the
// parent separator between dst and the receiver; it becomes the key of the
// receiver's first child. The moved children are returned.
func (n Internal) MoveAllTo(dst Internal, middleKey []byte) []base.PageID {
	size, m := n.Size(), dst.Size()
	if m+size > dst.capacity() {
		panic(errors.AssertionFailedf("internal node %s cannot absorb %d entries", dst.PageID(), size))
	}
	n.SetKeyAt(0, middleKey)
	copy(dst.entries(m, m+size), n.entries(0, size))
	dst.setSize(m + size)
	n.setSize(0)
	return dst.children(m, m+size)
}

// MoveFirstToEndOf moves the first child to the end of dst, the left
// neighbor, under separator middleKey. Afterwards KeyAt(0) of the receiver
// holds the separator to store in the parent. The moved child is returned.
func (n Internal) MoveFirstToEndOf(dst Internal, middleKey []byte) base.PageID {
	m := dst.Size()
	child := n.ValueAt(0)
	dst.setSize(m + 1)
	dst.SetKeyAt(m, middleKey)
	dst.SetValueAt(m, child)
	n.Remove(0)
	return child
}

// MoveLastToFrontOf moves the last child to the front of dst, the right
// neighbor. middleKey, the parent separator between the receiver and dst,
// becomes the key of dst's former first child. Afterwards dst.KeyAt(0) holds
// the separator to store in the parent. The moved child is returned.
func (n Internal) MoveLastToFrontOf(dst Internal, middleKey []byte) base.PageID {
	size, m := n.Size(), dst.Size()
	last := invariants.SafeSub(size, 1)
	copy(dst.entries(1, m+1), dst.entries(0, m))
	dst.setSize(m + 1)
	dst.SetKeyAt(1, middleKey)
	copy(dst.entry(0), n.entry(last))
	n.setSize(last)
	return dst.ValueAt(0)
}
