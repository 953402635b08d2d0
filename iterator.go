// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Iterator is a forward cursor over the entries of a tree in key order. Its
// position is a (leaf page id, slot) pair. It holds no pins between calls:
// each step fetches the current leaf, copies the entry out and unpins it.
//
// An iterator is invalidated by any insert or remove on its tree; restart
// iteration with a fresh Begin after mutating.
type Iterator struct {
	tree   *BPlusTree
	pageID PageID
	index  int
	// size and next describe the leaf at pageID as of the last load.
	size  int
	next  PageID
	key   []byte
	value RowID
	err   error

	closeCheck invariants.CloseChecker
}

// Begin returns an iterator positioned at the smallest key.
func (t *BPlusTree) Begin() *Iterator {
	it := &Iterator{tree: t, pageID: InvalidPageID}
	if t.IsEmpty() {
		return it
	}
	leaf, err := t.findLeaf(nil, descendLeftmost, nil)
	if err != nil {
		it.err = err
		return it
	}
	it.pageID = leaf.id()
	it.err = leaf.release()
	it.load()
	return it
}

// BeginAt returns an iterator positioned at the first key greater than or
// equal to key.
func (t *BPlusTree) BeginAt(key []byte) *Iterator {
	it := &Iterator{tree: t, pageID: InvalidPageID}
	if err := t.checkKey(key); err != nil {
		it.err = err
		return it
	}
	if t.IsEmpty() {
		return it
	}
	leaf, err := t.findLeaf(key, descendToKey, nil)
	if err != nil {
		it.err = err
		return it
	}
	it.pageID = leaf.id()
	it.index = leaf.leaf().KeyIndex(key, t.cmp)
	it.err = leaf.release()
	it.load()
	return it
}

// End returns the iterator one past the largest key: the slot after the last
// entry of the rightmost leaf. It is never valid.
func (t *BPlusTree) End() *Iterator {
	it := &Iterator{tree: t, pageID: InvalidPageID}
	if t.IsEmpty() {
		return it
	}
	leaf, err := t.findLeaf(nil, descendRightmost, nil)
	if err != nil {
		it.err = err
		return it
	}
	it.pageID = leaf.id()
	it.index = leaf.leaf().Size()
	it.size = it.index
	it.next = leaf.leaf().NextPageID()
	it.err = leaf.release()
	return it
}

// load reads the leaf at the iterator's position, moving to the first slot
// of the following leaf when the position is past the end of the current
// one.
func (it *Iterator) load() {
	for it.err == nil {
		p, err := it.tree.fetchNode(it.pageID)
		if err != nil {
			it.err = err
			return
		}
		l := p.leaf()
		if !l.IsLeaf() {
			it.err = errors.CombineErrors(
				base.CorruptionErrorf("bptree: iterator page %s is not a leaf", it.pageID), p.release())
			return
		}
		it.size = l.Size()
		it.next = l.NextPageID()
		if it.index < it.size {
			it.key = append(it.key[:0], l.KeyAt(it.index)...)
			it.value = l.ValueAt(it.index)
		}
		if err := p.release(); err != nil {
			it.err = err
			return
		}
		if it.index < it.size || !it.next.IsValid() {
			return
		}
		it.pageID = it.next
		it.index = 0
	}
}

// Valid returns true if the iterator is positioned at an entry.
func (it *Iterator) Valid() bool {
	return it.err == nil && it.pageID.IsValid() && it.index < it.size
}

// Key returns the key at the current position. The slice is owned by the
// iterator and overwritten by Next.
func (it *Iterator) Key() []byte {
	it.closeCheck.AssertNotClosed()
	if !it.Valid() {
		return nil
	}
	return it.key
}

// Value returns the value at the current position.
func (it *Iterator) Value() RowID {
	it.closeCheck.AssertNotClosed()
	if !it.Valid() {
		return RowID{}
	}
	return it.value
}

// Next advances to the next entry and returns Valid().
func (it *Iterator) Next() bool {
	it.closeCheck.AssertNotClosed()
	if !it.Valid() {
		return false
	}
	it.index++
	if it.index < it.size {
		it.load()
	} else if it.next.IsValid() {
		it.pageID = it.next
		it.index = 0
		it.load()
	}
	return it.Valid()
}

// Equal returns true if both iterators are at the same position.
func (it *Iterator) Equal(o *Iterator) bool {
	return it.pageID == o.pageID && it.index == o.index
}

// Position returns the leaf page and slot the iterator is at.
func (it *Iterator) Position() (PageID, int) {
	return it.pageID, it.index
}

// Error returns any error encountered while iterating.
func (it *Iterator) Error() error {
	return it.err
}

// Close releases the iterator and returns any accumulated error.
func (it *Iterator) Close() error {
	it.closeCheck.Close()
	it.tree = nil
	it.pageID = InvalidPageID
	return it.err
}
