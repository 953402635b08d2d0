// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/indexroots"
)

type verifyState struct {
	leafDepth int
	leaves    []PageID
}

// Verify checks the structure of the tree: key order within and across
// pages, separator bounds, parent pointers, page size bounds, uniform leaf
// depth, the leaf chain and the index roots directory entry. Violations are
// reported as errors marked ErrCorruption.
func (t *BPlusTree) Verify() error {
	if err := t.verifyDirectory(); err != nil {
		return err
	}
	if t.IsEmpty() {
		return nil
	}
	st := verifyState{leafDepth: -1}
	if err := t.verifyNode(t.root, InvalidPageID, nil, nil, 0, &st); err != nil {
		return err
	}
	return t.verifyLeafChain(st.leaves)
}

func (t *BPlusTree) verifyDirectory() (err error) {
	p, err := t.fetchRoots()
	if err != nil {
		return err
	}
	defer p.releaseInto(&err)
	root, ok := indexroots.Page(p.data()).GetRootID(t.indexID)
	if !ok {
		root = InvalidPageID
	}
	if root != t.root {
		return base.CorruptionErrorf("bptree: index %d: directory root %s, tree root %s",
			t.indexID, root, t.root)
	}
	return nil
}

// verifyNode checks the subtree rooted at id, whose keys must lie in
// [lo, hi). A nil bound is unbounded.
func (t *BPlusTree) verifyNode(
	id, parent PageID, lo, hi []byte, depth int, st *verifyState,
) (err error) {
	p, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	defer p.releaseInto(&err)

	h := p.header()
	if h.PageID() != id {
		return base.CorruptionErrorf("bptree: page %s claims id %s", id, h.PageID())
	}
	if h.ParentID() != parent {
		return base.CorruptionErrorf("bptree: page %s has parent %s, expected %s", id, h.ParentID(), parent)
	}
	if h.KeySize() != t.keySize {
		return base.CorruptionErrorf("bptree: page %s has key size %d, expected %d", id, h.KeySize(), t.keySize)
	}
	minSize := h.MinSize()
	if !parent.IsValid() {
		minSize = 1
		if !h.IsLeaf() {
			minSize = 2
		}
	}
	if h.Size() < minSize || h.Size() > h.MaxSize() {
		return base.CorruptionErrorf("bptree: page %s has size %d outside [%d, %d]",
			id, h.Size(), minSize, h.MaxSize())
	}

	inBounds := func(k []byte) bool {
		return (lo == nil || t.cmp(k, lo) >= 0) && (hi == nil || t.cmp(k, hi) < 0)
	}

	if h.IsLeaf() {
		l := p.leaf()
		for i := 0; i < l.Size(); i++ {
			if i > 0 && t.cmp(l.KeyAt(i-1), l.KeyAt(i)) >= 0 {
				return base.CorruptionErrorf("bptree: leaf %s keys out of order at %d", id, i)
			}
			if !inBounds(l.KeyAt(i)) {
				return base.CorruptionErrorf("bptree: leaf %s key %d outside its parent's bounds", id, i)
			}
		}
		if st.leafDepth < 0 {
			st.leafDepth = depth
		} else if st.leafDepth != depth {
			return base.CorruptionErrorf("bptree: leaf %s at depth %d, expected %d", id, depth, st.leafDepth)
		}
		st.leaves = append(st.leaves, id)
		return nil
	}

	n := p.internal()
	for i := 1; i < n.Size(); i++ {
		if i > 1 && t.cmp(n.KeyAt(i-1), n.KeyAt(i)) >= 0 {
			return base.CorruptionErrorf("bptree: internal %s keys out of order at %d", id, i)
		}
		if !inBounds(n.KeyAt(i)) {
			return base.CorruptionErrorf("bptree: internal %s key %d outside its parent's bounds", id, i)
		}
	}
	for i := 0; i < n.Size(); i++ {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = n.KeyAt(i)
		}
		if i+1 < n.Size() {
			childHi = n.KeyAt(i + 1)
		}
		if err := t.verifyNode(n.ValueAt(i), id, childLo, childHi, depth+1, st); err != nil {
			return err
		}
	}
	return nil
}

// verifyLeafChain checks that following next links from the leftmost leaf
// visits exactly the leaves found by the in-order walk.
func (t *BPlusTree) verifyLeafChain(leaves []PageID) error {
	for i, id := range leaves {
		p, err := t.fetchNode(id)
		if err != nil {
			return err
		}
		next := p.leaf().NextPageID()
		if err := p.release(); err != nil {
			return err
		}
		want := InvalidPageID
		if i+1 < len(leaves) {
			want = leaves[i+1]
		}
		if next != want {
			return base.CorruptionErrorf("bptree: leaf %s links to %s, expected %s", id, next, want)
		}
	}
	return nil
}
