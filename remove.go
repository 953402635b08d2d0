// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/bpage"
	"github.com/cockroachdb/errors"
)

// Remove deletes key. Removing from an empty tree is a no-op. Removing a key
// that is not present is a caller error: an assertion failure is returned and
// the tree is unchanged.
func (t *BPlusTree) Remove(key []byte, txn *Txn) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if t.IsEmpty() {
		return nil
	}
	leaf, err := t.findLeaf(key, descendToKey, nil)
	if err != nil {
		return err
	}
	l := leaf.leaf()
	if n := l.Size(); l.RemoveAndDeleteRecord(key, t.cmp) == n {
		return errors.CombineErrors(
			errors.AssertionFailedf("bptree: removing absent key %s", t.opts.Comparer.FormatKey(key)),
			leaf.release())
	}
	leaf.markDirty()
	return t.coalesceOrRedistribute(leaf)
}

// coalesceOrRedistribute restores the minimum size of node and of every
// ancestor that underflows as a result. It takes ownership of node's pin.
func (t *BPlusTree) coalesceOrRedistribute(node *pinnedPage) (err error) {
	var held pinSet
	held.add(node)
	defer func() { held.releaseInto(&err) }()

	for {
		h := node.header()
		if h.IsRoot() {
			return t.adjustRoot(node)
		}
		if h.Size() >= h.MinSize() {
			return node.release()
		}

		parent, err := t.fetchInternal(h.ParentID())
		if err != nil {
			return err
		}
		held.add(parent)
		p := parent.internal()
		idx := p.ValueIndex(node.id())
		if idx < 0 {
			return base.AssertionFailedf("bptree: page %s missing from its parent %s", node.id(), parent.id())
		}
		// The right sibling for the first child, the left one otherwise.
		sibIdx := idx - 1
		if idx == 0 {
			sibIdx = 1
		}
		sib, err := t.fetchNode(p.ValueAt(sibIdx))
		if err != nil {
			return err
		}
		held.add(sib)
		sh := sib.header()
		if sh.Kind() != h.Kind() {
			return base.AssertionFailedf("bptree: siblings %s and %s differ in kind", node.id(), sib.id())
		}

		node.markDirty()
		sib.markDirty()
		parent.markDirty()
		if h.Size()+sh.Size() >= h.MaxSize() && sh.Size() > sh.MinSize() {
			if err := t.redistribute(node, sib, p, idx); err != nil {
				return err
			}
			return errors.CombineErrors(node.release(),
				errors.CombineErrors(sib.release(), parent.release()))
		}

		left, right, sepIdx := sib, node, idx
		if idx == 0 {
			left, right, sepIdx = node, sib, 1
		}
		if err := t.coalesce(left, right, p, sepIdx); err != nil {
			return err
		}
		if err := left.release(); err != nil {
			return err
		}
		if err := t.deletePage(right); err != nil {
			return err
		}
		p.Remove(sepIdx)
		node = parent
	}
}

// redistribute moves one entry from sib into node across their boundary and
// updates the separator in parent. idx is node's index in parent.
func (t *BPlusTree) redistribute(node, sib *pinnedPage, parent bpage.Internal, idx int) error {
	if node.kind() == bpage.KindLeaf {
		if idx == 0 {
			sib.leaf().MoveFirstToEndOf(node.leaf())
			parent.SetKeyAt(1, sib.leaf().KeyAt(0))
		} else {
			sib.leaf().MoveLastToFrontOf(node.leaf())
			parent.SetKeyAt(idx, node.leaf().KeyAt(0))
		}
		return nil
	}
	var moved PageID
	if idx == 0 {
		moved = sib.internal().MoveFirstToEndOf(node.internal(), parent.KeyAt(1))
		parent.SetKeyAt(1, sib.internal().KeyAt(0))
	} else {
		moved = sib.internal().MoveLastToFrontOf(node.internal(), parent.KeyAt(idx))
		parent.SetKeyAt(idx, node.internal().KeyAt(0))
	}
	return t.reparent([]PageID{moved}, node.id())
}

// coalesce moves every entry of right into left. sepIdx is right's index in
// parent; the caller removes that entry.
func (t *BPlusTree) coalesce(left, right *pinnedPage, parent bpage.Internal, sepIdx int) error {
	if left.kind() == bpage.KindLeaf {
		right.leaf().MoveAllTo(left.leaf())
		return nil
	}
	moved := right.internal().MoveAllTo(left.internal(), parent.KeyAt(sepIdx))
	return t.reparent(moved, left.id())
}

// adjustRoot collapses a root left with a single child and empties the tree
// when its root leaf has no entries. It takes ownership of root's pin.
func (t *BPlusTree) adjustRoot(root *pinnedPage) error {
	h := root.header()
	switch {
	case !h.IsLeaf() && h.Size() == 1:
		child := root.internal().RemoveAndReturnOnlyChild()
		root.markDirty()
		if err := t.deletePage(root); err != nil {
			return err
		}
		c, err := t.fetchNode(child)
		if err != nil {
			return err
		}
		c.header().SetParentID(InvalidPageID)
		c.markDirty()
		if err := c.release(); err != nil {
			return err
		}
		return t.updateRoot(child)

	case h.IsLeaf() && h.Size() == 0:
		root.markDirty()
		if err := t.deletePage(root); err != nil {
			return err
		}
		return t.updateRoot(InvalidPageID)

	default:
		return root.release()
	}
}
