// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"slices"

	"github.com/cockroachdb/bptree/internal/bpage"
	"github.com/cockroachdb/errors"
)

// Insert adds key with value. It returns ErrDuplicateKey if key is already
// present. If the buffer pool cannot provide the pages the insert needs, it
// returns an error marked ErrOutOfMemory and the tree is unchanged.
func (t *BPlusTree) Insert(key []byte, value RowID, txn *Txn) (err error) {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if t.IsEmpty() {
		return t.startNewTree(key, value)
	}
	var path []pathEntry
	leaf, err := t.findLeaf(key, descendToKey, &path)
	if err != nil {
		return err
	}
	defer leaf.releaseInto(&err)

	l := leaf.leaf()
	if _, ok := l.Lookup(key, t.cmp); ok {
		return ErrDuplicateKey
	}
	spares, err := t.reserve(l, path)
	if err != nil {
		return err
	}
	defer func() { spares.releaseInto(t, &err) }()

	l.Insert(key, value, t.cmp)
	leaf.markDirty()
	if l.Size() <= l.MaxSize() {
		return nil
	}
	return t.split(leaf, &spares)
}

func (t *BPlusTree) startNewTree(key []byte, value RowID) error {
	p, err := t.newPage()
	if err != nil {
		return err
	}
	l := p.leaf()
	l.Init(p.id(), InvalidPageID, t.keySize, t.leafMax)
	l.Insert(key, value, t.cmp)
	root := p.id()
	if err := p.release(); err != nil {
		return err
	}
	if err := t.updateRoot(root); err != nil {
		return errors.CombineErrors(err, t.deletePage(p))
	}
	return nil
}

// spareList holds pages allocated ahead of a split.
type spareList []*pinnedPage

func (s *spareList) take() *pinnedPage {
	p := (*s)[0]
	*s = (*s)[1:]
	return p
}

// releaseInto frees the spares that were not consumed.
func (s spareList) releaseInto(t *BPlusTree, err *error) {
	for _, p := range s {
		*err = errors.CombineErrors(*err, t.deletePage(p))
	}
}

// reserve allocates every page that inserting one entry into l will need:
// a sibling for the leaf and for each full ancestor the split cascades
// through, plus a new root if the cascade reaches the root. path lists the
// ancestors of l, root first. Nothing is allocated if any allocation fails.
func (t *BPlusTree) reserve(l bpage.Leaf, path []pathEntry) (spareList, error) {
	need := 0
	if l.Size()+1 > l.MaxSize() {
		need = 1
		i := len(path) - 1
		for ; i >= 0 && path[i].size+1 > path[i].maxSize; i-- {
			need++
		}
		if i < 0 {
			need++
		}
	}
	spares := make(spareList, 0, need)
	for len(spares) < need {
		p, err := t.newPage()
		if err != nil {
			var rerr error
			spares.releaseInto(t, &rerr)
			return nil, errors.CombineErrors(err, rerr)
		}
		spares = append(spares, p)
	}
	return spares, nil
}

// split splits the overflowing node and every ancestor that overflows as a
// result, consuming pages from spares. It takes ownership of node's pin.
func (t *BPlusTree) split(node *pinnedPage, spares *spareList) (err error) {
	var held pinSet
	held.add(node)
	defer func() { held.releaseInto(&err) }()

	for {
		sib := held.add(spares.take())
		var sep []byte
		if node.kind() == bpage.KindLeaf {
			l, s := node.leaf(), sib.leaf()
			s.Init(sib.id(), l.ParentID(), t.keySize, l.MaxSize())
			l.MoveHalfTo(s)
			s.SetNextPageID(l.NextPageID())
			l.SetNextPageID(sib.id())
			sep = slices.Clone(s.KeyAt(0))
		} else {
			n, s := node.internal(), sib.internal()
			s.Init(sib.id(), n.ParentID(), t.keySize, n.MaxSize())
			moved := n.MoveHalfTo(s)
			sep = slices.Clone(s.KeyAt(0))
			if err := t.reparent(moved, sib.id()); err != nil {
				return err
			}
		}
		node.markDirty()
		sib.markDirty()

		nodeID, sibID := node.id(), sib.id()
		parentID := node.header().ParentID()
		if !parentID.IsValid() {
			root := held.add(spares.take())
			r := root.internal()
			r.Init(root.id(), InvalidPageID, t.keySize, t.internalMax)
			r.PopulateNewRoot(nodeID, sep, sibID)
			node.header().SetParentID(root.id())
			sib.header().SetParentID(root.id())
			rootID := root.id()
			if err := errors.CombineErrors(root.release(),
				errors.CombineErrors(sib.release(), node.release())); err != nil {
				return err
			}
			return t.updateRoot(rootID)
		}

		if err := errors.CombineErrors(sib.release(), node.release()); err != nil {
			return err
		}
		parent, err := t.fetchInternal(parentID)
		if err != nil {
			return err
		}
		held.add(parent)
		p := parent.internal()
		p.InsertNodeAfter(nodeID, sep, sibID)
		parent.markDirty()
		if p.Size() <= p.MaxSize() {
			return parent.release()
		}
		node = parent
	}
}

// reparent sets the parent of every page in children.
func (t *BPlusTree) reparent(children []PageID, parent PageID) error {
	for _, id := range children {
		c, err := t.fetchNode(id)
		if err != nil {
			return err
		}
		c.header().SetParentID(parent)
		c.markDirty()
		if err := c.release(); err != nil {
			return err
		}
	}
	return nil
}
