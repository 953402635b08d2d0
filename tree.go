// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bptree implements a B+ tree index over fixed-size keys whose nodes
// live in buffer pool pages.
//
// Leaves hold sorted (key, RowID) entries and are chained left to right.
// Internal nodes hold separator keys and child page ids. The root of every
// index is recorded in the index roots directory on page 0, so a tree can be
// reopened from its buffer pool given only its index id.
//
// A tree is not safe for concurrent use: callers serialize operations and
// iteration on a tree handle. Every page a tree operation pins is unpinned
// before the operation returns, on error paths included.
package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/bpage"
	"github.com/cockroachdb/errors"
)

// BPlusTree is a handle on one index. It does not own its buffer pool.
type BPlusTree struct {
	indexID     IndexID
	bp          BufferPool
	opts        *Options
	cmp         base.Compare
	keySize     int
	leafMax     int
	internalMax int
	// root is the cached root page id, InvalidPageID for an empty tree.
	root PageID
}

// Open returns a handle on index indexID stored in bp. If the buffer pool
// holds no index roots directory yet, page 0 is allocated and formatted as
// one. An index absent from the directory opens as an empty tree and is
// registered on its first insert.
func Open(indexID IndexID, bp BufferPool, opts *Options) (*BPlusTree, error) {
	opts = opts.EnsureDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	t := &BPlusTree{
		indexID:     indexID,
		bp:          bp,
		opts:        opts,
		cmp:         opts.Comparer.Compare,
		keySize:     opts.Comparer.KeySize,
		leafMax:     opts.LeafMaxSize,
		internalMax: opts.InternalMaxSize,
	}
	root, err := t.loadRoot()
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}

// IndexID returns the id of the index.
func (t *BPlusTree) IndexID() IndexID {
	return t.indexID
}

// RootPageID returns the page id of the root, or InvalidPageID if the tree
// is empty.
func (t *BPlusTree) RootPageID() PageID {
	return t.root
}

// IsEmpty returns true if the tree holds no keys.
func (t *BPlusTree) IsEmpty() bool {
	return !t.root.IsValid()
}

// Comparer returns the comparer ordering the tree's keys.
func (t *BPlusTree) Comparer() *Comparer {
	return t.opts.Comparer
}

func (t *BPlusTree) checkKey(key []byte) error {
	if len(key) != t.keySize {
		return errors.Newf("bptree: key of %d bytes, expected %d", len(key), t.keySize)
	}
	return nil
}

type descent int8

const (
	descendToKey descent = iota
	descendLeftmost
	descendRightmost
)

// pathEntry records an internal node visited by a descent.
type pathEntry struct {
	id      PageID
	size    int
	maxSize int
}

// findLeaf descends from the root to a leaf and returns it pinned. Each
// internal node is unpinned once its child has been fetched. If path is not
// nil the visited internal nodes are appended to it, root first.
func (t *BPlusTree) findLeaf(key []byte, d descent, path *[]pathEntry) (*pinnedPage, error) {
	p, err := t.fetchNode(t.root)
	if err != nil {
		return nil, err
	}
	for p.kind() == bpage.KindInternal {
		n := p.internal()
		var child PageID
		switch d {
		case descendLeftmost:
			child = n.ValueAt(0)
		case descendRightmost:
			child = n.ValueAt(n.Size() - 1)
		default:
			child = n.Lookup(key, t.cmp)
		}
		if path != nil {
			*path = append(*path, pathEntry{id: p.id(), size: n.Size(), maxSize: n.MaxSize()})
		}
		c, err := t.fetchNode(child)
		if err != nil {
			return nil, errors.CombineErrors(err, p.release())
		}
		if err := p.release(); err != nil {
			return nil, errors.CombineErrors(err, c.release())
		}
		p = c
	}
	return p, nil
}

// GetValue returns the value stored under key. A missing key, or an empty
// tree, is reported with ok == false and a nil error.
func (t *BPlusTree) GetValue(key []byte, txn *Txn) (_ RowID, ok bool, err error) {
	if err := t.checkKey(key); err != nil {
		return RowID{}, false, err
	}
	if t.IsEmpty() {
		return RowID{}, false, nil
	}
	leaf, err := t.findLeaf(key, descendToKey, nil)
	if err != nil {
		return RowID{}, false, err
	}
	defer leaf.releaseInto(&err)
	v, ok := leaf.leaf().Lookup(key, t.cmp)
	return v, ok, nil
}

// Height returns the number of levels of the tree: 0 for an empty tree, 1
// for a tree whose root is a leaf.
func (t *BPlusTree) Height() (int, error) {
	if t.IsEmpty() {
		return 0, nil
	}
	var path []pathEntry
	leaf, err := t.findLeaf(nil, descendLeftmost, &path)
	if err != nil {
		return 0, err
	}
	return len(path) + 1, leaf.release()
}

// Destroy frees every page of the tree, level by level, and removes the
// index from the index roots directory. The handle is empty afterwards.
func (t *BPlusTree) Destroy() error {
	if !t.IsEmpty() {
		queue := []PageID{t.root}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			p, err := t.fetchNode(id)
			if err != nil {
				return err
			}
			if p.kind() == bpage.KindInternal {
				n := p.internal()
				for i := 0; i < n.Size(); i++ {
					queue = append(queue, n.ValueAt(i))
				}
			}
			if err := t.deletePage(p); err != nil {
				return err
			}
		}
	}
	t.opts.Logger.Infof("bptree: destroyed index %d", t.indexID)
	t.root = InvalidPageID
	return t.unregister()
}

// Check returns true if the buffer pool holds no pinned page, logging an
// error otherwise. It is meant to be called between operations.
func (t *BPlusTree) Check() bool {
	if !t.bp.CheckAllUnpinned() {
		t.opts.Logger.Errorf("bptree: index %d: buffer pool has pinned pages", t.indexID)
		return false
	}
	return true
}
