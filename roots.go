// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/indexroots"
	"github.com/cockroachdb/errors"
)

// fetchRoots pins the index roots directory, formatting page 0 as an empty
// directory if it has never been allocated.
func (t *BPlusTree) fetchRoots() (*pinnedPage, error) {
	page, err := t.bp.FetchPage(IndexRootsPageID)
	if err == nil {
		p := &pinnedPage{bp: t.bp, pageID: IndexRootsPageID, page: page}
		if err := indexroots.Page(p.data()).Validate(); err != nil {
			return nil, errors.CombineErrors(err, p.release())
		}
		return p, nil
	}
	if !errors.Is(err, base.ErrPageNotFound) {
		return nil, errors.Wrap(err, "bptree: fetching index roots directory")
	}
	p, err := t.newPage()
	if err != nil {
		return nil, err
	}
	if p.id() != IndexRootsPageID {
		return nil, errors.CombineErrors(
			errors.AssertionFailedf("bptree: index roots directory allocated at page %s", p.id()),
			p.release())
	}
	indexroots.Page(p.data()).Init()
	t.opts.Logger.Infof("bptree: created index roots directory")
	return p, nil
}

func (t *BPlusTree) loadRoot() (_ PageID, err error) {
	p, err := t.fetchRoots()
	if err != nil {
		return InvalidPageID, err
	}
	defer p.releaseInto(&err)
	root, _ := indexroots.Page(p.data()).GetRootID(t.indexID)
	return root, nil
}

// updateRoot records root in the directory, registering the index if
// needed, and then caches it. The cached root is unchanged on error.
func (t *BPlusTree) updateRoot(root PageID) (err error) {
	p, err := t.fetchRoots()
	if err != nil {
		return err
	}
	defer p.releaseInto(&err)
	dir := indexroots.Page(p.data())
	if !dir.Update(t.indexID, root) {
		if _, err := dir.Insert(t.indexID, root); err != nil {
			return errors.Wrapf(err, "bptree: registering index %d", t.indexID)
		}
	}
	p.markDirty()
	if t.opts.Verbose {
		t.opts.Logger.Infof("bptree: index %d root %s -> %s", t.indexID, t.root, root)
	}
	t.root = root
	return nil
}

func (t *BPlusTree) unregister() (err error) {
	p, err := t.fetchRoots()
	if err != nil {
		return err
	}
	defer p.releaseInto(&err)
	if indexroots.Page(p.data()).Delete(t.indexID) {
		p.markDirty()
	}
	return nil
}

// Indexes returns the ids of the indexes registered in bp's index roots
// directory, in registration order. A buffer pool without a directory holds
// no indexes.
func Indexes(bp BufferPool) (_ []IndexID, err error) {
	page, err := bp.FetchPage(IndexRootsPageID)
	if err != nil {
		if errors.Is(err, base.ErrPageNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "bptree: fetching index roots directory")
	}
	p := &pinnedPage{bp: bp, pageID: IndexRootsPageID, page: page}
	defer p.releaseInto(&err)
	dir := indexroots.Page(p.data())
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	ids := make([]IndexID, dir.Count())
	for i := range ids {
		ids[i], _ = dir.At(i)
	}
	return ids, nil
}
