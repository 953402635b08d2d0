// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/bufferpool"
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/bpage"
	"github.com/cockroachdb/errors"
)

// pinnedPage is a scoped pin on a buffer pool page. It is released exactly
// once: release is idempotent so that it can be both deferred and called
// early. The page must not be accessed after release.
type pinnedPage struct {
	bp       BufferPool
	pageID   PageID
	page     *bufferpool.Page
	dirty    bool
	released bool
}

func (t *BPlusTree) fetch(id PageID) (*pinnedPage, error) {
	page, err := t.bp.FetchPage(id)
	if err != nil {
		return nil, errors.Wrapf(err, "bptree: fetching page %s", id)
	}
	return &pinnedPage{bp: t.bp, pageID: id, page: page}, nil
}

// fetchNode fetches a page that must hold a tree node.
func (t *BPlusTree) fetchNode(id PageID) (*pinnedPage, error) {
	p, err := t.fetch(id)
	if err != nil {
		return nil, err
	}
	if k := p.kind(); k != bpage.KindLeaf && k != bpage.KindInternal {
		return nil, errors.CombineErrors(
			base.CorruptionErrorf("bptree: page %s has invalid kind %d", id, k), p.release())
	}
	return p, nil
}

// fetchInternal fetches a page that must hold an internal node.
func (t *BPlusTree) fetchInternal(id PageID) (*pinnedPage, error) {
	p, err := t.fetch(id)
	if err != nil {
		return nil, err
	}
	if k := p.kind(); k != bpage.KindInternal {
		return nil, errors.CombineErrors(
			base.CorruptionErrorf("bptree: page %s is %s, expected internal", id, k), p.release())
	}
	return p, nil
}

// newPage allocates a page. Allocation failures are marked ErrOutOfMemory.
func (t *BPlusTree) newPage() (*pinnedPage, error) {
	page, err := t.bp.NewPage()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "bptree: allocating page"), ErrOutOfMemory)
	}
	return &pinnedPage{bp: t.bp, pageID: page.ID(), page: page, dirty: true}, nil
}

// deletePage releases p and frees its page.
func (t *BPlusTree) deletePage(p *pinnedPage) error {
	if err := p.release(); err != nil {
		return err
	}
	return errors.Wrapf(t.bp.DeletePage(p.pageID), "bptree: deleting page %s", p.pageID)
}

func (p *pinnedPage) id() PageID {
	return p.pageID
}

func (p *pinnedPage) data() []byte {
	if p.released {
		panic(errors.AssertionFailedf("bptree: page %s accessed after release", p.pageID))
	}
	return p.page.Data()
}

func (p *pinnedPage) kind() bpage.Kind {
	return bpage.KindOf(p.data())
}

func (p *pinnedPage) header() bpage.Header {
	return bpage.Header(p.data())
}

func (p *pinnedPage) leaf() bpage.Leaf {
	return bpage.AsLeaf(p.data())
}

func (p *pinnedPage) internal() bpage.Internal {
	return bpage.AsInternal(p.data())
}

func (p *pinnedPage) markDirty() {
	p.dirty = true
}

func (p *pinnedPage) release() error {
	if p.released {
		return nil
	}
	p.released = true
	p.page = nil
	return p.bp.UnpinPage(p.pageID, p.dirty)
}

// releaseInto releases p, folding any error into *err.
func (p *pinnedPage) releaseInto(err *error) {
	*err = errors.CombineErrors(*err, p.release())
}

// pinSet tracks the pins held by a multi-page operation so that a single
// deferred call releases whatever is still held on every exit path.
type pinSet []*pinnedPage

func (s *pinSet) add(p *pinnedPage) *pinnedPage {
	*s = append(*s, p)
	return p
}

func (s pinSet) releaseInto(err *error) {
	for _, p := range s {
		p.releaseInto(err)
	}
}
