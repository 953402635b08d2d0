// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bufferpool caches pages of a Store in a fixed number of frames.
//
// A page is pinned by FetchPage or NewPage and must be unpinned exactly once
// per pin. Only unpinned pages are evicted; dirty pages are written back to
// the store before their frame is reused. The pool is not safe for concurrent
// use.
package bufferpool

import (
	"sort"

	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
)

// ErrNoFreeFrames is returned when every frame holds a pinned page.
var ErrNoFreeFrames = errors.New("bufferpool: no free frames")

// Store is the backing storage of a pool. *pagefile.File implements it.
type Store interface {
	ReadPage(id base.PageID, buf []byte) error
	WritePage(id base.PageID, buf []byte) error
	AllocatePage() (base.PageID, error)
	DeallocatePage(id base.PageID) error
}

// DefaultFrames is the number of frames of a pool with zero Options.Frames.
const DefaultFrames = 1024

// Options configure a pool.
type Options struct {
	// Frames is the number of pages the pool can hold.
	Frames int
	// Logger defaults to base.DefaultLogger.
	Logger base.Logger
}

// EnsureDefaults returns a copy of o with unset fields defaulted.
func (o *Options) EnsureDefaults() Options {
	var res Options
	if o != nil {
		res = *o
	}
	if res.Frames <= 0 {
		res.Frames = DefaultFrames
	}
	if res.Logger == nil {
		res.Logger = base.DefaultLogger{}
	}
	return res
}

// Pool is a buffer pool.
type Pool struct {
	opts   Options
	store  Store
	frames []Page
	// pageTable maps resident page ids to frame indexes.
	pageTable swiss.Map[base.PageID, int]
	free      []int
	replacer  clock
	metrics   Metrics
	closed    bool
}

// New returns a pool caching pages of store.
func New(store Store, opts *Options) *Pool {
	o := opts.EnsureDefaults()
	p := &Pool{
		opts:   o,
		store:  store,
		frames: make([]Page, o.Frames),
		free:   make([]int, 0, o.Frames),
	}
	buf := make([]byte, o.Frames*base.PageSize)
	for i := range p.frames {
		p.frames[i].data = buf[i*base.PageSize : (i+1)*base.PageSize : (i+1)*base.PageSize]
		p.frames[i].reset()
	}
	for i := o.Frames - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	p.pageTable.Init(o.Frames)
	p.replacer.init(o.Frames)
	p.metrics.Frames = o.Frames
	return p
}

// victim returns a frame that can hold a new page, writing back and evicting
// its current page if needed.
func (p *Pool) victim() (int, error) {
	if n := len(p.free); n > 0 {
		frame := p.free[n-1]
		p.free = p.free[:n-1]
		return frame, nil
	}
	frame, ok := p.replacer.victim()
	if !ok {
		return -1, ErrNoFreeFrames
	}
	pg := &p.frames[frame]
	if pg.dirty {
		if err := p.store.WritePage(pg.id, pg.data); err != nil {
			p.replacer.unpin(frame)
			p.opts.Logger.Errorf("bufferpool: writing back page %s: %v", pg.id, err)
			return -1, errors.Wrapf(err, "bufferpool: writing back page %s", pg.id)
		}
		p.metrics.WriteBacks++
	}
	p.pageTable.Delete(pg.id)
	pg.reset()
	p.metrics.Evictions++
	p.metrics.Resident--
	return frame, nil
}

func (p *Pool) install(frame int, id base.PageID) *Page {
	pg := &p.frames[frame]
	pg.id = id
	pg.pins = 1
	p.pageTable.Put(id, frame)
	p.replacer.pin(frame)
	p.metrics.Resident++
	p.metrics.Pinned++
	return pg
}

// FetchPage pins page id, reading it from the store if it is not resident.
func (p *Pool) FetchPage(id base.PageID) (*Page, error) {
	if frame, ok := p.pageTable.Get(id); ok {
		pg := &p.frames[frame]
		if pg.pins == 0 {
			p.replacer.pin(frame)
			p.metrics.Pinned++
		}
		pg.pins++
		p.metrics.Hits++
		return pg, nil
	}
	frame, err := p.victim()
	if err != nil {
		return nil, errors.Wrapf(err, "bufferpool: fetching page %s", id)
	}
	if err := p.store.ReadPage(id, p.frames[frame].data); err != nil {
		p.free = append(p.free, frame)
		return nil, err
	}
	p.metrics.Misses++
	return p.install(frame, id), nil
}

// NewPage allocates a page in the store and pins it. The page is zeroed and
// dirty.
func (p *Pool) NewPage() (*Page, error) {
	frame, err := p.victim()
	if err != nil {
		return nil, errors.Wrap(err, "bufferpool: new page")
	}
	id, err := p.store.AllocatePage()
	if err != nil {
		p.free = append(p.free, frame)
		return nil, err
	}
	pg := p.install(frame, id)
	clear(pg.data)
	pg.dirty = true
	return pg, nil
}

// UnpinPage releases one pin on page id. If dirty is true the page is marked
// as modified.
func (p *Pool) UnpinPage(id base.PageID, dirty bool) error {
	frame, ok := p.pageTable.Get(id)
	if !ok {
		return errors.Newf("bufferpool: unpinning page %s which is not resident", id)
	}
	pg := &p.frames[frame]
	if pg.pins == 0 {
		return errors.Newf("bufferpool: unpinning page %s which is not pinned", id)
	}
	pg.dirty = pg.dirty || dirty
	pg.pins--
	if pg.pins == 0 {
		p.replacer.unpin(frame)
		p.metrics.Pinned--
	}
	return nil
}

// DeletePage drops page id from the pool and deallocates it in the store.
// The page must not be pinned.
func (p *Pool) DeletePage(id base.PageID) error {
	if frame, ok := p.pageTable.Get(id); ok {
		pg := &p.frames[frame]
		if pg.pins > 0 {
			return errors.Newf("bufferpool: deleting page %s with %d pins", id, pg.pins)
		}
		p.replacer.pin(frame)
		p.pageTable.Delete(id)
		pg.reset()
		p.free = append(p.free, frame)
		p.metrics.Resident--
	}
	return p.store.DeallocatePage(id)
}

// FlushPage writes page id to the store if it is resident and dirty.
func (p *Pool) FlushPage(id base.PageID) error {
	frame, ok := p.pageTable.Get(id)
	if !ok {
		return nil
	}
	return p.flush(&p.frames[frame])
}

func (p *Pool) flush(pg *Page) error {
	if !pg.dirty {
		return nil
	}
	if err := p.store.WritePage(pg.id, pg.data); err != nil {
		p.opts.Logger.Errorf("bufferpool: flushing page %s: %v", pg.id, err)
		return errors.Wrapf(err, "bufferpool: flushing page %s", pg.id)
	}
	pg.dirty = false
	p.metrics.WriteBacks++
	return nil
}

// FlushAll writes every dirty resident page to the store.
func (p *Pool) FlushAll() error {
	var err error
	p.pageTable.All(func(_ base.PageID, frame int) bool {
		err = p.flush(&p.frames[frame])
		return err == nil
	})
	return err
}

// PinnedPages returns the ids of the pinned pages in ascending order.
func (p *Pool) PinnedPages() []base.PageID {
	var ids []base.PageID
	p.pageTable.All(func(id base.PageID, frame int) bool {
		if p.frames[frame].pins > 0 {
			ids = append(ids, id)
		}
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CheckAllUnpinned returns true if no page is pinned. Pinned pages are
// logged.
func (p *Pool) CheckAllUnpinned() bool {
	pinned := p.PinnedPages()
	for _, id := range pinned {
		frame, _ := p.pageTable.Get(id)
		p.opts.Logger.Errorf("bufferpool: page %s has %d pins", id, p.frames[frame].pins)
	}
	return len(pinned) == 0
}

// Metrics returns the current metrics.
func (p *Pool) Metrics() Metrics {
	return p.metrics
}

// Close flushes every dirty page. It fails if a page is still pinned.
func (p *Pool) Close() error {
	if p.closed {
		return errors.AssertionFailedf("bufferpool: closed twice")
	}
	if !p.CheckAllUnpinned() {
		return errors.Newf("bufferpool: closing with pinned pages %v", p.PinnedPages())
	}
	err := p.FlushAll()
	p.closed = true
	p.pageTable.Close()
	return err
}
