// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bufferpool

import "github.com/cockroachdb/bptree/internal/base"

// Page is a buffer pool frame holding a resident page. A *Page returned by
// FetchPage or NewPage is valid until the matching UnpinPage; the frame may
// be reused for a different page once its pin count drops to zero.
type Page struct {
	id    base.PageID
	data  []byte
	pins  int
	dirty bool
}

// ID returns the id of the resident page.
func (p *Page) ID() base.PageID {
	return p.id
}

// Data returns the page's bytes. Mutations must be reported by unpinning
// the page dirty.
func (p *Page) Data() []byte {
	return p.data
}

// PinCount returns the number of outstanding pins.
func (p *Page) PinCount() int {
	return p.pins
}

// IsDirty returns true if the page has unwritten modifications.
func (p *Page) IsDirty() bool {
	return p.dirty
}

func (p *Page) reset() {
	p.id = base.InvalidPageID
	p.pins = 0
	p.dirty = false
}
