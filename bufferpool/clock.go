// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bufferpool

// clock is a CLOCK replacer over buffer pool frames. Only frames holding an
// unpinned page are candidates for eviction. A frame that was unpinned since
// the hand last passed it gets a second chance.
type clock struct {
	frames    []clockFrame
	hand      int
	evictable int
}

type clockFrame struct {
	evictable  bool
	referenced bool
}

func (c *clock) init(n int) {
	c.frames = make([]clockFrame, n)
}

// unpin marks the frame evictable.
func (c *clock) unpin(frame int) {
	f := &c.frames[frame]
	if !f.evictable {
		f.evictable = true
		c.evictable++
	}
	f.referenced = true
}

// pin removes the frame from eviction candidacy.
func (c *clock) pin(frame int) {
	f := &c.frames[frame]
	if f.evictable {
		f.evictable = false
		c.evictable--
	}
	f.referenced = false
}

// victim selects and removes an evictable frame. It returns false if every
// frame is pinned.
func (c *clock) victim() (int, bool) {
	if c.evictable == 0 {
		return -1, false
	}
	for {
		i := c.hand
		c.hand = (c.hand + 1) % len(c.frames)
		f := &c.frames[i]
		if !f.evictable {
			continue
		}
		if f.referenced {
			f.referenced = false
			continue
		}
		f.evictable = false
		c.evictable--
		return i, true
	}
}
