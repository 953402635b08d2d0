// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bufferpool

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// Metrics holds metrics for the buffer pool.
type Metrics struct {
	// Frames is the capacity of the pool in pages.
	Frames int
	// Resident is the number of frames holding a page.
	Resident int
	// Pinned is the number of resident pages with a non-zero pin count.
	Pinned int
	// Hits and Misses count FetchPage calls that found, or had to read, the
	// page.
	Hits   int64
	Misses int64
	// Evictions counts pages dropped to make room for another page.
	Evictions int64
	// WriteBacks counts dirty pages written to the store.
	WriteBacks int64
}

// HitRate returns the fraction of fetches served from memory.
func (m Metrics) HitRate() float64 {
	if m.Hits+m.Misses == 0 {
		return 0
	}
	return float64(m.Hits) / float64(m.Hits+m.Misses)
}

// SafeFormat implements redact.SafeFormatter.
func (m Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("frames: %d resident (%s), %d pinned, %d total\n",
		redact.SafeInt(m.Resident),
		crhumanize.Bytes(int64(m.Resident)*base.PageSize, crhumanize.Compact, crhumanize.OmitI),
		redact.SafeInt(m.Pinned), redact.SafeInt(m.Frames))
	w.Printf("fetches: %s hits, %s misses\n",
		crhumanize.Count(m.Hits, crhumanize.Compact), crhumanize.Count(m.Misses, crhumanize.Compact))
	w.Printf("evictions: %s, write-backs: %s",
		crhumanize.Count(m.Evictions, crhumanize.Compact), crhumanize.Count(m.WriteBacks, crhumanize.Compact))
}

// String implements fmt.Stringer.
func (m Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}
