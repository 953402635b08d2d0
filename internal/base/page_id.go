// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"

	"github.com/cockroachdb/redact"
)

// PageSize is the size in bytes of every page held by the buffer pool and
// stored in a page file.
const PageSize = 4096

// PageID identifies a page within a page file. Page ids are opaque handles:
// a page referencing another page's id does not own it.
type PageID int32

const (
	// InvalidPageID is the id of no page. It marks the parent of a root, the
	// successor of the rightmost leaf and the root of an empty tree.
	InvalidPageID PageID = -1
	// IndexRootsPageID is the well-known page holding the index roots
	// directory.
	IndexRootsPageID PageID = 0
)

// IsValid returns true if id can refer to a page.
func (id PageID) IsValid() bool {
	return id >= 0
}

// String implements fmt.Stringer.
func (id PageID) String() string {
	return redact.StringWithoutMarkers(id)
}

// SafeFormat implements redact.SafeFormatter.
func (id PageID) SafeFormat(w redact.SafePrinter, _ rune) {
	if id == InvalidPageID {
		w.Print(redact.SafeString("invalid"))
		return
	}
	w.Printf("%d", redact.SafeInt(id))
}

// IndexID identifies an index in the index roots directory.
type IndexID uint32

// SafeValue implements redact.SafeValue.
func (IndexID) SafeValue() {}

// RowIDSize is the encoded size of a RowID.
const RowIDSize = 8

// RowID locates a row in the table heap: the heap page holding the row and
// the slot within that page.
type RowID struct {
	PageID PageID
	Slot   uint32
}

// String implements fmt.Stringer.
func (r RowID) String() string {
	return redact.StringWithoutMarkers(r)
}

// SafeFormat implements redact.SafeFormatter.
func (r RowID) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%d/%d", redact.SafeInt(r.PageID), redact.SafeUint(r.Slot))
}

// Encode writes the RowID to buf, which must be at least RowIDSize bytes.
func (r RowID) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.PageID))
	binary.LittleEndian.PutUint32(buf[4:8], r.Slot)
}

// DecodeRowID decodes a RowID written by RowID.Encode.
func DecodeRowID(buf []byte) RowID {
	return RowID{
		PageID: PageID(int32(binary.LittleEndian.Uint32(buf[0:4]))),
		Slot:   binary.LittleEndian.Uint32(buf[4:8]),
	}
}
