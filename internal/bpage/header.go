// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bpage defines the on-page layout of B+ tree nodes.
//
// Every node occupies exactly one buffer pool page. The page starts with a
// common header followed by a packed array of fixed-size entries:
//
//	offset  size  field
//	0       1     kind (1 = internal, 2 = leaf)
//	4       4     size (number of entries)
//	8       4     max size
//	12      4     key size
//	16      4     page id
//	20      4     parent page id
//	24      4     next page id (leaf only)
//
// A leaf entry is a key followed by an 8-byte RowID. An internal entry is a
// key followed by a 4-byte child page id; the key of entry 0 is unused. All
// integers are little-endian.
//
// The types in this package are views over a page's bytes: they hold no state
// of their own and every mutation is written through to the page.
package bpage

import (
	"encoding/binary"

	"github.com/cockroachdb/bptree/internal/base"
)

// Kind is the type of node stored in a page.
type Kind uint8

const (
	// KindInvalid is the kind of a zeroed page.
	KindInvalid Kind = iota
	KindInternal
	KindLeaf
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return "invalid"
	}
}

const (
	kindOffset       = 0
	sizeOffset       = 4
	maxSizeOffset    = 8
	keySizeOffset    = 12
	pageIDOffset     = 16
	parentIDOffset   = 20
	nextPageIDOffset = 24

	// HeaderSize is the size of the header shared by both node kinds.
	HeaderSize = 24
	// InternalHeaderSize is the size of an internal node's header.
	InternalHeaderSize = HeaderSize
	// LeafHeaderSize is the size of a leaf node's header.
	LeafHeaderSize = HeaderSize + 4

	childIDSize = 4
)

// LeafCapacity returns the number of leaf entries with keys of keySize bytes
// that fit in a page.
func LeafCapacity(keySize int) int {
	return (base.PageSize - LeafHeaderSize) / (keySize + base.RowIDSize)
}

// InternalCapacity returns the number of internal entries with keys of
// keySize bytes that fit in a page.
func InternalCapacity(keySize int) int {
	return (base.PageSize - InternalHeaderSize) / (keySize + childIDSize)
}

// DefaultLeafMaxSize returns the largest leaf max size for keySize. One slot
// is reserved for the entry that overflows a full leaf before it is split.
func DefaultLeafMaxSize(keySize int) int {
	return LeafCapacity(keySize) - 1
}

// DefaultInternalMaxSize returns the largest internal max size for keySize.
func DefaultInternalMaxSize(keySize int) int {
	return InternalCapacity(keySize) - 1
}

// Node is the behavior common to leaf and internal nodes.
type Node interface {
	Kind() Kind
	IsLeaf() bool
	IsRoot() bool
	PageID() base.PageID
	ParentID() base.PageID
	SetParentID(id base.PageID)
	Size() int
	MaxSize() int
	MinSize() int
}

var _ Node = Header(nil)

// Header is a view of the header of a page holding a node. It is the full
// page buffer; accessors only touch the header bytes.
type Header []byte

// KindOf returns the kind of node stored in data.
func KindOf(data []byte) Kind {
	return Kind(data[kindOffset])
}

func (h Header) init(kind Kind, id, parent base.PageID, keySize, maxSize int) {
	clear(h[:HeaderSize])
	h[kindOffset] = byte(kind)
	h.setUint32(maxSizeOffset, uint32(maxSize))
	h.setUint32(keySizeOffset, uint32(keySize))
	h.setUint32(pageIDOffset, uint32(id))
	h.setUint32(parentIDOffset, uint32(parent))
}

func (h Header) uint32At(off int) uint32 {
	return binary.LittleEndian.Uint32(h[off : off+4])
}

func (h Header) setUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(h[off:off+4], v)
}

// Kind returns the node kind.
func (h Header) Kind() Kind { return KindOf(h) }

// IsLeaf returns true if the page holds a leaf node.
func (h Header) IsLeaf() bool { return h.Kind() == KindLeaf }

// IsRoot returns true if the node has no parent.
func (h Header) IsRoot() bool { return !h.ParentID().IsValid() }

// Size returns the number of entries in the node. For an internal node this
// is the number of children.
func (h Header) Size() int { return int(h.uint32At(sizeOffset)) }

func (h Header) setSize(n int) { h.setUint32(sizeOffset, uint32(n)) }

// MaxSize returns the number of entries above which the node is split.
func (h Header) MaxSize() int { return int(h.uint32At(maxSizeOffset)) }

// MinSize returns the number of entries below which a non-root node
// underflows.
func (h Header) MinSize() int { return (h.MaxSize() + 1) / 2 }

// KeySize returns the size of every key in the node.
func (h Header) KeySize() int { return int(h.uint32At(keySizeOffset)) }

// PageID returns the id of the page holding the node.
func (h Header) PageID() base.PageID {
	return base.PageID(int32(h.uint32At(pageIDOffset)))
}

// ParentID returns the id of the node's parent, or base.InvalidPageID for
// the root.
func (h Header) ParentID() base.PageID {
	return base.PageID(int32(h.uint32At(parentIDOffset)))
}

// SetParentID sets the node's parent.
func (h Header) SetParentID(id base.PageID) {
	h.setUint32(parentIDOffset, uint32(id))
}
