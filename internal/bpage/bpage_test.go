// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bpage

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/stretchr/testify/require"
)

const testKeySize = 8

func key(k uint64) []byte {
	var buf [testKeySize]byte
	binary.BigEndian.PutUint64(buf[:], k)
	return buf[:]
}

func keyValue(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func newLeaf(t *testing.T, id base.PageID, maxSize int, keys ...uint64) Leaf {
	l := AsLeaf(make([]byte, base.PageSize))
	l.Init(id, base.InvalidPageID, testKeySize, maxSize)
	for _, k := range keys {
		l.Insert(key(k), base.RowID{PageID: base.PageID(k)}, bytes.Compare)
	}
	require.Equal(t, len(keys), l.Size())
	return l
}

func leafKeys(l Leaf) []uint64 {
	var keys []uint64
	for i := 0; i < l.Size(); i++ {
		keys = append(keys, keyValue(l.KeyAt(i)))
	}
	return keys
}

func TestCapacity(t *testing.T) {
	require.Equal(t, 254, LeafCapacity(8))
	require.Equal(t, 339, InternalCapacity(8))
	require.Equal(t, 253, DefaultLeafMaxSize(8))
	require.Equal(t, 338, DefaultInternalMaxSize(8))
}

func TestHeader(t *testing.T) {
	l := newLeaf(t, 7, 4)
	require.Equal(t, KindLeaf, KindOf(l.Header))
	require.True(t, l.IsLeaf())
	require.True(t, l.IsRoot())
	require.Equal(t, base.PageID(7), l.PageID())
	require.Equal(t, base.InvalidPageID, l.NextPageID())
	require.Equal(t, 4, l.MaxSize())
	require.Equal(t, 2, l.MinSize())
	require.Equal(t, testKeySize, l.KeySize())

	l.SetParentID(3)
	require.False(t, l.IsRoot())
	require.Equal(t, base.PageID(3), l.ParentID())

	n := AsInternal(make([]byte, base.PageSize))
	n.Init(9, 3, testKeySize, 5)
	require.Equal(t, KindInternal, n.Kind())
	require.False(t, n.IsLeaf())
	require.Equal(t, 3, n.MinSize())
	require.Equal(t, KindInvalid, KindOf(make([]byte, base.PageSize)))
}

func TestLeafInsertLookup(t *testing.T) {
	l := newLeaf(t, 1, 4, 3, 1, 4, 2)
	require.Equal(t, []uint64{1, 2, 3, 4}, leafKeys(l))

	v, ok := l.Lookup(key(3), bytes.Compare)
	require.True(t, ok)
	require.Equal(t, base.RowID{PageID: 3}, v)
	_, ok = l.Lookup(key(5), bytes.Compare)
	require.False(t, ok)

	require.Equal(t, 0, l.KeyIndex(key(0), bytes.Compare))
	require.Equal(t, 2, l.KeyIndex(key(3), bytes.Compare))
	require.Equal(t, 4, l.KeyIndex(key(9), bytes.Compare))

	// A leaf may hold one entry beyond its max size until it is split.
	require.Equal(t, 5, l.Insert(key(5), base.RowID{PageID: 5}, bytes.Compare))
}

func TestLeafRemove(t *testing.T) {
	l := newLeaf(t, 1, 4, 1, 2, 3)
	require.Equal(t, 3, l.RemoveAndDeleteRecord(key(9), bytes.Compare))
	require.Equal(t, 2, l.RemoveAndDeleteRecord(key(2), bytes.Compare))
	require.Equal(t, []uint64{1, 3}, leafKeys(l))
	require.Equal(t, base.RowID{PageID: 3}, l.ValueAt(1))
}

func TestLeafMoves(t *testing.T) {
	left := newLeaf(t, 1, 4, 1, 2, 3, 4, 5)
	right := newLeaf(t, 2, 4)
	left.MoveHalfTo(right)
	require.Equal(t, []uint64{1, 2}, leafKeys(left))
	require.Equal(t, []uint64{3, 4, 5}, leafKeys(right))
	require.Equal(t, base.RowID{PageID: 5}, right.ValueAt(2))

	right.MoveFirstToEndOf(left)
	require.Equal(t, []uint64{1, 2, 3}, leafKeys(left))
	require.Equal(t, []uint64{4, 5}, leafKeys(right))

	left.MoveLastToFrontOf(right)
	require.Equal(t, []uint64{1, 2}, leafKeys(left))
	require.Equal(t, []uint64{3, 4, 5}, leafKeys(right))

	right.SetNextPageID(8)
	right.MoveAllTo(left)
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, leafKeys(left))
	require.Equal(t, 0, right.Size())
	require.Equal(t, base.PageID(8), left.NextPageID())

	if invariants.Enabled {
		require.Panics(t, func() { right.MoveLastToFrontOf(left) })
	}
}

func newInternal(id base.PageID, maxSize int, first base.PageID, rest ...uint64) Internal {
	n := AsInternal(make([]byte, base.PageSize))
	n.Init(id, base.InvalidPageID, testKeySize, maxSize)
	n.setSize(1)
	n.SetValueAt(0, first)
	for i := 0; i < len(rest); i += 2 {
		n.InsertNodeAfter(n.ValueAt(n.Size()-1), key(rest[i]), base.PageID(rest[i+1]))
	}
	return n
}

type internalEntry struct {
	key   uint64
	child base.PageID
}

func internalEntries(n Internal) []internalEntry {
	var es []internalEntry
	for i := 0; i < n.Size(); i++ {
		var k uint64
		if i > 0 {
			k = keyValue(n.KeyAt(i))
		}
		es = append(es, internalEntry{key: k, child: n.ValueAt(i)})
	}
	return es
}

func TestInternalLookup(t *testing.T) {
	n := newInternal(1, 4, 10, 5, 11, 9, 12)
	for _, tc := range []struct {
		key  uint64
		want base.PageID
	}{
		{0, 10}, {4, 10}, {5, 11}, {8, 11}, {9, 12}, {100, 12},
	} {
		require.Equal(t, tc.want, n.Lookup(key(tc.key), bytes.Compare), "key %d", tc.key)
	}
	require.Equal(t, 1, n.ValueIndex(11))
	require.Equal(t, -1, n.ValueIndex(13))
}

func TestInternalPopulateAndInsert(t *testing.T) {
	n := AsInternal(make([]byte, base.PageSize))
	n.Init(3, base.InvalidPageID, testKeySize, 4)
	n.PopulateNewRoot(1, key(3), 2)
	require.Equal(t, []internalEntry{{0, 1}, {3, 2}}, internalEntries(n))

	require.Equal(t, 3, n.InsertNodeAfter(1, key(2), 4))
	require.Equal(t, []internalEntry{{0, 1}, {2, 4}, {3, 2}}, internalEntries(n))

	n.Remove(1)
	require.Equal(t, []internalEntry{{0, 1}, {3, 2}}, internalEntries(n))
	n.Remove(1)
	require.Equal(t, base.PageID(1), n.RemoveAndReturnOnlyChild())
	require.Equal(t, 0, n.Size())
}

func TestInternalMoves(t *testing.T) {
	left := newInternal(1, 4, 10, 3, 11, 5, 12, 7, 13, 9, 14)
	right := AsInternal(make([]byte, base.PageSize))
	right.Init(2, base.InvalidPageID, testKeySize, 4)

	moved := left.MoveHalfTo(right)
	require.Equal(t, []base.PageID{12, 13, 14}, moved)
	require.Equal(t, []internalEntry{{0, 10}, {3, 11}}, internalEntries(left))
	require.Equal(t, uint64(5), keyValue(right.KeyAt(0)))
	require.Equal(t, []internalEntry{{0, 12}, {7, 13}, {9, 14}}, internalEntries(right))

	// Separator between left and right in the parent is 5.
	child := right.MoveFirstToEndOf(left, key(5))
	require.Equal(t, base.PageID(12), child)
	require.Equal(t, []internalEntry{{0, 10}, {3, 11}, {5, 12}}, internalEntries(left))
	require.Equal(t, uint64(7), keyValue(right.KeyAt(0)))
	require.Equal(t, []internalEntry{{0, 13}, {9, 14}}, internalEntries(right))

	// Separator is now 7.
	child = left.MoveLastToFrontOf(right, key(7))
	require.Equal(t, base.PageID(12), child)
	require.Equal(t, uint64(5), keyValue(right.KeyAt(0)))
	require.Equal(t, []internalEntry{{0, 10}, {3, 11}}, internalEntries(left))
	require.Equal(t, []internalEntry{{0, 12}, {7, 13}, {9, 14}}, internalEntries(right))

	// Separator is now 5.
	moved = right.MoveAllTo(left, key(5))
	require.Equal(t, []base.PageID{12, 13, 14}, moved)
	require.Equal(t, 0, right.Size())
	require.Equal(t, []internalEntry{{0, 10}, {3, 11}, {5, 12}, {7, 13}, {9, 14}}, internalEntries(left))
}

func TestInitRejectsOversizedMax(t *testing.T) {
	require.Panics(t, func() {
		AsLeaf(make([]byte, base.PageSize)).Init(1, base.InvalidPageID, testKeySize, LeafCapacity(testKeySize))
	})
	require.Panics(t, func() {
		AsInternal(make([]byte, base.PageSize)).Init(1, base.InvalidPageID, testKeySize, InternalCapacity(testKeySize))
	})
}
