// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/bpage"
	"github.com/cockroachdb/errors"
)

// DefaultKeySize is the key size of the default comparer.
const DefaultKeySize = 8

// Options holds the optional parameters for opening a tree.
type Options struct {
	// Comparer defines the order and size of keys. The default orders
	// DefaultKeySize-byte keys bytewise.
	Comparer *Comparer

	// LeafMaxSize is the number of entries above which a leaf page is split.
	// The default is the leaf capacity of a page minus one.
	LeafMaxSize int

	// InternalMaxSize is the number of children above which an internal page
	// is split. The default is the internal capacity of a page minus one.
	InternalMaxSize int

	// Logger used to write log messages.
	//
	// The default logger uses the Go standard library log package.
	Logger Logger

	// Verbose logs every change of the root page.
	Verbose bool
}

// EnsureDefaults returns a copy of o with unset fields defaulted. A nil o
// yields the default options.
func (o *Options) EnsureDefaults() *Options {
	n := &Options{}
	if o != nil {
		*n = *o
	}
	if n.Comparer == nil {
		n.Comparer = base.BytewiseComparer(DefaultKeySize)
	}
	n.Comparer = n.Comparer.EnsureDefaults()
	if n.LeafMaxSize <= 0 && n.Comparer.KeySize > 0 {
		n.LeafMaxSize = bpage.DefaultLeafMaxSize(n.Comparer.KeySize)
	}
	if n.InternalMaxSize <= 0 && n.Comparer.KeySize > 0 {
		n.InternalMaxSize = bpage.DefaultInternalMaxSize(n.Comparer.KeySize)
	}
	if n.Logger == nil {
		n.Logger = DefaultLogger{}
	}
	return n
}

// Validate verifies that the options are mutually consistent. Call it after
// EnsureDefaults.
func (o *Options) Validate() error {
	ks := o.Comparer.KeySize
	if ks <= 0 {
		return errors.Newf("bptree: key size must be positive, got %d", ks)
	}
	if limit := bpage.DefaultLeafMaxSize(ks); o.LeafMaxSize < 2 || o.LeafMaxSize > limit {
		return errors.Newf("bptree: leaf max size %d outside [2, %d] for key size %d",
			o.LeafMaxSize, limit, ks)
	}
	if limit := bpage.DefaultInternalMaxSize(ks); o.InternalMaxSize < 3 || o.InternalMaxSize > limit {
		return errors.Newf("bptree: internal max size %d outside [3, %d] for key size %d",
			o.InternalMaxSize, limit, ks)
	}
	return nil
}
