// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"github.com/cockroachdb/bptree"
	"github.com/cockroachdb/bptree/bufferpool"
	"github.com/cockroachdb/bptree/keyschema"
	"github.com/cockroachdb/bptree/pagefile"
	"github.com/cockroachdb/errors"
)

// indexFile is an open page file together with the buffer pool caching it.
type indexFile struct {
	file *pagefile.File
	pool *bufferpool.Pool
}

// openIndexFile opens an existing index file.
func openIndexFile(path string) (*indexFile, error) {
	if _, err := fs.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return createIndexFile(path, nil)
}

// createIndexFile opens path, creating it if it does not exist.
func createIndexFile(path string, opts *pagefile.Options) (*indexFile, error) {
	o := pagefile.Options{}
	if opts != nil {
		o = *opts
	}
	o.FS = fs
	o.Logger = bptree.DefaultLogger{}
	file, err := pagefile.Open(path, &o)
	if err != nil {
		return nil, err
	}
	pool := bufferpool.New(file, &bufferpool.Options{Frames: frames})
	return &indexFile{file: file, pool: pool}, nil
}

// openTree opens index id, whose keys follow the given schema.
func (f *indexFile) openTree(id uint32, schema string, opts *bptree.Options) (*bptree.BPlusTree, error) {
	s, err := keyschema.Parse(schema)
	if err != nil {
		return nil, err
	}
	o := bptree.Options{}
	if opts != nil {
		o = *opts
	}
	o.Comparer = s.Comparer()
	o.Verbose = verbose
	return bptree.Open(bptree.IndexID(id), f.pool, &o)
}

func (f *indexFile) Close() error {
	err := f.pool.Close()
	if err == nil {
		err = f.file.Sync()
	}
	return errors.CombineErrors(err, f.file.Close())
}
