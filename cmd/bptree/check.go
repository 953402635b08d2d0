// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/bptree"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var checkAll bool

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "verify the structure of an index",
	Long: `
Verify the structure of an index: key order, separator bounds, parent links,
node sizes, leaf depth and the leaf chain. With --all every index registered
in the index roots directory is checked with the same key schema.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.OutOrStdout(), args[0])
	},
}

func runCheck(w io.Writer, path string) (err error) {
	f, err := openIndexFile(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, f.Close()) }()

	ids := []bptree.IndexID{bptree.IndexID(indexID)}
	if checkAll {
		if ids, err = bptree.Indexes(f.pool); err != nil {
			return err
		}
	}

	var failed int
	for _, id := range ids {
		t, err := f.openTree(uint32(id), keySchema, nil)
		if err != nil {
			return err
		}
		height, err := t.Height()
		if err == nil {
			err = t.Verify()
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "index %d: %v\n", id, err)
			continue
		}
		fmt.Fprintf(w, "index %d: ok (root %s, height %d)\n", id, t.RootPageID(), height)
	}
	if !f.pool.CheckAllUnpinned() {
		return errors.AssertionFailedf("pages left pinned: %v", f.pool.PinnedPages())
	}
	if failed > 0 {
		return errors.Newf("%d of %d indexes failed verification", failed, len(ids))
	}
	return nil
}
