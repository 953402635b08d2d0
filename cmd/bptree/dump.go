// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var dumpFormat string

var dumpCmd = &cobra.Command{
	Use:   "dump <path>",
	Short: "print the pages of an index",
	Long: `
Print every page of an index, root first. The text format indents each page
under its parent; the dot format is a Graphviz digraph.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(cmd.OutOrStdout(), args[0])
	},
}

func runDump(w io.Writer, path string) (err error) {
	f, err := openIndexFile(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, f.Close()) }()

	t, err := f.openTree(indexID, keySchema, nil)
	if err != nil {
		return err
	}
	switch dumpFormat {
	case "text":
		return t.Format(w)
	case "dot":
		return t.WriteDot(w)
	default:
		return errors.Newf("unknown format %q", dumpFormat)
	}
}
