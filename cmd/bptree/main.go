// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// The bptree command benchmarks and inspects B+ tree index files.
package main

import (
	"log"
	"os"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/spf13/cobra"
)

var (
	frames    int
	indexID   uint32
	keySchema string
	verbose   bool
)

// fs holds the index files. Tests substitute an in-memory filesystem.
var fs vfs.FS = vfs.Default

var rootCmd = &cobra.Command{
	Use:   "bptree [command] (flags)",
	Short: "bptree benchmarking/introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		benchCmd,
		dumpCmd,
		checkCmd,
	)

	for _, cmd := range []*cobra.Command{benchCmd, dumpCmd, checkCmd} {
		cmd.Flags().IntVarP(
			&frames, "frames", "f", 1024, "number of buffer pool frames")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "log changes of the root page")
	}
	for _, cmd := range []*cobra.Command{dumpCmd, checkCmd} {
		cmd.Flags().StringVarP(
			&keySchema, "key-schema", "k", "int64", "comma-separated key column types")
		cmd.Flags().Uint32VarP(
			&indexID, "index", "i", 1, "index id in the index roots directory")
	}

	benchCmd.Flags().IntVarP(
		&benchConfig.keys, "keys", "n", 100000, "number of keys to insert")
	benchCmd.Flags().IntVar(
		&benchConfig.leafMax, "leaf-max", 0, "leaf max size (0 means the page capacity minus one)")
	benchCmd.Flags().IntVar(
		&benchConfig.internalMax, "internal-max", 0,
		"internal max size (0 means the page capacity minus one)")
	benchCmd.Flags().Int64Var(
		&benchConfig.seed, "seed", 1, "seed for the key order")
	benchCmd.Flags().BoolVar(
		&benchConfig.sequential, "sequential", false, "insert and remove keys in ascending order")
	benchCmd.Flags().StringVar(
		&benchConfig.path, "path", "", "index file to (re)create (empty means in memory)")

	dumpCmd.Flags().StringVar(
		&dumpFormat, "format", "text", "output format: text or dot")

	checkCmd.Flags().BoolVar(
		&checkAll, "all", false, "check every index in the directory")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
