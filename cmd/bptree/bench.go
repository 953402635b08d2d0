// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/bptree"
	"github.com/cockroachdb/bptree/keyschema"
	"github.com/cockroachdb/bptree/pagefile"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
)

var benchConfig struct {
	keys        int
	leafMax     int
	internalMax int
	seed        int64
	sequential  bool
	path        string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "run an insert/get/scan/remove workload",
	Long: `
Create an index of int64 keys and run four phases against it: insert every
key, look every key up, scan the index from its first key and remove every
key. Per-operation latencies, buffer pool metrics and page file statistics
are printed once the workload completes.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.OutOrStdout())
	},
}

var benchKeys = keyschema.MustParse("int64")

func newLatencyHistogram(name string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bptree",
		Subsystem: "pagefile",
		Name:      name,
		Help:      "Latency of page file operations in nanoseconds.",
		Buckets:   prometheus.ExponentialBuckets(1000, 2, 20),
	})
}

func runBench(w io.Writer) (err error) {
	cfg := benchConfig
	path := cfg.path
	if path == "" {
		defer func(prev vfs.FS) { fs = prev }(fs)
		fs = vfs.NewMem()
		path = "bench.idx"
	} else if err := fs.Remove(path); err != nil && !oserror.IsNotExist(err) {
		return err
	}

	readLatency := newLatencyHistogram("read_latency_ns")
	writeLatency := newLatencyHistogram("write_latency_ns")
	f, err := createIndexFile(path, &pagefile.Options{
		ReadLatency:  readLatency,
		WriteLatency: writeLatency,
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.CombineErrors(err, f.Close()) }()

	t, err := bptree.Open(1, f.pool, &bptree.Options{
		Comparer:        benchKeys.Comparer(),
		LeafMaxSize:     cfg.leafMax,
		InternalMaxSize: cfg.internalMax,
		Verbose:         verbose,
	})
	if err != nil {
		return err
	}

	keys := make([]int64, cfg.keys)
	for i := range keys {
		keys[i] = int64(i)
	}
	rng := rand.New(rand.NewPCG(uint64(cfg.seed), 0))
	shuffle := func() {
		if !cfg.sequential {
			rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		}
	}
	key := func(k int64) []byte {
		b, err := benchKeys.Encode(nil, k)
		if err != nil {
			panic(err)
		}
		return b
	}
	rowID := func(k int64) bptree.RowID {
		return bptree.RowID{PageID: bptree.PageID(k >> 8), Slot: uint32(k & 0xff)}
	}

	var phases []*namedHistogram
	phase := func(name string, fn func(h *namedHistogram) error) error {
		h := newNamedHistogram(name)
		phases = append(phases, h)
		return fn(h)
	}

	shuffle()
	if err := phase("insert", func(h *namedHistogram) error {
		for _, k := range keys {
			start := crtime.NowMono()
			if err := t.Insert(key(k), rowID(k), nil); err != nil {
				return errors.Wrapf(err, "inserting %d", k)
			}
			h.Record(start.Elapsed())
		}
		return nil
	}); err != nil {
		return err
	}
	height, err := t.Height()
	if err != nil {
		return err
	}

	shuffle()
	if err := phase("get", func(h *namedHistogram) error {
		for _, k := range keys {
			start := crtime.NowMono()
			v, ok, err := t.GetValue(key(k), nil)
			h.Record(start.Elapsed())
			if err != nil {
				return err
			}
			if !ok || v != rowID(k) {
				return errors.AssertionFailedf("get %d: found=%t value=%s", k, ok, v)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := phase("scan", func(h *namedHistogram) error {
		it := t.Begin()
		n := 0
		for it.Valid() {
			n++
			start := crtime.NowMono()
			it.Next()
			h.Record(start.Elapsed())
		}
		if err := it.Close(); err != nil {
			return err
		}
		if n != len(keys) {
			return errors.AssertionFailedf("scan visited %d keys, expected %d", n, len(keys))
		}
		return nil
	}); err != nil {
		return err
	}

	if err := t.Verify(); err != nil {
		return err
	}

	shuffle()
	if err := phase("remove", func(h *namedHistogram) error {
		for _, k := range keys {
			start := crtime.NowMono()
			if err := t.Remove(key(k), nil); err != nil {
				return errors.Wrapf(err, "removing %d", k)
			}
			h.Record(start.Elapsed())
		}
		return nil
	}); err != nil {
		return err
	}
	if !t.IsEmpty() {
		return errors.AssertionFailedf("tree not empty after removing every key")
	}
	if !t.Check() {
		return errors.AssertionFailedf("pages left pinned: %v", f.pool.PinnedPages())
	}

	fmt.Fprintf(w, "keys %d, height %d, pages %d\n\n", len(keys), height, f.file.NumPages())

	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader(histogramHeader)
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, h := range phases {
		tbl.Append(h.row())
	}
	tbl.Render()

	fmt.Fprintf(w, "\nbuffer pool: %s\n", f.pool.Metrics())
	fmt.Fprintf(w, "page file:   %s\n", f.file.Stats())
	for _, l := range []struct {
		name string
		h    prometheus.Histogram
	}{{"read", readLatency}, {"write", writeLatency}} {
		var m dto.Metric
		if err := l.h.Write(&m); err != nil {
			return err
		}
		count := m.GetHistogram().GetSampleCount()
		var mean time.Duration
		if count > 0 {
			mean = time.Duration(m.GetHistogram().GetSampleSum() / float64(count))
		}
		fmt.Fprintf(w, "page %-5s  %d ops, avg %s\n", l.name, count, mean)
	}
	return nil
}
