// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatency = 10 * time.Nanosecond
	maxLatency = 10 * time.Second
)

func clampLatency(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 2)
}

// namedHistogram records the latencies of one kind of operation.
type namedHistogram struct {
	name    string
	hist    *hdrhistogram.Histogram
	elapsed time.Duration
}

func newNamedHistogram(name string) *namedHistogram {
	return &namedHistogram{name: name, hist: newHistogram()}
}

func (w *namedHistogram) Record(elapsed time.Duration) {
	w.elapsed += elapsed
	if err := w.hist.RecordValue(clampLatency(elapsed, minLatency, maxLatency).Nanoseconds()); err != nil {
		// Values are clamped to the histogram's range, so recording cannot
		// fail.
		panic(fmt.Sprintf(`%s: recording value: %s`, w.name, err))
	}
}

// row returns the summary of the histogram as a table row.
func (w *namedHistogram) row() []string {
	h := w.hist
	opsPerSec := 0.0
	if w.elapsed > 0 {
		opsPerSec = float64(h.TotalCount()) / w.elapsed.Seconds()
	}
	quantile := func(q float64) string {
		return time.Duration(h.ValueAtQuantile(q)).String()
	}
	return []string{
		w.name,
		fmt.Sprintf("%d", h.TotalCount()),
		fmt.Sprintf("%.0f", opsPerSec),
		time.Duration(h.Mean()).String(),
		quantile(50),
		quantile(95),
		quantile(99),
		time.Duration(h.Max()).String(),
	}
}

var histogramHeader = []string{"op", "ops", "ops/sec", "avg", "p50", "p95", "p99", "max"}
