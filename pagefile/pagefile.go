// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package pagefile stores fixed-size pages in a single file.
//
// The file is an array of slots. Slot i holds page i followed by an 8-byte
// trailer: the xxhash64 checksum of the page, or freeSlotTrailer if the page
// has been deallocated. Deallocated pages are reused, most recently freed
// first, before the file is extended.
package pagefile

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/swiss"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	trailerSize = 8
	slotSize    = base.PageSize + trailerSize

	freeSlotTrailer = ^uint64(0)
)

// Options configure a page file.
type Options struct {
	// FS is the filesystem holding the file. Defaults to vfs.Default.
	FS vfs.FS
	// Logger defaults to base.DefaultLogger.
	Logger base.Logger
	// ReadLatency and WriteLatency, if set, observe the latency in
	// nanoseconds of every page read and write.
	ReadLatency  prometheus.Histogram
	WriteLatency prometheus.Histogram
}

// EnsureDefaults returns a copy of o with unset fields defaulted.
func (o *Options) EnsureDefaults() Options {
	var res Options
	if o != nil {
		res = *o
	}
	if res.FS == nil {
		res.FS = vfs.Default
	}
	if res.Logger == nil {
		res.Logger = base.DefaultLogger{}
	}
	return res
}

// Stats are counters of page file activity.
type Stats struct {
	Reads         int64
	Writes        int64
	Allocations   int64
	Deallocations int64
}

// SafeFormat implements redact.SafeFormatter.
func (s Stats) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("reads=%d writes=%d allocs=%d frees=%d",
		redact.SafeInt(s.Reads), redact.SafeInt(s.Writes),
		redact.SafeInt(s.Allocations), redact.SafeInt(s.Deallocations))
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return redact.StringWithoutMarkers(s)
}

// File is a file of pages. It is not safe for concurrent use.
type File struct {
	opts     Options
	name     string
	file     vfs.File
	numPages int
	// free is a stack of deallocated pages; freeSet holds the same ids.
	free    []base.PageID
	freeSet swiss.Map[base.PageID, struct{}]
	slot    [slotSize]byte
	stats   Stats
	closed  bool
}

// Open opens the page file name, creating it if it does not exist.
func Open(name string, opts *Options) (*File, error) {
	o := opts.EnsureDefaults()
	file, err := o.FS.OpenReadWrite(name)
	if err != nil {
		return nil, errors.Wrapf(err, "pagefile: opening %q", redact.Safe(name))
	}
	f := &File{opts: o, name: name, file: file}
	f.freeSet.Init(0)
	if err := f.load(); err != nil {
		f.freeSet.Close()
		return nil, errors.CombineErrors(err, file.Close())
	}
	o.Logger.Infof("pagefile: opened %s with %d pages (%d free)", name, f.numPages, len(f.free))
	return f, nil
}

func (f *File) load() error {
	info, err := f.file.Stat()
	if err != nil {
		return errors.Wrapf(err, "pagefile: stat %q", redact.Safe(f.name))
	}
	size := info.Size()
	if size%slotSize != 0 {
		return base.CorruptionErrorf("pagefile: %q has size %d, not a multiple of %d",
			redact.Safe(f.name), size, slotSize)
	}
	f.numPages = int(size / slotSize)
	var trailer [trailerSize]byte
	for i := 0; i < f.numPages; i++ {
		if _, err := f.file.ReadAt(trailer[:], int64(i)*slotSize+base.PageSize); err != nil {
			return errors.Wrapf(err, "pagefile: reading trailer of page %d", i)
		}
		if binary.LittleEndian.Uint64(trailer[:]) == freeSlotTrailer {
			f.pushFree(base.PageID(i))
		}
	}
	return nil
}

func (f *File) pushFree(id base.PageID) {
	f.free = append(f.free, id)
	f.freeSet.Put(id, struct{}{})
}

// NumPages returns the number of slots in the file, allocated or not.
func (f *File) NumPages() int {
	return f.numPages
}

// NumFree returns the number of deallocated pages awaiting reuse.
func (f *File) NumFree() int {
	return f.freeSet.Len()
}

// Stats returns the activity counters.
func (f *File) Stats() Stats {
	return f.stats
}

func (f *File) isAllocated(id base.PageID) bool {
	if !id.IsValid() || int(id) >= f.numPages {
		return false
	}
	_, free := f.freeSet.Get(id)
	return !free
}

// ReadPage reads page id into buf, which must be base.PageSize bytes. It
// returns an error marked base.ErrPageNotFound if id is not allocated and
// one marked base.ErrCorruption if the checksum does not match.
func (f *File) ReadPage(id base.PageID, buf []byte) error {
	if !f.isAllocated(id) {
		return errors.Mark(errors.Newf("pagefile: page %s is not allocated", id), base.ErrPageNotFound)
	}
	start := crtime.NowMono()
	if _, err := f.file.ReadAt(f.slot[:], int64(id)*slotSize); err != nil {
		return errors.Wrapf(err, "pagefile: reading page %s", id)
	}
	if f.opts.ReadLatency != nil {
		f.opts.ReadLatency.Observe(float64(start.Elapsed()))
	}
	f.stats.Reads++
	want := binary.LittleEndian.Uint64(f.slot[base.PageSize:])
	if got := xxhash.Sum64(f.slot[:base.PageSize]); got != want {
		f.opts.Logger.Errorf("pagefile: checksum mismatch on page %s of %s", id, f.name)
		return base.CorruptionErrorf("pagefile: page %s checksum %#016x, expected %#016x", id, got, want)
	}
	copy(buf, f.slot[:base.PageSize])
	return nil
}

// WritePage writes buf, which must be base.PageSize bytes, to page id.
func (f *File) WritePage(id base.PageID, buf []byte) error {
	if !f.isAllocated(id) {
		return errors.Mark(errors.Newf("pagefile: page %s is not allocated", id), base.ErrPageNotFound)
	}
	return f.writeSlot(id, buf, xxhash.Sum64(buf))
}

func (f *File) writeSlot(id base.PageID, buf []byte, trailer uint64) error {
	start := crtime.NowMono()
	copy(f.slot[:base.PageSize], buf)
	binary.LittleEndian.PutUint64(f.slot[base.PageSize:], trailer)
	if _, err := f.file.WriteAt(f.slot[:], int64(id)*slotSize); err != nil {
		return errors.Wrapf(err, "pagefile: writing page %s", id)
	}
	if f.opts.WriteLatency != nil {
		f.opts.WriteLatency.Observe(float64(start.Elapsed()))
	}
	f.stats.Writes++
	return nil
}

// AllocatePage returns a zeroed page, reusing the most recently deallocated
// page if there is one.
func (f *File) AllocatePage() (base.PageID, error) {
	var zero [base.PageSize]byte
	var id base.PageID
	if n := len(f.free); n > 0 {
		id = f.free[n-1]
		if err := f.writeSlot(id, zero[:], xxhash.Sum64(zero[:])); err != nil {
			return base.InvalidPageID, err
		}
		f.free = f.free[:n-1]
		f.freeSet.Delete(id)
	} else {
		id = base.PageID(f.numPages)
		if err := f.writeSlot(id, zero[:], xxhash.Sum64(zero[:])); err != nil {
			return base.InvalidPageID, err
		}
		f.numPages++
	}
	f.stats.Allocations++
	return id, nil
}

// DeallocatePage returns page id to the free list.
func (f *File) DeallocatePage(id base.PageID) error {
	if !f.isAllocated(id) {
		return errors.AssertionFailedf("pagefile: deallocating unallocated page %s", id)
	}
	var zero [base.PageSize]byte
	if err := f.writeSlot(id, zero[:], freeSlotTrailer); err != nil {
		return err
	}
	f.pushFree(id)
	f.stats.Deallocations++
	return nil
}

// Sync flushes written pages to stable storage.
func (f *File) Sync() error {
	return errors.Wrapf(f.file.Sync(), "pagefile: syncing %q", redact.Safe(f.name))
}

// Close syncs and closes the file.
func (f *File) Close() error {
	if f.closed {
		return errors.AssertionFailedf("pagefile: %q closed twice", redact.Safe(f.name))
	}
	f.closed = true
	f.freeSet.Close()
	return errors.CombineErrors(f.Sync(), f.file.Close())
}
