// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/bptree/bufferpool"
	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/bptree/internal/indexroots"
	"github.com/cockroachdb/bptree/internal/invariants"
	"github.com/cockroachdb/bptree/keyschema"
	"github.com/cockroachdb/bptree/pagefile"
	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"
)

var int64Keys = keyschema.MustParse("int64")

type testEnv struct {
	fs   vfs.FS
	file *pagefile.File
	pool *bufferpool.Pool
	tree *BPlusTree
}

type testEnvOptions struct {
	leafMax     int
	internalMax int
	frames      int
}

func newTestEnv(t testing.TB, o testEnvOptions) *testEnv {
	fs := vfs.NewMem()
	file, err := pagefile.Open("index", &pagefile.Options{FS: fs, Logger: base.NoopLogger{}})
	require.NoError(t, err)
	if o.frames == 0 {
		o.frames = 64
	}
	pool := bufferpool.New(file, &bufferpool.Options{Frames: o.frames, Logger: base.NoopLogger{}})
	tree, err := Open(1, pool, &Options{
		Comparer:        int64Keys.Comparer(),
		LeafMaxSize:     o.leafMax,
		InternalMaxSize: o.internalMax,
		Logger:          base.NoopLogger{},
	})
	require.NoError(t, err)
	return &testEnv{fs: fs, file: file, pool: pool, tree: tree}
}

func (e *testEnv) close(t testing.TB) {
	require.NoError(t, e.pool.Close())
	require.NoError(t, e.file.Close())
}

func key(k int64) []byte {
	b, err := int64Keys.Encode(nil, k)
	if err != nil {
		panic(err)
	}
	return b
}

func keyValue(b []byte) int64 {
	vals, err := int64Keys.Decode(b)
	if err != nil {
		panic(err)
	}
	return vals[0].(int64)
}

func rowID(k int64) RowID {
	return RowID{PageID: PageID(k), Slot: uint32(k % 7)}
}

// scan returns the keys visited by it, closing it.
func scan(t testing.TB, it *Iterator) []int64 {
	var keys []int64
	for ; it.Valid(); it.Next() {
		keys = append(keys, keyValue(it.Key()))
	}
	require.NoError(t, it.Close())
	return keys
}

func TestTree(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var env *testEnv
	defer func() {
		if env != nil {
			env.close(t)
		}
	}()

	parseKeys := func(td *datadriven.TestData) []int64 {
		var keys []int64
		for _, arg := range td.CmdArgs {
			k, err := strconv.ParseInt(arg.Key, 10, 64)
			if err != nil {
				td.Fatalf(t, "bad key %q: %v", arg.Key, err)
			}
			keys = append(keys, k)
		}
		return keys
	}

	datadriven.RunTest(t, "testdata/tree", func(t *testing.T, td *datadriven.TestData) string {
		if td.Cmd != "open" && env == nil {
			td.Fatalf(t, "%s before open", td.Cmd)
		}
		out := func() string {
			switch td.Cmd {
			case "open":
				if env != nil {
					env.close(t)
				}
				var o testEnvOptions
				td.MaybeScanArgs(t, "leaf-max", &o.leafMax)
				td.MaybeScanArgs(t, "internal-max", &o.internalMax)
				td.MaybeScanArgs(t, "frames", &o.frames)
				env = newTestEnv(t, o)
				return ""

			case "insert":
				var buf strings.Builder
				for _, k := range parseKeys(td) {
					if err := env.tree.Insert(key(k), rowID(k), nil); err != nil {
						fmt.Fprintf(&buf, "%d: %v\n", k, err)
					}
				}
				return buf.String()

			case "remove":
				var buf strings.Builder
				for _, k := range parseKeys(td) {
					if err := env.tree.Remove(key(k), nil); err != nil {
						fmt.Fprintf(&buf, "%d: %v\n", k, err)
					}
				}
				return buf.String()

			case "get":
				var buf strings.Builder
				for _, k := range parseKeys(td) {
					v, ok, err := env.tree.GetValue(key(k), nil)
					switch {
					case err != nil:
						fmt.Fprintf(&buf, "%d: %v\n", k, err)
					case !ok:
						fmt.Fprintf(&buf, "%d: not found\n", k)
					default:
						fmt.Fprintf(&buf, "%d: %s\n", k, v)
					}
				}
				return buf.String()

			case "print":
				return env.tree.String()

			case "iter":
				var it *Iterator
				if td.HasArg("from") {
					var from int64
					td.ScanArgs(t, "from", &from)
					it = env.tree.BeginAt(key(from))
				} else {
					it = env.tree.Begin()
				}
				keys := scan(t, it)
				if len(keys) == 0 {
					return "(none)\n"
				}
				strs := make([]string, len(keys))
				for i, k := range keys {
					strs[i] = strconv.FormatInt(k, 10)
				}
				return strings.Join(strs, " ") + "\n"

			case "height":
				h, err := env.tree.Height()
				if err != nil {
					return err.Error() + "\n"
				}
				return fmt.Sprintf("%d\n", h)

			case "check":
				if err := env.tree.Verify(); err != nil {
					return err.Error() + "\n"
				}
				return "ok\n"

			default:
				td.Fatalf(t, "unknown command %q", td.Cmd)
				return ""
			}
		}()
		require.True(t, env.tree.Check(), "pages left pinned by %s", td.Cmd)
		return out
	})
}

func TestDefaultMaxSizes(t *testing.T) {
	opts := (&Options{}).EnsureDefaults()
	require.NoError(t, opts.Validate())
	require.Equal(t, DefaultKeySize, opts.Comparer.KeySize)
	require.Equal(t, 253, opts.LeafMaxSize)
	require.Equal(t, 338, opts.InternalMaxSize)

	opts = (&Options{Comparer: keyschema.MustParse("int64,char(24)").Comparer()}).EnsureDefaults()
	require.Equal(t, (PageSize-28)/(32+8)-1, opts.LeafMaxSize)
	require.Equal(t, (PageSize-24)/(32+4)-1, opts.InternalMaxSize)
}

func TestOptionsValidate(t *testing.T) {
	for _, o := range []*Options{
		{LeafMaxSize: 1},
		{InternalMaxSize: 2},
		{LeafMaxSize: 254},
		{InternalMaxSize: 339},
		{Comparer: base.BytewiseComparer(3000)},
	} {
		require.Error(t, o.EnsureDefaults().Validate(), "%+v", o)
	}
}

func TestWorkedExample(t *testing.T) {
	defer leaktest.AfterTest(t)()
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)
	tr := env.tree

	for k := int64(1); k <= 4; k++ {
		require.NoError(t, tr.Insert(key(k), rowID(k), nil))
	}
	h, err := tr.Height()
	require.NoError(t, err)
	require.Equal(t, 1, h)

	require.NoError(t, tr.Insert(key(5), rowID(5), nil))
	require.Equal(t, "internal 3: <1> 3 <2>\n"+
		"  leaf 1 (parent 3, next 2): 1 2\n"+
		"  leaf 2 (parent 3): 3 4 5\n", tr.String())
	require.Equal(t, PageID(3), tr.RootPageID())
	require.NoError(t, tr.Verify())
	require.True(t, tr.Check())
}

func TestDuplicateKey(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)
	require.NoError(t, env.tree.Insert(key(1), rowID(1), nil))
	before := env.tree.String()
	err := env.tree.Insert(key(1), rowID(2), nil)
	require.True(t, errors.Is(err, ErrDuplicateKey), "%v", err)
	require.Equal(t, before, env.tree.String())
	v, ok, err := env.tree.GetValue(key(1), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rowID(1), v)
	require.True(t, env.tree.Check())
}

func TestRemoveAbsentKey(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)

	// An empty tree ignores removals.
	require.NoError(t, env.tree.Remove(key(1), nil))

	for k := int64(1); k <= 9; k++ {
		require.NoError(t, env.tree.Insert(key(k), rowID(k), nil))
	}
	before := env.tree.String()
	err := env.tree.Remove(key(42), nil)
	require.Error(t, err)
	require.True(t, errors.IsAssertionFailure(err), "%v", err)
	require.Equal(t, before, env.tree.String())
	require.True(t, env.tree.Check())
	require.NoError(t, env.tree.Verify())
}

func TestKeySize(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	defer env.close(t)
	require.Error(t, env.tree.Insert([]byte("short"), RowID{}, nil))
	_, _, err := env.tree.GetValue([]byte("short"), nil)
	require.Error(t, err)
	require.Error(t, env.tree.Remove([]byte("short"), nil))
	it := env.tree.BeginAt([]byte("short"))
	require.False(t, it.Valid())
	require.Error(t, it.Close())
}

func TestEmptyTree(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{})
	defer env.close(t)
	tr := env.tree
	require.True(t, tr.IsEmpty())
	require.Equal(t, InvalidPageID, tr.RootPageID())
	_, ok, err := tr.GetValue(key(1), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, tr.Begin().Equal(tr.End()))
	require.False(t, tr.Begin().Valid())
	require.Equal(t, "(empty)\n", tr.String())
	h, err := tr.Height()
	require.NoError(t, err)
	require.Zero(t, h)
	require.NoError(t, tr.Verify())
}

func TestIterator(t *testing.T) {
	defer leaktest.AfterTest(t)()
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)
	tr := env.tree

	var want []int64
	for k := int64(2); k <= 100; k += 2 {
		require.NoError(t, tr.Insert(key(k), rowID(k), nil))
		want = append(want, k)
	}
	require.Equal(t, want, scan(t, tr.Begin()))
	require.Equal(t, want[10:], scan(t, tr.BeginAt(key(21))))
	require.Equal(t, want[10:], scan(t, tr.BeginAt(key(22))))
	require.Equal(t, want, scan(t, tr.BeginAt(key(-5))))
	require.Empty(t, scan(t, tr.BeginAt(key(101))))

	it := tr.BeginAt(key(101))
	require.True(t, it.Equal(tr.End()))
	require.NoError(t, it.Close())

	it = tr.Begin()
	end := tr.End()
	n := 0
	for ; !it.Equal(end); it.Next() {
		require.True(t, it.Valid())
		require.Equal(t, rowID(keyValue(it.Key())), it.Value())
		n++
	}
	require.Equal(t, len(want), n)
	require.False(t, it.Next())
	require.Nil(t, it.Key())
	require.NoError(t, it.Close())
	require.NoError(t, end.Close())
	require.True(t, tr.Check())
}

func TestIteratorClosed(t *testing.T) {
	defer leaktest.AfterTest(t)()
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)
	tr := env.tree
	for k := int64(1); k <= 10; k++ {
		require.NoError(t, tr.Insert(key(k), rowID(k), nil))
	}

	it := tr.Begin()
	require.True(t, it.Valid())
	require.NoError(t, it.Close())
	require.False(t, it.Valid())
	if invariants.Enabled {
		require.Panics(t, func() { it.Next() })
		require.Panics(t, func() { it.Key() })
		require.Panics(t, func() { it.Value() })
	} else {
		require.False(t, it.Next())
		require.Nil(t, it.Key())
		require.Zero(t, it.Value())
	}
	require.True(t, tr.Check())
}

// TestSortedAndReverse inserts and removes keys in ascending and descending
// order, verifying the tree after every step.
func TestSortedAndReverse(t *testing.T) {
	const n = 300
	for _, tc := range []struct {
		name    string
		insert  func(i int) int64
		remove  func(i int) int64
		leafMax int
		intMax  int
	}{
		{"asc-asc", func(i int) int64 { return int64(i) }, func(i int) int64 { return int64(i) }, 4, 4},
		{"asc-desc", func(i int) int64 { return int64(i) }, func(i int) int64 { return int64(n - 1 - i) }, 5, 3},
		{"desc-asc", func(i int) int64 { return int64(n - 1 - i) }, func(i int) int64 { return int64(i) }, 3, 5},
		{"desc-desc", func(i int) int64 { return int64(n - 1 - i) }, func(i int) int64 { return int64(n - 1 - i) }, 2, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, testEnvOptions{leafMax: tc.leafMax, internalMax: tc.intMax})
			defer env.close(t)
			tr := env.tree
			for i := 0; i < n; i++ {
				require.NoError(t, tr.Insert(key(tc.insert(i)), rowID(tc.insert(i)), nil))
				require.NoError(t, tr.Verify())
			}
			for i := 0; i < n; i++ {
				k := tc.remove(i)
				require.NoError(t, tr.Remove(key(k), nil))
				require.NoError(t, tr.Verify())
				_, ok, err := tr.GetValue(key(k), nil)
				require.NoError(t, err)
				require.False(t, ok)
			}
			require.True(t, tr.IsEmpty())
			require.True(t, tr.Check())
			// Only the index roots directory remains allocated.
			require.Equal(t, env.file.NumPages()-1, env.file.NumFree())
		})
	}
}

func TestOutOfMemory(t *testing.T) {
	// With three frames the leaf being split stays pinned next to at most two
	// reserved pages.
	env := newTestEnv(t, testEnvOptions{leafMax: 3, internalMax: 3, frames: 3})
	defer env.close(t)
	tr := env.tree

	// Splitting the root leaf reserves a sibling and a new root.
	for k := int64(1); k <= 7; k++ {
		require.NoError(t, tr.Insert(key(k), rowID(k), nil))
	}
	require.Equal(t, "internal 3: <1> 3 <2> 5 <4>\n"+
		"  leaf 1 (parent 3, next 2): 1 2\n"+
		"  leaf 2 (parent 3, next 4): 3 4\n"+
		"  leaf 4 (parent 3): 5 6 7\n", tr.String())

	// Splitting the rightmost leaf overflows the full root: a leaf sibling,
	// an internal sibling and a new root do not fit.
	before := tr.String()
	pagesBefore := env.file.NumPages() - env.file.NumFree()
	err := tr.Insert(key(8), rowID(8), nil)
	require.True(t, errors.Is(err, ErrOutOfMemory), "%v", err)
	require.Equal(t, before, tr.String())
	require.Equal(t, pagesBefore, env.file.NumPages()-env.file.NumFree())
	require.True(t, tr.Check())
	require.NoError(t, tr.Verify())
	_, ok, err := tr.GetValue(key(8), nil)
	require.NoError(t, err)
	require.False(t, ok)

	// Inserts that need no new page still succeed.
	require.NoError(t, tr.Remove(key(7), nil))
	require.NoError(t, tr.Insert(key(8), rowID(8), nil))
	require.NoError(t, tr.Verify())
}

func TestDirectoryFull(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)
	opts := &Options{Comparer: int64Keys.Comparer(), LeafMaxSize: 4, InternalMaxSize: 4, Logger: base.NoopLogger{}}

	// The test env registered nothing yet; fill every directory slot.
	for id := IndexID(1); id <= indexroots.MaxEntries; id++ {
		tr, err := Open(id, env.pool, opts)
		require.NoError(t, err)
		require.NoError(t, tr.Insert(key(int64(id)), rowID(int64(id)), nil))
	}
	ids, err := Indexes(env.pool)
	require.NoError(t, err)
	require.Len(t, ids, indexroots.MaxEntries)

	tr, err := Open(100000, env.pool, opts)
	require.NoError(t, err)
	pagesBefore := env.file.NumPages() - env.file.NumFree()
	err = tr.Insert(key(7), rowID(7), nil)
	require.True(t, errors.Is(err, ErrDirectoryFull), "%v", err)
	require.True(t, tr.IsEmpty())
	require.Equal(t, InvalidPageID, tr.RootPageID())
	_, ok, err := tr.GetValue(key(7), nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, pagesBefore, env.file.NumPages()-env.file.NumFree())
	require.NoError(t, tr.Verify())
	require.True(t, tr.Check())

	// Destroying an index frees a slot.
	victim, err := Open(1, env.pool, opts)
	require.NoError(t, err)
	require.NoError(t, victim.Destroy())
	require.NoError(t, tr.Insert(key(7), rowID(7), nil))
	require.NoError(t, tr.Verify())
	v, ok, err := tr.GetValue(key(7), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rowID(7), v)
}

func TestReopen(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	for k := int64(0); k < 50; k++ {
		require.NoError(t, env.tree.Insert(key(k), rowID(k), nil))
	}
	root := env.tree.RootPageID()
	dump := env.tree.String()

	// A second index shares the buffer pool and the directory.
	other, err := Open(2, env.pool, &Options{
		Comparer:        int64Keys.Comparer(),
		LeafMaxSize:     4,
		InternalMaxSize: 4,
		Logger:          base.NoopLogger{},
	})
	require.NoError(t, err)
	require.True(t, other.IsEmpty())
	require.NoError(t, other.Insert(key(7), rowID(7), nil))
	env.close(t)

	file, err := pagefile.Open("index", &pagefile.Options{FS: env.fs, Logger: base.NoopLogger{}})
	require.NoError(t, err)
	pool := bufferpool.New(file, &bufferpool.Options{Frames: 16, Logger: base.NoopLogger{}})
	defer func() {
		require.NoError(t, pool.Close())
		require.NoError(t, file.Close())
	}()
	opts := &Options{Comparer: int64Keys.Comparer(), LeafMaxSize: 4, InternalMaxSize: 4, Logger: base.NoopLogger{}}
	tr, err := Open(1, pool, opts)
	require.NoError(t, err)
	require.Equal(t, root, tr.RootPageID())
	require.Equal(t, dump, tr.String())
	require.NoError(t, tr.Verify())

	other, err = Open(2, pool, opts)
	require.NoError(t, err)
	v, ok, err := other.GetValue(key(7), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rowID(7), v)

	ids, err := Indexes(pool)
	require.NoError(t, err)
	require.Equal(t, []IndexID{1, 2}, ids)

	require.NoError(t, tr.Destroy())
	require.True(t, tr.IsEmpty())
	require.NoError(t, tr.Verify())
	tr, err = Open(1, pool, opts)
	require.NoError(t, err)
	require.True(t, tr.IsEmpty())
	require.NoError(t, other.Verify())
	ids, err = Indexes(pool)
	require.NoError(t, err)
	require.Equal(t, []IndexID{2}, ids)
	require.True(t, pool.CheckAllUnpinned())
}

func TestCorruptDirectory(t *testing.T) {
	fs := vfs.NewMem()
	file, err := pagefile.Open("index", &pagefile.Options{FS: fs, Logger: base.NoopLogger{}})
	require.NoError(t, err)
	defer func() { require.NoError(t, file.Close()) }()
	_, err = file.AllocatePage()
	require.NoError(t, err)
	require.NoError(t, file.WritePage(0, bytes.Repeat([]byte{0xaa}, PageSize)))

	pool := bufferpool.New(file, &bufferpool.Options{Frames: 4, Logger: base.NoopLogger{}})
	defer func() { require.NoError(t, pool.Close()) }()
	_, err = Open(1, pool, &Options{Logger: base.NoopLogger{}})
	require.True(t, errors.Is(err, ErrCorruption), "%v", err)
	require.True(t, pool.CheckAllUnpinned())
}

func TestWriteDot(t *testing.T) {
	env := newTestEnv(t, testEnvOptions{leafMax: 4, internalMax: 4})
	defer env.close(t)
	var buf bytes.Buffer
	require.NoError(t, env.tree.WriteDot(&buf))
	require.Equal(t, "digraph G {\n  node [shape=record];\n}\n", buf.String())

	for k := int64(1); k <= 5; k++ {
		require.NoError(t, env.tree.Insert(key(k), rowID(k), nil))
	}
	buf.Reset()
	require.NoError(t, env.tree.WriteDot(&buf))
	require.Equal(t, `digraph G {
  node [shape=record];
  page3 [label="{internal 3|3}"];
  page3 -> page1;
  page1 -> page2 [style=dashed];
  page1 [label="{leaf 1|1 2}"];
  page3 -> page2;
  page2 [label="{leaf 2|3 4 5}"];
}
`, buf.String())
	require.True(t, env.tree.Check())
}
