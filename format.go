// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package bptree

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/bptree/internal/bpage"
)

// String returns a dump of every page of the tree, one line per page,
// indented by depth. Internal pages list their children between separators:
//
//	internal 3: <1> 3 <2>
//	  leaf 1 (parent 3, next 2): 1 2
//	  leaf 2 (parent 3): 3 4 5
func (t *BPlusTree) String() string {
	var buf bytes.Buffer
	if err := t.Format(&buf); err != nil {
		fmt.Fprintf(&buf, "error: %v\n", err)
	}
	return buf.String()
}

// Format writes the dump returned by String to w.
func (t *BPlusTree) Format(w io.Writer) error {
	if t.IsEmpty() {
		_, err := fmt.Fprintln(w, "(empty)")
		return err
	}
	return t.formatNode(w, t.root, 0)
}

func (t *BPlusTree) formatKey(k []byte) fmt.Formatter {
	return t.opts.Comparer.FormatKey(k)
}

func (t *BPlusTree) formatNode(w io.Writer, id PageID, depth int) (err error) {
	p, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	defer p.releaseInto(&err)

	indent := strings.Repeat("  ", depth)
	h := p.header()
	var attrs []string
	if !h.IsRoot() {
		attrs = append(attrs, fmt.Sprintf("parent %s", h.ParentID()))
	}
	if h.IsLeaf() {
		if next := p.leaf().NextPageID(); next.IsValid() {
			attrs = append(attrs, fmt.Sprintf("next %s", next))
		}
	}
	fmt.Fprintf(w, "%s%s %s", indent, h.Kind(), id)
	if len(attrs) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(attrs, ", "))
	}
	fmt.Fprint(w, ":")

	if h.IsLeaf() {
		l := p.leaf()
		for i := 0; i < l.Size(); i++ {
			fmt.Fprintf(w, " %s", t.formatKey(l.KeyAt(i)))
		}
		_, err = fmt.Fprintln(w)
		return err
	}
	n := p.internal()
	children := make([]PageID, n.Size())
	for i := range children {
		if i > 0 {
			fmt.Fprintf(w, " %s", t.formatKey(n.KeyAt(i)))
		}
		children[i] = n.ValueAt(i)
		fmt.Fprintf(w, " <%s>", children[i])
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	for _, c := range children {
		if err := t.formatNode(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// WriteDot writes the tree in Graphviz dot format: one record per page,
// solid edges from parents to children and dashed edges along the leaf
// chain.
func (t *BPlusTree) WriteDot(w io.Writer) error {
	fmt.Fprintln(w, "digraph G {")
	fmt.Fprintln(w, "  node [shape=record];")
	if !t.IsEmpty() {
		if err := t.dotNode(w, t.root); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func (t *BPlusTree) dotNode(w io.Writer, id PageID) (err error) {
	p, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	defer p.releaseInto(&err)

	h := p.header()
	var keys []string
	var children []PageID
	if h.Kind() == bpage.KindLeaf {
		l := p.leaf()
		for i := 0; i < l.Size(); i++ {
			keys = append(keys, fmt.Sprintf("%s", t.formatKey(l.KeyAt(i))))
		}
		if next := l.NextPageID(); next.IsValid() {
			fmt.Fprintf(w, "  page%s -> page%s [style=dashed];\n", id, next)
		}
	} else {
		n := p.internal()
		for i := 0; i < n.Size(); i++ {
			if i > 0 {
				keys = append(keys, fmt.Sprintf("%s", t.formatKey(n.KeyAt(i))))
			}
			children = append(children, n.ValueAt(i))
		}
	}
	fmt.Fprintf(w, "  page%s [label=\"{%s %s|%s}\"];\n", id, h.Kind(), id, dotEscape(strings.Join(keys, " ")))
	for _, c := range children {
		fmt.Fprintf(w, "  page%s -> page%s;\n", id, c)
		if err := t.dotNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

var dotEscaper = strings.NewReplacer(`"`, `\"`, `{`, `\{`, `}`, `\}`, `|`, `\|`, `<`, `\<`, `>`, `\>`)

func dotEscape(s string) string {
	return dotEscaper.Replace(s)
}
