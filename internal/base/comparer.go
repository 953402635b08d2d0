// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Compare returns -1, 0, or +1 depending on whether a is 'less than', 'equal
// to' or 'greater than' b. Both a and b must be KeySize bytes long.
type Compare func(a, b []byte) int

// FormatKey returns a formatter for a key.
type FormatKey func(key []byte) fmt.Formatter

// DefaultFormatter is the default implementation of key formatting:
// non-ASCII data is formatted as escaped hexadecimal values.
var DefaultFormatter FormatKey = func(key []byte) fmt.Formatter {
	return FormatBytes(key)
}

// Comparer defines a total ordering over fixed-size keys together with the
// size of those keys. It is the key manager of an index: the tree never
// interprets key bytes except through Compare.
type Comparer struct {
	// Compare defaults to bytes.Compare if it is not specified.
	Compare Compare
	// FormatKey defaults to the DefaultFormatter if it is not specified.
	FormatKey FormatKey

	// KeySize is the serialized size of every key. It must be positive; the
	// page capacity of both node kinds is derived from it.
	KeySize int

	// Name is the name of the comparer.
	Name string
}

// EnsureDefaults ensures that all optional fields are set. If any fields need
// to be set, returns a modified copy of c.
func (c *Comparer) EnsureDefaults() *Comparer {
	if c.Compare != nil && c.FormatKey != nil {
		return c
	}
	n := &Comparer{}
	*n = *c
	if n.Compare == nil {
		n.Compare = bytes.Compare
	}
	if n.FormatKey == nil {
		n.FormatKey = DefaultFormatter
	}
	return n
}

// BytewiseComparer returns a Comparer ordering keySize-byte keys with
// bytes.Compare.
func BytewiseComparer(keySize int) *Comparer {
	return &Comparer{
		Compare:   bytes.Compare,
		FormatKey: DefaultFormatter,
		KeySize:   keySize,
		Name:      "bptree.BytewiseComparator",
	}
}

// FormatBytes formats a byte slice using hexadecimal escapes for non-ASCII
// data.
type FormatBytes []byte

const lowerhex = "0123456789abcdef"

// Format implements the fmt.Formatter interface.
func (p FormatBytes) Format(s fmt.State, c rune) {
	buf := make([]byte, 0, len(p))
	for _, b := range p {
		if b < utf8.RuneSelf && strconv.IsPrint(rune(b)) {
			buf = append(buf, b)
			continue
		}
		buf = append(buf, `\x`...)
		buf = append(buf, lowerhex[b>>4])
		buf = append(buf, lowerhex[b&0xF])
	}
	s.Write(buf)
}
