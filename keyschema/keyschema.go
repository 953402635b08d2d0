// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package keyschema encodes typed, multi-column index keys into fixed-size
// byte strings.
//
// The encoding preserves order: comparing two encoded keys bytewise orders
// them as comparing their columns left to right would. Integers are stored
// big-endian with the sign bit flipped, floats with the IEEE-754 total-order
// transform, and char(n) columns as n bytes padded with zeros.
package keyschema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/bptree/internal/base"
	"github.com/cockroachdb/errors"
)

// Type is the type of a key column.
type Type uint8

const (
	Int32 Type = iota + 1
	Int64
	Float64
	Char
)

// Column describes one key column.
type Column struct {
	Type Type
	// Len is the width of a Char column.
	Len int
}

// Size returns the encoded size of the column.
func (c Column) Size() int {
	switch c.Type {
	case Int32:
		return 4
	case Int64, Float64:
		return 8
	case Char:
		return c.Len
	}
	return 0
}

// String implements fmt.Stringer.
func (c Column) String() string {
	switch c.Type {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Char:
		return fmt.Sprintf("char(%d)", c.Len)
	}
	return fmt.Sprintf("unknown(%d)", c.Type)
}

// Schema is an ordered list of key columns.
type Schema struct {
	cols []Column
	size int
}

// New returns a schema with the given columns.
func New(cols ...Column) (*Schema, error) {
	if len(cols) == 0 {
		return nil, errors.New("keyschema: no columns")
	}
	s := &Schema{cols: append([]Column(nil), cols...)}
	for _, c := range cols {
		switch c.Type {
		case Int32, Int64, Float64:
		case Char:
			if c.Len <= 0 {
				return nil, errors.Newf("keyschema: invalid char length %d", c.Len)
			}
		default:
			return nil, errors.Newf("keyschema: unknown column type %d", c.Type)
		}
		s.size += c.Size()
	}
	return s, nil
}

// Parse parses a comma-separated column list such as "int64,char(16)".
func Parse(str string) (*Schema, error) {
	var cols []Column
	for _, f := range strings.Split(str, ",") {
		f = strings.TrimSpace(f)
		switch {
		case f == "int32":
			cols = append(cols, Column{Type: Int32})
		case f == "int64":
			cols = append(cols, Column{Type: Int64})
		case f == "float64":
			cols = append(cols, Column{Type: Float64})
		case strings.HasPrefix(f, "char(") && strings.HasSuffix(f, ")"):
			n, err := strconv.Atoi(f[len("char(") : len(f)-1])
			if err != nil {
				return nil, errors.Wrapf(err, "keyschema: parsing %q", f)
			}
			cols = append(cols, Column{Type: Char, Len: n})
		default:
			return nil, errors.Newf("keyschema: unknown column type %q", f)
		}
	}
	return New(cols...)
}

// MustParse is like Parse but panics on error.
func MustParse(str string) *Schema {
	s, err := Parse(str)
	if err != nil {
		panic(err)
	}
	return s
}

// Columns returns the schema's columns.
func (s *Schema) Columns() []Column {
	return s.cols
}

// KeySize returns the size of an encoded key.
func (s *Schema) KeySize() int {
	return s.size
}

// String returns the schema in the form accepted by Parse.
func (s *Schema) String() string {
	parts := make([]string, len(s.cols))
	for i, c := range s.cols {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Encode appends the encoding of vals to dst. Int32 columns accept int32 or
// int values, Int64 columns int64 or int, Float64 columns float64 and Char
// columns string or []byte.
func (s *Schema) Encode(dst []byte, vals ...interface{}) ([]byte, error) {
	if len(vals) != len(s.cols) {
		return nil, errors.Newf("keyschema: %d values for %d columns", len(vals), len(s.cols))
	}
	for i, c := range s.cols {
		var err error
		dst, err = encodeColumn(dst, c, vals[i])
		if err != nil {
			return nil, errors.Wrapf(err, "keyschema: column %d", i)
		}
	}
	return dst, nil
}

func encodeColumn(dst []byte, c Column, v interface{}) ([]byte, error) {
	switch c.Type {
	case Int32:
		var x int32
		switch v := v.(type) {
		case int32:
			x = v
		case int:
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, errors.Newf("%d overflows int32", v)
			}
			x = int32(v)
		default:
			return nil, errors.Newf("%T is not an int32", v)
		}
		return binary.BigEndian.AppendUint32(dst, uint32(x)^(1<<31)), nil
	case Int64:
		var x int64
		switch v := v.(type) {
		case int64:
			x = v
		case int:
			x = int64(v)
		default:
			return nil, errors.Newf("%T is not an int64", v)
		}
		return binary.BigEndian.AppendUint64(dst, uint64(x)^(1<<63)), nil
	case Float64:
		f, ok := v.(float64)
		if !ok {
			return nil, errors.Newf("%T is not a float64", v)
		}
		if math.IsNaN(f) {
			return nil, errors.New("NaN is not orderable")
		}
		if f == 0 {
			// -0 and +0 are the same key.
			f = 0
		}
		bits := math.Float64bits(f)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		return binary.BigEndian.AppendUint64(dst, bits), nil
	case Char:
		var b []byte
		switch v := v.(type) {
		case string:
			b = []byte(v)
		case []byte:
			b = v
		default:
			return nil, errors.Newf("%T is not a string", v)
		}
		if len(b) > c.Len {
			return nil, errors.Newf("%q exceeds char(%d)", b, c.Len)
		}
		if bytes.IndexByte(b, 0) >= 0 {
			return nil, errors.Newf("%q contains a NUL byte", b)
		}
		dst = append(dst, b...)
		for i := len(b); i < c.Len; i++ {
			dst = append(dst, 0)
		}
		return dst, nil
	}
	return nil, errors.Newf("unknown column type %d", c.Type)
}

// Decode returns the column values of an encoded key: int32, int64, float64
// or string per column.
func (s *Schema) Decode(key []byte) ([]interface{}, error) {
	if len(key) != s.size {
		return nil, errors.Newf("keyschema: key of %d bytes, expected %d", len(key), s.size)
	}
	vals := make([]interface{}, 0, len(s.cols))
	for _, c := range s.cols {
		b := key[:c.Size()]
		key = key[c.Size():]
		switch c.Type {
		case Int32:
			vals = append(vals, int32(binary.BigEndian.Uint32(b)^(1<<31)))
		case Int64:
			vals = append(vals, int64(binary.BigEndian.Uint64(b)^(1<<63)))
		case Float64:
			bits := binary.BigEndian.Uint64(b)
			if bits&(1<<63) != 0 {
				bits &^= 1 << 63
			} else {
				bits = ^bits
			}
			vals = append(vals, math.Float64frombits(bits))
		case Char:
			vals = append(vals, string(bytes.TrimRight(b, "\x00")))
		}
	}
	return vals, nil
}

// ParseKey encodes a textual key: one value per column separated by commas.
// Char values are taken verbatim after trimming surrounding spaces.
func (s *Schema) ParseKey(str string) ([]byte, error) {
	fields := strings.Split(str, ",")
	if len(fields) != len(s.cols) {
		return nil, errors.Newf("keyschema: %q has %d values for %d columns", str, len(fields), len(s.cols))
	}
	vals := make([]interface{}, len(fields))
	for i, c := range s.cols {
		f := strings.TrimSpace(fields[i])
		var err error
		switch c.Type {
		case Int32:
			var x int64
			x, err = strconv.ParseInt(f, 10, 32)
			vals[i] = int32(x)
		case Int64:
			vals[i], err = strconv.ParseInt(f, 10, 64)
		case Float64:
			vals[i], err = strconv.ParseFloat(f, 64)
		case Char:
			vals[i] = f
		}
		if err != nil {
			return nil, errors.Wrapf(err, "keyschema: column %d", i)
		}
	}
	return s.Encode(make([]byte, 0, s.size), vals...)
}

// FormatKey formats an encoded key: a single column is printed bare, several
// as "(a, b)".
func (s *Schema) FormatKey(key []byte) fmt.Formatter {
	return formattedKey{s: s, key: key}
}

type formattedKey struct {
	s   *Schema
	key []byte
}

func (k formattedKey) Format(f fmt.State, c rune) {
	vals, err := k.s.Decode(k.key)
	if err != nil {
		base.FormatBytes(k.key).Format(f, c)
		return
	}
	if len(vals) == 1 {
		fmt.Fprint(f, vals[0])
		return
	}
	fmt.Fprint(f, "(")
	for i, v := range vals {
		if i > 0 {
			fmt.Fprint(f, ", ")
		}
		fmt.Fprint(f, v)
	}
	fmt.Fprint(f, ")")
}

// Compare orders two keys encoded with s. The encoding is order-preserving,
// so columns compare left to right without decoding.
func (s *Schema) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Comparer returns a comparer over keys encoded with s.
func (s *Schema) Comparer() *base.Comparer {
	return &base.Comparer{
		Compare:   s.Compare,
		FormatKey: s.FormatKey,
		KeySize:   s.size,
		Name:      "keyschema(" + s.String() + ")",
	}
}
