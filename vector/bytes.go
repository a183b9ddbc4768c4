// Copyright (C) 2023 Arbor Data, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package vector

import (
	"github.com/arbordata/arbor/types"
)

// InlineSize is the largest value stored directly inside a view;
// longer values live in the vector's shared backing buffer.
const InlineSize = 12

type view struct {
	size   int32
	inline [InlineSize]byte
	offset int32
}

// Bytes is a variable-length vector for VARCHAR and VARBINARY.
// Short values are inlined into the per-row view; longer values
// are slices of a shared append-only buffer.
type Bytes struct {
	typ   *types.Type
	views []view
	buf   []byte
	nulls nulls
}

// NewBytes allocates a byte vector of the given type with n rows.
func NewBytes(typ *types.Type, n int) *Bytes {
	return &Bytes{typ: typ, views: make([]view, n)}
}

func (b *Bytes) Type() *types.Type { return b.typ }
func (b *Bytes) Len() int          { return len(b.views) }

func (b *Bytes) IsNull(row int) bool { return b.nulls.isNull(row) }
func (b *Bytes) SetNull(row int)     { b.nulls.setNull(row, len(b.views)) }

// ValueAt returns the bytes at row. The result aliases the
// vector's storage and must not be modified.
func (b *Bytes) ValueAt(row int) []byte {
	v := &b.views[row]
	if v.size <= InlineSize {
		return v.inline[:v.size]
	}
	return b.buf[v.offset : v.offset+v.size]
}

// Set copies val into row and clears its null bit.
func (b *Bytes) Set(row int, val []byte) {
	b.nulls.clearNull(row)
	v := &b.views[row]
	v.size = int32(len(val))
	if len(val) <= InlineSize {
		copy(v.inline[:], val)
		return
	}
	v.offset = int32(len(b.buf))
	b.buf = append(b.buf, val...)
}

// SetString copies s into row.
func (b *Bytes) SetString(row int, s string) {
	b.nulls.clearNull(row)
	v := &b.views[row]
	v.size = int32(len(s))
	if len(s) <= InlineSize {
		copy(v.inline[:], s)
		return
	}
	v.offset = int32(len(b.buf))
	b.buf = append(b.buf, s...)
}

// Writer accumulates one row's value. Results at most InlineSize
// bytes long are inlined into the row view; longer results land in
// the vector's shared buffer. Writes are append-only: a Writer for
// row r must be finished before a Writer for row r+1 starts.
type Writer struct {
	vec   *Bytes
	row   int
	start int
}

// RowWriter starts a writer for the given row.
func (b *Bytes) RowWriter(row int) Writer {
	return Writer{vec: b, row: row, start: len(b.buf)}
}

// Append appends p to the row's value.
func (w *Writer) Append(p []byte) {
	w.vec.buf = append(w.vec.buf, p...)
}

// AppendString appends s to the row's value.
func (w *Writer) AppendString(s string) {
	w.vec.buf = append(w.vec.buf, s...)
}

// Finish finalizes the row: short values are moved into the
// inline view and the buffer is rolled back; longer values keep
// their buffer slice.
func (w *Writer) Finish() {
	b := w.vec
	size := len(b.buf) - w.start
	v := &b.views[w.row]
	v.size = int32(size)
	b.nulls.clearNull(w.row)
	if size <= InlineSize {
		copy(v.inline[:], b.buf[w.start:])
		b.buf = b.buf[:w.start]
		return
	}
	v.offset = int32(w.start)
}

// Grow reserves capacity for at least n more buffer bytes.
func (b *Bytes) Grow(n int) {
	if cap(b.buf)-len(b.buf) < n {
		next := make([]byte, len(b.buf), len(b.buf)+n)
		copy(next, b.buf)
		b.buf = next
	}
}
