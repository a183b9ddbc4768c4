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

// Row is a batch: a ROW-typed vector whose children are the
// input columns an expression tree evaluates over.
type Row struct {
	typ      *types.Type
	children []Any
	n        int
}

// NewRow builds a batch from column vectors. typ must be a ROW
// type with one field per child.
func NewRow(typ *types.Type, children []Any, n int) *Row {
	if len(typ.Children()) != len(children) {
		panic("vector: row type/child count mismatch")
	}
	return &Row{typ: typ, children: children, n: n}
}

func (r *Row) Type() *types.Type { return r.typ }
func (r *Row) Len() int          { return r.n }

func (r *Row) IsNull(row int) bool { return false }
func (r *Row) SetNull(row int)     { panic("vector: SetNull on row vector") }

// ChildAt returns the column at index i.
func (r *Row) ChildAt(i int) Any { return r.children[i] }

// Child returns the column with the given field name, or nil.
func (r *Row) Child(name string) Any {
	i := r.typ.FieldIndex(name)
	if i < 0 {
		return nil
	}
	return r.children[i]
}
