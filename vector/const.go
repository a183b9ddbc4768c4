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

// Const is a vector holding one value repeated for every row.
type Const struct {
	typ   *types.Type
	n     int
	null  bool
	value any
}

// NewConst returns a constant vector of the given type and length.
// A nil value makes every row null. The dynamic type of value must
// match the native representation of typ (bool, int8..int64,
// float32/float64, or []byte).
func NewConst(typ *types.Type, n int, value any) *Const {
	return &Const{typ: typ, n: n, null: value == nil, value: value}
}

// Wrap returns a constant vector repeating row of src n times.
func Wrap(src Any, row, n int) *Const {
	if src.IsNull(row) {
		return NewConst(src.Type(), n, nil)
	}
	return NewConst(src.Type(), n, ValueAt(src, row))
}

func (c *Const) Type() *types.Type { return c.typ }
func (c *Const) Len() int          { return c.n }

func (c *Const) IsNull(row int) bool { return c.null }

// SetNull is not meaningful on a shared constant; constants are
// produced whole, either all-null or all-valued.
func (c *Const) SetNull(row int) {
	panic("vector: SetNull on constant vector")
}

// Value returns the constant's value, nil if null.
func (c *Const) Value() any {
	if c.null {
		return nil
	}
	return c.value
}

// Resize returns a constant of the same value with n rows.
func (c *Const) Resize(n int) *Const {
	out := *c
	out.n = n
	return &out
}
