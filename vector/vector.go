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

// Package vector implements the columnar vectors the execution
// engine evaluates over: flat fixed-width vectors, variable-length
// byte vectors, constant vectors, row batches, and the selection
// bitmap that masks active rows.
package vector

import (
	"fmt"

	"github.com/arbordata/arbor/types"
)

// Any is a column vector of any type.
type Any interface {
	// Type returns the vector's resolved type.
	Type() *types.Type
	// Len returns the number of rows.
	Len() int
	// IsNull returns whether the given row is null.
	IsNull(row int) bool
	// SetNull marks the given row null.
	SetNull(row int)
}

// New allocates a writable vector of the given type with n rows,
// all initially non-null and zero-valued.
func New(typ *types.Type, n int) Any {
	switch typ.Kind() {
	case types.Boolean:
		return NewFlat[bool](typ, n)
	case types.TinyInt:
		return NewFlat[int8](typ, n)
	case types.SmallInt:
		return NewFlat[int16](typ, n)
	case types.Integer:
		return NewFlat[int32](typ, n)
	case types.BigInt, types.Timestamp, types.Decimal:
		return NewFlat[int64](typ, n)
	case types.Real:
		return NewFlat[float32](typ, n)
	case types.Double:
		return NewFlat[float64](typ, n)
	case types.Varchar, types.Varbinary:
		return NewBytes(typ, n)
	default:
		panic("vector: cannot allocate vector of type " + typ.String())
	}
}

// ReaderOf returns a row-indexed accessor for the values of v,
// or false if v does not hold values of type T. Constant vectors
// are read through their single value.
func ReaderOf[T any](v Any) (func(row int) T, bool) {
	switch vv := v.(type) {
	case *Flat[T]:
		return vv.ValueAt, true
	case *Bytes:
		if at, ok := any(vv.ValueAt).(func(int) T); ok {
			return at, true
		}
	case *Const:
		if val, ok := vv.value.(T); ok {
			return func(int) T { return val }, true
		}
	}
	return nil, false
}

// ValueAt returns the value of v at row as an untyped value,
// or nil if the row is null.
func ValueAt(v Any, row int) any {
	if v.IsNull(row) {
		return nil
	}
	switch vv := v.(type) {
	case *Flat[bool]:
		return vv.ValueAt(row)
	case *Flat[int8]:
		return vv.ValueAt(row)
	case *Flat[int16]:
		return vv.ValueAt(row)
	case *Flat[int32]:
		return vv.ValueAt(row)
	case *Flat[int64]:
		return vv.ValueAt(row)
	case *Flat[float32]:
		return vv.ValueAt(row)
	case *Flat[float64]:
		return vv.ValueAt(row)
	case *Bytes:
		return vv.ValueAt(row)
	case *Const:
		return vv.value
	}
	panic(fmt.Sprintf("vector: ValueAt on %T", v))
}

// ValueString formats the value of v at row for diagnostics.
func ValueString(v Any, row int) string {
	val := ValueAt(v, row)
	if val == nil {
		return "null"
	}
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", val)
}
