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

// Flat is a fixed-width vector: one native value per row plus
// a null bitmap. Timestamps are stored as microseconds since the
// Unix epoch; decimals as their raw scaled integer.
type Flat[T any] struct {
	typ    *types.Type
	values []T
	nulls  nulls
}

// NewFlat allocates a flat vector of the given type with n rows.
func NewFlat[T any](typ *types.Type, n int) *Flat[T] {
	return &Flat[T]{typ: typ, values: make([]T, n)}
}

func (f *Flat[T]) Type() *types.Type { return f.typ }
func (f *Flat[T]) Len() int          { return len(f.values) }

func (f *Flat[T]) IsNull(row int) bool { return f.nulls.isNull(row) }
func (f *Flat[T]) SetNull(row int)     { f.nulls.setNull(row, len(f.values)) }

// ValueAt returns the value at row; the result is unspecified
// if the row is null.
func (f *Flat[T]) ValueAt(row int) T { return f.values[row] }

// Set stores v at row and clears its null bit.
func (f *Flat[T]) Set(row int, v T) {
	f.values[row] = v
	f.nulls.clearNull(row)
}

// Values returns the backing value slice.
func (f *Flat[T]) Values() []T { return f.values }
