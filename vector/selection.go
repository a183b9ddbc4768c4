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
	"github.com/RoaringBitmap/roaring/v2"
)

// Selection is the set of active row positions within a batch.
// Iteration is always in ascending row order.
type Selection struct {
	bits *roaring.Bitmap
}

// NewSelection returns a selection covering rows [0, n).
func NewSelection(n int) *Selection {
	b := roaring.New()
	if n > 0 {
		b.AddRange(0, uint64(n))
	}
	return &Selection{bits: b}
}

// SelectRows returns a selection containing exactly the given rows.
func SelectRows(rows ...int) *Selection {
	b := roaring.New()
	for _, r := range rows {
		b.Add(uint32(r))
	}
	return &Selection{bits: b}
}

// Add marks row active.
func (s *Selection) Add(row int) { s.bits.Add(uint32(row)) }

// Remove marks row inactive.
func (s *Selection) Remove(row int) { s.bits.Remove(uint32(row)) }

// Contains returns whether row is active.
func (s *Selection) Contains(row int) bool { return s.bits.Contains(uint32(row)) }

// Count returns the number of active rows.
func (s *Selection) Count() int { return int(s.bits.GetCardinality()) }

// End returns one past the highest active row, or 0 if empty.
func (s *Selection) End() int {
	if s.bits.IsEmpty() {
		return 0
	}
	return int(s.bits.Maximum()) + 1
}

// Each calls fn for every active row in ascending order.
func (s *Selection) Each(fn func(row int)) {
	s.bits.Iterate(func(x uint32) bool {
		fn(int(x))
		return true
	})
}

// EachErr calls fn for every active row in ascending order and
// stops at the first error.
func (s *Selection) EachErr(fn func(row int) error) error {
	var err error
	s.bits.Iterate(func(x uint32) bool {
		err = fn(int(x))
		return err == nil
	})
	return err
}

// Rows returns the active rows in ascending order.
func (s *Selection) Rows() []int {
	out := make([]int, 0, s.Count())
	s.Each(func(row int) { out = append(out, row) })
	return out
}
