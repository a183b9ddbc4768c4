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

// nulls is a lazily-allocated null bitmap; a nil bitmap means
// no row is null.
type nulls struct {
	bits []uint64
}

func (n *nulls) isNull(row int) bool {
	if n.bits == nil {
		return false
	}
	return n.bits[row>>6]&(1<<(row&63)) != 0
}

func (n *nulls) setNull(row, length int) {
	if n.bits == nil {
		n.bits = make([]uint64, (length+63)>>6)
	}
	n.bits[row>>6] |= 1 << (row & 63)
}

func (n *nulls) clearNull(row int) {
	if n.bits != nil {
		n.bits[row>>6] &^= 1 << (row & 63)
	}
}
