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

package exec

import (
	"github.com/arbordata/arbor/vector"
)

// ConstantExpr is a compiled literal: a single value materialized
// as a constant vector and stretched to the batch size on demand.
type ConstantExpr struct {
	baseExpr
	value *vector.Const
}

func newConstantExpr(value *vector.Const) *ConstantExpr {
	e := &ConstantExpr{value: value}
	e.typ = value.Type()
	e.name = "literal"
	e.computeMetadata()
	return e
}

// Value returns the single-row constant vector.
func (e *ConstantExpr) Value() *vector.Const { return e.value }

func (e *ConstantExpr) computeMetadata() {
	e.deterministic = true
	e.foldable = true
	e.cost = 0
}

func (e *ConstantExpr) Eval(rows *vector.Selection, _ *EvalCtx) (vector.Any, error) {
	return e.value.Resize(rows.End()), nil
}
