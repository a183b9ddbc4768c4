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
	"fmt"

	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// ConjunctExpr is the n-ary AND/OR special form with three-valued
// logic: AND is false if any input is false, null if any input is
// null and none is false; OR dually.
type ConjunctExpr struct {
	baseExpr
	isAnd bool
}

func newConjunctExpr(typ *types.Type, inputs []Expr, isAnd bool, trackCPU bool) *ConjunctExpr {
	e := &ConjunctExpr{isAnd: isAnd}
	e.typ = typ
	e.inputs = inputs
	e.trackCPU = trackCPU
	if isAnd {
		e.name = formAnd
	} else {
		e.name = formOr
	}
	return e
}

func (e *ConjunctExpr) computeMetadata() {
	e.computeChildMetadata()
}

func (e *ConjunctExpr) Eval(rows *vector.Selection, ctx *EvalCtx) (vector.Any, error) {
	// start every row at the identity (true for AND, false for
	// OR); a deciding value (false for AND, true for OR) is
	// final, and a null only shows through on undecided rows
	identity := e.isAnd
	out := vector.NewFlat[bool](types.BooleanType, rows.End())
	rows.Each(func(row int) { out.Set(row, identity) })
	sawNull := make(map[int]struct{})
	for _, in := range e.inputs {
		v, err := in.Eval(rows, ctx)
		if err != nil {
			return nil, err
		}
		read, ok := vector.ReaderOf[bool](v)
		if !ok {
			return nil, fmt.Errorf("%s input is %s, not BOOLEAN", e.name, v.Type())
		}
		rows.Each(func(row int) {
			if v.IsNull(row) {
				sawNull[row] = struct{}{}
			} else if read(row) != identity {
				out.Set(row, !identity)
			}
		})
	}
	for row := range sawNull {
		if out.ValueAt(row) == identity {
			out.SetNull(row)
		}
	}
	return out, nil
}

// RowConstructorExpr builds a ROW from its evaluated inputs.
type RowConstructorExpr struct {
	baseExpr
}

func newRowConstructorExpr(typ *types.Type, inputs []Expr, trackCPU bool) *RowConstructorExpr {
	e := &RowConstructorExpr{}
	e.typ = typ
	e.inputs = inputs
	e.trackCPU = trackCPU
	e.name = formRowConstructor
	return e
}

func (e *RowConstructorExpr) computeMetadata() {
	e.computeChildMetadata()
}

func (e *RowConstructorExpr) Eval(rows *vector.Selection, ctx *EvalCtx) (vector.Any, error) {
	children := make([]vector.Any, len(e.inputs))
	for i, in := range e.inputs {
		v, err := in.Eval(rows, ctx)
		if err != nil {
			return nil, err
		}
		children[i] = v
	}
	return vector.NewRow(e.typ, children, rows.End()), nil
}
