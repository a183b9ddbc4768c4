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

// FieldRef reads a column. With no inputs it reads a top-level
// column of the batch (or a lambda capture slot bound the same
// way); with one ROW-typed input it reads that row's field, by
// name or by position.
type FieldRef struct {
	baseExpr
	field string
	index int // -1 when keyed by name
}

func newFieldRef(typ *types.Type, inputs []Expr, field string) *FieldRef {
	e := &FieldRef{field: field, index: -1}
	e.typ = typ
	e.inputs = inputs
	e.name = field
	return e
}

func newFieldRefIndex(typ *types.Type, inputs []Expr, index int) *FieldRef {
	e := &FieldRef{index: index}
	e.typ = typ
	e.inputs = inputs
	e.name = fmt.Sprintf("[%d]", index)
	return e
}

// Field returns the referenced field name; empty for positional
// references.
func (e *FieldRef) Field() string { return e.field }

func (e *FieldRef) computeMetadata() {
	e.computeChildMetadata()
	// a column read depends on input data
	e.foldable = false
}

func (e *FieldRef) Eval(rows *vector.Selection, ctx *EvalCtx) (vector.Any, error) {
	var src *vector.Row
	if len(e.inputs) == 0 {
		src = ctx.Batch()
	} else {
		in, err := e.inputs[0].Eval(rows, ctx)
		if err != nil {
			return nil, err
		}
		row, ok := in.(*vector.Row)
		if !ok {
			return nil, fmt.Errorf("field access over non-row vector %s", in.Type())
		}
		src = row
	}
	var col vector.Any
	if e.index >= 0 {
		col = src.ChildAt(e.index)
	} else {
		col = src.Child(e.field)
	}
	if col == nil {
		return nil, fmt.Errorf("field %q not found in %s", e.field, src.Type())
	}
	return col, nil
}
