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
	"time"

	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// FuncExpr applies a resolved function kernel to its evaluated
// inputs. Multiply-referenced nodes memoize their result within
// one batch; ExprSet resets the memo between batches.
type FuncExpr struct {
	baseExpr
	meta   Metadata
	kernel Kernel
}

func newFuncExpr(typ *types.Type, name string, inputs []Expr, kernel Kernel, meta Metadata, trackCPU bool) *FuncExpr {
	e := &FuncExpr{meta: meta, kernel: kernel}
	e.typ = typ
	e.name = name
	e.inputs = inputs
	e.trackCPU = trackCPU
	return e
}

func (e *FuncExpr) computeMetadata() {
	e.computeChildMetadata()
	if !e.meta.Deterministic {
		e.deterministic = false
		e.foldable = false
	}
}

func (e *FuncExpr) Eval(rows *vector.Selection, ctx *EvalCtx) (vector.Any, error) {
	if e.multiplyReferenced && e.memo != nil {
		return e.memo, nil
	}
	start := time.Now()
	args := make([]vector.Any, len(e.inputs))
	for i, in := range e.inputs {
		v, err := in.Eval(rows, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	out, err := e.kernel(rows, args, ctx, e.typ)
	if err != nil {
		return nil, err
	}
	if e.meta.DefaultNulls {
		propagateNulls(rows, args, out)
	}
	if e.multiplyReferenced {
		e.memo = out
	}
	e.track(start)
	return out, nil
}

// propagateNulls nulls every selected output row for which some
// input is null.
func propagateNulls(rows *vector.Selection, args []vector.Any, out vector.Any) {
	rows.Each(func(row int) {
		for _, a := range args {
			if a.IsNull(row) {
				out.SetNull(row)
				return
			}
		}
	})
}
