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
	"github.com/arbordata/arbor/status"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// LambdaExpr is a compiled lambda: formal parameters, the
// compiled body, and the capture slots resolved during capture
// analysis. From the enclosing scope's perspective the captures
// are ordinary field references; from the lambda's perspective
// they are opaque slots bound at invocation time by whichever
// higher-order function consumes the lambda.
type LambdaExpr struct {
	baseExpr
	params     []string
	paramTypes []*types.Type
	captures   []*FieldRef
	body       Expr
}

func newLambdaExpr(typ *types.Type, params []string, paramTypes []*types.Type, captures []*FieldRef, body Expr, trackCPU bool) *LambdaExpr {
	e := &LambdaExpr{
		params:     params,
		paramTypes: paramTypes,
		captures:   captures,
		body:       body,
	}
	e.typ = typ
	e.name = "lambda"
	e.trackCPU = trackCPU
	for _, c := range captures {
		e.inputs = append(e.inputs, c)
	}
	return e
}

// Params returns the formal parameter names.
func (e *LambdaExpr) Params() []string { return e.params }

// Body returns the compiled body expression.
func (e *LambdaExpr) Body() Expr { return e.body }

// Captures returns the capture slots, one per distinct enclosing
// field the body references.
func (e *LambdaExpr) Captures() []*FieldRef { return e.captures }

func (e *LambdaExpr) computeMetadata() {
	e.computeChildMetadata()
	// a function value is not a foldable scalar
	e.foldable = false
}

// Eval is unsupported: lambdas are consumed at compile time by
// the higher-order functions that receive them, which bind the
// parameters and captures themselves.
func (e *LambdaExpr) Eval(*vector.Selection, *EvalCtx) (vector.Any, error) {
	return nil, status.Unsupportedf("lambda cannot be evaluated standalone")
}
