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

// Expr is a compiled, executable expression node. Nodes form a
// DAG: a node whose source subtree occurred more than once within
// one lexical scope is shared by all of its parents.
type Expr interface {
	// Type returns the node's result type.
	Type() *types.Type
	// Inputs returns the compiled child expressions.
	Inputs() []Expr
	// Name returns a short diagnostic name for the node.
	Name() string
	// Eval evaluates the node over the selected rows of the
	// context's batch and returns the result vector. Per-row
	// user errors are contained per the context's error mode;
	// a returned error is always a hard failure.
	Eval(rows *vector.Selection, ctx *EvalCtx) (vector.Any, error)

	// Deterministic returns whether the node and all of its
	// children are deterministic.
	Deterministic() bool
	// ConstantFoldable returns whether the node is deterministic
	// and depends on no input column.
	ConstantFoldable() bool
	// MultiplyReferenced returns whether more than one parent
	// shares this node. Once set it is never unset.
	MultiplyReferenced() bool

	setMultiplyReferenced()
	clearMetadata()
	computeMetadata()
	// reset drops per-evaluation state (memoized results,
	// timing) between batches.
	reset()
}

// baseExpr carries the state common to all compiled nodes.
type baseExpr struct {
	typ    *types.Type
	inputs []Expr
	name   string

	// metadata, recomputed when sharing changes
	deterministic bool
	foldable      bool
	cost          int

	multiplyReferenced bool
	trackCPU           bool

	// per-evaluation state
	memo     vector.Any
	cpuTime  time.Duration
	numEvals int
}

func (b *baseExpr) Type() *types.Type { return b.typ }
func (b *baseExpr) Inputs() []Expr    { return b.inputs }
func (b *baseExpr) Name() string      { return b.name }

func (b *baseExpr) Deterministic() bool      { return b.deterministic }
func (b *baseExpr) ConstantFoldable() bool   { return b.foldable }
func (b *baseExpr) MultiplyReferenced() bool { return b.multiplyReferenced }

func (b *baseExpr) setMultiplyReferenced() { b.multiplyReferenced = true }

func (b *baseExpr) clearMetadata() {
	b.deterministic = false
	b.foldable = false
	b.cost = 0
}

// computeChildMetadata folds the children's metadata into b;
// node-specific computeMetadata implementations refine the result.
func (b *baseExpr) computeChildMetadata() {
	b.deterministic = true
	b.foldable = true
	b.cost = 1
	for _, in := range b.inputs {
		if !in.Deterministic() {
			b.deterministic = false
		}
		if !in.ConstantFoldable() {
			b.foldable = false
		}
		if be, ok := in.(interface{ costHint() int }); ok {
			b.cost += be.costHint()
		}
	}
	if !b.deterministic {
		b.foldable = false
	}
}

func (b *baseExpr) costHint() int { return b.cost }

func (b *baseExpr) reset() {
	b.memo = nil
	b.cpuTime = 0
	b.numEvals = 0
}

// track records the elapsed evaluation time when CPU tracking
// is enabled.
func (b *baseExpr) track(start time.Time) {
	if b.trackCPU {
		b.cpuTime += time.Since(start)
		b.numEvals++
	}
}

// CPUTime returns the accumulated evaluation time for the node;
// zero unless CPU tracking is enabled.
func (b *baseExpr) CPUTime() time.Duration { return b.cpuTime }

// ExprSet owns a set of compiled expression roots and the shared
// nodes beneath them. It is the sole owner of node lifetime; it is
// not safe for concurrent mutation, but its compiled nodes may be
// shared read-only across concurrent evaluations once compilation
// has finished.
type ExprSet struct {
	exprs   []Expr
	toReset []Expr
	cfg     *Config
}

// Exprs returns the compiled roots, one per source expression.
func (s *ExprSet) Exprs() []Expr { return s.exprs }

func (s *ExprSet) addToReset(e Expr) {
	s.toReset = append(s.toReset, e)
}

// Clear drops all per-evaluation state held by shared nodes.
func (s *ExprSet) Clear() {
	for _, e := range s.toReset {
		e.reset()
	}
}

// Eval evaluates every root over the selected rows of the
// context's batch. Shared-node state and the context's recorded
// row errors are reset first, so one call corresponds to one
// batch: a reused context never carries failures across calls.
func (s *ExprSet) Eval(rows *vector.Selection, ctx *EvalCtx) ([]vector.Any, error) {
	s.Clear()
	ctx.ClearRowErrors()
	out := make([]vector.Any, len(s.exprs))
	for i, e := range s.exprs {
		v, err := e.Eval(rows, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
