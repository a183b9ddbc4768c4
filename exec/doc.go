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

// Package exec compiles typed expression trees into executable
// vectorized expression DAGs and evaluates them over row batches.
//
// Compilation (see Compile) walks a planner-produced expr.Node
// tree and produces a deduplicated DAG of Expr nodes: structurally
// equal subtrees within one lexical scope collapse to a single
// shared node. The compiler applies rewrite rules, flattens nested
// associative calls, resolves function names against the simple
// and vector function registries and the special-form registry,
// analyzes lambda captures, and optionally folds constant
// subexpressions.
//
// Evaluation is single-threaded per EvalCtx: one goroutine drives
// one batch through one compiled tree. Compiled expressions are
// read-only after compilation and may be shared by concurrent
// evaluations that each own their EvalCtx; the per-evaluation
// state that shared nodes keep is reset per batch by ExprSet.
//
// CAST and TRY_CAST are special forms executed by CastExpr, which
// applies a policy-parameterized conversion kernel to every
// selected row with per-row failure isolation: a bad row nulls or
// records its own failure without disturbing its siblings.
package exec
