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
	"strings"
	"testing"

	"github.com/arbordata/arbor/expr"
	"github.com/arbordata/arbor/status"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

func init() {
	RegisterSimple("plus", &SimpleEntry{
		ArgTypes:   []*types.Type{types.BigIntType, types.BigIntType},
		ReturnType: types.BigIntType,
		Meta:       Metadata{Deterministic: true, DefaultNulls: true},
		Factory: func([]*types.Type, []vector.Any, *Config) Kernel {
			return plusKernel
		},
	})
	RegisterSimple("divide", &SimpleEntry{
		ArgTypes:   []*types.Type{types.BigIntType, types.BigIntType},
		ReturnType: types.BigIntType,
		Meta:       Metadata{Deterministic: true, DefaultNulls: true},
		Factory: func([]*types.Type, []vector.Any, *Config) Kernel {
			return divideKernel
		},
	})
	RegisterVector("concat", &VectorEntry{
		Meta:      Metadata{Deterministic: true, DefaultNulls: true, SupportsFlattening: true},
		Signature: "(VARCHAR...) -> VARCHAR",
		Factory: func(_ string, argTypes []*types.Type, _ []vector.Any, _ *Config) (Kernel, bool) {
			for _, t := range argTypes {
				if !t.Kind().VariableLength() {
					return nil, false
				}
			}
			return concatKernel, true
		},
	})
}

func plusKernel(rows *vector.Selection, args []vector.Any, _ *EvalCtx, resultType *types.Type) (vector.Any, error) {
	a, ok0 := vector.ReaderOf[int64](args[0])
	b, ok1 := vector.ReaderOf[int64](args[1])
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("plus wants BIGINT arguments")
	}
	out := vector.NewFlat[int64](resultType, rows.End())
	rows.Each(func(row int) { out.Set(row, a(row)+b(row)) })
	return out, nil
}

func divideKernel(rows *vector.Selection, args []vector.Any, _ *EvalCtx, resultType *types.Type) (vector.Any, error) {
	a, _ := vector.ReaderOf[int64](args[0])
	b, _ := vector.ReaderOf[int64](args[1])
	out := vector.NewFlat[int64](resultType, rows.End())
	err := rows.EachErr(func(row int) error {
		if b(row) == 0 {
			return status.UserError("division by zero")
		}
		out.Set(row, a(row)/b(row))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func concatKernel(rows *vector.Selection, args []vector.Any, _ *EvalCtx, resultType *types.Type) (vector.Any, error) {
	readers := make([]func(int) []byte, len(args))
	for i, a := range args {
		r, ok := vector.ReaderOf[[]byte](a)
		if !ok {
			return nil, fmt.Errorf("concat wants string arguments")
		}
		readers[i] = r
	}
	out := vector.NewBytes(resultType, rows.End())
	rows.Each(func(row int) {
		w := out.RowWriter(row)
		for _, read := range readers {
			w.Append(read(row))
		}
		w.Finish()
	})
	return out, nil
}

func bigintConst(v int64) *expr.Constant {
	return expr.NewConstant(types.BigIntType, v)
}

func bigintField(name string) *expr.FieldAccess {
	return expr.Field(types.BigIntType, name)
}

func emptyBatch(n int) *vector.Row {
	return vector.NewRow(types.RowType(nil, nil), nil, n)
}

func int64Col(vals ...int64) *vector.Flat[int64] {
	v := vector.NewFlat[int64](types.BigIntType, len(vals))
	for i, x := range vals {
		v.Set(i, x)
	}
	return v
}

func batchOf(names []string, cols ...vector.Any) *vector.Row {
	fields := make([]*types.Type, len(cols))
	for i, c := range cols {
		fields[i] = c.Type()
	}
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	return vector.NewRow(types.RowType(names, fields), cols, n)
}

func compileOne(t *testing.T, src expr.Node, cfg *Config) Expr {
	t.Helper()
	set, err := Compile([]expr.Node{src}, cfg)
	if err != nil {
		t.Fatalf("compile %s: %s", src, err)
	}
	return set.Exprs()[0]
}

func TestCompileConstantFolding(t *testing.T) {
	src := expr.NewCall(types.BigIntType, "plus", bigintConst(1), bigintConst(2))
	compiled := compileOne(t, src, nil)
	ce, ok := compiled.(*ConstantExpr)
	if !ok {
		t.Fatalf("expected constant, got %T", compiled)
	}
	if got := ce.Value().Value(); got != int64(3) {
		t.Errorf("folded value = %v, want 3", got)
	}
	// folded constants stretch to the evaluated batch size
	out, err := ce.Eval(vector.NewSelection(4), NewEvalCtx(emptyBatch(4), nil))
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 4 {
		t.Errorf("resized length = %d, want 4", out.Len())
	}
}

func TestCompileFoldingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableConstantFolding = true
	src := expr.NewCall(types.BigIntType, "plus", bigintConst(1), bigintConst(2))
	compiled := compileOne(t, src, cfg)
	if _, ok := compiled.(*FuncExpr); !ok {
		t.Fatalf("expected unfolded function, got %T", compiled)
	}
}

func TestCompileFoldUserErrorKeepsNode(t *testing.T) {
	src := expr.NewCall(types.BigIntType, "divide", bigintConst(1), bigintConst(0))
	compiled := compileOne(t, src, nil)
	if _, ok := compiled.(*FuncExpr); !ok {
		t.Fatalf("expected unfolded function, got %T", compiled)
	}
	// the failure recurs at execution time
	_, err := compiled.Eval(vector.NewSelection(1), NewEvalCtx(emptyBatch(1), nil))
	if !status.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
}

func TestCompileDedupSharesSubtree(t *testing.T) {
	// the same a+b subtree appears in both sources as distinct
	// node instances; structural equality must collapse them
	src1 := expr.NewCall(types.BigIntType, "plus", bigintField("a"), bigintField("b"))
	src2 := expr.NewCall(types.BigIntType, "plus",
		expr.NewCall(types.BigIntType, "plus", bigintField("a"), bigintField("b")),
		bigintField("c"))
	set, err := Compile([]expr.Node{src1, src2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	first := set.Exprs()[0]
	second := set.Exprs()[1]
	if second.Inputs()[0] != first {
		t.Fatal("expected the nested a+b to be the same compiled instance")
	}
	if !first.MultiplyReferenced() {
		t.Error("shared node not marked multiply-referenced")
	}

	batch := batchOf([]string{"a", "b", "c"},
		int64Col(1, 10), int64Col(2, 20), int64Col(3, 30))
	ctx := NewEvalCtx(batch, nil)
	out, err := set.Eval(vector.NewSelection(2), ctx)
	if err != nil {
		t.Fatal(err)
	}
	sum, _ := vector.ReaderOf[int64](out[1])
	if sum(0) != 6 || sum(1) != 60 {
		t.Errorf("got (%d, %d), want (6, 60)", sum(0), sum(1))
	}
	// a second batch through the same set must not see stale memos
	out, err = set.Eval(vector.NewSelection(2), ctx)
	if err != nil {
		t.Fatal(err)
	}
	sum, _ = vector.ReaderOf[int64](out[1])
	if sum(1) != 60 {
		t.Errorf("second eval got %d, want 60", sum(1))
	}
}

func TestCompileFlattenConjunction(t *testing.T) {
	b := func(name string) *expr.FieldAccess { return expr.Field(types.BooleanType, name) }
	src := expr.NewCall(types.BooleanType, "and",
		b("a"),
		expr.NewCall(types.BooleanType, "and",
			b("b"),
			expr.NewCall(types.BooleanType, "and", b("c"), b("d"))))
	compiled := compileOne(t, src, nil)
	conj, ok := compiled.(*ConjunctExpr)
	if !ok {
		t.Fatalf("expected conjunction, got %T", compiled)
	}
	if len(conj.Inputs()) != 4 {
		t.Errorf("flattened to %d inputs, want 4", len(conj.Inputs()))
	}

	// a nested OR is a different operator and stops the flatten
	src = expr.NewCall(types.BooleanType, "and",
		b("a"),
		expr.NewCall(types.BooleanType, "or", b("b"), b("c")))
	conj = compileOne(t, src, nil).(*ConjunctExpr)
	if len(conj.Inputs()) != 2 {
		t.Errorf("AND over OR flattened to %d inputs, want 2", len(conj.Inputs()))
	}
}

func TestCompileFlattenFunction(t *testing.T) {
	s := func(name string) *expr.FieldAccess { return expr.Field(types.VarcharType, name) }
	src := expr.NewCall(types.VarcharType, "concat",
		s("x"),
		expr.NewCall(types.VarcharType, "concat", s("y"), s("z")))
	compiled := compileOne(t, src, nil)
	fn, ok := compiled.(*FuncExpr)
	if !ok {
		t.Fatalf("expected function, got %T", compiled)
	}
	if len(fn.Inputs()) != 3 {
		t.Errorf("flattened to %d inputs, want 3", len(fn.Inputs()))
	}

	// mixed input types block the flatten even for a registered
	// candidate
	vb := func(name string) *expr.FieldAccess { return expr.Field(types.VarbinaryType, name) }
	src = expr.NewCall(types.VarcharType, "concat",
		s("x"),
		expr.NewCall(types.VarbinaryType, "concat", vb("p"), vb("q")))
	fn = compileOne(t, src, nil).(*FuncExpr)
	if len(fn.Inputs()) != 2 {
		t.Errorf("mixed-type concat flattened to %d inputs, want 2", len(fn.Inputs()))
	}
}

func TestCompileIdentityCastElided(t *testing.T) {
	src := expr.NewCast(types.BigIntType, bigintField("a"), false)
	compiled := compileOne(t, src, nil)
	if _, ok := compiled.(*FieldRef); !ok {
		t.Fatalf("identity cast not elided, got %T", compiled)
	}
}

func TestCompileResolutionDiagnostics(t *testing.T) {
	_, err := Compile([]expr.Node{
		expr.NewCall(types.BigIntType, "frobnicate", bigintField("a")),
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "scalar function name not registered: frobnicate") {
		t.Errorf("unknown function error = %v", err)
	}

	_, err = Compile([]expr.Node{
		expr.NewCall(types.BigIntType, "plus", expr.Field(types.VarcharType, "s")),
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "found function registered with the following signatures") {
		t.Errorf("bad arguments error = %v", err)
	}
}

func TestCompileReturnTypeMismatch(t *testing.T) {
	src := expr.NewCall(types.VarcharType, "plus", bigintField("a"), bigintField("b"))
	_, err := Compile([]expr.Node{src}, nil)
	if err == nil || !strings.Contains(err.Error(), "incompatible return types") {
		t.Errorf("return type mismatch error = %v", err)
	}
}

func TestCompileLambdaCaptureOnce(t *testing.T) {
	// x is referenced twice in the body but captured once
	body := expr.NewCall(types.BigIntType, "plus",
		expr.NewCall(types.BigIntType, "plus", bigintField("x"), bigintField("x")),
		bigintField("p"))
	lambda := expr.NewLambda([]string{"p"}, []*types.Type{types.BigIntType}, body)
	compiled := compileOne(t, lambda, nil)
	le, ok := compiled.(*LambdaExpr)
	if !ok {
		t.Fatalf("expected lambda, got %T", compiled)
	}
	if len(le.Captures()) != 1 {
		t.Fatalf("captured %d fields, want 1", len(le.Captures()))
	}
	if le.Captures()[0].Field() != "x" {
		t.Errorf("captured %q, want x", le.Captures()[0].Field())
	}
	if _, err := le.Eval(vector.NewSelection(1), NewEvalCtx(emptyBatch(1), nil)); !status.IsUnsupported(err) {
		t.Errorf("standalone lambda eval error = %v", err)
	}
}

func TestCompileRewrite(t *testing.T) {
	RegisterRewrite(func(n expr.Node) expr.Node {
		if call, ok := n.(*expr.Call); ok && call.Name == "always_three" {
			return bigintConst(3)
		}
		return nil
	})
	compiled := compileOne(t, expr.NewCall(types.BigIntType, "always_three"), nil)
	ce, ok := compiled.(*ConstantExpr)
	if !ok {
		t.Fatalf("rewrite did not apply, got %T", compiled)
	}
	if got := ce.Value().Value(); got != int64(3) {
		t.Errorf("rewritten value = %v, want 3", got)
	}
}

func TestConjunctThreeValued(t *testing.T) {
	x := vector.NewFlat[bool](types.BooleanType, 4)
	y := vector.NewFlat[bool](types.BooleanType, 4)
	// x: true  true  false null
	// y: true  null  null  null
	x.Set(0, true)
	x.Set(1, true)
	x.Set(2, false)
	x.SetNull(3)
	y.Set(0, true)
	y.SetNull(1)
	y.SetNull(2)
	y.SetNull(3)

	bf := func(name string) *expr.FieldAccess { return expr.Field(types.BooleanType, name) }
	set, err := Compile([]expr.Node{
		expr.NewCall(types.BooleanType, "and", bf("x"), bf("y")),
		expr.NewCall(types.BooleanType, "or", bf("x"), bf("y")),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	batch := batchOf([]string{"x", "y"}, x, y)
	out, err := set.Eval(vector.NewSelection(4), NewEvalCtx(batch, nil))
	if err != nil {
		t.Fatal(err)
	}

	type row struct {
		null bool
		val  bool
	}
	wantAnd := []row{{false, true}, {true, false}, {false, false}, {true, false}}
	wantOr := []row{{false, true}, {false, true}, {true, false}, {true, false}}
	for _, want := range []struct {
		name string
		vec  vector.Any
		rows []row
	}{{"and", out[0], wantAnd}, {"or", out[1], wantOr}} {
		read, _ := vector.ReaderOf[bool](want.vec)
		for r, w := range want.rows {
			if want.vec.IsNull(r) != w.null {
				t.Errorf("%s row %d: null = %v, want %v", want.name, r, want.vec.IsNull(r), w.null)
				continue
			}
			if !w.null && read(r) != w.val {
				t.Errorf("%s row %d: value = %v, want %v", want.name, r, read(r), w.val)
			}
		}
	}
}
