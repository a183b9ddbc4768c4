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
	"strings"
	"testing"

	"github.com/arbordata/arbor/expr"
	"github.com/arbordata/arbor/status"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

func stringCol(vals ...string) *vector.Bytes {
	v := vector.NewBytes(types.VarcharType, len(vals))
	for i, s := range vals {
		v.SetString(i, s)
	}
	return v
}

func doubleCol(vals ...float64) *vector.Flat[float64] {
	v := vector.NewFlat[float64](types.DoubleType, len(vals))
	for i, x := range vals {
		v.Set(i, x)
	}
	return v
}

func decimalCol(precision, scale int, raw ...int64) *vector.Flat[int64] {
	v := vector.NewFlat[int64](types.DecimalType(precision, scale), len(raw))
	for i, x := range raw {
		v.Set(i, x)
	}
	return v
}

func timestampCol(micros ...int64) *vector.Flat[int64] {
	v := vector.NewFlat[int64](types.TimestampType, len(micros))
	for i, x := range micros {
		v.Set(i, x)
	}
	return v
}

// evalCast compiles CAST(v AS target) over a single-column batch
// and evaluates it over all rows.
func evalCast(t *testing.T, col vector.Any, target *types.Type, try bool, cfg *Config) (vector.Any, *EvalCtx) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	batch := batchOf([]string{"v"}, col)
	src := expr.NewCast(target, expr.Field(col.Type(), "v"), try)
	set, err := Compile([]expr.Node{src}, cfg)
	if err != nil {
		t.Fatalf("compile: %s", err)
	}
	ctx := NewEvalCtx(batch, cfg)
	out, err := set.Eval(vector.NewSelection(col.Len()), ctx)
	if err != nil {
		t.Fatalf("eval: %s", err)
	}
	return out[0], ctx
}

func policyConfig(p CastPolicy) *Config {
	cfg := DefaultConfig()
	cfg.CastPolicy = p
	return cfg
}

func TestCastIdentityReturnsInput(t *testing.T) {
	col := stringCol("a", "b")
	out, _ := evalCast(t, col, types.VarcharType, false, nil)
	if out != vector.Any(col) {
		t.Fatal("identity cast should hand back the input vector")
	}
}

func TestCastIntNarrowing(t *testing.T) {
	col := int64Col(1, 300, -5)

	out, ctx := evalCast(t, col, types.TinyIntType, false, nil)
	read, _ := vector.ReaderOf[int8](out)
	if read(0) != 1 || read(2) != -5 {
		t.Errorf("got (%d, %d), want (1, -5)", read(0), read(2))
	}
	if ctx.RowError(1) == nil {
		t.Error("row 1 should have failed: 300 does not fit in TINYINT")
	}
	if ctx.RowError(0) != nil || ctx.RowError(2) != nil {
		t.Error("rows 0 and 2 should not fail")
	}

	out, ctx = evalCast(t, col, types.TinyIntType, true, nil)
	if !out.IsNull(1) {
		t.Error("TRY_CAST should null the failed row")
	}
	if ctx.HasRowErrors() {
		t.Error("TRY_CAST should not record row errors")
	}
}

func TestCastFloatToIntPolicy(t *testing.T) {
	cases := []struct {
		policy CastPolicy
		want   [2]int32
	}{
		{CastPresto, [2]int32{3, -3}},
		{CastSpark, [2]int32{2, -2}},
		{CastLegacy, [2]int32{2, -2}},
	}
	for _, tc := range cases {
		t.Run(tc.policy.String(), func(t *testing.T) {
			out, ctx := evalCast(t, doubleCol(2.5, -2.5), types.IntegerType, false, policyConfig(tc.policy))
			if ctx.HasRowErrors() {
				t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
			}
			read, _ := vector.ReaderOf[int32](out)
			if read(0) != tc.want[0] || read(1) != tc.want[1] {
				t.Errorf("got (%d, %d), want (%d, %d)", read(0), read(1), tc.want[0], tc.want[1])
			}
		})
	}
}

func TestCastStringTrimPolicy(t *testing.T) {
	cases := []struct {
		policy CastPolicy
		input  string
		ok     bool
		want   int64
	}{
		{CastPresto, " 42 ", true, 42},
		{CastPresto, "\t7\n", true, 7},
		{CastSpark, "\t7\n", true, 7},
		{CastLegacy, " 42 ", true, 42},
		// legacy trims spaces only
		{CastLegacy, "\t7\n", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.policy.String()+"/"+tc.input, func(t *testing.T) {
			out, ctx := evalCast(t, stringCol(tc.input), types.BigIntType, false, policyConfig(tc.policy))
			if tc.ok {
				if ctx.HasRowErrors() {
					t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
				}
				read, _ := vector.ReaderOf[int64](out)
				if read(0) != tc.want {
					t.Errorf("got %d, want %d", read(0), tc.want)
				}
			} else if ctx.RowError(0) == nil {
				t.Error("expected a row error")
			}
		})
	}
}

func TestCastStringUnicodePolicy(t *testing.T) {
	col := stringCol("12 34")

	cfg := policyConfig(CastSpark)
	cfg.CaptureErrorDetails = true
	_, ctx := evalCast(t, col, types.IntegerType, false, cfg)
	err := ctx.RowError(0)
	if err == nil || !strings.Contains(err.Error(), "unicode") {
		t.Errorf("spark error = %v, want unicode rejection", err)
	}

	cfg = policyConfig(CastPresto)
	cfg.CaptureErrorDetails = true
	_, ctx = evalCast(t, col, types.IntegerType, false, cfg)
	err = ctx.RowError(0)
	if err == nil || strings.Contains(err.Error(), "unicode") {
		t.Errorf("presto error = %v, want a plain parse failure", err)
	}
}

func TestCastEmptyString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureErrorDetails = true
	for _, input := range []string{"", "   "} {
		_, ctx := evalCast(t, stringCol(input), types.BigIntType, false, cfg)
		err := ctx.RowError(0)
		if err == nil || !strings.Contains(err.Error(), "empty string") {
			t.Errorf("input %q: error = %v, want empty string rejection", input, err)
		}
	}
}

func TestCastPerRowIsolation(t *testing.T) {
	out, ctx := evalCast(t, stringCol("1", "abc", "3"), types.BigIntType, false, nil)
	read, _ := vector.ReaderOf[int64](out)
	if read(0) != 1 || read(2) != 3 {
		t.Errorf("got (%d, %d), want (1, 3)", read(0), read(2))
	}
	if ctx.RowError(1) == nil {
		t.Error("row 1 should have failed")
	}
	if ctx.RowError(0) != nil || ctx.RowError(2) != nil {
		t.Error("failure must not leak into sibling rows")
	}
}

func TestCastNullOnErrorContext(t *testing.T) {
	col := stringCol("abc")
	batch := batchOf([]string{"v"}, col)
	set, err := Compile([]expr.Node{
		expr.NewCast(types.BigIntType, expr.Field(types.VarcharType, "v"), false),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := NewEvalCtx(batch, nil)
	ctx.NullOnError = true
	out, err := set.Eval(vector.NewSelection(1), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !out[0].IsNull(0) {
		t.Error("null-on-error mode should null the failed row")
	}
	if ctx.HasRowErrors() {
		t.Error("null-on-error mode should not record row errors")
	}
}

func TestCastNullInputPropagates(t *testing.T) {
	col := int64Col(7, 0)
	col.SetNull(1)
	out, ctx := evalCast(t, col, types.VarcharType, false, nil)
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	bytes := out.(*vector.Bytes)
	if string(bytes.ValueAt(0)) != "7" {
		t.Errorf("row 0 = %q, want 7", bytes.ValueAt(0))
	}
	if !out.IsNull(1) {
		t.Error("null input row must produce a null output row")
	}
}

func TestCastDecimalToIntegral(t *testing.T) {
	// 0.500, -0.500, 1.500
	col := func() *vector.Flat[int64] { return decimalCol(4, 3, 500, -500, 1500) }

	out, _ := evalCast(t, col(), types.BigIntType, false, nil)
	read, _ := vector.ReaderOf[int64](out)
	if read(0) != 1 || read(1) != -1 || read(2) != 2 {
		t.Errorf("round: got (%d, %d, %d), want (1, -1, 2)", read(0), read(1), read(2))
	}

	cfg := DefaultConfig()
	cfg.CastDecimalTruncate = true
	out, _ = evalCast(t, col(), types.BigIntType, false, cfg)
	read, _ = vector.ReaderOf[int64](out)
	if read(0) != 0 || read(1) != 0 || read(2) != 1 {
		t.Errorf("truncate: got (%d, %d, %d), want (0, 0, 1)", read(0), read(1), read(2))
	}

	// spark_try drops the rounding adjustment entirely
	out, _ = evalCast(t, col(), types.BigIntType, false, policyConfig(CastSparkTry))
	read, _ = vector.ReaderOf[int64](out)
	if read(0) != 0 || read(1) != 0 || read(2) != 1 {
		t.Errorf("spark_try: got (%d, %d, %d), want (0, 0, 1)", read(0), read(1), read(2))
	}

	// 5000 does not fit in TINYINT
	over := func() *vector.Flat[int64] { return decimalCol(4, 0, 5000) }
	_, ctx := evalCast(t, over(), types.TinyIntType, false, nil)
	if ctx.RowError(0) == nil {
		t.Error("overflowing integral part should record a row error")
	}
	out, ctx = evalCast(t, over(), types.TinyIntType, true, nil)
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	if !out.IsNull(0) {
		t.Error("try: overflowing integral part should null the row")
	}
}

func TestCastDecimalRescale(t *testing.T) {
	// 1.25 at (4,2)
	out, ctx := evalCast(t, decimalCol(4, 2, 125), types.DecimalType(4, 1), false, nil)
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	read, _ := vector.ReaderOf[int64](out)
	if read(0) != 13 {
		t.Errorf("scale down: raw = %d, want 13 (1.3)", read(0))
	}

	out, _ = evalCast(t, decimalCol(4, 2, 125), types.DecimalType(18, 4), false, nil)
	read, _ = vector.ReaderOf[int64](out)
	if read(0) != 12500 {
		t.Errorf("scale up: raw = %d, want 12500", read(0))
	}

	// 99.99 does not fit in DECIMAL(3,2)
	out, ctx = evalCast(t, decimalCol(4, 2, 9999), types.DecimalType(3, 2), true, nil)
	if !out.IsNull(0) {
		t.Error("overflowing rescale under TRY_CAST should null the row")
	}
	if ctx.HasRowErrors() {
		t.Error("TRY_CAST should not record row errors")
	}
}

func TestCastDecimalToVarchar(t *testing.T) {
	cases := []struct {
		precision, scale int
		raw              int64
		want             string
	}{
		{10, 2, 123456, "1234.56"},
		{10, 2, -50, "-0.50"},
		{4, 0, 17, "17"},
		// long enough to land in the shared buffer
		{18, 6, 1234567890123456, "1234567890.123456"},
	}
	for _, tc := range cases {
		out, ctx := evalCast(t, decimalCol(tc.precision, tc.scale, tc.raw), types.VarcharType, false, nil)
		if ctx.HasRowErrors() {
			t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
		}
		got := string(out.(*vector.Bytes).ValueAt(0))
		if got != tc.want {
			t.Errorf("DECIMAL(%d,%d) raw %d = %q, want %q",
				tc.precision, tc.scale, tc.raw, got, tc.want)
		}
	}
}

func TestCastVarcharToDecimal(t *testing.T) {
	out, ctx := evalCast(t, stringCol("1.005", " 2.5 ", "-3"), types.DecimalType(4, 2), false, nil)
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	read, _ := vector.ReaderOf[int64](out)
	// 1.005 rounds half away from zero at scale 2
	if read(0) != 101 || read(1) != 250 || read(2) != -300 {
		t.Errorf("got (%d, %d, %d), want (101, 250, -300)", read(0), read(1), read(2))
	}

	_, ctx = evalCast(t, stringCol("abc"), types.DecimalType(4, 2), false, nil)
	if ctx.RowError(0) == nil {
		t.Error("malformed decimal literal should fail")
	}
}

func TestCastIntToTimestampPolicy(t *testing.T) {
	col := int64Col(3)

	out, ctx := evalCast(t, col, types.TimestampType, false, policyConfig(CastSpark))
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	read, _ := vector.ReaderOf[int64](out)
	if read(0) != 3_000_000 {
		t.Errorf("spark: got %d, want 3000000", read(0))
	}

	_, ctx = evalCast(t, col, types.TimestampType, false, policyConfig(CastPresto))
	if ctx.RowError(0) == nil {
		t.Error("presto forbids integer to timestamp")
	}

	// seconds that do not fit in int64 micros
	_, ctx = evalCast(t, int64Col(9_223_372_036_855), types.TimestampType, false, policyConfig(CastLegacy))
	if ctx.RowError(0) == nil {
		t.Error("out-of-range seconds should fail")
	}
}

func TestCastDoubleToTimestampRange(t *testing.T) {
	col := doubleCol(1e300)

	_, ctx := evalCast(t, col, types.TimestampType, false, policyConfig(CastLegacy))
	if ctx.RowError(0) == nil {
		t.Error("legacy: out-of-range double should record a row error")
	}

	out, ctx := evalCast(t, col, types.TimestampType, true, policyConfig(CastLegacy))
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	if !out.IsNull(0) {
		t.Error("legacy try: out-of-range double should null the row")
	}

	_, ctx = evalCast(t, col, types.TimestampType, false, policyConfig(CastSpark))
	if ctx.RowError(0) == nil {
		t.Error("spark: out-of-range double should record a row error")
	}
}

func TestCastTimestampConversions(t *testing.T) {
	out, _ := evalCast(t, timestampCol(1_700_000_000_000_000), types.VarcharType, false, nil)
	got := string(out.(*vector.Bytes).ValueAt(0))
	if got != "2023-11-14 22:13:20.000000" {
		t.Errorf("timestamp to varchar = %q", got)
	}

	// seconds floor toward negative infinity
	out, _ = evalCast(t, timestampCol(2_500_000, -500_000), types.BigIntType, false, nil)
	read, _ := vector.ReaderOf[int64](out)
	if read(0) != 2 || read(1) != -1 {
		t.Errorf("timestamp to bigint = (%d, %d), want (2, -1)", read(0), read(1))
	}

	out, ctx := evalCast(t, stringCol("2023-11-14 22:13:20", "2023-11-14"), types.TimestampType, false, nil)
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	read, _ = vector.ReaderOf[int64](out)
	if read(0) != 1_700_000_000_000_000 {
		t.Errorf("string to timestamp = %d", read(0))
	}
	if read(1) != 1_699_920_000_000_000 {
		t.Errorf("date-only string to timestamp = %d", read(1))
	}
}

func TestCastBoolConversions(t *testing.T) {
	b := vector.NewFlat[bool](types.BooleanType, 2)
	b.Set(0, true)
	b.Set(1, false)
	out, _ := evalCast(t, b, types.VarcharType, false, nil)
	bytes := out.(*vector.Bytes)
	if string(bytes.ValueAt(0)) != "true" || string(bytes.ValueAt(1)) != "false" {
		t.Errorf("bool to varchar = (%q, %q)", bytes.ValueAt(0), bytes.ValueAt(1))
	}

	out, ctx := evalCast(t, stringCol("t", "FALSE", "1"), types.BooleanType, false, nil)
	if ctx.HasRowErrors() {
		t.Fatalf("unexpected row errors: %v", ctx.RowErrors())
	}
	readB, _ := vector.ReaderOf[bool](out)
	if !readB(0) || readB(1) || !readB(2) {
		t.Errorf("varchar to bool = (%v, %v, %v)", readB(0), readB(1), readB(2))
	}

	out, _ = evalCast(t, int64Col(0, 5), types.BooleanType, false, nil)
	readB, _ = vector.ReaderOf[bool](out)
	if readB(0) || !readB(1) {
		t.Errorf("bigint to bool = (%v, %v)", readB(0), readB(1))
	}
}

func TestCastErrorDetailMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureErrorDetails = true
	_, ctx := evalCast(t, int64Col(300), types.TinyIntType, false, cfg)
	err := ctx.RowError(0)
	if err == nil || !strings.Contains(err.Error(), "cannot cast BIGINT '300' to TINYINT") {
		t.Errorf("detail message = %v", err)
	}

	cfg.CaptureErrorDetails = false
	_, ctx = evalCast(t, int64Col(300), types.TinyIntType, false, cfg)
	err = ctx.RowError(0)
	if err == nil || strings.Contains(err.Error(), "300") {
		t.Errorf("without detail capture, message = %v", err)
	}
}

func TestCastUnsupportedPair(t *testing.T) {
	col := timestampCol(0)
	batch := batchOf([]string{"v"}, col)
	set, err := Compile([]expr.Node{
		expr.NewCast(types.BooleanType, expr.Field(types.TimestampType, "v"), false),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = set.Eval(vector.NewSelection(1), NewEvalCtx(batch, nil))
	if !status.IsUnsupported(err) {
		t.Fatalf("expected unsupported-pair failure, got %v", err)
	}
}

func TestEvalResetsRowErrors(t *testing.T) {
	col := stringCol("abc", "2")
	batch := batchOf([]string{"v"}, col)
	set, err := Compile([]expr.Node{
		expr.NewCast(types.BigIntType, expr.Field(types.VarcharType, "v"), false),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := NewEvalCtx(batch, nil)
	if _, err := set.Eval(vector.NewSelection(2), ctx); err != nil {
		t.Fatal(err)
	}
	if ctx.RowError(0) == nil {
		t.Fatal("first pass should record a row error")
	}

	// a second pass over the same context starts clean
	out, err := set.Eval(vector.SelectRows(1), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ctx.HasRowErrors() {
		t.Errorf("stale row errors survived: %v", ctx.RowErrors())
	}
	read, _ := vector.ReaderOf[int64](out[0])
	if read(1) != 2 {
		t.Errorf("row 1 = %d, want 2", read(1))
	}
}
