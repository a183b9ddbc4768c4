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
	"time"

	"github.com/arbordata/arbor/status"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// CastExpr executes CAST and TRY_CAST: it applies a conversion to
// every selected row of its input under the configured policy
// hook, with per-row failure isolation. A user error at one row
// nulls that row (TRY_CAST, or null-on-error contexts) or records
// a per-row failure on the context; it never disturbs sibling
// rows. Non-user errors always escape as hard failures.
type CastExpr struct {
	baseExpr
	try   bool
	hooks PolicyHook
	cfg   *Config
}

func newCastExpr(typ *types.Type, inputs []Expr, try, trackCPU bool, cfg *Config) (Expr, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("cast expects 1 input, got %d", len(inputs))
	}
	e := &CastExpr{try: try, hooks: hooksFor(cfg), cfg: cfg}
	e.typ = typ
	e.inputs = inputs
	e.trackCPU = trackCPU
	if try {
		e.name = formTryCast
	} else {
		e.name = formCast
	}
	return e, nil
}

func (e *CastExpr) computeMetadata() {
	e.computeChildMetadata()
}

// nullOnError reports whether a user error at a row should null
// the row instead of recording a failure: always for TRY_CAST,
// and for any cast when the context is in null-on-error mode.
func (e *CastExpr) nullOnError(ctx *EvalCtx) bool {
	return e.try || ctx.NullOnError
}

func (e *CastExpr) Eval(rows *vector.Selection, ctx *EvalCtx) (vector.Any, error) {
	in, err := e.inputs[0].Eval(rows, ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := e.applyCast(rows, in, ctx)
	e.track(start)
	return out, err
}

func (e *CastExpr) applyCast(rows *vector.Selection, in vector.Any, ctx *EvalCtx) (vector.Any, error) {
	from, to := in.Type(), e.typ
	if from.Kind() == types.Decimal || to.Kind() == types.Decimal {
		return e.applyDecimalCast(rows, in, ctx, from, to)
	}
	return e.applyPrimitiveCast(rows, in, ctx, from, to)
}

func (e *CastExpr) applyPrimitiveCast(rows *vector.Selection, in vector.Any, ctx *EvalCtx, from, to *types.Type) (vector.Any, error) {
	out := vector.New(to, rows.End())
	kernel, err := e.rowKernel(in, out, from, to)
	if err != nil {
		return nil, err
	}
	if err := e.applyToSelected(rows, ctx, in, out, kernel); err != nil {
		return nil, err
	}
	return out, nil
}

// rowKernel builds the per-row conversion for a (From, To) kind
// pair; an unsupported pair is a hard failure, not a row error.
func (e *CastExpr) rowKernel(in, out vector.Any, from, to *types.Type) (func(row int) error, error) {
	switch from.Kind() {
	case types.Boolean:
		return castFromBool(e, in, out)
	case types.TinyInt:
		return castFromInt[int8](e, in, out)
	case types.SmallInt:
		return castFromInt[int16](e, in, out)
	case types.Integer:
		return castFromInt[int32](e, in, out)
	case types.BigInt:
		return castFromInt[int64](e, in, out)
	case types.Real:
		return castFromFloat[float32](e, in, out)
	case types.Double:
		return castFromFloat[float64](e, in, out)
	case types.Varchar, types.Varbinary:
		return castFromString(e, in, out)
	case types.Timestamp:
		return castFromTimestamp(e, in, out)
	default:
		return nil, status.Unsupportedf("cast from %s to %s is not supported", from, to)
	}
}

// applyToSelected runs the per-row conversion over every selected
// row, applying the dual error mode: null input rows null the
// output; user errors null the row or record a structured per-row
// failure; everything else aborts the batch.
func (e *CastExpr) applyToSelected(rows *vector.Selection, ctx *EvalCtx, in, out vector.Any, fn func(row int) error) error {
	nullOnError := e.nullOnError(ctx)
	captureDetails := ctx.Config().CaptureErrorDetails
	return rows.EachErr(func(row int) error {
		if in.IsNull(row) {
			out.SetNull(row)
			return nil
		}
		err := fn(row)
		if err == nil {
			return nil
		}
		if !status.IsUserError(err) {
			return err
		}
		if nullOnError {
			out.SetNull(row)
			return nil
		}
		if captureDetails {
			ctx.SetRowError(row, status.UserError(e.errorMessage(in, row, err.Error())))
		} else {
			ctx.SetRowError(row, status.UserError("cast failed"))
		}
		return nil
	})
}

// errorMessage names the source value, source type, and
// destination type of a failed row.
func (e *CastExpr) errorMessage(in vector.Any, row int, details string) string {
	msg := fmt.Sprintf("cannot cast %s '%s' to %s",
		in.Type(), vector.ValueString(in, row), e.typ)
	if details != "" {
		msg += ": " + details
	}
	return msg
}
