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
	"golang.org/x/exp/constraints"

	"github.com/arbordata/arbor/decimal"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

func (e *CastExpr) applyDecimalCast(rows *vector.Selection, in vector.Any, ctx *EvalCtx, from, to *types.Type) (vector.Any, error) {
	out := vector.New(to, rows.End())
	var kernel func(row int) error
	var err error
	switch {
	case from.Kind() == types.Decimal && to.Kind() == types.Decimal:
		kernel, err = e.decimalRescaleKernel(in, out, from, to)
	case from.Kind() == types.Decimal:
		kernel, err = e.fromDecimalKernel(rows, in, out, from, to)
	default:
		kernel, err = e.toDecimalKernel(in, out, from, to)
	}
	if err != nil {
		return nil, err
	}
	if err := e.applyToSelected(rows, ctx, in, out, kernel); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *CastExpr) decimalRescaleKernel(in, out vector.Any, from, to *types.Type) (func(row int) error, error) {
	read, ok := vector.ReaderOf[int64](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	fp, fs := from.PrecisionScale()
	tp, ts := to.PrecisionScale()
	w := out.(*vector.Flat[int64])
	return func(row int) error {
		v, err := decimal.Rescale(read(row), fp, fs, tp, ts)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}, nil
}

func (e *CastExpr) fromDecimalKernel(rows *vector.Selection, in, out vector.Any, from, to *types.Type) (func(row int) error, error) {
	read, ok := vector.ReaderOf[int64](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	fp, fs := from.PrecisionScale()
	switch to.Kind() {
	case types.TinyInt:
		return decimalToIntKernel[int8](e, read, fs, out), nil
	case types.SmallInt:
		return decimalToIntKernel[int16](e, read, fs, out), nil
	case types.Integer:
		return decimalToIntKernel[int32](e, read, fs, out), nil
	case types.BigInt:
		return decimalToIntKernel[int64](e, read, fs, out), nil
	case types.Real:
		w := out.(*vector.Flat[float32])
		return func(row int) error {
			w.Set(row, decimal.ToFloat[float32](read(row), fs))
			return nil
		}, nil
	case types.Double:
		w := out.(*vector.Flat[float64])
		return func(row int) error {
			w.Set(row, decimal.ToFloat[float64](read(row), fs))
			return nil
		}, nil
	case types.Boolean:
		w := out.(*vector.Flat[bool])
		return func(row int) error {
			w.Set(row, decimal.ToBool(read(row)))
			return nil
		}, nil
	case types.Varchar:
		w := out.(*vector.Bytes)
		maxSize := decimal.MaxStringSize(fp, fs)
		if maxSize > vector.InlineSize {
			// worst case: every selected row spills to the buffer
			w.Grow(rows.Count() * maxSize)
		}
		var scratch []byte
		return func(row int) error {
			scratch = decimal.AppendString(scratch[:0], read(row), fs)
			wr := w.RowWriter(row)
			wr.Append(scratch)
			wr.Finish()
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

func decimalToIntKernel[T constraints.Signed](e *CastExpr, read func(int) int64, scale int, out vector.Any) func(row int) error {
	truncate := e.hooks.TruncateDecimal()
	// TRY-flavored Spark keeps plain truncation of the fraction
	round := e.hooks.Policy() != CastSparkTry
	w := out.(*vector.Flat[T])
	return func(row int) error {
		v, err := decimal.ToIntegral[T](read(row), scale, truncate, round)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func (e *CastExpr) toDecimalKernel(in, out vector.Any, from, to *types.Type) (func(row int) error, error) {
	tp, ts := to.PrecisionScale()
	w := out.(*vector.Flat[int64])
	switch from.Kind() {
	case types.TinyInt:
		return intToDecimalKernel[int8](in, w, tp, ts)
	case types.SmallInt:
		return intToDecimalKernel[int16](in, w, tp, ts)
	case types.Integer:
		return intToDecimalKernel[int32](in, w, tp, ts)
	case types.BigInt:
		return intToDecimalKernel[int64](in, w, tp, ts)
	case types.Real:
		return floatToDecimalKernel[float32](in, w, tp, ts)
	case types.Double:
		return floatToDecimalKernel[float64](in, w, tp, ts)
	case types.Boolean:
		read, ok := vector.ReaderOf[bool](in)
		if !ok {
			return nil, readerMismatch(in)
		}
		return func(row int) error {
			var raw int64
			if read(row) {
				raw = decimal.PowersOfTen[ts]
			}
			w.Set(row, raw)
			return nil
		}, nil
	case types.Varchar, types.Varbinary:
		read, ok := vector.ReaderOf[[]byte](in)
		if !ok {
			return nil, readerMismatch(in)
		}
		return func(row int) error {
			s, err := e.trimmed(read(row))
			if err != nil {
				return err
			}
			v, err := decimal.FromString(s, tp, ts)
			if err != nil {
				return err
			}
			w.Set(row, v)
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

func intToDecimalKernel[F constraints.Signed](in vector.Any, w *vector.Flat[int64], tp, ts int) (func(row int) error, error) {
	read, ok := vector.ReaderOf[F](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	return func(row int) error {
		v, err := decimal.RescaleInt(int64(read(row)), tp, ts)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}, nil
}

func floatToDecimalKernel[F constraints.Float](in vector.Any, w *vector.Flat[int64], tp, ts int) (func(row int) error, error) {
	read, ok := vector.ReaderOf[F](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	return func(row int) error {
		v, err := decimal.RescaleFloat(read(row), tp, ts)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}, nil
}
