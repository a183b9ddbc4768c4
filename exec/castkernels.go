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

	"golang.org/x/exp/constraints"

	"github.com/arbordata/arbor/convert"
	"github.com/arbordata/arbor/status"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

func unsupportedPair(in, out vector.Any) error {
	return status.Unsupportedf("cast from %s to %s is not supported", in.Type(), out.Type())
}

func readerMismatch(in vector.Any) error {
	return fmt.Errorf("vector of type %s does not match its declared kind", in.Type())
}

func castFromBool(e *CastExpr, in, out vector.Any) (func(row int) error, error) {
	read, ok := vector.ReaderOf[bool](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	switch out.Type().Kind() {
	case types.TinyInt:
		return boolToNumKernel[int8](read, out), nil
	case types.SmallInt:
		return boolToNumKernel[int16](read, out), nil
	case types.Integer:
		return boolToNumKernel[int32](read, out), nil
	case types.BigInt:
		return boolToNumKernel[int64](read, out), nil
	case types.Real:
		return boolToNumKernel[float32](read, out), nil
	case types.Double:
		return boolToNumKernel[float64](read, out), nil
	case types.Varchar:
		w := out.(*vector.Bytes)
		var scratch []byte
		return func(row int) error {
			scratch = convert.AppendBool(scratch[:0], read(row))
			w.Set(row, scratch)
			return nil
		}, nil
	case types.Timestamp:
		w := out.(*vector.Flat[int64])
		return func(row int) error {
			us, err := e.hooks.CastBoolToTimestamp(read(row))
			if err != nil {
				return err
			}
			w.Set(row, us)
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

func boolToNumKernel[T constraints.Signed | constraints.Float](read func(int) bool, out vector.Any) func(row int) error {
	w := out.(*vector.Flat[T])
	return func(row int) error {
		w.Set(row, convert.FromBool[T](read(row)))
		return nil
	}
}

func castFromInt[F constraints.Signed](e *CastExpr, in, out vector.Any) (func(row int) error, error) {
	read, ok := vector.ReaderOf[F](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	switch out.Type().Kind() {
	case types.TinyInt:
		return intToIntKernel[F, int8](read, out), nil
	case types.SmallInt:
		return intToIntKernel[F, int16](read, out), nil
	case types.Integer:
		return intToIntKernel[F, int32](read, out), nil
	case types.BigInt:
		return intToIntKernel[F, int64](read, out), nil
	case types.Real:
		return intToFloatKernel[F, float32](read, out), nil
	case types.Double:
		return intToFloatKernel[F, float64](read, out), nil
	case types.Boolean:
		w := out.(*vector.Flat[bool])
		return func(row int) error {
			w.Set(row, convert.NumToBool(read(row)))
			return nil
		}, nil
	case types.Varchar:
		w := out.(*vector.Bytes)
		var scratch []byte
		return func(row int) error {
			scratch = convert.AppendInt(scratch[:0], read(row))
			w.Set(row, scratch)
			return nil
		}, nil
	case types.Timestamp:
		w := out.(*vector.Flat[int64])
		return func(row int) error {
			us, err := e.hooks.CastIntToTimestamp(int64(read(row)))
			if err != nil {
				return err
			}
			w.Set(row, us)
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

func intToIntKernel[F, T constraints.Signed](read func(int) F, out vector.Any) func(row int) error {
	w := out.(*vector.Flat[T])
	return func(row int) error {
		v, err := convert.IntToInt[F, T](read(row))
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func intToFloatKernel[F constraints.Signed, T constraints.Float](read func(int) F, out vector.Any) func(row int) error {
	w := out.(*vector.Flat[T])
	return func(row int) error {
		v, err := convert.IntToFloat[F, T](read(row))
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func castFromFloat[F constraints.Float](e *CastExpr, in, out vector.Any) (func(row int) error, error) {
	read, ok := vector.ReaderOf[F](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	round := e.hooks.RoundFloatToInt()
	switch out.Type().Kind() {
	case types.TinyInt:
		return floatToIntKernel[F, int8](read, out, round), nil
	case types.SmallInt:
		return floatToIntKernel[F, int16](read, out, round), nil
	case types.Integer:
		return floatToIntKernel[F, int32](read, out, round), nil
	case types.BigInt:
		return floatToIntKernel[F, int64](read, out, round), nil
	case types.Real:
		return floatToFloatKernel[F, float32](read, out), nil
	case types.Double:
		return floatToFloatKernel[F, float64](read, out), nil
	case types.Boolean:
		w := out.(*vector.Flat[bool])
		return func(row int) error {
			w.Set(row, convert.NumToBool(read(row)))
			return nil
		}, nil
	case types.Varchar:
		w := out.(*vector.Bytes)
		bits := 64
		var zero F
		if _, ok := any(zero).(float32); ok {
			bits = 32
		}
		var scratch []byte
		return func(row int) error {
			scratch = convert.AppendFloat(scratch[:0], read(row), bits)
			w.Set(row, scratch)
			return nil
		}, nil
	case types.Timestamp:
		w := out.(*vector.Flat[int64])
		return func(row int) error {
			us, isNull, err := e.hooks.CastDoubleToTimestamp(float64(read(row)))
			if err != nil {
				return err
			}
			if isNull {
				out.SetNull(row)
				return nil
			}
			w.Set(row, us)
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

func floatToIntKernel[F constraints.Float, T constraints.Signed](read func(int) F, out vector.Any, round bool) func(row int) error {
	w := out.(*vector.Flat[T])
	return func(row int) error {
		v, err := convert.FloatToInt[F, T](read(row), round)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func floatToFloatKernel[F, T constraints.Float](read func(int) F, out vector.Any) func(row int) error {
	w := out.(*vector.Flat[T])
	return func(row int) error {
		v, err := convert.FloatToFloat[F, T](read(row))
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func castFromString(e *CastExpr, in, out vector.Any) (func(row int) error, error) {
	read, ok := vector.ReaderOf[[]byte](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	switch out.Type().Kind() {
	case types.Varchar, types.Varbinary:
		w := out.(*vector.Bytes)
		return func(row int) error {
			w.Set(row, read(row))
			return nil
		}, nil
	case types.TinyInt:
		return stringToIntKernel[int8](e, read, out), nil
	case types.SmallInt:
		return stringToIntKernel[int16](e, read, out), nil
	case types.Integer:
		return stringToIntKernel[int32](e, read, out), nil
	case types.BigInt:
		return stringToIntKernel[int64](e, read, out), nil
	case types.Real:
		w := out.(*vector.Flat[float32])
		return func(row int) error {
			s, err := e.trimmed(read(row))
			if err != nil {
				return err
			}
			v, err := e.hooks.CastStringToReal(s)
			if err != nil {
				return err
			}
			w.Set(row, v)
			return nil
		}, nil
	case types.Double:
		w := out.(*vector.Flat[float64])
		return func(row int) error {
			s, err := e.trimmed(read(row))
			if err != nil {
				return err
			}
			v, err := e.hooks.CastStringToDouble(s)
			if err != nil {
				return err
			}
			w.Set(row, v)
			return nil
		}, nil
	case types.Boolean:
		w := out.(*vector.Flat[bool])
		return func(row int) error {
			s, err := e.trimmed(read(row))
			if err != nil {
				return err
			}
			v, err := convert.ParseBool(s)
			if err != nil {
				return err
			}
			w.Set(row, v)
			return nil
		}, nil
	case types.Timestamp:
		w := out.(*vector.Flat[int64])
		return func(row int) error {
			s, err := e.trimmed(read(row))
			if err != nil {
				return err
			}
			us, err := e.hooks.CastStringToTimestamp(s)
			if err != nil {
				return err
			}
			w.Set(row, us)
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

// trimmed strips policy whitespace from a string cast input and
// rejects values that trim to nothing.
func (e *CastExpr) trimmed(s []byte) ([]byte, error) {
	s = e.hooks.TrimWhitespace(s)
	if len(s) == 0 {
		return nil, status.UserError("empty string")
	}
	return s, nil
}

func stringToIntKernel[T constraints.Signed](e *CastExpr, read func(int) []byte, out vector.Any) func(row int) error {
	w := out.(*vector.Flat[T])
	throwOnUnicode := e.hooks.ThrowOnUnicode()
	return func(row int) error {
		s, err := e.trimmed(read(row))
		if err != nil {
			return err
		}
		if throwOnUnicode && !convert.IsASCII(s) {
			return status.UserError("unicode characters are not supported for conversion to integer types")
		}
		v, err := convert.ParseInt[T](s)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func castFromTimestamp(e *CastExpr, in, out vector.Any) (func(row int) error, error) {
	read, ok := vector.ReaderOf[int64](in)
	if !ok {
		return nil, readerMismatch(in)
	}
	switch out.Type().Kind() {
	case types.TinyInt:
		return timestampToIntKernel[int8](e, read, out), nil
	case types.SmallInt:
		return timestampToIntKernel[int16](e, read, out), nil
	case types.Integer:
		return timestampToIntKernel[int32](e, read, out), nil
	case types.BigInt:
		return timestampToIntKernel[int64](e, read, out), nil
	case types.Varchar:
		w := out.(*vector.Bytes)
		var scratch []byte
		return func(row int) error {
			scratch = appendTimestamp(scratch[:0], read(row))
			w.Set(row, scratch)
			return nil
		}, nil
	}
	return nil, unsupportedPair(in, out)
}

func timestampToIntKernel[T constraints.Signed](e *CastExpr, read func(int) int64, out vector.Any) func(row int) error {
	w := out.(*vector.Flat[T])
	return func(row int) error {
		sec, err := e.hooks.CastTimestampToInt(read(row))
		if err != nil {
			return err
		}
		v, err := convert.IntToInt[int64, T](sec)
		if err != nil {
			return err
		}
		w.Set(row, v)
		return nil
	}
}

func appendTimestamp(dst []byte, us int64) []byte {
	return time.UnixMicro(us).UTC().AppendFormat(dst, "2006-01-02 15:04:05.000000")
}
