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

// Package convert implements scalar conversions between the
// engine's primitive native representations. Every conversion is
// pure and returns a value-or-error result; a returned error is
// always classified as a user error. The package has no vector
// awareness: callers apply these kernels row by row and decide how
// a per-row failure is surfaced.
package convert

import (
	"math"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/arbordata/arbor/status"
)

// IntToInt converts between signed integer widths, failing on
// values outside the destination's range.
func IntToInt[F, T constraints.Signed](v F) (T, error) {
	out := T(v)
	if F(out) != v {
		return 0, status.UserErrorf("value %d out of range", int64(v))
	}
	return out, nil
}

// IntToFloat converts a signed integer to floating point.
func IntToFloat[F constraints.Signed, T constraints.Float](v F) (T, error) {
	return T(v), nil
}

// FloatToFloat converts between floating-point widths. Values
// exceeding the destination's finite range fail; infinities and
// NaN pass through.
func FloatToFloat[F, T constraints.Float](v F) (T, error) {
	out := T(v)
	if math.IsInf(float64(out), 0) && !math.IsInf(float64(v), 0) {
		return 0, status.UserErrorf("value %v out of range", v)
	}
	return out, nil
}

// FloatToInt converts floating point to a signed integer. When
// round is set the value is rounded half away from zero first;
// otherwise it is truncated toward zero. NaN, infinities, and
// out-of-range values fail.
func FloatToInt[F constraints.Float, T constraints.Signed](v F, round bool) (T, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, status.UserErrorf("cannot convert %v to integer", v)
	}
	if round {
		f = math.Round(f)
	} else {
		f = math.Trunc(f)
	}
	// 2^63 is exactly representable; values at or beyond it
	// cannot fit in any signed integer we support
	if f >= 0x1p63 || f < -0x1p63 {
		return 0, status.UserErrorf("value %v out of range", v)
	}
	return IntToInt[int64, T](int64(f))
}

// FromBool widens a boolean to 0 or 1.
func FromBool[T constraints.Signed | constraints.Float](v bool) T {
	if v {
		return 1
	}
	return 0
}

// NumToBool converts a numeric value to boolean: nonzero is true.
func NumToBool[F constraints.Signed | constraints.Float](v F) bool {
	return v != 0
}

// ParseInt parses a base-10 signed integer with optional sign.
func ParseInt[T constraints.Signed](s []byte) (T, error) {
	v, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return 0, status.UserErrorf("cannot parse %q as integer", s)
	}
	return IntToInt[int64, T](v)
}

// ParseFloat parses a floating-point literal.
func ParseFloat[T constraints.Float](s []byte) (T, error) {
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return 0, status.UserErrorf("cannot parse %q as floating point", s)
	}
	return FloatToFloat[float64, T](v)
}

// ParseBool parses a boolean literal: t, f, true, false, 0, 1,
// case-insensitively.
func ParseBool(s []byte) (bool, error) {
	switch len(s) {
	case 1:
		switch s[0] {
		case 't', 'T', '1':
			return true, nil
		case 'f', 'F', '0':
			return false, nil
		}
	case 4:
		if lowerEq(s, "true") {
			return true, nil
		}
	case 5:
		if lowerEq(s, "false") {
			return false, nil
		}
	}
	return false, status.UserErrorf("cannot parse %q as boolean", s)
}

func lowerEq(s []byte, word string) bool {
	for i := range s {
		if s[i]|0x20 != word[i] {
			return false
		}
	}
	return true
}

// AppendInt formats v in base 10.
func AppendInt[T constraints.Signed](dst []byte, v T) []byte {
	return strconv.AppendInt(dst, int64(v), 10)
}

// AppendFloat formats v in the shortest representation that
// round-trips.
func AppendFloat[T constraints.Float](dst []byte, v T, bits int) []byte {
	return strconv.AppendFloat(dst, float64(v), 'g', -1, bits)
}

// AppendBool formats v as "true" or "false".
func AppendBool(dst []byte, v bool) []byte {
	return strconv.AppendBool(dst, v)
}

// IsASCII returns whether s contains only ASCII bytes.
func IsASCII(s []byte) bool {
	for _, c := range s {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
