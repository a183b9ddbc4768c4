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

// Package decimal implements precision/scale-aware arithmetic on
// the engine's fixed-point decimals. A decimal value is a raw
// int64 interpreted against a (precision, scale) pair, with
// precision at most 18. All fallible operations return explicit
// user-classified errors; rounding, where it happens, is half away
// from zero.
package decimal

import (
	"math"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/arbordata/arbor/status"
)

// PowersOfTen holds 10^i for i in [0, 18].
var PowersOfTen = [19]int64{
	1,
	10,
	100,
	1000,
	10000,
	100000,
	1000000,
	10000000,
	100000000,
	1000000000,
	10000000000,
	100000000000,
	1000000000000,
	10000000000000,
	100000000000000,
	1000000000000000,
	10000000000000000,
	100000000000000000,
	1000000000000000000,
}

// MaxForPrecision returns the largest raw value representable
// with the given precision.
func MaxForPrecision(precision int) int64 {
	return PowersOfTen[precision] - 1
}

func overflow(toPrecision, toScale int) error {
	return status.UserErrorf("value does not fit in DECIMAL(%d,%d)", toPrecision, toScale)
}

// Rescale converts a raw decimal value between (precision, scale)
// pairs. Increasing the scale multiplies by a power of ten;
// reducing it divides and rounds half away from zero. A result
// exceeding the destination precision is an overflow error.
func Rescale(v int64, fromPrecision, fromScale, toPrecision, toScale int) (int64, error) {
	max := MaxForPrecision(toPrecision)
	if toScale >= fromScale {
		factor := PowersOfTen[toScale-fromScale]
		if v > max/factor || v < -max/factor {
			return 0, overflow(toPrecision, toScale)
		}
		return v * factor, nil
	}
	factor := PowersOfTen[fromScale-toScale]
	out := v / factor
	rem := v % factor
	if rem >= 0 {
		if 2*rem >= factor {
			out++
		}
	} else {
		if -2*rem >= factor {
			out--
		}
	}
	if out > max || out < -max {
		return 0, overflow(toPrecision, toScale)
	}
	return out, nil
}

// RescaleInt converts an exact integer to a decimal raw value.
func RescaleInt(v int64, toPrecision, toScale int) (int64, error) {
	max := MaxForPrecision(toPrecision)
	factor := PowersOfTen[toScale]
	if v > max/factor || v < -max/factor {
		return 0, overflow(toPrecision, toScale)
	}
	return v * factor, nil
}

// RescaleFloat converts a floating-point value to a decimal raw
// value, rounding half away from zero at the destination scale.
// Non-finite inputs and results exceeding the destination
// precision are errors rather than silent truncation.
func RescaleFloat[F constraints.Float](v F, toPrecision, toScale int) (int64, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, status.UserErrorf("cannot convert %v to DECIMAL(%d,%d)", v, toPrecision, toScale)
	}
	scaled := math.Round(f * float64(PowersOfTen[toScale]))
	if math.Abs(scaled) > float64(MaxForPrecision(toPrecision)) {
		return 0, overflow(toPrecision, toScale)
	}
	return int64(scaled), nil
}

// FromString parses a plain decimal literal (optional sign,
// digits, optional decimal point) against the destination
// precision and scale. Fraction digits beyond the scale round
// half away from zero; malformed input is a user error.
func FromString(s []byte, toPrecision, toScale int) (int64, error) {
	malformed := func() error {
		return status.UserErrorf("cannot parse %q as DECIMAL(%d,%d)", s, toPrecision, toScale)
	}
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var out int64
	seenDigit := false
	seenDot := false
	fracDigits := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if seenDot {
				return 0, malformed()
			}
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			return 0, malformed()
		}
		seenDigit = true
		if seenDot && fracDigits >= toScale {
			// first digit past the scale decides rounding;
			// the rest only need to be digits
			if c >= '5' {
				out++
			}
			for i++; i < len(s); i++ {
				if s[i] < '0' || s[i] > '9' {
					return 0, malformed()
				}
			}
			break
		}
		if out > (math.MaxInt64-9)/10 {
			return 0, overflow(toPrecision, toScale)
		}
		out = out*10 + int64(c-'0')
		if seenDot {
			fracDigits++
		}
	}
	if !seenDigit {
		return 0, malformed()
	}
	for ; fracDigits < toScale; fracDigits++ {
		if out > math.MaxInt64/10 {
			return 0, overflow(toPrecision, toScale)
		}
		out *= 10
	}
	if out > MaxForPrecision(toPrecision) {
		return 0, overflow(toPrecision, toScale)
	}
	if neg {
		out = -out
	}
	return out, nil
}

// ToFloat converts a raw decimal value to floating point by
// dividing by 10^scale.
func ToFloat[T constraints.Float](v int64, scale int) T {
	return T(float64(v) / float64(PowersOfTen[scale]))
}

// ToIntegral converts a raw decimal value to its integral part.
// Under truncate semantics the fraction is discarded. Otherwise,
// when round is set, the integral part is rounded away from zero
// if the fraction's magnitude is at least half the scale factor;
// TRY-flavored Spark semantics pass round=false to keep plain
// truncation of the fraction. The result is range-checked against
// the destination type.
func ToIntegral[T constraints.Signed](v int64, scale int, truncate, round bool) (T, error) {
	factor := PowersOfTen[scale]
	integral := v / factor
	if !truncate && round && factor != 1 {
		fraction := v % factor
		sign := int64(1)
		if v < 0 {
			sign = -1
		}
		if sign*fraction >= factor>>1 {
			integral += sign
		}
	}
	out, err := intToInt[T](integral)
	if err != nil {
		return 0, status.UserErrorf("value %s out of range: %s",
			string(AppendString(nil, v, scale)), err)
	}
	return out, nil
}

func intToInt[T constraints.Signed](v int64) (T, error) {
	out := T(v)
	if int64(out) != v {
		return 0, status.UserErrorf("overflow")
	}
	return out, nil
}

// ToBool converts a raw decimal value to boolean: nonzero is true.
func ToBool(v int64) bool { return v != 0 }

// MaxStringSize returns the worst-case formatted size of a
// DECIMAL(precision, scale) value: sign, integer digits, and an
// optional point plus fraction digits.
func MaxStringSize(precision, scale int) int {
	intDigits := precision - scale
	if intDigits < 1 {
		intDigits = 1
	}
	n := 1 + intDigits
	if scale > 0 {
		n += 1 + scale
	}
	return n
}

// AppendString formats a raw decimal value at the given scale and
// appends it to dst. The fraction is zero-padded to exactly scale
// digits.
func AppendString(dst []byte, v int64, scale int) []byte {
	if scale == 0 {
		return strconv.AppendInt(dst, v, 10)
	}
	u := uint64(v)
	if v < 0 {
		dst = append(dst, '-')
		u = uint64(-v)
	}
	factor := uint64(PowersOfTen[scale])
	dst = strconv.AppendUint(dst, u/factor, 10)
	dst = append(dst, '.')
	frac := u % factor
	for d := scale - 1; d > 0; d-- {
		if frac < uint64(PowersOfTen[d]) {
			dst = append(dst, '0')
		}
	}
	return strconv.AppendUint(dst, frac, 10)
}
