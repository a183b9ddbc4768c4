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
	"math"
	"time"

	"github.com/arbordata/arbor/convert"
	"github.com/arbordata/arbor/status"
)

// PolicyHook encapsulates the dialect-specific pieces of cast
// semantics. A hook is stateless and selected once per compiled
// cast from configuration.
//
// Timestamps cross this interface as microseconds since the Unix
// epoch, matching their vector representation.
type PolicyHook interface {
	// Policy identifies the dialect.
	Policy() CastPolicy
	// TrimWhitespace strips the dialect's notion of surrounding
	// whitespace from a string cast input.
	TrimWhitespace(s []byte) []byte
	// ThrowOnUnicode rejects non-ASCII string input to integral
	// casts.
	ThrowOnUnicode() bool
	// TruncateDecimal makes decimal-to-integral casts discard
	// the fraction instead of rounding.
	TruncateDecimal() bool
	// RoundFloatToInt rounds instead of truncating when casting
	// floating point to integers.
	RoundFloatToInt() bool

	CastIntToTimestamp(v int64) (int64, error)
	CastBoolToTimestamp(v bool) (int64, error)
	CastTimestampToInt(us int64) (int64, error)
	// CastDoubleToTimestamp may yield a row-level null (second
	// result) distinct from an error.
	CastDoubleToTimestamp(v float64) (int64, bool, error)
	CastStringToTimestamp(s []byte) (int64, error)
	CastStringToReal(s []byte) (float32, error)
	CastStringToDouble(s []byte) (float64, error)
}

// hooksFor returns the policy hook for the configured dialect.
func hooksFor(cfg *Config) PolicyHook {
	base := baseHooks{truncateDecimal: cfg.CastDecimalTruncate}
	switch cfg.CastPolicy {
	case CastLegacy:
		return &legacyHooks{base}
	case CastPresto:
		return &prestoHooks{base}
	case CastSpark:
		return &sparkHooks{base}
	case CastSparkTry:
		return &sparkTryHooks{sparkHooks{base}}
	default:
		return &prestoHooks{base}
	}
}

// baseHooks holds behavior shared across dialects.
type baseHooks struct {
	truncateDecimal bool
}

func (h *baseHooks) TruncateDecimal() bool { return h.truncateDecimal }

func (h *baseHooks) CastTimestampToInt(us int64) (int64, error) {
	// floor toward negative infinity, so pre-epoch timestamps
	// map to the second they fall in
	sec := us / 1e6
	if us%1e6 < 0 {
		sec--
	}
	return sec, nil
}

func (h *baseHooks) CastStringToTimestamp(s []byte) (int64, error) {
	return parseTimestampMicros(s)
}

func (h *baseHooks) CastStringToReal(s []byte) (float32, error) {
	return convert.ParseFloat[float32](s)
}

func (h *baseHooks) CastStringToDouble(s []byte) (float64, error) {
	return convert.ParseFloat[float64](s)
}

func secondsToMicros(sec int64) (int64, error) {
	if sec > math.MaxInt64/1_000_000 || sec < math.MinInt64/1_000_000 {
		return 0, status.UserErrorf("timestamp value %d out of range", sec)
	}
	return sec * 1e6, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

func parseTimestampMicros(s []byte) (int64, error) {
	str := string(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, str, time.UTC); err == nil {
			return t.UnixMicro(), nil
		}
	}
	return 0, status.UserErrorf("cannot parse %q as timestamp", s)
}

// legacyHooks: ASCII-space trimming only, truncating float-to-int,
// integer seconds accepted as timestamps.
type legacyHooks struct{ baseHooks }

func (h *legacyHooks) Policy() CastPolicy    { return CastLegacy }
func (h *legacyHooks) ThrowOnUnicode() bool  { return false }
func (h *legacyHooks) RoundFloatToInt() bool { return false }

func (h *legacyHooks) TrimWhitespace(s []byte) []byte {
	return trimIf(s, func(c byte) bool { return c == ' ' })
}

func (h *legacyHooks) CastIntToTimestamp(v int64) (int64, error) {
	return secondsToMicros(v)
}

func (h *legacyHooks) CastBoolToTimestamp(v bool) (int64, error) {
	return secondsToMicros(convert.FromBool[int64](v))
}

func (h *legacyHooks) CastDoubleToTimestamp(v float64) (int64, bool, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, status.UserErrorf("cannot cast %v to timestamp", v)
	}
	if v >= 0x1p63/1e6 || v < -0x1p63/1e6 {
		return 0, false, status.UserErrorf("timestamp value %v out of range", v)
	}
	return int64(v * 1e6), false, nil
}

// prestoHooks: ASCII-whitespace trimming, rounding float-to-int,
// no numeric-to-timestamp casts.
type prestoHooks struct{ baseHooks }

func (h *prestoHooks) Policy() CastPolicy    { return CastPresto }
func (h *prestoHooks) ThrowOnUnicode() bool  { return false }
func (h *prestoHooks) RoundFloatToInt() bool { return true }

func (h *prestoHooks) TrimWhitespace(s []byte) []byte {
	return trimIf(s, isASCIISpace)
}

func (h *prestoHooks) CastIntToTimestamp(int64) (int64, error) {
	return 0, status.UserError("cast from integer to timestamp is not supported")
}

func (h *prestoHooks) CastBoolToTimestamp(bool) (int64, error) {
	return 0, status.UserError("cast from boolean to timestamp is not supported")
}

func (h *prestoHooks) CastDoubleToTimestamp(float64) (int64, bool, error) {
	return 0, false, status.UserError("cast from double to timestamp is not supported")
}

// sparkHooks: control-character trimming, non-ASCII rejection on
// integral parses, truncating float-to-int, seconds-based numeric
// timestamps with NaN mapping to null.
type sparkHooks struct{ baseHooks }

func (h *sparkHooks) Policy() CastPolicy    { return CastSpark }
func (h *sparkHooks) ThrowOnUnicode() bool  { return true }
func (h *sparkHooks) RoundFloatToInt() bool { return false }

func (h *sparkHooks) TrimWhitespace(s []byte) []byte {
	return trimIf(s, func(c byte) bool { return c <= ' ' })
}

func (h *sparkHooks) CastIntToTimestamp(v int64) (int64, error) {
	return secondsToMicros(v)
}

func (h *sparkHooks) CastBoolToTimestamp(v bool) (int64, error) {
	return secondsToMicros(convert.FromBool[int64](v))
}

func (h *sparkHooks) CastDoubleToTimestamp(v float64) (int64, bool, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, nil
	}
	if v >= 0x1p63/1e6 || v < -0x1p63/1e6 {
		return 0, false, status.UserErrorf("timestamp value %v out of range", v)
	}
	return int64(v * 1e6), false, nil
}

// sparkTryHooks is Spark with TRY-flavored decimal handling: the
// decimal-to-integral rounding bias is skipped.
type sparkTryHooks struct{ sparkHooks }

func (h *sparkTryHooks) Policy() CastPolicy { return CastSparkTry }

func isASCIISpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func trimIf(s []byte, drop func(byte) bool) []byte {
	start := 0
	for start < len(s) && drop(s[start]) {
		start++
	}
	end := len(s)
	for end > start && drop(s[end-1]) {
		end--
	}
	return s[start:end]
}
