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

package convert

import (
	"math"
	"testing"

	"github.com/arbordata/arbor/status"
)

func TestIntToInt(t *testing.T) {
	if v, err := IntToInt[int64, int8](127); err != nil || v != 127 {
		t.Errorf("127 -> int8 = %d, %v", v, err)
	}
	if _, err := IntToInt[int64, int8](128); !status.IsUserError(err) {
		t.Errorf("128 -> int8 err = %v", err)
	}
	if v, err := IntToInt[int64, int8](-128); err != nil || v != -128 {
		t.Errorf("-128 -> int8 = %d, %v", v, err)
	}
	if _, err := IntToInt[int64, int32](math.MaxInt32 + 1); err == nil {
		t.Error("int32 overflow not detected")
	}
}

func TestFloatToInt(t *testing.T) {
	cases := []struct {
		v     float64
		round bool
		want  int64
		ok    bool
	}{
		{2.5, true, 3, true},
		{2.5, false, 2, true},
		{-2.5, true, -3, true},
		{-2.5, false, -2, true},
		{2.4, true, 2, true},
		{0x1p63, false, 0, false},
		{-0x1p63, false, math.MinInt64, true},
		{math.NaN(), false, 0, false},
		{math.Inf(1), true, 0, false},
	}
	for _, tc := range cases {
		got, err := FloatToInt[float64, int64](tc.v, tc.round)
		if tc.ok != (err == nil) {
			t.Errorf("FloatToInt(%v, %v): err = %v", tc.v, tc.round, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("FloatToInt(%v, %v) = %d, want %d", tc.v, tc.round, got, tc.want)
		}
	}
}

func TestFloatToFloat(t *testing.T) {
	if v, err := FloatToFloat[float64, float32](1.5); err != nil || v != 1.5 {
		t.Errorf("1.5 -> float32 = %v, %v", v, err)
	}
	if _, err := FloatToFloat[float64, float32](math.MaxFloat64); err == nil {
		t.Error("float32 overflow not detected")
	}
	// infinities pass through unchanged
	if v, err := FloatToFloat[float64, float32](math.Inf(-1)); err != nil || !math.IsInf(float64(v), -1) {
		t.Errorf("-Inf -> float32 = %v, %v", v, err)
	}
}

func TestParseInt(t *testing.T) {
	if v, err := ParseInt[int64]([]byte("-42")); err != nil || v != -42 {
		t.Errorf("-42 = %d, %v", v, err)
	}
	if _, err := ParseInt[int8]([]byte("200")); !status.IsUserError(err) {
		t.Errorf("200 -> int8 err = %v", err)
	}
	for _, bad := range []string{"", "1.5", "abc", "1e3"} {
		if _, err := ParseInt[int64]([]byte(bad)); err == nil {
			t.Errorf("ParseInt(%q) should fail", bad)
		}
	}
}

func TestParseBool(t *testing.T) {
	truthy := []string{"t", "T", "1", "true", "TRUE", "True"}
	falsy := []string{"f", "F", "0", "false", "FALSE"}
	for _, s := range truthy {
		if v, err := ParseBool([]byte(s)); err != nil || !v {
			t.Errorf("ParseBool(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range falsy {
		if v, err := ParseBool([]byte(s)); err != nil || v {
			t.Errorf("ParseBool(%q) = %v, %v", s, v, err)
		}
	}
	for _, bad := range []string{"", "yes", "truth", "10"} {
		if _, err := ParseBool([]byte(bad)); err == nil {
			t.Errorf("ParseBool(%q) should fail", bad)
		}
	}
}

func TestAppendRoundTrip(t *testing.T) {
	if got := string(AppendInt(nil, int64(-7))); got != "-7" {
		t.Errorf("AppendInt = %q", got)
	}
	if got := string(AppendFloat(nil, 0.25, 64)); got != "0.25" {
		t.Errorf("AppendFloat = %q", got)
	}
	if got := string(AppendBool(nil, true)); got != "true" {
		t.Errorf("AppendBool = %q", got)
	}
}

func TestIsASCII(t *testing.T) {
	if !IsASCII([]byte("hello 123\t")) {
		t.Error("plain ASCII rejected")
	}
	if IsASCII([]byte("héllo")) {
		t.Error("non-ASCII accepted")
	}
}
