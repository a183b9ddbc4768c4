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
	"encoding/json"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// CastPolicy selects the dialect whose cast semantics apply.
type CastPolicy uint8

const (
	CastLegacy CastPolicy = iota
	CastPresto
	CastSpark
	CastSparkTry
)

var policyNames = [...]string{
	CastLegacy:   "legacy",
	CastPresto:   "presto",
	CastSpark:    "spark",
	CastSparkTry: "spark_try",
}

func (p CastPolicy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("CastPolicy(%d)", int(p))
}

// ParseCastPolicy parses a policy name as spelled in config files.
func ParseCastPolicy(s string) (CastPolicy, error) {
	for i, name := range policyNames {
		if s == name {
			return CastPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown cast policy %q", s)
}

// MarshalJSON implements json.Marshaler.
func (p CastPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *CastPolicy) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCastPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Config carries the engine options this package recognizes.
// A Config is immutable once handed to Compile.
type Config struct {
	// CastPolicy selects Legacy, Presto, Spark, or SparkTry
	// cast semantics.
	CastPolicy CastPolicy `json:"cast_policy"`
	// TrackCPUUsage enables per-expression timing.
	TrackCPUUsage bool `json:"track_cpu_usage"`
	// CaptureErrorDetails includes human-readable detail in
	// per-row cast failures recorded on the EvalCtx.
	CaptureErrorDetails bool `json:"capture_error_details"`
	// CastDecimalTruncate makes decimal-to-integral casts
	// truncate instead of round.
	CastDecimalTruncate bool `json:"cast_decimal_truncate"`
	// DisableConstantFolding turns off compile-time evaluation
	// of constant subexpressions.
	DisableConstantFolding bool `json:"disable_constant_folding"`
}

// DefaultConfig returns the default engine configuration:
// Presto cast semantics, no tracking, folding enabled.
func DefaultConfig() *Config {
	return &Config{CastPolicy: CastPresto}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
