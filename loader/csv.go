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

package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/arbordata/arbor/convert"
	"github.com/arbordata/arbor/decimal"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// ReadCSVFile loads a headered CSV file against the given ROW
// schema. Header names bind columns to schema fields; fields
// absent from the header come back all-null.
func ReadCSVFile(path string, schema *types.Type) (*vector.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: cannot open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, schema)
}

// ReadCSV reads headered CSV from r against the given ROW schema.
// Empty cells and the literal "null" become nulls; other cells are
// parsed as their field's type.
func ReadCSV(r io.Reader, schema *types.Type) (*vector.Row, error) {
	if schema.Kind() != types.Row {
		return nil, fmt.Errorf("loader: CSV schema must be a ROW type, got %s", schema)
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("loader: cannot read CSV header: %w", err)
	}
	// header position -> schema field index, or -1 for columns the
	// schema does not name
	binding := make([]int, len(header))
	for i, name := range header {
		binding[i] = schema.FieldIndex(strings.TrimSpace(name))
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loader: reading CSV rows: %w", err)
	}

	n := len(records)
	fieldTypes := schema.Children()
	cols := make([]vector.Any, len(fieldTypes))
	seen := make([]bool, len(fieldTypes))
	for i, t := range fieldTypes {
		cols[i] = vector.New(t, n)
	}
	for row, record := range records {
		for pos, cell := range record {
			if pos >= len(binding) || binding[pos] < 0 {
				continue
			}
			fi := binding[pos]
			seen[fi] = true
			if err := setCSVValue(cols[fi], fieldTypes[fi], row, strings.TrimSpace(cell)); err != nil {
				return nil, fmt.Errorf("loader: row %d, column %q: %w", row+1, header[pos], err)
			}
		}
	}
	// fields never bound by the header are all-null
	for fi, ok := range seen {
		if !ok {
			for row := 0; row < n; row++ {
				cols[fi].SetNull(row)
			}
		}
	}
	return vector.NewRow(schema, cols, n), nil
}

func setCSVValue(col vector.Any, typ *types.Type, row int, cell string) error {
	if cell == "" || strings.EqualFold(cell, "null") {
		col.SetNull(row)
		return nil
	}
	raw := []byte(cell)
	switch c := col.(type) {
	case *vector.Flat[bool]:
		v, err := convert.ParseBool(raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Flat[int8]:
		v, err := convert.ParseInt[int8](raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Flat[int16]:
		v, err := convert.ParseInt[int16](raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Flat[int32]:
		v, err := convert.ParseInt[int32](raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Flat[int64]:
		v, err := parseWide(typ, raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Flat[float32]:
		v, err := convert.ParseFloat[float32](raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Flat[float64]:
		v, err := convert.ParseFloat[float64](raw)
		if err != nil {
			return err
		}
		c.Set(row, v)
	case *vector.Bytes:
		c.SetString(row, cell)
	default:
		return fmt.Errorf("unsupported CSV field type %s", typ)
	}
	return nil
}

// parseWide handles the three int64-backed kinds: plain BIGINT,
// DECIMAL raw values, and TIMESTAMP microseconds.
func parseWide(typ *types.Type, raw []byte) (int64, error) {
	switch typ.Kind() {
	case types.Decimal:
		p, s := typ.PrecisionScale()
		return decimal.FromString(raw, p, s)
	case types.Timestamp:
		return parseCSVTimestamp(raw)
	default:
		return convert.ParseInt[int64](raw)
	}
}

var csvTimestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

func parseCSVTimestamp(raw []byte) (int64, error) {
	s := string(raw)
	for _, layout := range csvTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMicro(), nil
		}
	}
	return 0, fmt.Errorf("cannot parse %q as timestamp", s)
}
