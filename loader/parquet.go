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
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// ReadParquet loads a flat Parquet file into a batch. Only scalar
// leaf columns are supported; the row type is derived from the
// file schema.
func ReadParquet(path string) (*vector.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: cannot open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("loader: cannot stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("loader: cannot open parquet file %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	fieldTypes := make([]*types.Type, len(fields))
	for i, fld := range fields {
		names[i] = fld.Name()
		t, err := columnType(fld)
		if err != nil {
			return nil, fmt.Errorf("loader: column %q: %w", fld.Name(), err)
		}
		fieldTypes[i] = t
	}

	n := int(pf.NumRows())
	cols := make([]vector.Any, len(fields))
	for i, t := range fieldTypes {
		cols[i] = vector.New(t, n)
	}

	rowIdx := 0
	buf := make([]parquet.Row, 128)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			nread, err := rows.ReadRows(buf)
			for _, prow := range buf[:nread] {
				for _, val := range prow {
					setColumnValue(cols[val.Column()], rowIdx, val)
				}
				rowIdx++
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("loader: reading %s: %w", path, err)
			}
			if nread == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("loader: reading %s: %w", path, err)
		}
	}

	return vector.NewRow(types.RowType(names, fieldTypes), cols, n), nil
}

func columnType(fld parquet.Field) (*types.Type, error) {
	if !fld.Leaf() {
		return nil, fmt.Errorf("nested columns are not supported")
	}
	switch fld.Type().Kind() {
	case parquet.Boolean:
		return types.BooleanType, nil
	case parquet.Int32:
		return types.IntegerType, nil
	case parquet.Int64:
		return types.BigIntType, nil
	case parquet.Float:
		return types.RealType, nil
	case parquet.Double:
		return types.DoubleType, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return types.VarcharType, nil
	default:
		return nil, fmt.Errorf("unsupported parquet kind %s", fld.Type().Kind())
	}
}

func setColumnValue(col vector.Any, row int, val parquet.Value) {
	if val.IsNull() {
		col.SetNull(row)
		return
	}
	switch c := col.(type) {
	case *vector.Flat[bool]:
		c.Set(row, val.Boolean())
	case *vector.Flat[int32]:
		c.Set(row, val.Int32())
	case *vector.Flat[int64]:
		c.Set(row, val.Int64())
	case *vector.Flat[float32]:
		c.Set(row, val.Float())
	case *vector.Flat[float64]:
		c.Set(row, val.Double())
	case *vector.Bytes:
		c.Set(row, val.ByteArray())
	}
}
