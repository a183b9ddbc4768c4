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

// Package loader reads external files into batches the execution
// engine can evaluate over. Parquet files carry their own schema;
// CSV files are read against a caller-provided row type.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// Read loads the file at path into a batch. The format is picked
// by extension. schema is required for CSV and ignored for
// Parquet, which is self-describing.
func Read(path string, schema *types.Type) (*vector.Row, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return ReadParquet(path)
	case ".csv":
		if schema == nil {
			return nil, fmt.Errorf("loader: CSV requires a schema")
		}
		return ReadCSVFile(path, schema)
	default:
		return nil, fmt.Errorf("loader: unsupported file format %q (supported: .parquet, .csv)", ext)
	}
}
