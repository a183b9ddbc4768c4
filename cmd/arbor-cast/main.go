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

// arbor-cast applies type casts to the columns of a Parquet or CSV
// file and writes the converted rows as JSON lines, optionally
// zstd-compressed.
//
// Usage:
//
//	arbor-cast [-f config.yaml] [-o out.jsonl[.zst]] [-try]
//	           [-s name:type,...] -c col=type [-c col=type ...] input
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/arbordata/arbor/exec"
	"github.com/arbordata/arbor/expr"
	"github.com/arbordata/arbor/loader"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

type castList []string

func (c *castList) String() string { return strings.Join(*c, ",") }

func (c *castList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

func exitf(f string, args ...any) {
	log.Printf(f, args...)
	os.Exit(1)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("arbor-cast: ")

	var (
		configPath string
		outPath    string
		schemaSpec string
		tryCast    bool
		casts      castList
	)
	flag.StringVar(&configPath, "f", "", "engine configuration (YAML)")
	flag.StringVar(&outPath, "o", "", "output path (default stdout; .zst compresses)")
	flag.StringVar(&schemaSpec, "s", "", "CSV schema as name:type,... (ignored for Parquet)")
	flag.BoolVar(&tryCast, "try", false, "null failed rows instead of reporting them")
	flag.Var(&casts, "c", "cast directive col=type (repeatable)")
	flag.Parse()
	if flag.NArg() != 1 || len(casts) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := exec.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = exec.LoadConfig(configPath)
		if err != nil {
			exitf("loading config: %s", err)
		}
	}

	var schema *types.Type
	if schemaSpec != "" {
		var err error
		schema, err = parseSchema(schemaSpec)
		if err != nil {
			exitf("parsing schema: %s", err)
		}
	}

	input := flag.Arg(0)
	batch, err := loader.Read(input, schema)
	if err != nil {
		exitf("%s", err)
	}

	runID := uuid.NewString()
	log.Printf("run %s: %s, %d rows, policy %s", runID, input, batch.Len(), cfg.CastPolicy)

	names, set, err := compileCasts(batch.Type(), casts, tryCast, cfg)
	if err != nil {
		exitf("%s", err)
	}

	rows := vector.NewSelection(batch.Len())
	ctx := exec.NewEvalCtx(batch, cfg)
	results, err := set.Eval(rows, ctx)
	if err != nil {
		exitf("evaluating casts: %s", err)
	}
	for row, rowErr := range ctx.RowErrors() {
		log.Printf("row %d: %s", row, rowErr)
	}

	out, done, err := openOutput(outPath)
	if err != nil {
		exitf("%s", err)
	}
	if err := writeJSONLines(out, names, results, batch.Len()); err != nil {
		done()
		exitf("writing output: %s", err)
	}
	done()
	if n := len(ctx.RowErrors()); n > 0 {
		exitf("run %s: %d row(s) failed", runID, n)
	}
	log.Printf("run %s: ok", runID)
}

// compileCasts turns col=type directives into a compiled
// expression set over the batch's row type.
func compileCasts(rowType *types.Type, casts []string, try bool, cfg *exec.Config) ([]string, *exec.ExprSet, error) {
	names := make([]string, len(casts))
	sources := make([]expr.Node, len(casts))
	for i, directive := range casts {
		col, typeName, ok := strings.Cut(directive, "=")
		if !ok {
			return nil, nil, fmt.Errorf("bad cast directive %q (want col=type)", directive)
		}
		fi := rowType.FieldIndex(col)
		if fi < 0 {
			return nil, nil, fmt.Errorf("no column %q in input", col)
		}
		target, err := parseType(typeName)
		if err != nil {
			return nil, nil, err
		}
		names[i] = col
		sources[i] = expr.NewCast(target, expr.Field(rowType.Children()[fi], col), try)
	}
	set, err := exec.Compile(sources, cfg)
	if err != nil {
		return nil, nil, err
	}
	return names, set, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		w := bufio.NewWriter(os.Stdout)
		return w, func() { w.Flush() }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return zw, func() { zw.Close(); f.Close() }, nil
	}
	w := bufio.NewWriter(f)
	return w, func() { w.Flush(); f.Close() }, nil
}

func writeJSONLines(w io.Writer, names []string, cols []vector.Any, n int) error {
	enc := json.NewEncoder(w)
	record := make(map[string]any, len(names))
	for row := 0; row < n; row++ {
		for i, name := range names {
			val := vector.ValueAt(cols[i], row)
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			record[name] = val
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

// parseSchema parses name:type,... into a ROW type.
func parseSchema(spec string) (*types.Type, error) {
	var names []string
	var fields []*types.Type
	for _, part := range strings.Split(spec, ",") {
		name, typeName, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("bad schema field %q (want name:type)", part)
		}
		t, err := parseType(typeName)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		fields = append(fields, t)
	}
	return types.RowType(names, fields), nil
}

func parseType(s string) (*types.Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if args, ok := strings.CutPrefix(name, "decimal("); ok {
		args, ok = strings.CutSuffix(args, ")")
		if !ok {
			return nil, fmt.Errorf("bad type %q", s)
		}
		ps, ss, ok := strings.Cut(args, ",")
		if !ok {
			return nil, fmt.Errorf("bad type %q", s)
		}
		p, err := strconv.Atoi(strings.TrimSpace(ps))
		if err != nil {
			return nil, fmt.Errorf("bad type %q", s)
		}
		sc, err := strconv.Atoi(strings.TrimSpace(ss))
		if err != nil {
			return nil, fmt.Errorf("bad type %q", s)
		}
		if p < 1 || p > types.MaxDecimalPrecision || sc < 0 || sc > p {
			return nil, fmt.Errorf("bad decimal parameters in %q", s)
		}
		return types.DecimalType(p, sc), nil
	}
	switch name {
	case "boolean", "bool":
		return types.BooleanType, nil
	case "tinyint":
		return types.TinyIntType, nil
	case "smallint":
		return types.SmallIntType, nil
	case "integer", "int":
		return types.IntegerType, nil
	case "bigint":
		return types.BigIntType, nil
	case "real", "float":
		return types.RealType, nil
	case "double":
		return types.DoubleType, nil
	case "varchar", "string":
		return types.VarcharType, nil
	case "varbinary":
		return types.VarbinaryType, nil
	case "timestamp":
		return types.TimestampType, nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}
