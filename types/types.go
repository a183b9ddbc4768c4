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

// Package types implements the engine's closed type system:
// a finite set of type kinds plus parameterized decimal, row,
// and function types.
package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Kind is one of the engine's primitive or logical type kinds.
type Kind uint8

const (
	Unknown Kind = iota
	Boolean
	TinyInt
	SmallInt
	Integer
	BigInt
	Real
	Double
	Varchar
	Varbinary
	Timestamp
	Decimal
	Row
	Func
)

var kindNames = [...]string{
	Unknown:   "UNKNOWN",
	Boolean:   "BOOLEAN",
	TinyInt:   "TINYINT",
	SmallInt:  "SMALLINT",
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Real:      "REAL",
	Double:    "DOUBLE",
	Varchar:   "VARCHAR",
	Varbinary: "VARBINARY",
	Timestamp: "TIMESTAMP",
	Decimal:   "DECIMAL",
	Row:       "ROW",
	Func:      "FUNCTION",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Integral returns whether k is a signed integer kind.
func (k Kind) Integral() bool {
	return k >= TinyInt && k <= BigInt
}

// Float returns whether k is a floating-point kind.
func (k Kind) Float() bool {
	return k == Real || k == Double
}

// Primitive returns whether k is a scalar kind
// (everything except ROW and FUNCTION).
func (k Kind) Primitive() bool {
	return k != Unknown && k != Row && k != Func
}

// FixedWidth returns whether values of kind k occupy a fixed
// number of bytes in a flat vector.
func (k Kind) FixedWidth() bool {
	return k.Primitive() && k != Varchar && k != Varbinary
}

// VariableLength returns whether k is a string-like kind.
func (k Kind) VariableLength() bool {
	return k == Varchar || k == Varbinary
}

// Type is a resolved type: a kind plus kind-specific parameters.
// Types are immutable once constructed; the primitive types are
// shared package-level singletons.
type Type struct {
	kind      Kind
	precision int // decimal
	scale     int // decimal
	names     []string
	children  []*Type
}

var (
	BooleanType   = &Type{kind: Boolean}
	TinyIntType   = &Type{kind: TinyInt}
	SmallIntType  = &Type{kind: SmallInt}
	IntegerType   = &Type{kind: Integer}
	BigIntType    = &Type{kind: BigInt}
	RealType      = &Type{kind: Real}
	DoubleType    = &Type{kind: Double}
	VarcharType   = &Type{kind: Varchar}
	VarbinaryType = &Type{kind: Varbinary}
	TimestampType = &Type{kind: Timestamp}
	UnknownType   = &Type{kind: Unknown}
)

// Primitive returns the shared singleton for a non-parameterized
// primitive kind, or nil if k requires parameters.
func Primitive(k Kind) *Type {
	switch k {
	case Boolean:
		return BooleanType
	case TinyInt:
		return TinyIntType
	case SmallInt:
		return SmallIntType
	case Integer:
		return IntegerType
	case BigInt:
		return BigIntType
	case Real:
		return RealType
	case Double:
		return DoubleType
	case Varchar:
		return VarcharType
	case Varbinary:
		return VarbinaryType
	case Timestamp:
		return TimestampType
	default:
		return nil
	}
}

// MaxDecimalPrecision is the largest precision representable by
// the 64-bit raw decimal encoding.
const MaxDecimalPrecision = 18

// DecimalType returns a DECIMAL(precision, scale) type.
// The precision must be in [1, MaxDecimalPrecision] and the
// scale in [0, precision].
func DecimalType(precision, scale int) *Type {
	if precision < 1 || precision > MaxDecimalPrecision {
		panic(fmt.Sprintf("types: decimal precision %d out of range", precision))
	}
	if scale < 0 || scale > precision {
		panic(fmt.Sprintf("types: decimal scale %d out of range for precision %d", scale, precision))
	}
	return &Type{kind: Decimal, precision: precision, scale: scale}
}

// RowType returns a ROW type with the given field names and types.
func RowType(names []string, fields []*Type) *Type {
	if len(names) != len(fields) {
		panic("types: row field name/type count mismatch")
	}
	return &Type{kind: Row, names: names, children: fields}
}

// FuncType returns a FUNCTION type taking params and returning ret.
func FuncType(params []*Type, ret *Type) *Type {
	children := make([]*Type, 0, len(params)+1)
	children = append(children, params...)
	children = append(children, ret)
	return &Type{kind: Func, children: children}
}

func (t *Type) Kind() Kind { return t.kind }

// PrecisionScale returns the decimal parameters of t.
// It panics if t is not a decimal type.
func (t *Type) PrecisionScale() (precision, scale int) {
	if t.kind != Decimal {
		panic("types: PrecisionScale on non-decimal type " + t.String())
	}
	return t.precision, t.scale
}

// Children returns the child types of a ROW or FUNCTION type.
func (t *Type) Children() []*Type { return t.children }

// FieldNames returns the field names of a ROW type.
func (t *Type) FieldNames() []string { return t.names }

// FieldIndex returns the index of the named field of a ROW type,
// or -1 if no such field exists.
func (t *Type) FieldIndex(name string) int {
	return slices.Index(t.names, name)
}

// ReturnType returns the result type of a FUNCTION type.
func (t *Type) ReturnType() *Type {
	if t.kind != Func || len(t.children) == 0 {
		panic("types: ReturnType on non-function type " + t.String())
	}
	return t.children[len(t.children)-1]
}

// ParamTypes returns the parameter types of a FUNCTION type.
func (t *Type) ParamTypes() []*Type {
	if t.kind != Func || len(t.children) == 0 {
		panic("types: ParamTypes on non-function type " + t.String())
	}
	return t.children[:len(t.children)-1]
}

// Equivalent returns whether t and other name the same type.
// Row field names do not participate; decimal parameters and
// child types do.
func (t *Type) Equivalent(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.kind != other.kind {
		return false
	}
	if t.kind == Decimal {
		return t.precision == other.precision && t.scale == other.scale
	}
	if len(t.children) != len(other.children) {
		return false
	}
	for i := range t.children {
		if !t.children[i].Equivalent(other.children[i]) {
			return false
		}
	}
	return true
}

func (t *Type) String() string {
	switch t.kind {
	case Decimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.precision, t.scale)
	case Row:
		var sb strings.Builder
		sb.WriteString("ROW(")
		for i, c := range t.children {
			if i > 0 {
				sb.WriteString(", ")
			}
			if i < len(t.names) && t.names[i] != "" {
				sb.WriteString(t.names[i])
				sb.WriteString(" ")
			}
			sb.WriteString(c.String())
		}
		sb.WriteString(")")
		return sb.String()
	case Func:
		var sb strings.Builder
		sb.WriteString("FUNCTION(")
		params := t.children[:len(t.children)-1]
		for i, c := range params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.String())
		}
		sb.WriteString(") -> ")
		sb.WriteString(t.children[len(t.children)-1].String())
		return sb.String()
	default:
		return t.kind.String()
	}
}

// Append writes a canonical binary spelling of t to dst and
// returns the extended slice. The encoding is stable and agrees
// with Equivalent: equivalent types encode identically, so it can
// back structural hashing. Row field names are excluded, exactly
// as Equivalent excludes them.
func (t *Type) Append(dst []byte) []byte {
	dst = append(dst, byte(t.kind))
	switch t.kind {
	case Decimal:
		dst = append(dst, byte(t.precision), byte(t.scale))
	case Row, Func:
		dst = append(dst, byte(len(t.children)))
		for _, c := range t.children {
			dst = c.Append(dst)
		}
	}
	return dst
}
