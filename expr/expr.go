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

// Package expr defines the planner-produced typed expression tree
// that the execution engine compiles. The tree is a closed variant
// over seven node kinds; nodes are immutable and shared, and
// equality and hashing are structural, which is what makes
// common-subexpression deduplication possible.
package expr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/dchest/siphash"

	"github.com/arbordata/arbor/types"
)

// Kind discriminates the node variants.
type Kind uint8

const (
	KindConstant Kind = iota
	KindFieldAccess
	KindDereference
	KindCall
	KindCast
	KindLambda
	KindInput
)

var kindNames = [...]string{
	KindConstant:    "constant",
	KindFieldAccess: "field_access",
	KindDereference: "dereference",
	KindCall:        "call",
	KindCast:        "cast",
	KindLambda:      "lambda",
	KindInput:       "input",
}

func (k Kind) String() string { return kindNames[k] }

// Node is a typed expression tree node. Implementations are
// immutable; the same node may appear multiple times within one
// tree and across trees.
type Node interface {
	// Kind returns the node variant.
	Kind() Kind
	// Type returns the node's resolved result type.
	Type() *types.Type
	// Inputs returns the node's ordered child expressions.
	Inputs() []Node
	// Equal returns whether other has the same structure: the
	// same shape, identifiers, and types.
	Equal(other Node) bool

	fmt.Stringer

	// encode appends a stable structural spelling used for
	// hashing; equal nodes produce equal encodings.
	encode(dst []byte) []byte
}

// arbitrary but fixed siphash keys; the hash only needs to be
// stable within one process
const hashK0 = 0x67e53f1d7c29a0b3
const hashK1 = 0x15d8f0c44a6e9b72

// Hash returns a stable structural hash of n.
func Hash(n Node) uint64 {
	return siphash.Hash(hashK0, hashK1, n.encode(nil))
}

// Walk calls fn for n and all of its descendants in pre-order.
// If fn returns false, the node's children are skipped.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, in := range n.Inputs() {
		Walk(in, fn)
	}
}

// Constant is a literal. A nil Value is the typed null literal.
// The dynamic type of Value must match the native representation
// of the node's type.
type Constant struct {
	typ   *types.Type
	Value any
}

// NewConstant returns a literal of the given type.
func NewConstant(typ *types.Type, value any) *Constant {
	return &Constant{typ: typ, Value: value}
}

func (c *Constant) Kind() Kind        { return KindConstant }
func (c *Constant) Type() *types.Type { return c.typ }
func (c *Constant) Inputs() []Node    { return nil }

func (c *Constant) Equal(other Node) bool {
	o, ok := other.(*Constant)
	return ok && c.typ.Equivalent(o.typ) && valueEqual(c.Value, o.Value)
}

func (c *Constant) String() string {
	if c.Value == nil {
		return "null::" + c.typ.String()
	}
	if b, ok := c.Value.([]byte); ok {
		return fmt.Sprintf("%q", b)
	}
	return fmt.Sprintf("%v", c.Value)
}

func (c *Constant) encode(dst []byte) []byte {
	dst = append(dst, byte(KindConstant))
	dst = c.typ.Append(dst)
	return appendValue(dst, c.Value)
}

// Input is a bare reference to the input row. It may only occur
// as the immediate child of a FieldAccess.
type Input struct {
	typ *types.Type
}

// NewInput returns an input-row reference of the given row type.
func NewInput(typ *types.Type) *Input { return &Input{typ: typ} }

func (i *Input) Kind() Kind        { return KindInput }
func (i *Input) Type() *types.Type { return i.typ }
func (i *Input) Inputs() []Node    { return nil }

func (i *Input) Equal(other Node) bool {
	o, ok := other.(*Input)
	return ok && i.typ.Equivalent(o.typ)
}

func (i *Input) String() string { return "ROW" }

func (i *Input) encode(dst []byte) []byte {
	dst = append(dst, byte(KindInput))
	return i.typ.Append(dst)
}

// FieldAccess selects a named field. With a nil or Input-kind
// child it refers to a top-level input column; with a ROW-typed
// child it selects a struct field of that expression.
type FieldAccess struct {
	typ  *types.Type
	Of   Node // nil for an implicit input column
	Name string
}

// Field returns a top-level column reference.
func Field(typ *types.Type, name string) *FieldAccess {
	return &FieldAccess{typ: typ, Name: name}
}

// FieldOf returns a field access over of.
func FieldOf(typ *types.Type, of Node, name string) *FieldAccess {
	return &FieldAccess{typ: typ, Of: of, Name: name}
}

func (f *FieldAccess) Kind() Kind        { return KindFieldAccess }
func (f *FieldAccess) Type() *types.Type { return f.typ }

func (f *FieldAccess) Inputs() []Node {
	if f.Of == nil {
		return nil
	}
	return []Node{f.Of}
}

// InputColumn returns whether f refers to a top-level input
// column rather than a nested struct field.
func (f *FieldAccess) InputColumn() bool {
	return f.Of == nil || f.Of.Kind() == KindInput
}

func (f *FieldAccess) Equal(other Node) bool {
	o, ok := other.(*FieldAccess)
	if !ok || f.Name != o.Name || !f.typ.Equivalent(o.typ) {
		return false
	}
	if (f.Of == nil) != (o.Of == nil) {
		return false
	}
	return f.Of == nil || f.Of.Equal(o.Of)
}

func (f *FieldAccess) String() string {
	if f.Of != nil && f.Of.Kind() != KindInput {
		return f.Of.String() + "." + f.Name
	}
	return f.Name
}

func (f *FieldAccess) encode(dst []byte) []byte {
	dst = append(dst, byte(KindFieldAccess))
	dst = f.typ.Append(dst)
	dst = appendString(dst, f.Name)
	if f.Of != nil {
		dst = f.Of.encode(dst)
	}
	return dst
}

// Dereference selects a ROW field by position.
type Dereference struct {
	typ   *types.Type
	Of    Node
	Index int
}

// Deref returns a positional field access over of.
func Deref(typ *types.Type, of Node, index int) *Dereference {
	return &Dereference{typ: typ, Of: of, Index: index}
}

func (d *Dereference) Kind() Kind        { return KindDereference }
func (d *Dereference) Type() *types.Type { return d.typ }
func (d *Dereference) Inputs() []Node    { return []Node{d.Of} }

func (d *Dereference) Equal(other Node) bool {
	o, ok := other.(*Dereference)
	return ok && d.Index == o.Index && d.typ.Equivalent(o.typ) && d.Of.Equal(o.Of)
}

func (d *Dereference) String() string {
	return fmt.Sprintf("%s.[%d]", d.Of, d.Index)
}

func (d *Dereference) encode(dst []byte) []byte {
	dst = append(dst, byte(KindDereference))
	dst = d.typ.Append(dst)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(d.Index))
	return d.Of.encode(dst)
}

// Call is a named function application.
type Call struct {
	typ  *types.Type
	Name string
	Args []Node
}

// NewCall returns a call to the named function.
func NewCall(typ *types.Type, name string, args ...Node) *Call {
	return &Call{typ: typ, Name: name, Args: args}
}

func (c *Call) Kind() Kind        { return KindCall }
func (c *Call) Type() *types.Type { return c.typ }
func (c *Call) Inputs() []Node    { return c.Args }

func (c *Call) Equal(other Node) bool {
	o, ok := other.(*Call)
	if !ok || c.Name != o.Name || !c.typ.Equivalent(o.typ) || len(c.Args) != len(o.Args) {
		return false
	}
	for i := range c.Args {
		if !c.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

func (c *Call) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteString("(")
	for i, a := range c.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}

func (c *Call) encode(dst []byte) []byte {
	dst = append(dst, byte(KindCall))
	dst = c.typ.Append(dst)
	dst = appendString(dst, c.Name)
	dst = append(dst, byte(len(c.Args)))
	for _, a := range c.Args {
		dst = a.encode(dst)
	}
	return dst
}

// Cast converts its input to the node's result type. Try selects
// TRY_CAST semantics (null on failure) over CAST.
type Cast struct {
	typ *types.Type
	Of  Node
	Try bool
}

// NewCast returns a CAST (or TRY_CAST) of the given expression.
func NewCast(typ *types.Type, of Node, try bool) *Cast {
	return &Cast{typ: typ, Of: of, Try: try}
}

func (c *Cast) Kind() Kind        { return KindCast }
func (c *Cast) Type() *types.Type { return c.typ }
func (c *Cast) Inputs() []Node    { return []Node{c.Of} }

func (c *Cast) Equal(other Node) bool {
	o, ok := other.(*Cast)
	return ok && c.Try == o.Try && c.typ.Equivalent(o.typ) && c.Of.Equal(o.Of)
}

func (c *Cast) String() string {
	name := "CAST"
	if c.Try {
		name = "TRY_CAST"
	}
	return fmt.Sprintf("%s(%s AS %s)", name, c.Of, c.typ)
}

func (c *Cast) encode(dst []byte) []byte {
	dst = append(dst, byte(KindCast))
	if c.Try {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	dst = c.typ.Append(dst)
	return c.Of.encode(dst)
}

// Lambda is an anonymous function literal: named, typed formal
// parameters plus a body that may reference both the parameters
// and fields of enclosing scopes.
type Lambda struct {
	typ        *types.Type // FUNCTION type
	Params     []string
	ParamTypes []*types.Type
	Body       Node
}

// NewLambda returns a lambda with the given formal parameters.
func NewLambda(params []string, paramTypes []*types.Type, body Node) *Lambda {
	if len(params) != len(paramTypes) {
		panic("expr: lambda parameter name/type count mismatch")
	}
	return &Lambda{
		typ:        types.FuncType(paramTypes, body.Type()),
		Params:     params,
		ParamTypes: paramTypes,
		Body:       body,
	}
}

func (l *Lambda) Kind() Kind        { return KindLambda }
func (l *Lambda) Type() *types.Type { return l.typ }
func (l *Lambda) Inputs() []Node    { return []Node{l.Body} }

func (l *Lambda) Equal(other Node) bool {
	o, ok := other.(*Lambda)
	if !ok || len(l.Params) != len(o.Params) {
		return false
	}
	for i := range l.Params {
		if l.Params[i] != o.Params[i] || !l.ParamTypes[i].Equivalent(o.ParamTypes[i]) {
			return false
		}
	}
	return l.Body.Equal(o.Body)
}

func (l *Lambda) String() string {
	return fmt.Sprintf("(%s) -> %s", strings.Join(l.Params, ", "), l.Body)
}

func (l *Lambda) encode(dst []byte) []byte {
	dst = append(dst, byte(KindLambda))
	dst = append(dst, byte(len(l.Params)))
	for i, p := range l.Params {
		dst = appendString(dst, p)
		dst = l.ParamTypes[i].Append(dst)
	}
	return l.Body.encode(dst)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

func appendValue(dst []byte, v any) []byte {
	switch vv := v.(type) {
	case nil:
		return append(dst, 0)
	case bool:
		if vv {
			return append(dst, 1, 1)
		}
		return append(dst, 1, 0)
	case int8:
		return append(dst, 2, byte(vv))
	case int16:
		dst = append(dst, 3)
		return binary.LittleEndian.AppendUint16(dst, uint16(vv))
	case int32:
		dst = append(dst, 4)
		return binary.LittleEndian.AppendUint32(dst, uint32(vv))
	case int64:
		dst = append(dst, 5)
		return binary.LittleEndian.AppendUint64(dst, uint64(vv))
	case float32:
		dst = append(dst, 6)
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(vv))
	case float64:
		dst = append(dst, 7)
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(vv))
	case []byte:
		dst = append(dst, 8)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(vv)))
		return append(dst, vv...)
	default:
		panic(fmt.Sprintf("expr: unsupported literal type %T", v))
	}
}

func valueEqual(a, b any) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok || bok {
		return aok && bok && bytes.Equal(ab, bb)
	}
	return a == b
}
