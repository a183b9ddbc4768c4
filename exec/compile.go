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
	"fmt"
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/arbordata/arbor/expr"
	"github.com/arbordata/arbor/status"
	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// RewriteRule inspects a source node and returns a replacement,
// or nil to pass. Rules run in registration order; the first
// non-nil replacement wins.
type RewriteRule func(expr.Node) expr.Node

var (
	rewriteMu sync.RWMutex
	rewrites  []RewriteRule
)

// RegisterRewrite appends a rewrite rule applied to every source
// node before compilation.
func RegisterRewrite(rule RewriteRule) {
	rewriteMu.Lock()
	defer rewriteMu.Unlock()
	rewrites = append(rewrites, rule)
}

func rewriteExpression(n expr.Node) expr.Node {
	rewriteMu.RLock()
	defer rewriteMu.RUnlock()
	for _, rule := range rewrites {
		if out := rule(n); out != nil {
			return out
		}
	}
	return n
}

// dedupMap deduplicates source subtrees within one lexical scope.
// Keys are structural hashes; collisions are resolved with deep
// structural equality, never source-pointer identity.
type dedupMap map[uint64][]dedupEntry

type dedupEntry struct {
	src      expr.Node
	compiled Expr
}

func (m dedupMap) lookup(n expr.Node) Expr {
	for _, e := range m[expr.Hash(n)] {
		if e.src.Equal(n) {
			return e.compiled
		}
	}
	return nil
}

func (m dedupMap) insert(n expr.Node, compiled Expr) {
	h := expr.Hash(n)
	m[h] = append(m[h], dedupEntry{src: n, compiled: compiled})
}

// scope is a lexical scope. The top-level scope has no locals and
// no parent and is shared by all of an ExprSet's sources; each
// lambda introduces a child scope whose locals are its formal
// parameters. Subexpression deduplication only applies within one
// scope; references crossing scope boundaries become captures.
type scope struct {
	locals []string
	parent *scope
	set    *ExprSet

	// capture, captureRefs, and captureAccesses correspond 1:1:
	// enclosing-scope fields referenced from this or an inner
	// scope
	capture         []string
	captureRefs     []*FieldRef
	captureAccesses []expr.Node

	visited dedupMap

	// rewritten keeps replacement nodes reachable for the
	// lifetime of the compile, since compiled nodes may be keyed
	// by them in 'visited'
	rewritten []expr.Node
}

func newScope(locals []string, parent *scope, set *ExprSet) *scope {
	return &scope{locals: locals, parent: parent, set: set, visited: make(dedupMap)}
}

func (sc *scope) addCapture(ref *FieldRef, access expr.Node) {
	sc.capture = append(sc.capture, ref.Field())
	sc.captureRefs = append(sc.captureRefs, ref)
	sc.captureAccesses = append(sc.captureAccesses, access)
}

type compiler struct {
	cfg        *Config
	set        *ExprSet
	flattening map[string]struct{}
	fold       bool
}

// Compile compiles each source tree into an executable expression
// DAG. All sources share one top-level scope, so structurally
// equal subtrees across sources collapse to one shared node. The
// returned ExprSet owns the compiled nodes.
func Compile(sources []expr.Node, cfg *Config) (*ExprSet, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	set := &ExprSet{cfg: cfg}
	c := &compiler{
		cfg:        cfg,
		set:        set,
		flattening: collectFlatteningCandidates(sources),
		fold:       !cfg.DisableConstantFolding,
	}
	sc := newScope(nil, nil, set)
	for _, src := range sources {
		compiled, err := c.compileExpr(src, sc)
		if err != nil {
			return nil, err
		}
		set.exprs = append(set.exprs, compiled)
	}
	return set, nil
}

// collectFlatteningCandidates pre-scans all sources for call names
// whose vector-function metadata supports flattening, so the
// registry is locked once per compile rather than per call.
func collectFlatteningCandidates(sources []expr.Node) map[string]struct{} {
	names := make(map[string]struct{})
	for _, src := range sources {
		expr.Walk(src, func(n expr.Node) bool {
			if call, ok := n.(*expr.Call); ok {
				names[call.Name] = struct{}{}
			}
			return true
		})
	}
	return flatteningCandidates(names)
}

func (c *compiler) compileExpr(n expr.Node, sc *scope) (Expr, error) {
	rewritten := rewriteExpression(n)
	if rewritten != n {
		sc.rewritten = append(sc.rewritten, rewritten)
		n = rewritten
	}
	return c.compileRewritten(n, sc)
}

func (c *compiler) compileRewritten(n expr.Node, sc *scope) (Expr, error) {
	if cached := sc.visited.lookup(n); cached != nil {
		if !cached.MultiplyReferenced() {
			// the node just became shared: register it for
			// per-batch state reset and recompute metadata that
			// depends on sharing
			c.set.addToReset(cached)
			cached.setMultiplyReferenced()
			cached.clearMetadata()
			cached.computeMetadata()
		}
		return cached, nil
	}

	// a lambda's body belongs to the lambda's own scope, not here
	var inputs []Expr
	var err error
	if n.Kind() != expr.KindLambda {
		inputs, err = c.compileInputs(n, sc)
		if err != nil {
			return nil, err
		}
	}

	var result Expr
	switch node := n.(type) {
	case *expr.Cast:
		result, err = c.compileCast(node, inputs)
	case *expr.Call:
		result, err = c.compileCall(node, inputs)
	case *expr.FieldAccess:
		ref := newFieldRef(node.Type(), inputs, node.Name)
		if node.InputColumn() {
			// only top-level column references capture, not
			// struct fields
			captureFieldRef(ref, n, sc)
		}
		result = ref
	case *expr.Dereference:
		result = newFieldRefIndex(node.Type(), inputs, node.Index)
	case *expr.Constant:
		result = newConstantExpr(vector.NewConst(node.Type(), 1, node.Value))
	case *expr.Lambda:
		result, err = c.compileLambda(node, sc)
	case *expr.Input:
		return nil, status.Unsupportedf("input expression is not supported standalone")
	default:
		return nil, status.Unsupportedf("unknown typed expression %T", n)
	}
	if err != nil {
		return nil, err
	}

	result.computeMetadata()

	compiled := result
	if c.fold {
		if _, isConst := result.(*ConstantExpr); !isConst {
			compiled, err = c.tryFoldIfConstant(result)
			// folding evaluates through the half-built ExprSet;
			// drop any execution state it left behind
			c.set.Clear()
			if err != nil {
				return nil, err
			}
		}
	}
	sc.visited.insert(n, compiled)
	return compiled, nil
}

func (c *compiler) compileInputs(n expr.Node, sc *scope) ([]Expr, error) {
	var compiled []Expr
	flattenName, flatten := c.shouldFlatten(n)
	for _, in := range n.Inputs() {
		if in.Kind() == expr.KindInput {
			if n.Kind() != expr.KindFieldAccess {
				return nil, fmt.Errorf("an input reference can only occur under a field access")
			}
			// the enclosing FieldRef reads the batch directly
			continue
		}
		if flatten {
			var flat []expr.Node
			flattenInput(in, flattenName, &flat)
			for _, f := range flat {
				e, err := c.compileExpr(f, sc)
				if err != nil {
					return nil, err
				}
				compiled = append(compiled, e)
			}
			continue
		}
		e, err := c.compileExpr(in, sc)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, e)
	}
	return compiled, nil
}

// shouldFlatten reports whether n is an associative call whose
// nested occurrences may be collapsed: AND/OR always; a registered
// function only when its metadata allows it and all inputs share
// one equivalent type.
func (c *compiler) shouldFlatten(n expr.Node) (string, bool) {
	call, ok := n.(*expr.Call)
	if !ok {
		return "", false
	}
	if call.Name == formAnd || call.Name == formOr {
		return call.Name, true
	}
	if _, ok := c.flattening[call.Name]; ok && allInputTypesEquivalent(n) {
		return call.Name, true
	}
	return "", false
}

func allInputTypesEquivalent(n expr.Node) bool {
	inputs := n.Inputs()
	for i := 1; i < len(inputs); i++ {
		if !inputs[0].Type().Equivalent(inputs[i].Type()) {
			return false
		}
	}
	return true
}

func isCall(n expr.Node, name string) bool {
	call, ok := n.(*expr.Call)
	return ok && call.Name == name
}

// flattenInput recursively absorbs nested calls of the identical
// operator into flat, stopping a branch at the first differing
// operator or differing input types.
func flattenInput(in expr.Node, flattenCall string, flat *[]expr.Node) {
	if isCall(in, flattenCall) && allInputTypesEquivalent(in) {
		for _, child := range in.Inputs() {
			flattenInput(child, flattenCall, flat)
		}
		return
	}
	*flat = append(*flat, in)
}

func (c *compiler) compileCast(cast *expr.Cast, inputs []Expr) (Expr, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("cast expects 1 input, got %d", len(inputs))
	}
	// identity casts are elided entirely
	if cast.Type().Equivalent(inputs[0].Type()) {
		return inputs[0], nil
	}
	form := formCast
	if cast.Try {
		form = formTryCast
	}
	return lookupSpecialForm(form)(cast.Type(), inputs, c.cfg.TrackCPUUsage, c.cfg)
}

func (c *compiler) compileCall(call *expr.Call, inputs []Expr) (Expr, error) {
	if ctor := lookupSpecialForm(call.Name); ctor != nil {
		return ctor(call.Type(), inputs, c.cfg.TrackCPUUsage, c.cfg)
	}

	argTypes := make([]*types.Type, len(inputs))
	for i, in := range inputs {
		argTypes[i] = in.Type()
	}
	constants := constantInputs(inputs)

	if kernel, meta, ok := resolveVector(call.Name, argTypes, constants, c.cfg); ok {
		return newFuncExpr(call.Type(), call.Name, inputs, kernel, meta, c.cfg.TrackCPUUsage), nil
	}

	if entry := resolveSimple(call.Name, argTypes); entry != nil {
		if !call.Type().Equivalent(entry.ReturnType) {
			return nil, fmt.Errorf(
				"incompatible return types for %q (%s vs. %s) for input types (%s)",
				call.Name, entry.ReturnType, call.Type(), typeList(argTypes))
		}
		kernel := entry.Factory(argTypes, constants, c.cfg)
		return newFuncExpr(call.Type(), call.Name, inputs, kernel, entry.Meta, c.cfg.TrackCPUUsage), nil
	}

	sigs := knownSignatures(call.Name)
	if len(sigs) == 0 {
		return nil, fmt.Errorf(
			"scalar function name not registered: %s, called with arguments: (%s)",
			call.Name, typeList(argTypes))
	}
	return nil, fmt.Errorf(
		"scalar function %s not registered with arguments: (%s); "+
			"found function registered with the following signatures:\n%s",
		call.Name, typeList(argTypes), strings.Join(sigs, "\n"))
}

func typeList(ts []*types.Type) string {
	strs := make([]string, len(ts))
	for i, t := range ts {
		strs[i] = t.String()
	}
	return strings.Join(strs, ", ")
}

// constantInputs returns a vector per input, set for inputs that
// are compile-time constants and nil elsewhere; registries use
// these as specialization hints.
func constantInputs(inputs []Expr) []vector.Any {
	out := make([]vector.Any, len(inputs))
	for i, in := range inputs {
		if ce, ok := in.(*ConstantExpr); ok {
			out[i] = ce.Value()
		}
	}
	return out
}

// captureFieldRef records ref as a capture in every enclosing
// scope, walking upward until the field is a local or already
// captured; a field referenced twice captures once.
func captureFieldRef(ref *FieldRef, access expr.Node, refScope *scope) {
	field := ref.Field()
	for sc := refScope; sc.parent != nil; sc = sc.parent {
		if slices.Contains(sc.locals, field) || slices.Contains(sc.capture, field) {
			return
		}
		sc.addCapture(ref, access)
	}
}

func (c *compiler) compileLambda(lambda *expr.Lambda, sc *scope) (Expr, error) {
	child := newScope(slices.Clone(lambda.Params), sc, c.set)
	body, err := c.compileExpr(lambda.Body, child)
	if err != nil {
		return nil, err
	}

	// captures must be reachable from the parent scope as
	// ordinary field references, deduplicated like any other
	// subexpression
	captures := make([]*FieldRef, 0, len(child.capture))
	for i := range child.capture {
		access := child.captureAccesses[i]
		ref := sc.visited.lookup(access)
		if ref == nil {
			inner := child.captureRefs[i]
			outer := newFieldRef(inner.Type(), nil, inner.Field())
			outer.computeMetadata()
			sc.visited.insert(access, outer)
			ref = outer
		}
		captures = append(captures, ref.(*FieldRef))
	}

	fnType := types.FuncType(lambda.ParamTypes, body.Type())
	return newLambdaExpr(fnType, lambda.Params, lambda.ParamTypes, captures, body, c.cfg.TrackCPUUsage), nil
}

// tryFoldIfConstant evaluates a constant-foldable node over one
// synthetic row with zero columns and replaces it with the result
// literal. If folding fails with a user error the node is kept
// as-is: the same failure will occur, or be skipped, during real
// execution depending on actual data.
func (c *compiler) tryFoldIfConstant(e Expr) (Expr, error) {
	if !e.ConstantFoldable() {
		return e, nil
	}
	batch := vector.NewRow(types.RowType(nil, nil), nil, 1)
	ctx := NewEvalCtx(batch, c.cfg)
	rows := vector.NewSelection(1)
	out, err := e.Eval(rows, ctx)
	if err != nil {
		if status.IsUserError(err) {
			return e, nil
		}
		return nil, err
	}
	if ctx.HasRowErrors() {
		// a user error recorded per row: keep the node unfolded;
		// the same failure recurs, or is skipped, at execution
		// time depending on actual data
		return e, nil
	}
	folded := newConstantExpr(vector.Wrap(out, 0, 1))
	if e.MultiplyReferenced() {
		folded.setMultiplyReferenced()
	}
	return folded, nil
}
