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

	"github.com/arbordata/arbor/types"
	"github.com/arbordata/arbor/vector"
)

// Metadata describes a function's execution properties.
type Metadata struct {
	// Deterministic: same inputs always produce the same output.
	Deterministic bool
	// DefaultNulls: a null in any input makes the output null.
	DefaultNulls bool
	// SupportsFlattening: nested calls of this function over
	// equally-typed inputs may be collapsed into one n-ary call.
	SupportsFlattening bool
}

// Kernel executes one function over the selected rows of its
// already-evaluated argument vectors.
type Kernel func(rows *vector.Selection, args []vector.Any, ctx *EvalCtx, resultType *types.Type) (vector.Any, error)

// SimpleEntry is a strict-signature scalar function registration:
// exact argument types, a declared return type, and a factory.
type SimpleEntry struct {
	ArgTypes   []*types.Type
	ReturnType *types.Type
	Meta       Metadata
	// Factory builds the kernel; constants holds the argument
	// positions that are compile-time constants (nil elsewhere),
	// enabling specialization.
	Factory func(argTypes []*types.Type, constants []vector.Any, cfg *Config) Kernel
}

func (e *SimpleEntry) signature() string {
	args := make([]string, len(e.ArgTypes))
	for i, t := range e.ArgTypes {
		args[i] = t.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(args, ", "), e.ReturnType)
}

// VectorEntry is a vector-function registration: a factory that
// is consulted with resolved input types and constant-input hints
// and may decline, plus metadata and a human-readable signature
// for diagnostics.
type VectorEntry struct {
	Meta      Metadata
	Signature string
	Factory   func(name string, argTypes []*types.Type, constants []vector.Any, cfg *Config) (Kernel, bool)
}

// The registries are package-level, read-many/write-rare, and
// lock-protected; registration normally happens at init time.
var (
	simpleMu    sync.RWMutex
	simpleFuncs = make(map[string][]*SimpleEntry)

	vectorMu    sync.RWMutex
	vectorFuncs = make(map[string]*VectorEntry)
)

// RegisterSimple registers a strict-signature scalar function.
// Multiple entries per name are allowed; resolution picks the
// first whose argument types match exactly.
func RegisterSimple(name string, entry *SimpleEntry) {
	simpleMu.Lock()
	defer simpleMu.Unlock()
	simpleFuncs[name] = append(simpleFuncs[name], entry)
}

// RegisterVector registers a vector function under name,
// replacing any previous registration.
func RegisterVector(name string, entry *VectorEntry) {
	vectorMu.Lock()
	defer vectorMu.Unlock()
	vectorFuncs[name] = entry
}

func resolveSimple(name string, argTypes []*types.Type) *SimpleEntry {
	simpleMu.RLock()
	defer simpleMu.RUnlock()
outer:
	for _, e := range simpleFuncs[name] {
		if len(e.ArgTypes) != len(argTypes) {
			continue
		}
		for i := range argTypes {
			if !e.ArgTypes[i].Equivalent(argTypes[i]) {
				continue outer
			}
		}
		return e
	}
	return nil
}

func resolveVector(name string, argTypes []*types.Type, constants []vector.Any, cfg *Config) (Kernel, Metadata, bool) {
	vectorMu.RLock()
	entry := vectorFuncs[name]
	vectorMu.RUnlock()
	if entry == nil {
		return nil, Metadata{}, false
	}
	kernel, ok := entry.Factory(name, argTypes, constants, cfg)
	if !ok {
		return nil, Metadata{}, false
	}
	return kernel, entry.Meta, true
}

// knownSignatures reports every registered signature for name,
// from both registries, for resolution diagnostics.
func knownSignatures(name string) []string {
	var sigs []string
	vectorMu.RLock()
	if e := vectorFuncs[name]; e != nil && e.Signature != "" {
		sigs = append(sigs, e.Signature)
	}
	vectorMu.RUnlock()
	simpleMu.RLock()
	for _, e := range simpleFuncs[name] {
		sigs = append(sigs, e.signature())
	}
	simpleMu.RUnlock()
	return sigs
}

// flatteningCandidates returns, out of names, those whose
// vector-function metadata declares flattening support. One lock
// acquisition covers the whole compile.
func flatteningCandidates(names map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	vectorMu.RLock()
	defer vectorMu.RUnlock()
	for name := range names {
		if e := vectorFuncs[name]; e != nil && e.Meta.SupportsFlattening {
			out[name] = struct{}{}
		}
	}
	return out
}
