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
	"sync"

	"github.com/arbordata/arbor/types"
)

const (
	formAnd            = "and"
	formOr             = "or"
	formRowConstructor = "row_constructor"
	formCast           = "cast"
	formTryCast        = "try_cast"
)

// SpecialFormCtor constructs a special-form expression from its
// result type and already-compiled inputs.
type SpecialFormCtor func(resultType *types.Type, inputs []Expr, trackCPU bool, cfg *Config) (Expr, error)

var (
	specialMu    sync.RWMutex
	specialForms = make(map[string]SpecialFormCtor)
)

// RegisterSpecialForm registers a constructor for a named
// construct that is not expressible as an ordinary function.
func RegisterSpecialForm(name string, ctor SpecialFormCtor) {
	specialMu.Lock()
	defer specialMu.Unlock()
	specialForms[name] = ctor
}

func lookupSpecialForm(name string) SpecialFormCtor {
	specialMu.RLock()
	defer specialMu.RUnlock()
	return specialForms[name]
}

func init() {
	RegisterSpecialForm(formAnd, func(t *types.Type, inputs []Expr, trackCPU bool, _ *Config) (Expr, error) {
		return newConjunctExpr(t, inputs, true, trackCPU), nil
	})
	RegisterSpecialForm(formOr, func(t *types.Type, inputs []Expr, trackCPU bool, _ *Config) (Expr, error) {
		return newConjunctExpr(t, inputs, false, trackCPU), nil
	})
	RegisterSpecialForm(formRowConstructor, func(t *types.Type, inputs []Expr, trackCPU bool, _ *Config) (Expr, error) {
		return newRowConstructorExpr(t, inputs, trackCPU), nil
	})
	RegisterSpecialForm(formCast, func(t *types.Type, inputs []Expr, trackCPU bool, cfg *Config) (Expr, error) {
		return newCastExpr(t, inputs, false, trackCPU, cfg)
	})
	RegisterSpecialForm(formTryCast, func(t *types.Type, inputs []Expr, trackCPU bool, cfg *Config) (Expr, error) {
		return newCastExpr(t, inputs, true, trackCPU, cfg)
	})
}
