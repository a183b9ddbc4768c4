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
	"github.com/arbordata/arbor/vector"
)

// EvalCtx is the per-evaluation state of one batch flowing through
// one compiled expression tree. It is owned by a single goroutine;
// concurrent evaluations each construct their own.
type EvalCtx struct {
	batch *vector.Row
	cfg   *Config

	// NullOnError selects the global error-reporting mode: when
	// set, a user error at a row nulls that row in the result;
	// otherwise the failure is recorded per row on the context.
	NullOnError bool

	rowErrors map[int]error
}

// NewEvalCtx returns an evaluation context over the given batch.
func NewEvalCtx(batch *vector.Row, cfg *Config) *EvalCtx {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &EvalCtx{batch: batch, cfg: cfg}
}

// Batch returns the input batch.
func (c *EvalCtx) Batch() *vector.Row { return c.batch }

// Config returns the engine configuration.
func (c *EvalCtx) Config() *Config { return c.cfg }

// SetRowError records a structured per-row failure. The first
// error recorded for a row wins.
func (c *EvalCtx) SetRowError(row int, err error) {
	if c.rowErrors == nil {
		c.rowErrors = make(map[int]error)
	}
	if _, ok := c.rowErrors[row]; !ok {
		c.rowErrors[row] = err
	}
}

// RowError returns the failure recorded for row, if any.
func (c *EvalCtx) RowError(row int) error { return c.rowErrors[row] }

// HasRowErrors returns whether any per-row failure was recorded.
func (c *EvalCtx) HasRowErrors() bool { return len(c.rowErrors) > 0 }

// RowErrors returns all recorded per-row failures keyed by row.
func (c *EvalCtx) RowErrors() map[int]error { return c.rowErrors }

// ClearRowErrors drops recorded failures, e.g. between batches.
func (c *EvalCtx) ClearRowErrors() { c.rowErrors = nil }
