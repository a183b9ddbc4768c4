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

// Package status classifies engine errors.
//
// The engine distinguishes three classes of failure:
//
//   - user errors: bad or unsupported input data (malformed cast
//     input, numeric overflow, and so on); these are recoverable
//     per row or per expression
//   - unsupported errors: a type combination or policy for which
//     no implementation exists; never swallowed
//   - everything else: programming errors; always hard failures
//
// Only errors constructed by this package carry a classification;
// an unclassified error is treated as a programming error.
package status

import (
	"errors"
	"fmt"
)

type class uint8

const (
	classUser class = iota
	classUnsupported
)

// Error is a classified engine error.
type Error struct {
	class class
	msg   string
}

func (e *Error) Error() string { return e.msg }

// UserError returns a user-classified error with the given message.
func UserError(msg string) error {
	return &Error{class: classUser, msg: msg}
}

// UserErrorf returns a user-classified error.
func UserErrorf(format string, args ...any) error {
	return &Error{class: classUser, msg: fmt.Sprintf(format, args...)}
}

// Unsupportedf returns an unsupported-classified error.
func Unsupportedf(format string, args ...any) error {
	return &Error{class: classUnsupported, msg: fmt.Sprintf(format, args...)}
}

// IsUserError returns whether err is classified as a user error.
func IsUserError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.class == classUser
}

// IsUnsupported returns whether err is classified as unsupported.
func IsUnsupported(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.class == classUnsupported
}
