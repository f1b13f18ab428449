/*
 * errors.go, part of gopka.
 *
 *
 * Copyright 2025 Raul Mera <rmera{at}usach(dot)cl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 *
 */

package pka

import "fmt"

// CError is the concrete error type of the root package. It fullfills Error
// and Kinder. Subpackages define their own error types, all honoring the same
// two interfaces.
type CError struct {
	kind    Kind
	message string
	deco    []string
}

// NewInputError returns a CError marking malformed/misaligned input.
// The first deco element should be the name of the function raising the error.
func NewInputError(message string, deco ...string) *CError {
	return &CError{kind: KindInput, message: message, deco: deco}
}

// NewDegeneracyError returns a CError marking a numerically undefined result.
func NewDegeneracyError(message string, deco ...string) *CError {
	return &CError{kind: KindDegeneracy, message: message, deco: deco}
}

func (err *CError) Error() string {
	return fmt.Sprintf("gopka error: %s", err.message)
}

//Decorate Adds new information to the error
func (err *CError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Kind returns the classification of the error.
func (err *CError) Kind() Kind { return err.kind }

//errDecorate decorates the error with the caller's name before returning it.
//if used with a non pka.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(Error)
	err2.Decorate(caller)
	return err2
}
