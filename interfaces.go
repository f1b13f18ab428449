/*
 * interfaces.go, part of gopka.
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

//Errors

//This error predates the "wrapping" error system of Go (i.e. the "%w" directive and the errors package). We should avoid
//using the Decorate method and/or make it use the "%w" directive internally.

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //This is the new thing for errors. It allows you to add information when you pass it up. Each call also returns the "decoration" slice of strins resulting from the current call. If passed an empty string, it should just return the current value, not add the empty string to the slice.
	//The decorate slice should contain a list of functions in the calling stack, plus, for each function any relevant information, or nothing. If information is to be added to an element of the slice, it should be in this format: "FunctionName: Extra info"
}

// Kind classifies the errors produced by this library. Every error type in
// goPKA implements Kinder, so callers can tell a bad input apart from a
// numerical degeneracy or a failed iterative solve without looking at the
// concrete type.
type Kind int

const (
	//KindInput marks malformed or misaligned input data (mismatched series
	//lengths, non-monotonic times, incompatible block counts). Nothing was
	//computed.
	KindInput Kind = iota
	//KindDegeneracy marks a numerically undefined result: a zero-population
	//denominator, an all-identical bias series, or a fit with every point
	//filtered out. Never coerced to a number.
	KindDegeneracy
	//KindConvergence marks an iterative solver (WHAM or curve fit) that ran
	//out of its iteration budget before meeting tolerance.
	KindConvergence
)

// Kinder is implemented by all goPKA errors.
type Kinder interface {
	Kind() Kind
}

// KindOf returns the Kind of err, or KindInput if err does not come
// from this library.
func KindOf(err error) Kind {
	if k, ok := err.(Kinder); ok {
		return k.Kind()
	}
	return KindInput
}
