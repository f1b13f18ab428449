/*
 * conversion.go, part of gopka.
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
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

package pka

//This provides useful physical constants and conversion factors.

//Constants
const (
	R       = 0.008314462618 //gas constant, kJ/(mol*K)
	KT300   = R * 300.0      //kT at 300 K, kJ/mol. The usual "2.5 kJ/mol"
	KT298   = R * 298.15     //kT at standard conditions, kJ/mol
	Ln10    = 2.302585092994046
	KJ2Kcal = 1 / 4.184
	Kcal2KJ = 4.184
)

//KT returns the thermal energy kT, in kJ/mol, at the temperature T (in K).
func KT(T float64) float64 {
	return R * T
}
