/*
 * site.go, part of gopka.
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

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SiteModel maps the discrete occupancy code of one titratable site to its
// protonation fraction. The mapping is pure, fixed per site, and must be
// supplied by the caller: for deprotonable sites the relation between the
// state index and the protonation state is inverted with respect to the
// naive reading, so it is never inferred from the code values themselves.
type SiteModel struct {
	name string
	frac map[int]float64
}

// NewSiteModel returns a SiteModel for the site name with the given
// occupancy->protonation-fraction table. The table is copied.
func NewSiteModel(name string, frac map[int]float64) (*SiteModel, error) {
	if len(frac) == 0 {
		return nil, NewInputError("empty occupancy->protonation table", "NewSiteModel")
	}
	S := &SiteModel{name: name, frac: make(map[int]float64, len(frac))}
	for k, v := range frac {
		if v < 0 || v > 1 {
			return nil, NewInputError(fmt.Sprintf("protonation fraction %4.2f for code %d out of [0,1]", v, k), "NewSiteModel")
		}
		S.frac[k] = v
	}
	return S, nil
}

// ParseSiteModel builds a SiteModel from a textual table like "0=1,1=0,2=0",
// i.e. comma-separated occupancyCode=protonationFraction pairs. This is the
// form taken on the command line.
func ParseSiteModel(name, table string) (*SiteModel, error) {
	frac := make(map[int]float64)
	for _, pair := range strings.Split(table, ",") {
		fields := strings.Split(strings.TrimSpace(pair), "=")
		if len(fields) != 2 {
			return nil, NewInputError("malformed pair "+pair, "ParseSiteModel")
		}
		code, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, NewInputError("malformed occupancy code in pair "+pair, "ParseSiteModel")
		}
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, NewInputError("malformed protonation fraction in pair "+pair, "ParseSiteModel")
		}
		frac[code] = f
	}
	return NewSiteModel(name, frac)
}

// Name returns the name of the site.
func (S *SiteModel) Name() string { return S.name }

// Fraction returns the protonation fraction for the occupancy code given.
// An unknown code is an input error, never a silent zero.
func (S *SiteModel) Fraction(occupancy int) (float64, error) {
	f, ok := S.frac[occupancy]
	if !ok {
		return 0, NewInputError(fmt.Sprintf("site %s: unknown occupancy code %d", S.name, occupancy), "Fraction")
	}
	return f, nil
}

// Codes returns the known occupancy codes, sorted.
func (S *SiteModel) Codes() []int {
	codes := make([]int, 0, len(S.frac))
	for k := range S.frac {
		codes = append(codes, k)
	}
	sort.Ints(codes)
	return codes
}

// Protonation maps a whole occupancy series to protonation fractions.
func (S *SiteModel) Protonation(occupancy []int) ([]float64, error) {
	ret := make([]float64, len(occupancy))
	var err error
	for i, v := range occupancy {
		ret[i], err = S.Fraction(v)
		if err != nil {
			return nil, errDecorate(err, "Protonation")
		}
	}
	return ret, nil
}

func (S *SiteModel) String() string {
	pairs := make([]string, 0, len(S.frac))
	for _, c := range S.Codes() {
		pairs = append(pairs, fmt.Sprintf("%d=%3.1f", c, S.frac[c]))
	}
	return fmt.Sprintf("%s{%s}", S.name, strings.Join(pairs, ","))
}
