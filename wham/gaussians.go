/*
 * gaussians.go, part of gopka.
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

package wham

import (
	"fmt"
	"math"

	"github.com/rmera/gopka"
)

// SumOfGaussians is the accumulated metadynamics bias of one replica: the sum
// of the deposited Gaussian hills, evaluable at any point of the
// collective-variable space. Periodic collective variables (torsions) wrap
// their distance to the nearest image.
type SumOfGaussians struct {
	dim     int
	heights []float64   //kJ/mol
	centers [][]float64 //hill x dim
	sigmas  [][]float64 //hill x dim
	period  []float64   //per dim; <=0 means non-periodic
}

// NewSumOfGaussians builds the evaluator from the deposited hills. period
// can be nil (all collective variables non-periodic); a positive period[d]
// (e.g. 2*pi for a torsion in radians) makes dimension d periodic.
func NewSumOfGaussians(heights []float64, centers, sigmas [][]float64, period []float64) (*SumOfGaussians, error) {
	if len(heights) == 0 || len(centers) != len(heights) || len(sigmas) != len(heights) {
		return nil, pka.NewInputError(fmt.Sprintf("mismatched hill series: %d heights, %d centers, %d sigmas", len(heights), len(centers), len(sigmas)), "NewSumOfGaussians")
	}
	dim := len(centers[0])
	for i := range centers {
		if len(centers[i]) != dim || len(sigmas[i]) != dim {
			return nil, pka.NewInputError(fmt.Sprintf("hill %d does not have %d dimensions", i, dim), "NewSumOfGaussians")
		}
		for d, s := range sigmas[i] {
			if s <= 0 {
				return nil, pka.NewInputError(fmt.Sprintf("non-positive sigma in hill %d, dimension %d", i, d), "NewSumOfGaussians")
			}
		}
	}
	if period != nil && len(period) != dim {
		return nil, pka.NewInputError(fmt.Sprintf("%d periods for %d dimensions", len(period), dim), "NewSumOfGaussians")
	}
	return &SumOfGaussians{dim: dim, heights: heights, centers: centers, sigmas: sigmas, period: period}, nil
}

// Dim returns the dimensionality of the collective-variable space.
func (G *SumOfGaussians) Dim() int { return G.dim }

// Evaluate returns the total bias at the point cv, in kJ/mol.
func (G *SumOfGaussians) Evaluate(cv []float64) (float64, error) {
	if len(cv) != G.dim {
		return 0, pka.NewInputError(fmt.Sprintf("%d collective variables given, %d expected", len(cv), G.dim), "Evaluate")
	}
	var b float64
	for h := range G.heights {
		var arg float64
		for d := 0; d < G.dim; d++ {
			diff := cv[d] - G.centers[h][d]
			if G.period != nil && G.period[d] > 0 {
				diff -= G.period[d] * math.Round(diff/G.period[d])
			}
			arg += diff * diff / (2 * G.sigmas[h][d] * G.sigmas[h][d])
		}
		b += G.heights[h] * math.Exp(-arg)
	}
	return b, nil
}

// GaussianBias is a per-replica set of accumulated biases, usable directly as
// the Evaluator of NewBiasMatrix.
type GaussianBias []*SumOfGaussians

// BiasAt returns replica k's accumulated bias at the point cv, in kJ/mol.
func (B GaussianBias) BiasAt(k int, cv []float64) (float64, error) {
	if k < 0 || k >= len(B) {
		return 0, pka.NewInputError(fmt.Sprintf("no bias for replica column %d", k), "BiasAt")
	}
	b, err := B[k].Evaluate(cv)
	if err != nil {
		return 0, errDecorate(err, fmt.Sprintf("BiasAt: replica column %d", k))
	}
	return b, nil
}
