/*
 * reweight.go, part of gopka.
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

//Package reweight converts the accumulated-bias time series of one
//metadynamics replica into normalized importance weights, and computes
//weighted statistics (averages, basin populations, free-energy differences,
//histograms) from them.
package reweight

import (
	"fmt"
	"math"

	"github.com/rmera/gopka"
	"github.com/rmera/gopka/histo"
	"gonum.org/v1/gonum/floats"
)

// Weights is a probability mass function over the frames of a trajectory:
// non-negative, summing to 1. It is always derived (from a bias series or a
// WHAM solution), never ground truth.
type Weights struct {
	w []float64
}

// Reweight returns the normalized importance weight of each frame of one
// replica, w_i prop. to exp((b_i-max(b))/kT), from its bias series b (kJ/mol)
// and the thermal energy kT (kJ/mol). Subtracting the maximum bias before
// exponentiation is what keeps the exponentials from overflowing, with bias
// values of tens of kJ/mol against kT of ~2.5: it is not optional.
func Reweight(bias []float64, kT float64) (*Weights, error) {
	if len(bias) == 0 {
		return nil, pka.NewInputError("empty bias series", "Reweight")
	}
	if kT <= 0 {
		return nil, pka.NewInputError(fmt.Sprintf("non-positive kT: %f", kT), "Reweight")
	}
	max := floats.Max(bias)
	if len(bias) > 1 && floats.Min(bias) == max {
		return nil, pka.NewDegeneracyError("all bias values identical: degenerate weight distribution", "Reweight")
	}
	logw := make([]float64, len(bias))
	for i, b := range bias {
		logw[i] = (b - max) / kT
	}
	return fromShiftedLog(logw), nil
}

// FromLog builds normalized weights from unnormalized log-weights, with the
// same max-subtraction device as Reweight. This is how a WHAM solution turns
// its per-frame log-weights into a Weights at a target pH.
func FromLog(logw []float64) (*Weights, error) {
	if len(logw) == 0 {
		return nil, pka.NewInputError("empty log-weight series", "FromLog")
	}
	max := floats.Max(logw)
	if math.IsInf(max, -1) {
		return nil, pka.NewDegeneracyError("all log-weights are -Inf", "FromLog")
	}
	shifted := make([]float64, len(logw))
	for i, v := range logw {
		shifted[i] = v - max
	}
	return fromShiftedLog(shifted), nil
}

// fromShiftedLog exponentiates and normalizes log-weights whose maximum is 0.
// The sum is then at least 1, so the division is always safe.
func fromShiftedLog(logw []float64) *Weights {
	w := make([]float64, len(logw))
	for i, v := range logw {
		w[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(w), w)
	return &Weights{w: w}
}

// Uniform returns uniform weights over n frames.
func Uniform(n int) (*Weights, error) {
	if n <= 0 {
		return nil, pka.NewInputError("non-positive number of frames", "Uniform")
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return &Weights{w: w}, nil
}

// Len returns the number of frames covered by the weights.
func (W *Weights) Len() int { return len(W.w) }

// View returns the actual weight slice, which should not be modified.
func (W *Weights) View() []float64 { return W.w }

// Copy returns a copy of the weight slice.
func (W *Weights) Copy() []float64 {
	ret := make([]float64, len(W.w))
	copy(ret, W.w)
	return ret
}

// Mean returns the weighted average of the per-frame observable obs.
func (W *Weights) Mean(obs []float64) (float64, error) {
	if len(obs) != len(W.w) {
		return 0, pka.NewInputError(fmt.Sprintf("%d observable values for %d weights", len(obs), len(W.w)), "Mean")
	}
	var m float64
	for i, v := range obs {
		m += W.w[i] * v
	}
	return m, nil
}

// ESS returns the Kish effective sample size of the weights, 1/sum(w^2).
// It goes from 1 (one frame dominates) to Len() (uniform weights), and is
// the quick way to tell whether a reweighted average means anything.
func (W *Weights) ESS() float64 {
	var s float64
	for _, v := range W.w {
		s += v * v
	}
	return 1 / s
}

// Interval is a half-open interval [Min,Max) on an observable, defining a
// conformational basin.
type Interval struct {
	Min, Max float64
}

// Contains returns whether x is in the interval.
func (I Interval) Contains(x float64) bool {
	return I.Min <= x && x < I.Max
}

// Population returns the total weight of the frames whose observable value
// falls in the basin, i.e. the unbiased population of the basin.
func (W *Weights) Population(obs []float64, basin Interval) (float64, error) {
	if len(obs) != len(W.w) {
		return 0, pka.NewInputError(fmt.Sprintf("%d observable values for %d weights", len(obs), len(W.w)), "Population")
	}
	var p float64
	for i, v := range obs {
		if basin.Contains(v) {
			p += W.w[i]
		}
	}
	return p, nil
}

// DeltaF returns the free-energy difference -kT*ln(popA/popB) between the
// basins A and B of the observable obs, in the units of kT. An empty basin
// makes the ratio undefined: that is a degeneracy error, not an infinity
// masked as a number.
func (W *Weights) DeltaF(obs []float64, A, B Interval, kT float64) (float64, error) {
	popA, err := W.Population(obs, A)
	if err != nil {
		return 0, errDecorate(err, "DeltaF")
	}
	popB, err := W.Population(obs, B)
	if err != nil {
		return 0, errDecorate(err, "DeltaF")
	}
	if popB == 0 {
		return 0, pka.NewDegeneracyError("basin B has zero population", "DeltaF")
	}
	if popA == 0 {
		return 0, pka.NewDegeneracyError("basin A has zero population", "DeltaF")
	}
	return -kT * math.Log(popA/popB), nil
}

// Histogram bins the observable obs into a weighted histogram with the given
// dividers, each frame contributing its weight.
func (W *Weights) Histogram(obs []float64, dividers []float64, ID ...int) (*histo.Data, error) {
	if len(obs) != len(W.w) {
		return nil, pka.NewInputError(fmt.Sprintf("%d observable values for %d weights", len(obs), len(W.w)), "Histogram")
	}
	D, err := histo.NewData(dividers, obs, W.w, ID...)
	if err != nil {
		return nil, errDecorate(err, "Histogram")
	}
	return D, nil
}

//errDecorate decorates the error with the caller's name before returning it.
//if used with a non pka.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(pka.Error)
	err2.Decorate(caller)
	return err2
}
