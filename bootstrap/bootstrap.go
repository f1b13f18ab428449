/*
 * bootstrap.go, part of gopka.
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

//Package bootstrap estimates statistical errors of trajectory-derived
//quantities with a block bootstrap: the time series is cut into contiguous
//blocks, blocks are resampled with replacement, and the target statistic is
//recomputed on each resample. Resampling blocks rather than frames preserves
//the short-range time correlation of MD data, which a plain bootstrap would
//destroy (and with it, the error estimate).
package bootstrap

import (
	"fmt"
	"math/rand"

	"github.com/rmera/gopka"
	"gonum.org/v1/gonum/stat"
)

// StatFunc recomputes the target statistic on a resampled selection of frame
// indexes. The indexes preserve intra-block order; the statistic can be as
// cheap as a weighted mean or as expensive as a full WHAM solve plus pKa fit
// (the costly path: one full re-solve per bootstrap sample).
// A StatFunc must not retain or modify idx, and must be safe for concurrent
// use if passed to RunConc.
type StatFunc func(idx []int) (float64, error)

// Empirical is the empirical distribution of a bootstrapped statistic: the
// recomputed values of the successful resamples, plus the count of resamples
// whose recomputation failed. Failed resamples are dropped from the
// statistics but never silently: check Failed.
type Empirical struct {
	stats  []float64
	failed int
}

// Len returns the number of successful resamples.
func (E *Empirical) Len() int { return len(E.stats) }

// Failed returns the number of resamples whose statistic failed.
func (E *Empirical) Failed() int { return E.failed }

// Stats returns the recomputed statistics, as a new slice.
func (E *Empirical) Stats() []float64 {
	ret := make([]float64, len(E.stats))
	copy(ret, E.stats)
	return ret
}

// Mean returns the bootstrap estimate, the mean over the resampled
// statistics.
func (E *Empirical) Mean() (float64, error) {
	if len(E.stats) == 0 {
		return 0, pka.NewDegeneracyError("no successful resamples", "Mean")
	}
	return stat.Mean(E.stats, nil), nil
}

// StdErr returns the bootstrap standard error, the standard deviation over
// the resampled statistics.
func (E *Empirical) StdErr() (float64, error) {
	if len(E.stats) == 0 {
		return 0, pka.NewDegeneracyError("no successful resamples", "StdErr")
	}
	return stat.StdDev(E.stats, nil), nil
}

// VecStatFunc is the vector counterpart of StatFunc: it recomputes a
// fixed-length vector statistic (a whole titration curve, a free-energy
// curve's bins) on a resampled selection. Every successful resample must
// return the same length.
type VecStatFunc func(idx []int) ([]float64, error)

// EmpiricalVec is the empirical distribution of a vector statistic: one
// recomputed vector per successful resample, component-wise summaries.
type EmpiricalVec struct {
	stats  [][]float64
	failed int
}

// Len returns the number of successful resamples.
func (E *EmpiricalVec) Len() int { return len(E.stats) }

// Failed returns the number of resamples whose statistic failed.
func (E *EmpiricalVec) Failed() int { return E.failed }

// Stats returns the recomputed vectors, as new slices.
func (E *EmpiricalVec) Stats() [][]float64 {
	ret := make([][]float64, len(E.stats))
	for i, s := range E.stats {
		ret[i] = make([]float64, len(s))
		copy(ret[i], s)
	}
	return ret
}

// Mean returns the component-wise mean over the resampled vectors.
func (E *EmpiricalVec) Mean() ([]float64, error) {
	return E.summarize(stat.Mean)
}

// StdErr returns the component-wise bootstrap standard error.
func (E *EmpiricalVec) StdErr() ([]float64, error) {
	return E.summarize(stat.StdDev)
}

func (E *EmpiricalVec) summarize(f func([]float64, []float64) float64) ([]float64, error) {
	if len(E.stats) == 0 {
		return nil, pka.NewDegeneracyError("no successful resamples", "EmpiricalVec")
	}
	dim := len(E.stats[0])
	ret := make([]float64, dim)
	col := make([]float64, len(E.stats))
	for d := 0; d < dim; d++ {
		for s := range E.stats {
			col[s] = E.stats[s][d]
		}
		ret[d] = f(col, nil)
	}
	return ret, nil
}

// Blocks partitions the index range [0,n) into nBlocks contiguous,
// non-overlapping blocks of size n/nBlocks. The trailing remainder, if n is
// not evenly divisible, is dropped; choosing a compatible nBlocks is the
// caller's responsibility.
func Blocks(n, nBlocks int) ([][]int, error) {
	if n <= 0 {
		return nil, pka.NewInputError("empty sequence", "Blocks")
	}
	if nBlocks <= 0 || nBlocks > n {
		return nil, pka.NewInputError(fmt.Sprintf("block count %d incompatible with sequence length %d", nBlocks, n), "Blocks")
	}
	size := n / nBlocks
	ret := make([][]int, nBlocks)
	for b := range ret {
		ret[b] = make([]int, size)
		for i := range ret[b] {
			ret[b][i] = b*size + i
		}
	}
	return ret, nil
}

// Run performs the block bootstrap: nSamples times, it draws nBlocks block
// indexes uniformly with replacement, concatenates the chosen blocks (blocks
// shuffled, intra-block order preserved) and recomputes f on the resampled
// indexes. The random draws depend only on seed, so a run is reproducible.
// nSamples == 0 returns an empty distribution, not an error.
func Run(n, nBlocks, nSamples int, seed int64, f StatFunc) (*Empirical, error) {
	return run(n, nBlocks, nSamples, seed, 1, f)
}

// RunConc is Run with the statistic recomputations spread over the given
// number of worker goroutines. The block draws are made up front from seed,
// so the resampled selections (and thus the resulting distribution) are the
// same as Run's with the same seed; f must be safe for concurrent use. This
// is the practical route when f wraps a WHAM solve and nSamples is in the
// hundreds.
func RunConc(n, nBlocks, nSamples, workers int, seed int64, f StatFunc) (*Empirical, error) {
	if workers < 1 {
		return nil, pka.NewInputError("need at least one worker", "RunConc")
	}
	return run(n, nBlocks, nSamples, seed, workers, f)
}

// RunVec is Run for a vector statistic. The block draws come from the same
// sequence as Run's with the same seed.
func RunVec(n, nBlocks, nSamples int, seed int64, f VecStatFunc) (*EmpiricalVec, error) {
	return runVec(n, nBlocks, nSamples, seed, 1, f)
}

// RunVecConc is RunConc for a vector statistic; f must be safe for concurrent
// use.
func RunVecConc(n, nBlocks, nSamples, workers int, seed int64, f VecStatFunc) (*EmpiricalVec, error) {
	if workers < 1 {
		return nil, pka.NewInputError("need at least one worker", "RunVecConc")
	}
	return runVec(n, nBlocks, nSamples, seed, workers, f)
}

// run wraps the scalar statistic as a one-component vector, so both runners
// share the resampling machinery and draw sequence.
func run(n, nBlocks, nSamples int, seed int64, workers int, f StatFunc) (*Empirical, error) {
	fv := func(idx []int) ([]float64, error) {
		v, err := f(idx)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	}
	EV, err := runVec(n, nBlocks, nSamples, seed, workers, fv)
	if err != nil {
		return nil, err
	}
	E := &Empirical{failed: EV.failed}
	for _, s := range EV.stats {
		E.stats = append(E.stats, s[0])
	}
	return E, nil
}

func runVec(n, nBlocks, nSamples int, seed int64, workers int, f VecStatFunc) (*EmpiricalVec, error) {
	if nSamples < 0 {
		return nil, pka.NewInputError("negative sample count", "Run")
	}
	blocks, err := Blocks(n, nBlocks)
	if err != nil {
		return nil, errDecorate(err, "Run")
	}
	E := new(EmpiricalVec)
	if nSamples == 0 {
		return E, nil
	}
	//all draws are made here, sequentially, so the resamples do not depend
	//on scheduling.
	rng := rand.New(rand.NewSource(seed))
	draws := make([][]int, nSamples)
	for s := range draws {
		draws[s] = make([]int, nBlocks)
		for b := range draws[s] {
			draws[s][b] = rng.Intn(nBlocks)
		}
	}
	size := len(blocks[0])
	type result struct {
		sample int
		value  []float64
		err    error
	}
	jobs := make(chan int, nSamples)
	results := make(chan result, nSamples)
	if workers > nSamples {
		workers = nSamples
	}
	for w := 0; w < workers; w++ {
		go func() {
			for s := range jobs {
				idx := make([]int, 0, nBlocks*size)
				for _, b := range draws[s] {
					idx = append(idx, blocks[b]...)
				}
				v, err := f(idx)
				results <- result{sample: s, value: v, err: err}
			}
		}()
	}
	for s := 0; s < nSamples; s++ {
		jobs <- s
	}
	close(jobs)
	values := make([][]float64, nSamples)
	ok := make([]bool, nSamples)
	for i := 0; i < nSamples; i++ {
		r := <-results
		if r.err != nil {
			E.failed++
			continue
		}
		values[r.sample] = r.value
		ok[r.sample] = true
	}
	//keep the successful statistics in draw order, so sequential and
	//concurrent runs agree.
	dim := -1
	for s := 0; s < nSamples; s++ {
		if !ok[s] {
			continue
		}
		if dim < 0 {
			dim = len(values[s])
		}
		if len(values[s]) != dim {
			return nil, pka.NewInputError(fmt.Sprintf("statistic returned %d components on one resample and %d on another", dim, len(values[s])), "Run")
		}
		E.stats = append(E.stats, values[s])
	}
	return E, nil
}

// WeightedMean returns a StatFunc recomputing the weighted average of values
// on each resample, with the selected weights renormalized over the resample.
func WeightedMean(values, weights []float64) (StatFunc, error) {
	if len(values) != len(weights) {
		return nil, pka.NewInputError(fmt.Sprintf("%d values for %d weights", len(values), len(weights)), "WeightedMean")
	}
	return func(idx []int) (float64, error) {
		var m, wsum float64
		for _, i := range idx {
			m += weights[i] * values[i]
			wsum += weights[i]
		}
		if wsum <= 0 {
			return 0, pka.NewDegeneracyError("resample has zero total weight", "WeightedMean")
		}
		return m / wsum, nil
	}, nil
}

//errDecorate decorates the error with the caller's name before returning it.
//if used with a non pka.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(pka.Error)
	err2.Decorate(caller)
	return err2
}
