/*
 * wham.go, part of gopka.
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

//Package wham combines biased samples from several constant-pH metadynamics
//replicas into one consistent unbiased estimate, with a binless (per-frame)
//formulation of the Weighted Histogram Analysis Method. The solver estimates
//one reduced free energy per replica such that the expected number of frames
//each replica "explains" under the combined ensemble matches its observed
//count; from the solution, normalized frame weights can be produced at any
//target pH, simulated or not, without re-solving.
package wham

import (
	"fmt"
	"math"

	"github.com/rmera/gopka"
	"github.com/rmera/gopka/reweight"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Method selects how the WHAM equations are solved.
type Method int

const (
	//SCF iterates the self-consistent fixed-point equations directly.
	SCF Method = iota
	//MLE minimizes the WHAM negative log-likelihood with gonum/optimize,
	//then polishes with fixed-point sweeps until the stationarity tolerance
	//is met. Both methods satisfy the same convergence contract.
	MLE
)

// SolveOptions configures a WHAM solve. The zero value is not usable; start
// from DefaultOptions.
type SolveOptions struct {
	Method Method
	//Tol is the stationarity tolerance: the largest change of any replica
	//free energy over one fixed-point sweep, in kT units.
	Tol float64
	//MaxIter caps the number of fixed-point sweeps (or, for MLE, polishing
	//sweeps after the minimization). Exceeding it is a ConvergenceError.
	MaxIter int
	//TrajWeights scales each replica's contribution to the self-consistency
	//condition, to correct for replicas of unequal length. nil means no
	//correction unless LengthCorrect is set.
	TrajWeights []float64
	//LengthCorrect, when TrajWeights is nil, sets the weight of each replica
	//to Nshortest/N, so the shortest replica has reference weight 1.0 and
	//over-long replicas do not dominate the combined estimate.
	LengthCorrect bool
}

// DefaultOptions returns the default solver configuration: SCF iteration,
// tolerance 1e-10, 50000 sweeps. The tolerance is tight enough that repeated
// solves on the same input reproduce the log-weights to well under 1e-6
// relative difference.
func DefaultOptions() *SolveOptions {
	return &SolveOptions{Method: SCF, Tol: 1e-10, MaxIter: 50000}
}

// ConvergenceError reports a WHAM solve that ran out of its iteration budget
// before meeting tolerance. It carries the diagnostic state of the solver.
type ConvergenceError struct {
	Iters    int
	Residual float64
	message  string
	deco     []string
}

func (err *ConvergenceError) Error() string {
	return fmt.Sprintf("gopka/wham: %s: %d iterations, last residual %g", err.message, err.Iters, err.Residual)
}

//Decorate Adds new information to the error
func (err *ConvergenceError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Kind returns the classification of the error.
func (err *ConvergenceError) Kind() pka.Kind { return pka.KindConvergence }

// Solution is a solved WHAM model: per-frame log-weights of the common
// (pH-free) reference ensemble, self-consistent across all replicas. It is
// read-only; weight vectors at any target pH are derived from it without
// re-solving.
type Solution struct {
	logw     []float64 //normalized so logsumexp(logw) = 0
	f        []float64 //reduced free energy of each replica ensemble
	prot     []float64
	refs     []FrameRef
	iters    int
	residual float64
}

// Solve solves the binless WHAM equations for the given bias matrix. opts
// can be nil, meaning DefaultOptions. On failure to converge it returns a
// *ConvergenceError; a partial solution is never returned.
func Solve(M *BiasMatrix, opts *SolveOptions) (*Solution, error) {
	if M == nil {
		return nil, pka.NewInputError("nil bias matrix", "Solve")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Tol <= 0 || opts.MaxIter < 1 {
		return nil, pka.NewInputError("tolerance and iteration cap must be positive", "Solve")
	}
	n := M.NFrames()
	K := M.NReplicas()
	lambda, err := replicaWeights(M, opts)
	if err != nil {
		return nil, err
	}
	//logc[k] = log of replica k's effective frame count; logm[i] = log of
	//frame i's multiplicity (its replica's weight).
	logc := make([]float64, K)
	for k := range logc {
		logc[k] = math.Log(lambda[k] * float64(M.counts[k]))
	}
	colOf := make(map[int]int, K)
	for c, id := range M.repIDs {
		colOf[id] = c
	}
	logm := make([]float64, n)
	for i := range logm {
		logm[i] = math.Log(lambda[colOf[M.refs[i].ReplicaID]])
	}
	f := make([]float64, K)
	iters := 0
	if opts.Method == MLE {
		it, err := minimize(M, logc, logm, f)
		if err != nil {
			return nil, err
		}
		iters = it
	}
	logw := make([]float64, n)
	it, res, converged := scf(M, logc, logm, f, logw, opts.Tol, opts.MaxIter)
	iters += it
	if !converged {
		return nil, &ConvergenceError{Iters: iters, Residual: res,
			message: "self-consistency condition not met within the iteration budget"}
	}
	//normalize the reference-ensemble log-weights
	shift := floats.LogSumExp(logw)
	for i := range logw {
		logw[i] -= shift
	}
	S := &Solution{logw: logw, f: f, iters: iters, residual: res}
	S.prot = M.Protonation()
	S.refs = make([]FrameRef, n)
	copy(S.refs, M.refs)
	return S, nil
}

// scf runs fixed-point sweeps starting from f, updating f and logw in place.
// It returns the sweeps used, the last residual, and whether the stationarity
// tolerance was met. One sweep computes, with u the reduced bias matrix,
//
//	logw_i = logm_i - LSE_k(logc_k + f_k - u_ik)
//	f_k    = -LSE_i(logw_i - u_ik),   shifted so f_0 = 0
//
// and the residual is the largest |change| of any f_k.
func scf(M *BiasMatrix, logc, logm, f, logw []float64, tol float64, maxiter int) (int, float64, bool) {
	n := len(logw)
	K := len(f)
	rowbuf := make([]float64, K)
	colbuf := make([]float64, n)
	fnew := make([]float64, K)
	res := math.Inf(1)
	for iter := 1; iter <= maxiter; iter++ {
		for i := 0; i < n; i++ {
			for k := 0; k < K; k++ {
				rowbuf[k] = logc[k] + f[k] - M.u.At(i, k)
			}
			logw[i] = logm[i] - floats.LogSumExp(rowbuf)
		}
		for k := 0; k < K; k++ {
			for i := 0; i < n; i++ {
				colbuf[i] = logw[i] - M.u.At(i, k)
			}
			fnew[k] = -floats.LogSumExp(colbuf)
		}
		shift := fnew[0]
		res = 0
		for k := 0; k < K; k++ {
			fnew[k] -= shift
			if d := math.Abs(fnew[k] - f[k]); d > res {
				res = d
			}
		}
		copy(f, fnew)
		if res < tol {
			//one last pass so logw corresponds to the final f
			for i := 0; i < n; i++ {
				for k := 0; k < K; k++ {
					rowbuf[k] = logc[k] + f[k] - M.u.At(i, k)
				}
				logw[i] = logm[i] - floats.LogSumExp(rowbuf)
			}
			return iter, res, true
		}
	}
	return maxiter, res, false
}

// minimize runs the direct maximum-likelihood route: the WHAM negative
// log-likelihood is convex in the replica free energies, with f_0 fixed to 0
// for identifiability. f is updated in place with the minimizer.
func minimize(M *BiasMatrix, logc, logm, f []float64) (int, error) {
	n := len(logm)
	K := len(f)
	if K < 2 {
		return 0, nil //a single ensemble has nothing to optimize
	}
	assemble := func(x []float64) []float64 {
		full := make([]float64, K)
		copy(full[1:], x)
		return full
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			fx := assemble(x)
			rowbuf := make([]float64, K)
			var sum float64
			for i := 0; i < n; i++ {
				for k := 0; k < K; k++ {
					rowbuf[k] = logc[k] + fx[k] - M.u.At(i, k)
				}
				sum += math.Exp(logm[i]) * floats.LogSumExp(rowbuf)
			}
			for k := 0; k < K; k++ {
				sum -= math.Exp(logc[k]) * fx[k]
			}
			return sum
		},
		Grad: func(grad, x []float64) {
			fx := assemble(x)
			rowbuf := make([]float64, K)
			full := make([]float64, K)
			for k := range full {
				full[k] = -math.Exp(logc[k])
			}
			for i := 0; i < n; i++ {
				for k := 0; k < K; k++ {
					rowbuf[k] = logc[k] + fx[k] - M.u.At(i, k)
				}
				lse := floats.LogSumExp(rowbuf)
				for k := 0; k < K; k++ {
					full[k] += math.Exp(logm[i] + rowbuf[k] - lse)
				}
			}
			copy(grad, full[1:])
		},
	}
	result, err := optimize.Minimize(problem, make([]float64, K-1), nil, nil)
	if err != nil {
		//the line search can stall without locating a strictly better point,
		//typically very close to the minimum already. The last iterate is
		//still a usable starting point: the fixed-point polish that follows
		//is what verifies the stationarity contract, not the minimizer.
		usable := result != nil
		if usable {
			for _, v := range result.X {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					usable = false
					break
				}
			}
		}
		if !usable {
			return 0, &ConvergenceError{Iters: 0, Residual: math.NaN(),
				message: "likelihood minimization failed: " + err.Error()}
		}
	}
	copy(f[1:], result.X)
	f[0] = 0
	return result.Stats.MajorIterations, nil
}

// replicaWeights resolves the per-replica trajectory-length weights.
func replicaWeights(M *BiasMatrix, opts *SolveOptions) ([]float64, error) {
	K := M.NReplicas()
	lambda := make([]float64, K)
	if opts.TrajWeights != nil {
		if len(opts.TrajWeights) != K {
			return nil, pka.NewInputError(fmt.Sprintf("%d trajectory weights for %d replicas", len(opts.TrajWeights), K), "Solve")
		}
		for k, v := range opts.TrajWeights {
			if v <= 0 {
				return nil, pka.NewInputError("non-positive trajectory weight", "Solve")
			}
			lambda[k] = v
		}
		return lambda, nil
	}
	if opts.LengthCorrect {
		min := M.counts[0]
		for _, c := range M.counts {
			if c < min {
				min = c
			}
		}
		for k, c := range M.counts {
			lambda[k] = float64(min) / float64(c)
		}
		return lambda, nil
	}
	for k := range lambda {
		lambda[k] = 1
	}
	return lambda, nil
}

// LogW returns the normalized per-frame log-weights of the reference
// ensemble, as a new slice.
func (S *Solution) LogW() []float64 {
	ret := make([]float64, len(S.logw))
	copy(ret, S.logw)
	return ret
}

// FreeEnergies returns the solved reduced free energy of each replica
// ensemble (f_0 = 0), as a new slice.
func (S *Solution) FreeEnergies() []float64 {
	ret := make([]float64, len(S.f))
	copy(ret, S.f)
	return ret
}

// Iterations returns the number of sweeps the solver used.
func (S *Solution) Iterations() int { return S.iters }

// Residual returns the last self-consistency residual, in kT units.
func (S *Solution) Residual() float64 { return S.residual }

// Ref maps the concatenated frame index i back to its (replica, time) pair.
func (S *Solution) Ref(i int) FrameRef { return S.refs[i] }

// Len returns the number of concatenated frames in the solution.
func (S *Solution) Len() int { return len(S.logw) }

// WeightsAt returns the normalized frame weights of the ensemble at the
// target pH, which need not be one of the simulated values:
//
//	logW_i = logw_i - ln(10)*pH*P_i
//
// then max-shifted, exponentiated and normalized. prot can be nil, in which
// case the protonation fractions recorded at solve time are used. The call
// is pure: repeated calls with identical inputs give identical results, and
// WHAM is never re-solved.
func (S *Solution) WeightsAt(pH float64, prot []float64) (*reweight.Weights, error) {
	if prot == nil {
		prot = S.prot
	}
	if len(prot) != len(S.logw) {
		return nil, pka.NewInputError(fmt.Sprintf("%d protonation fractions for %d frames", len(prot), len(S.logw)), "WeightsAt")
	}
	adj := make([]float64, len(S.logw))
	for i, v := range S.logw {
		adj[i] = v - pka.Ln10*pH*prot[i]
	}
	W, err := reweight.FromLog(adj)
	if err != nil {
		return nil, errDecorate(err, "WeightsAt")
	}
	return W, nil
}

// AvgProtonation returns the WHAM-reweighted average protonation at the
// target pH.
func (S *Solution) AvgProtonation(pH float64) (float64, error) {
	W, err := S.WeightsAt(pH, nil)
	if err != nil {
		return 0, errDecorate(err, "AvgProtonation")
	}
	m, err := W.Mean(S.prot)
	if err != nil {
		return 0, errDecorate(err, "AvgProtonation")
	}
	return m, nil
}

// TitrationCurve returns the WHAM-reweighted average protonation at each of
// the given pH values. This is the dense scan the midpoint pKa estimate and
// the titration fit consume.
func (S *Solution) TitrationCurve(phs []float64) ([]float64, error) {
	ret := make([]float64, len(phs))
	var err error
	for i, pH := range phs {
		ret[i], err = S.AvgProtonation(pH)
		if err != nil {
			return nil, errDecorate(err, fmt.Sprintf("TitrationCurve: pH %4.2f", pH))
		}
	}
	return ret, nil
}
