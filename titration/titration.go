/*
 * titration.go, part of gopka.
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

//Package titration extracts pKa values from average-protonation-vs-pH data,
//either by nonlinear least-squares fitting of a Henderson-Hasselbalch or
//Hill binding model, or by a non-parametric midpoint scan. Both estimators
//are supported because both are used downstream: the curve fit on sparse
//per-replica averages, the midpoint scan on dense WHAM-reweighted curves.
package titration

import (
	"fmt"
	"math"
	"sort"

	"github.com/rmera/gopka"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Model selects the binding model fitted to the titration data.
type Model int

const (
	//HendersonHasselbalch is the single-proton, non-cooperative model,
	//with the Hill coefficient fixed to 1.
	HendersonHasselbalch Model = iota
	//Hill frees the cooperativity coefficient n as a second fit parameter.
	Hill
)

//DefaultBoundTol is the default tolerance around the protonation bounds 0
//and 1 within which data points are excluded from the fit. Points pinned at
//the bounds say nothing about the transition midpoint and can destabilize
//the optimizer.
const DefaultBoundTol = 0.01

// Protonation is the model curve: the average protonation of a site with the
// given pKa and Hill coefficient n, at the given pH,
//
//	<P>(pH) = 1/(1+10^(n*(pH-pKa)))
//
// strictly decreasing in pH for n > 0.
func Protonation(pH, pKa, n float64) float64 {
	return 1 / (1 + math.Pow(10, n*(pH-pKa)))
}

// FitError reports a titration fit that could not converge: degenerate/flat
// data, too few usable points, or an optimizer failure. A default pKa is
// never returned in its place.
type FitError struct {
	message string
	deco    []string
}

func (err *FitError) Error() string {
	return fmt.Sprintf("gopka/titration: fit failed: %s", err.message)
}

//Decorate Adds new information to the error
func (err *FitError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Kind returns the classification of the error.
func (err *FitError) Kind() pka.Kind { return pka.KindConvergence }

// FitResult is the outcome of a titration fit. The parameter uncertainties
// come from the Gauss-Newton covariance estimate s^2*(J^T J)^-1 and are NaN
// when that estimate is unavailable (singular Jacobian, or as many points as
// parameters).
type FitResult struct {
	PKa    float64
	N      float64 //Hill coefficient; 1 for HendersonHasselbalch
	PKaErr float64
	NErr   float64
	Resid  float64 //sum of squared residuals
	Points int     //data points used, after bound filtering
}

func (F *FitResult) String() string {
	return fmt.Sprintf("pKa = %5.3f +/- %5.3f, n = %4.2f +/- %4.2f (%d points, ssr %g)", F.PKa, F.PKaErr, F.N, F.NErr, F.Points, F.Resid)
}

// Options configures a fit. nil means defaults.
type Options struct {
	//BoundTol excludes points with protonation within this distance of 0 or
	//1. Non-positive means DefaultBoundTol.
	BoundTol float64
}

// Fit fits the model to the observed (or WHAM-reweighted) average
// protonation at each pH by nonlinear least squares. The initial pKa guess
// is the pH of the data point closest to half protonation, so the fit is
// deterministic given identical input.
func Fit(pH, prot []float64, model Model, opts *Options) (*FitResult, error) {
	if len(pH) != len(prot) || len(pH) == 0 {
		return nil, pka.NewInputError(fmt.Sprintf("%d pH values for %d protonation values", len(pH), len(prot)), "Fit")
	}
	tol := DefaultBoundTol
	if opts != nil && opts.BoundTol > 0 {
		tol = opts.BoundTol
	}
	var fpH, fprot []float64
	for i, p := range prot {
		if p < tol || p > 1-tol {
			continue
		}
		fpH = append(fpH, pH[i])
		fprot = append(fprot, p)
	}
	if len(fpH) == 0 {
		return nil, pka.NewDegeneracyError("all data points are within tolerance of the protonation bounds", "Fit")
	}
	nparams := 1
	if model == Hill {
		nparams = 2
	}
	if len(fpH) < nparams {
		return nil, &FitError{message: fmt.Sprintf("only %d usable points for %d parameters", len(fpH), nparams)}
	}
	//deterministic initial guess: the point closest to half protonation
	guess := fpH[0]
	best := math.Abs(fprot[0] - 0.5)
	for i, p := range fprot {
		if d := math.Abs(p - 0.5); d < best {
			best = d
			guess = fpH[i]
		}
	}
	ssr := func(pKa, n float64) float64 {
		var s float64
		for i, x := range fpH {
			d := Protonation(x, pKa, n) - fprot[i]
			s += d * d
		}
		return s
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if model == Hill {
				return ssr(x[0], x[1])
			}
			return ssr(x[0], 1)
		},
	}
	x0 := []float64{guess}
	if model == Hill {
		x0 = append(x0, 1)
	}
	result, err := optimize.Minimize(problem, x0, nil, nil)
	if err != nil {
		return nil, &FitError{message: err.Error()}
	}
	R := &FitResult{PKa: result.X[0], N: 1, Resid: result.F, Points: len(fpH)}
	if model == Hill {
		R.N = result.X[1]
	}
	if math.IsNaN(R.PKa) || math.IsInf(R.PKa, 0) || math.IsNaN(R.Resid) {
		return nil, &FitError{message: "optimizer returned a non-finite solution"}
	}
	R.PKaErr, R.NErr = covariance(fpH, R.PKa, R.N, R.Resid, nparams)
	return R, nil
}

// covariance returns the Gauss-Newton standard errors of pKa (and n, for the
// Hill model) or NaNs if the estimate is unavailable.
func covariance(pH []float64, pKa, n, ssr float64, nparams int) (float64, float64) {
	m := len(pH)
	if m <= nparams {
		return math.NaN(), math.NaN()
	}
	J := mat.NewDense(m, nparams, nil)
	for i, x := range pH {
		q := math.Pow(10, n*(x-pKa))
		den := (1 + q) * (1 + q)
		//analytic derivatives of the model curve
		J.Set(i, 0, pka.Ln10*n*q/den) //d<P>/dpKa
		if nparams == 2 {
			J.Set(i, 1, -pka.Ln10*(x-pKa)*q/den) //d<P>/dn
		}
	}
	var jtj mat.Dense
	jtj.Mul(J.T(), J)
	var cov mat.Dense
	if err := cov.Inverse(&jtj); err != nil {
		return math.NaN(), math.NaN()
	}
	s2 := ssr / float64(m-nparams)
	pkaErr := math.Sqrt(s2 * cov.At(0, 0))
	nErr := math.NaN()
	if nparams == 2 {
		nErr = math.Sqrt(s2 * cov.At(1, 1))
	}
	return pkaErr, nErr
}

// Midpoint is the non-parametric pKa estimate: the mean of the pH of the one
// or two data points whose average protonation is closest to 0.5. Meant for
// dense, WHAM-reweighted titration curves; distinct from, and complementary
// to, the curve-fit estimate.
func Midpoint(pH, prot []float64) (float64, error) {
	if len(pH) != len(prot) || len(pH) == 0 {
		return 0, pka.NewInputError(fmt.Sprintf("%d pH values for %d protonation values", len(pH), len(prot)), "Midpoint")
	}
	idx := make([]int, len(pH))
	for i := range idx {
		idx[i] = i
	}
	dist := func(i int) float64 { return math.Abs(prot[i] - 0.5) }
	sort.Slice(idx, func(a, b int) bool {
		if dist(idx[a]) != dist(idx[b]) {
			return dist(idx[a]) < dist(idx[b])
		}
		return pH[idx[a]] < pH[idx[b]] //deterministic ties
	})
	if len(idx) >= 2 && dist(idx[1])-dist(idx[0]) < 1e-9 {
		//two points straddling the midpoint at (numerically) the same
		//distance: average them.
		return (pH[idx[0]] + pH[idx[1]]) / 2, nil
	}
	return pH[idx[0]], nil
}
