/*
 * main.go, part of gopka
 *
 *
 * Copyright 2025 Raul Mera <rmera{at}usach(dot)cl>
 *
 *
 *  This program is free software; you can redistribute it and/or modify
 *  it under the terms of the GNU General Public License as published by
 *  the Free Software Foundation; either version 2 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License along
 *  with this program; if not, write to the Free Software Foundation, Inc.,
 *  51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 *
 *
 */

/*To the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche*/

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	pka "github.com/rmera/gopka"
	"github.com/rmera/gopka/bootstrap"
	"github.com/rmera/gopka/colvar"
	"github.com/rmera/gopka/pkaplot"
	"github.com/rmera/gopka/reweight"
	"github.com/rmera/gopka/titration"
	"github.com/rmera/gopka/wham"
)

//Global variables... Sometimes, you gotta use'em
var verb int

//If v is true, prints the d arguments to stderr
//otherwise, does nothing.
func LogV(v int, vref int, d ...interface{}) {
	if v >= vref {
		fmt.Fprintln(os.Stderr, d...)
	}

}

func CErr(err error, info string) {
	if err != nil {
		log.Fatal(err, " ", info)
	}
}

//one replica's input files, as given on the command line.
type replicaSpec struct {
	pH     float64
	colvar string
	occ    string
	hills  string //optional
}

//parses a "pH:COLVAR:OCCUPANCY[:HILLS]" command-line argument.
func parseSpec(arg string) (*replicaSpec, error) {
	fields := strings.Split(arg, ":")
	if len(fields) < 3 || len(fields) > 4 {
		return nil, fmt.Errorf("replica argument %q: want pH:COLVAR:OCCUPANCY[:HILLS]", arg)
	}
	pH, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("replica argument %q: bad pH: %v", arg, err)
	}
	S := &replicaSpec{pH: pH, colvar: fields[1], occ: fields[2]}
	if len(fields) == 4 {
		S.hills = fields[3]
	}
	return S, nil
}

func parseFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	ret := make([]float64, len(fields))
	var err error
	for i, v := range fields {
		ret[i], err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func main() {
	//There are _tons_ of flags, but they are meant not to be needed the 99% of the time.
	temp := flag.Float64("temp", 300.0, "the simulation temperature, in K")
	sitetable := flag.String("site", "0=0,1=1", "occupancy-code to protonation-fraction table for the titratable site, as code=fraction pairs")
	sitename := flag.String("sitename", "site", "name of the titratable site, for reports and plot titles")
	timecol := flag.String("timecol", "time", "name of the time column in the COLVAR files")
	biascol := flag.String("biascol", "metad.bias", "name of the accumulated-bias column in the COLVAR files")
	cvnames := flag.String("cvs", "", "comma-separated names of the collective-variable columns. Needed for WHAM (with HILLS files) and free energy surfaces")
	periods := flag.String("periods", "", "comma-separated periods of the collective variables (0 for non-periodic ones)")
	eqtime := flag.Float64("eqtime", 0.0, "equilibration time discarded from the start of every replica")
	nblocks := flag.Int("nblocks", 20, "number of blocks for the block bootstrap")
	nboot := flag.Int("nboot", 0, "bootstrap resamples for the error bars. 0 skips the bootstrap")
	seed := flag.Int64("seed", 42, "seed for the bootstrap resampling")
	cpus := flag.Int("cpus", -1, "CPUs used for the bootstrap. If a number <0 is given, all logical CPUs are used")
	tol := flag.Float64("tol", 1e-10, "WHAM convergence tolerance, in kT")
	maxiter := flag.Int("maxiter", 50000, "maximum WHAM iterations")
	whamMethod := flag.String("wham", "scf", "WHAM solver: scf or mle")
	lencorrect := flag.Bool("lencorrect", false, "weight each replica by Nshortest/N in WHAM, so longer trajectories do not dominate")
	model := flag.String("model", "hh", "titration model fitted to the curve: hh (Henderson-Hasselbalch) or hill")
	phstep := flag.Float64("phstep", 0.1, "pH step of the WHAM-reweighted titration scan")
	phpad := flag.Float64("phpad", 1.0, "how far beyond the simulated pH range the titration scan extends")
	plotname := flag.String("plot", "", "basename for png plots. Empty skips plotting")
	fespH := flag.Float64("fespH", -1, "target pH for a free energy curve along the first collective variable. Negative skips it")
	fesbins := flag.Int("fesbins", 50, "number of bins of the free energy curve")
	verbose := flag.Int("verbose", 0, "Level of verbosity, the higher, the more verbose.")
	flag.Parse()
	verb = *verbose
	args := flag.Args()
	if len(args) < 1 {
		fmt.Printf("Use:\n  gopka [FLAGS] pH1:COLVAR1:OCC1[:HILLS1] pH2:COLVAR2:OCC2[:HILLS2] ...\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *cpus < 0 {
		*cpus = runtime.NumCPU()
	}
	kT := pka.KT(*temp)
	site, err := pka.ParseSiteModel(*sitename, *sitetable)
	CErr(err, "main")
	cvs := []string{}
	if *cvnames != "" {
		cvs = strings.Split(*cvnames, ",")
	}
	period, err := parseFloats(*periods)
	CErr(err, "main")

	//Load every replica and discard its equilibration.
	var replicas []*pka.Replica
	var hills []*colvar.Hills
	haveHills := true
	for i, arg := range args {
		spec, err := parseSpec(arg)
		CErr(err, "main")
		R := loadReplica(i, spec, *timecol, *biascol, cvs)
		R = R.After(*eqtime)
		if R.Len() == 0 {
			CErr(fmt.Errorf("replica %d: no frames left after the %4.2f equilibration cutoff", i, *eqtime), "main")
		}
		LogV(verb, 1, "loaded", R.String())
		replicas = append(replicas, R)
		if spec.hills == "" {
			haveHills = false
			continue
		}
		H, err := colvar.ReadHills(spec.hills, cvs...)
		CErr(err, "main")
		hills = append(hills, H)
	}

	//Per-replica reweighted averages: one titration point per simulated pH.
	phs := make([]float64, len(replicas))
	avgs := make([]float64, len(replicas))
	fmt.Printf("Site %s, %d replicas, kT %5.3f kJ/mol\n", site.Name(), len(replicas), kT)
	for i, R := range replicas {
		W, err := reweight.Reweight(R.Bias(), kT)
		CErr(err, fmt.Sprintf("main: replica %d", R.ID))
		prot, err := R.Protonation(site)
		CErr(err, fmt.Sprintf("main: replica %d", R.ID))
		avgs[i], err = W.Mean(prot)
		CErr(err, fmt.Sprintf("main: replica %d", R.ID))
		phs[i] = R.PH
		line := fmt.Sprintf("replica %d: pH %5.2f <P> %6.4f ESS %6.1f/%d", R.ID, R.PH, avgs[i], W.ESS(), R.Len())
		if *nboot > 0 {
			f, err := bootstrap.WeightedMean(prot, W.View())
			CErr(err, "main")
			E, err := bootstrap.RunConc(R.Len(), *nblocks, *nboot, *cpus, *seed, f)
			CErr(err, "main")
			se, err := E.StdErr()
			CErr(err, "main")
			line += fmt.Sprintf(" +/- %6.4f (%d resamples, %d failed)", se, E.Len(), E.Failed())
		}
		fmt.Println(line)
	}

	//The fit over the per-replica averages. It can fail legitimately with few
	//replicas or a transition outside the simulated range; we report and go on.
	tmodel := titration.HendersonHasselbalch
	if *model == "hill" {
		tmodel = titration.Hill
	}
	fit, err := titration.Fit(phs, avgs, tmodel, nil)
	if err != nil {
		fmt.Println("per-replica titration fit failed:", err)
	} else {
		fmt.Println("per-replica fit:", fit)
	}

	if !haveHills {
		LogV(verb, 1, "no HILLS files given for some replicas: skipping WHAM")
		finishPlots(*plotname, *sitename, phs, avgs, fit)
		return
	}
	//WHAM over all replicas.
	if len(cvs) == 0 {
		CErr(fmt.Errorf("WHAM needs the -cvs flag to evaluate the HILLS biases"), "main")
	}
	ev := make(wham.GaussianBias, len(hills))
	for i, H := range hills {
		ev[i], err = wham.NewSumOfGaussians(H.Heights, H.Centers, H.Sigmas, period)
		CErr(err, "main")
	}
	M, err := wham.NewBiasMatrix(replicas, site, ev, kT)
	CErr(err, "main")
	opts := wham.DefaultOptions()
	opts.Tol = *tol
	opts.MaxIter = *maxiter
	opts.LengthCorrect = *lencorrect
	if *whamMethod == "mle" {
		opts.Method = wham.MLE
	}
	sol, err := wham.Solve(M, opts)
	CErr(err, "main")
	LogV(verb, 1, "WHAM converged:", sol.Iterations(), "iterations, residual", sol.Residual())
	LogV(verb, 2, "replica free energies (kT):", sol.FreeEnergies())

	//Dense titration scan and the two pKa estimates on it.
	scan := phScan(phs, *phpad, *phstep)
	curve, err := sol.TitrationCurve(scan)
	CErr(err, "main")
	mid, err := titration.Midpoint(scan, curve)
	CErr(err, "main")
	fmt.Printf("WHAM titration midpoint: pKa = %5.3f\n", mid)
	wfit, err := titration.Fit(scan, curve, tmodel, nil)
	if err != nil {
		fmt.Println("WHAM titration fit failed:", err)
	} else {
		fmt.Println("WHAM fit:", wfit)
		fit = wfit
	}
	if *nboot > 0 {
		f := func(idx []int) (float64, error) {
			M2, err := M.Rows(idx)
			if err != nil {
				return 0, err
			}
			s2, err := wham.Solve(M2, opts)
			if err != nil {
				return 0, err
			}
			c2, err := s2.TitrationCurve(scan)
			if err != nil {
				return 0, err
			}
			return titration.Midpoint(scan, c2)
		}
		E, err := bootstrap.RunConc(M.NFrames(), *nblocks, *nboot, *cpus, *seed, f)
		CErr(err, "main")
		se, err := E.StdErr()
		CErr(err, "main")
		fmt.Printf("bootstrap: pKa = %5.3f +/- %5.3f (%d resamples, %d failed)\n", mid, se, E.Len(), E.Failed())
	}
	if *fespH >= 0 {
		fes(sol, replicas, kT, *fespH, *fesbins, *plotname)
	}
	finishPlots(*plotname, *sitename, scan, curve, fit)
}

//loadReplica reads one replica's COLVAR and occupancy files into a Replica.
func loadReplica(id int, spec *replicaSpec, timecol, biascol string, cvs []string) *pka.Replica {
	T, err := colvar.ReadTable(spec.colvar)
	CErr(err, "loadReplica")
	times, err := T.Column(timecol)
	CErr(err, "loadReplica")
	bias, err := T.Column(biascol)
	CErr(err, "loadReplica")
	var cvvals [][]float64
	if len(cvs) > 0 {
		cvvals, err = T.Columns(cvs...)
		CErr(err, "loadReplica")
	} else {
		cvvals = make([][]float64, len(times))
		for i := range cvvals {
			cvvals[i] = []float64{}
		}
	}
	occTime, occ, err := colvar.ReadOccupancy(spec.occ)
	CErr(err, "loadReplica")
	R, err := pka.NewReplica(id, spec.pH, times, cvvals, bias, occTime, occ)
	CErr(err, "loadReplica")
	return R
}

//phScan builds the dense pH grid for the titration scan: the simulated range
//padded by pad on both sides, in steps of step.
func phScan(phs []float64, pad, step float64) []float64 {
	min, max := phs[0], phs[0]
	for _, v := range phs {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	var scan []float64
	for x := min - pad; x <= max+pad+step/2; x += step {
		scan = append(scan, x)
	}
	return scan
}

//fes prints (and optionally plots) the free energy curve along the first
//collective variable, at the WHAM-reweighted target pH.
func fes(sol *wham.Solution, replicas []*pka.Replica, kT, pH float64, bins int, plotname string) {
	var obs []float64
	for _, R := range replicas {
		cv, err := R.CV(0)
		CErr(err, "fes")
		obs = append(obs, cv...)
	}
	W, err := sol.WeightsAt(pH, nil)
	CErr(err, "fes")
	min, max := obs[0], obs[0]
	for _, v := range obs {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	dividers := make([]float64, bins+1)
	for i := range dividers {
		dividers[i] = min + (max-min)*float64(i)/float64(bins)
	}
	D, err := W.Histogram(obs, dividers)
	CErr(err, "fes")
	A, err := D.FreeEnergy(kT)
	CErr(err, "fes")
	mids := D.Midpoints()
	fmt.Printf("free energy along the first collective variable at pH %5.2f (kJ/mol):\n", pH)
	for i := range mids {
		fmt.Printf("%8.4f %8.3f\n", mids[i], A[i])
	}
	if plotname != "" {
		err := pkaplot.FreeEnergy(mids, A, "A (kJ/mol)", fmt.Sprintf("pH %4.2f", pH), plotname+"_fes")
		CErr(err, "fes")
	}
}

func finishPlots(plotname, sitename string, pH, prot []float64, fit *titration.FitResult) {
	if plotname == "" {
		return
	}
	err := pkaplot.Titration(pH, prot, fit, sitename, plotname)
	CErr(err, "finishPlots")
	LogV(verb, 1, "wrote", plotname+".png")
}
