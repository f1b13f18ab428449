package wham

import (
	"fmt"
	"math"
	"testing"

	"github.com/rmera/gopka"
	"github.com/rmera/gopka/reweight"
	"gonum.org/v1/gonum/mat"
)

// With zero bias everywhere WHAM must reduce to uniform reference weights,
// and WeightsAt must then be the pure analytic ln(10)*pH*P modulation.
func TestZeroBiasUniform(Te *testing.T) {
	fmt.Println("Zero-bias WHAM test!")
	n, K := 90, 3
	prot := make([]float64, n)
	for i := range prot {
		prot[i] = float64(i % 2)
	}
	M, err := FromReduced(mat.NewDense(n, K, nil), []int{30, 30, 30}, []float64{8, 9, 10}, prot, nil)
	if err != nil {
		Te.Fatal(err)
	}
	S, err := Solve(M, nil)
	if err != nil {
		Te.Fatal(err)
	}
	logw := S.LogW()
	for _, v := range logw {
		if math.Abs(v-logw[0]) > 1e-9 {
			Te.Fatalf("reference weights not uniform: %g vs %g", v, logw[0])
		}
	}
	pH := 9.3
	W, err := S.WeightsAt(pH, nil)
	if err != nil {
		Te.Fatal(err)
	}
	//closed form: w_i prop. to 10^(-pH*P_i)
	var norm float64
	want := make([]float64, n)
	for i := range want {
		want[i] = math.Pow(10, -pH*prot[i])
		norm += want[i]
	}
	var sum float64
	for i, v := range W.View() {
		if v < 0 {
			Te.Fatalf("negative weight %g", v)
		}
		sum += v
		if math.Abs(v-want[i]/norm) > 1e-9 {
			Te.Fatalf("weight %d: %g, closed form %g", i, v, want[i]/norm)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		Te.Errorf("weights sum to %g", sum)
	}
}

// twoStateReplicas builds two replicas whose frame counts are exactly
// consistent with a two-state model of reference odds
// protonated:deprotonated = 4e8 (i.e. pKa = log10(4e8) ~ 8.602).
func twoStateReplicas(kT float64) ([]*pka.Replica, *pka.SiteModel, Evaluator, error) {
	site, err := pka.NewSiteModel("ASP12", map[int]float64{0: 0, 1: 1})
	if err != nil {
		return nil, nil, nil, err
	}
	biasOf := func(k int, p float64) float64 {
		if k == 0 { //replica at pH 8
			if p > 0.5 {
				return kT * math.Log(2)
			}
			return 0
		}
		//replica at pH 10
		if p > 0.5 {
			return 0
		}
		return kT * math.Log(5)
	}
	build := func(id int, pH float64, n1, n0 int) (*pka.Replica, error) {
		n := n1 + n0
		times := make([]float64, n)
		cvs := make([][]float64, n)
		bias := make([]float64, n)
		occ := make([]int, n)
		for i := 0; i < n; i++ {
			times[i] = float64(i)
			p := 0.0
			if i < n1 {
				p = 1.0
			}
			cvs[i] = []float64{p}
			bias[i] = biasOf(id, p)
			occ[i] = int(p)
		}
		return pka.NewReplica(id, pH, times, cvs, bias, times, occ)
	}
	//replica 0, pH 8: sampled odds 2:1 protonated; replica 1, pH 10: 1:5.
	A, err := build(0, 8.0, 400, 200)
	if err != nil {
		return nil, nil, nil, err
	}
	B, err := build(1, 10.0, 100, 500)
	if err != nil {
		return nil, nil, nil, err
	}
	eval := EvaluatorFunc(func(k int, cv []float64) (float64, error) {
		return biasOf(k, cv[0]), nil
	})
	return []*pka.Replica{A, B}, site, eval, nil
}

// The combined WHAM estimate, evaluated at a replica's own pH, must recover
// that replica's own single-replica-reweighted average protonation.
func TestRoundTrip(Te *testing.T) {
	fmt.Println("WHAM round-trip test!")
	kT := pka.KT300
	replicas, site, eval, err := twoStateReplicas(kT)
	if err != nil {
		Te.Fatal(err)
	}
	M, err := NewBiasMatrix(replicas, site, eval, kT)
	if err != nil {
		Te.Fatal(err)
	}
	S, err := Solve(M, nil)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Printf("solved in %d sweeps, residual %g, f=%v\n", S.Iterations(), S.Residual(), S.FreeEnergies())
	for _, R := range replicas {
		W, err := reweight.Reweight(R.Bias(), kT)
		if err != nil {
			Te.Fatal(err)
		}
		P, err := R.Protonation(site)
		if err != nil {
			Te.Fatal(err)
		}
		own, err := W.Mean(P)
		if err != nil {
			Te.Fatal(err)
		}
		combined, err := S.AvgProtonation(R.PH)
		if err != nil {
			Te.Fatal(err)
		}
		fmt.Printf("pH %4.1f: single-replica %8.6f, WHAM %8.6f\n", R.PH, own, combined)
		if math.Abs(own-combined) > 1e-3 {
			Te.Errorf("pH %4.1f: single-replica %f but WHAM %f", R.PH, own, combined)
		}
	}
	//known closed-form targets for this construction
	if p8, _ := S.AvgProtonation(8.0); math.Abs(p8-0.8) > 1e-3 {
		Te.Errorf("average protonation at pH 8 should be 0.8, got %f", p8)
	}
	if p10, _ := S.AvgProtonation(10.0); math.Abs(p10-100.0/2600.0) > 1e-3 {
		Te.Errorf("average protonation at pH 10 should be %f, got %f", 100.0/2600.0, p10)
	}
}

// WeightsAt twice with identical inputs must give identical results, with no
// re-solve in between.
func TestWeightsAtIdempotent(Te *testing.T) {
	kT := pka.KT300
	replicas, site, eval, err := twoStateReplicas(kT)
	if err != nil {
		Te.Fatal(err)
	}
	M, err := NewBiasMatrix(replicas, site, eval, kT)
	if err != nil {
		Te.Fatal(err)
	}
	S, err := Solve(M, nil)
	if err != nil {
		Te.Fatal(err)
	}
	W1, err := S.WeightsAt(8.6, nil)
	if err != nil {
		Te.Fatal(err)
	}
	W2, err := S.WeightsAt(8.6, nil)
	if err != nil {
		Te.Fatal(err)
	}
	for i, v := range W1.View() {
		if v != W2.View()[i] {
			Te.Fatalf("weights differ at frame %d: %g vs %g", i, v, W2.View()[i])
		}
	}
}

func TestMLEMatchesSCF(Te *testing.T) {
	fmt.Println("MLE vs SCF test!")
	kT := pka.KT300
	replicas, site, eval, err := twoStateReplicas(kT)
	if err != nil {
		Te.Fatal(err)
	}
	M, err := NewBiasMatrix(replicas, site, eval, kT)
	if err != nil {
		Te.Fatal(err)
	}
	S1, err := Solve(M, nil)
	if err != nil {
		Te.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Method = MLE
	S2, err := Solve(M, opts)
	if err != nil {
		Te.Fatal(err)
	}
	for i, v := range S1.LogW() {
		if math.Abs(v-S2.LogW()[i]) > 1e-6 {
			Te.Fatalf("frame %d: SCF logw %g, MLE logw %g", i, v, S2.LogW()[i])
		}
	}
}

func TestNonConvergence(Te *testing.T) {
	kT := pka.KT300
	replicas, site, eval, err := twoStateReplicas(kT)
	if err != nil {
		Te.Fatal(err)
	}
	M, err := NewBiasMatrix(replicas, site, eval, kT)
	if err != nil {
		Te.Fatal(err)
	}
	opts := DefaultOptions()
	opts.MaxIter = 1
	_, err = Solve(M, opts)
	if err == nil {
		Te.Fatal("one sweep should not satisfy a 1e-10 tolerance on this input")
	}
	cerr, ok := err.(*ConvergenceError)
	if !ok {
		Te.Fatalf("expected a *ConvergenceError, got %T: %v", err, err)
	}
	if pka.KindOf(err) != pka.KindConvergence {
		Te.Error("wrong error kind")
	}
	fmt.Println("got, as expected:", cerr)
}

func TestRowsResample(Te *testing.T) {
	kT := pka.KT300
	replicas, site, eval, err := twoStateReplicas(kT)
	if err != nil {
		Te.Fatal(err)
	}
	M, err := NewBiasMatrix(replicas, site, eval, kT)
	if err != nil {
		Te.Fatal(err)
	}
	idx := []int{0, 1, 2, 600, 601, 700}
	R, err := M.Rows(idx)
	if err != nil {
		Te.Fatal(err)
	}
	if R.NFrames() != len(idx) {
		Te.Errorf("resampled matrix has %d frames", R.NFrames())
	}
	c := R.Counts()
	if c[0] != 3 || c[1] != 3 {
		Te.Errorf("resampled counts %v, wanted [3 3]", c)
	}
	//dropping one replica entirely is a degeneracy
	if _, err := M.Rows([]int{0, 1, 2}); err == nil {
		Te.Error("selection without replica 1 frames should fail")
	} else if pka.KindOf(err) != pka.KindDegeneracy {
		Te.Errorf("wrong error kind: %v", err)
	}
}

// With zero bias the reference weight of each frame is exactly its replica's
// length weight, normalized, so the per-replica totals expose the correction.
func TestLengthCorrection(Te *testing.T) {
	fmt.Println("Trajectory-length correction test!")
	n := 50
	prot := make([]float64, n)
	newM := func() *BiasMatrix {
		M, err := FromReduced(mat.NewDense(n, 2, nil), []int{10, 40}, []float64{7, 8}, prot, nil)
		if err != nil {
			Te.Fatal(err)
		}
		return M
	}
	shortTotal := func(S *Solution) float64 {
		var t float64
		for i, lw := range S.LogW() {
			if S.Ref(i).ReplicaID == 0 {
				t += math.Exp(lw)
			}
		}
		return t
	}
	//uncorrected, the split follows the frame counts: 10/50
	S, err := Solve(newM(), nil)
	if err != nil {
		Te.Fatal(err)
	}
	if t := shortTotal(S); math.Abs(t-0.2) > 1e-9 {
		Te.Errorf("uncorrected short-replica weight should be 0.2, got %f", t)
	}
	//corrected, both replicas must contribute equal total weight
	opts := DefaultOptions()
	opts.LengthCorrect = true
	S, err = Solve(newM(), opts)
	if err != nil {
		Te.Fatal(err)
	}
	if t := shortTotal(S); math.Abs(t-0.5) > 1e-9 {
		Te.Errorf("length-corrected short-replica weight should be 0.5, got %f", t)
	}
	//explicit weights override the automatic correction
	opts = DefaultOptions()
	opts.TrajWeights = []float64{4, 1}
	S, err = Solve(newM(), opts)
	if err != nil {
		Te.Fatal(err)
	}
	if t := shortTotal(S); math.Abs(t-0.5) > 1e-9 {
		Te.Errorf("4:1 trajectory weights should even out the 10:40 counts, got %f", t)
	}
}

// Caller-supplied frame references must name the matrix columns; anything
// else would silently land on column 0 when resampling recounts frames.
func TestFromReducedRefs(Te *testing.T) {
	n := 6
	prot := make([]float64, n)
	counts := []int{2, 4}
	phs := []float64{7, 8}
	good := []FrameRef{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {1, 2}, {1, 3}}
	M, err := FromReduced(mat.NewDense(n, 2, nil), counts, phs, prot, good)
	if err != nil {
		Te.Fatal(err)
	}
	if M.Ref(2).ReplicaID != 1 {
		Te.Error("valid refs should be kept as given")
	}
	bad := append([]FrameRef{}, good...)
	bad[3] = FrameRef{7, 1} //no column 7
	if _, err := FromReduced(mat.NewDense(n, 2, nil), counts, phs, prot, bad); err == nil {
		Te.Error("out-of-range replica ID in refs should be an input error")
	}
	bad = append([]FrameRef{}, good...)
	bad[0] = FrameRef{1, 9} //tally 1:5 against counts 2:4
	if _, err := FromReduced(mat.NewDense(n, 2, nil), counts, phs, prot, bad); err == nil {
		Te.Error("refs tally disagreeing with counts should be an input error")
	}
}

func TestSumOfGaussians(Te *testing.T) {
	fmt.Println("Sum of Gaussians test!")
	G, err := NewSumOfGaussians(
		[]float64{1.2, 0.6},
		[][]float64{{0}, {math.Pi - 0.1}},
		[][]float64{{0.35}, {0.35}},
		[]float64{2 * math.Pi},
	)
	if err != nil {
		Te.Fatal(err)
	}
	b, err := G.Evaluate([]float64{0})
	if err != nil {
		Te.Fatal(err)
	}
	if b < 1.2 || b > 1.8 {
		Te.Errorf("bias at the first hill center should be dominated by its height, got %f", b)
	}
	//periodic wrap: -pi+0.1 is 0.2 away from the second hill center
	b1, err := G.Evaluate([]float64{-math.Pi + 0.1})
	if err != nil {
		Te.Fatal(err)
	}
	arg := 0.2 * 0.2 / (2 * 0.35 * 0.35)
	want := 0.6 * math.Exp(-arg)
	if math.Abs(b1-want) > 1e-3 {
		Te.Errorf("periodic evaluation gave %f, wanted about %f", b1, want)
	}
}
