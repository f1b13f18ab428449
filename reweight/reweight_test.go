package reweight

import (
	"fmt"
	"math"
	"testing"

	"github.com/rmera/gopka"
)

func TestReweight(Te *testing.T) {
	fmt.Println("Single-replica reweighting test!")
	kT := 2.5
	bias := []float64{0, kT * math.Log(2), kT * math.Log(4)}
	W, err := Reweight(bias, kT)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Println("weights:", W.View())
	if math.Abs(sum(W.View())-1.0) > 1e-9 {
		Te.Errorf("weights should sum to 1, got %g", sum(W.View()))
	}
	//weights should be in ratio 1:2:4
	w := W.View()
	if math.Abs(w[1]/w[0]-2) > 1e-9 || math.Abs(w[2]/w[0]-4) > 1e-9 {
		Te.Errorf("wrong weight ratios: %v", w)
	}
	for _, v := range w {
		if v < 0 {
			Te.Errorf("negative weight %g", v)
		}
	}
}

// Bias values of hundreds of kJ/mol against kT~2.5 would overflow a naive
// exp(b/kT). The max-subtraction must keep everything finite.
func TestReweightOverflow(Te *testing.T) {
	kT := 2.494
	bias := []float64{5000, 5001, 5002.5, 4990}
	W, err := Reweight(bias, kT)
	if err != nil {
		Te.Fatal(err)
	}
	for _, v := range W.View() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			Te.Fatalf("non-finite weight %g", v)
		}
	}
	if math.Abs(sum(W.View())-1.0) > 1e-9 {
		Te.Errorf("weights should sum to 1, got %g", sum(W.View()))
	}
}

func TestReweightDegenerate(Te *testing.T) {
	if _, err := Reweight([]float64{3.0, 3.0, 3.0}, 2.5); err == nil {
		Te.Error("all-identical bias series should be a degeneracy error")
	} else if pka.KindOf(err) != pka.KindDegeneracy {
		Te.Errorf("wrong error kind %v: %v", pka.KindOf(err), err)
	}
	if _, err := Reweight(nil, 2.5); err == nil {
		Te.Error("empty bias series should be an input error")
	}
}

func TestPopulationsAndDeltaF(Te *testing.T) {
	fmt.Println("Populations and free-energy difference test!")
	kT := 2.5
	//uniform weights, 4 frames in basin A, 1 in basin B
	W, err := Uniform(5)
	if err != nil {
		Te.Fatal(err)
	}
	obs := []float64{0.1, 0.2, 0.3, 0.4, 1.5}
	A := Interval{Min: 0, Max: 1}
	B := Interval{Min: 1, Max: 2}
	dF, err := W.DeltaF(obs, A, B, kT)
	if err != nil {
		Te.Fatal(err)
	}
	want := -kT * math.Log(4)
	fmt.Printf("dF = %6.4f, want %6.4f\n", dF, want)
	if math.Abs(dF-want) > 1e-9 {
		Te.Errorf("wrong free-energy difference: %f vs %f", dF, want)
	}
	//an empty basin must be signaled, never returned as an infinity
	empty := Interval{Min: 5, Max: 6}
	if _, err := W.DeltaF(obs, A, empty, kT); err == nil {
		Te.Error("empty basin B should be a degeneracy error")
	} else if pka.KindOf(err) != pka.KindDegeneracy {
		Te.Errorf("wrong error kind for empty basin: %v", err)
	}
}

func TestWeightedMeanAndESS(Te *testing.T) {
	W, err := FromLog([]float64{0, 0, math.Log(2)})
	if err != nil {
		Te.Fatal(err)
	}
	m, err := W.Mean([]float64{1, 1, 0})
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(m-0.5) > 1e-9 {
		Te.Errorf("wrong weighted mean %f", m)
	}
	U, _ := Uniform(100)
	if math.Abs(U.ESS()-100) > 1e-9 {
		Te.Errorf("uniform weights should have ESS=N, got %f", U.ESS())
	}
}

func sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}
	return s
}
