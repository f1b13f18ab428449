package titration

import (
	"fmt"
	"math"
	"testing"

	"github.com/rmera/gopka"
)

// The model curve must be strictly decreasing in pH for fixed pKa, n=1.
func TestModelMonotonic(Te *testing.T) {
	prev := math.Inf(1)
	for pH := 0.0; pH <= 14; pH += 0.01 {
		p := Protonation(pH, 7.4, 1)
		if p >= prev {
			Te.Fatalf("model not strictly decreasing at pH %4.2f", pH)
		}
		if p < 0 || p > 1 {
			Te.Fatalf("model out of [0,1] at pH %4.2f: %f", pH, p)
		}
		prev = p
	}
	if math.Abs(Protonation(7.4, 7.4, 1)-0.5) > 1e-12 {
		Te.Error("model should be exactly half protonated at pH = pKa")
	}
}

// Three per-replica averages around a transition at pH 9 must fit to
// pKa = 9.00 within 0.05.
func TestFitThreeReplicas(Te *testing.T) {
	fmt.Println("Titration fit test!")
	pH := []float64{8.0, 9.0, 10.0}
	prot := []float64{0.9, 0.5, 0.1}
	R, err := Fit(pH, prot, HendersonHasselbalch, nil)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Println(R)
	if math.Abs(R.PKa-9.00) > 0.05 {
		Te.Errorf("pKa should be 9.00 +/- 0.05, got %f", R.PKa)
	}
	if R.N != 1 {
		Te.Errorf("Henderson-Hasselbalch fit should keep n = 1, got %f", R.N)
	}
	if R.Points != 3 {
		Te.Errorf("all 3 points should survive filtering, got %d", R.Points)
	}
}

func TestFitHill(Te *testing.T) {
	fmt.Println("Hill fit test!")
	pKa, n := 6.8, 1.7
	var pH, prot []float64
	for x := 5.0; x <= 9.0; x += 0.25 {
		pH = append(pH, x)
		prot = append(prot, Protonation(x, pKa, n))
	}
	R, err := Fit(pH, prot, Hill, nil)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Println(R)
	if math.Abs(R.PKa-pKa) > 0.01 || math.Abs(R.N-n) > 0.05 {
		Te.Errorf("recovered pKa %f n %f, wanted %f %f", R.PKa, R.N, pKa, n)
	}
}

// Points pinned to the protonation bounds carry no midpoint information;
// when they are all there is, the fit must refuse.
func TestFitAllFiltered(Te *testing.T) {
	pH := []float64{2, 3, 12, 13}
	prot := []float64{0.9999, 1.0, 0.0001, 0.0}
	_, err := Fit(pH, prot, HendersonHasselbalch, nil)
	if err == nil {
		Te.Fatal("fit with every point at the bounds should fail")
	}
	if pka.KindOf(err) != pka.KindDegeneracy {
		Te.Errorf("wrong error kind: %v", err)
	}
}

func TestFitDeterministic(Te *testing.T) {
	pH := []float64{7.0, 7.5, 8.0, 8.5}
	prot := []float64{0.8, 0.62, 0.4, 0.2}
	R1, err := Fit(pH, prot, HendersonHasselbalch, nil)
	if err != nil {
		Te.Fatal(err)
	}
	R2, err := Fit(pH, prot, HendersonHasselbalch, nil)
	if err != nil {
		Te.Fatal(err)
	}
	if R1.PKa != R2.PKa {
		Te.Errorf("identical input gave different fits: %g vs %g", R1.PKa, R2.PKa)
	}
}

func TestMidpoint(Te *testing.T) {
	fmt.Println("Midpoint scan test!")
	//dense scan of an ideal curve with pKa 8.6
	var pH, prot []float64
	for x := 7.0; x <= 10.0; x += 0.05 {
		pH = append(pH, x)
		prot = append(prot, Protonation(x, 8.6, 1))
	}
	m, err := Midpoint(pH, prot)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Printf("midpoint estimate: %5.3f\n", m)
	if math.Abs(m-8.6) > 0.05 {
		Te.Errorf("midpoint should be 8.60 +/- 0.05, got %f", m)
	}
	//two symmetric points: their mean is the estimate
	m2, err := Midpoint([]float64{8.0, 10.0}, []float64{0.7, 0.3})
	if err != nil {
		Te.Fatal(err)
	}
	if math.Abs(m2-9.0) > 1e-9 {
		Te.Errorf("two symmetric points should average to 9.0, got %f", m2)
	}
}
