package pkaplot

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rmera/gopka/titration"
)

func TestTitrationPlot(Te *testing.T) {
	fmt.Println("Titration plot test!")
	var pH, prot []float64
	for x := 6.0; x <= 10.0; x += 0.5 {
		pH = append(pH, x)
		prot = append(prot, titration.Protonation(x, 8.0, 1))
	}
	fit, err := titration.Fit(pH, prot, titration.HendersonHasselbalch, nil)
	if err != nil {
		Te.Fatal(err)
	}
	name := filepath.Join(Te.TempDir(), "titration")
	if err := Titration(pH, prot, fit, "Test site", name); err != nil {
		Te.Fatal(err)
	}
	if _, err := os.Stat(name + ".png"); err != nil {
		Te.Error("plot file was not written")
	}
	if err := Titration(nil, nil, nil, "empty", name); err == nil {
		Te.Error("empty data should be an error")
	}
}

func TestFreeEnergyPlot(Te *testing.T) {
	fmt.Println("Free energy plot test!")
	mids := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	fes := []float64{2.0, 0.5, 0.0, math.Inf(1), 1.5} //one empty bin
	name := filepath.Join(Te.TempDir(), "fes")
	if err := FreeEnergy(mids, fes, "A (kJ/mol)", "Test surface", name); err != nil {
		Te.Fatal(err)
	}
	if _, err := os.Stat(name + ".png"); err != nil {
		Te.Error("plot file was not written")
	}
	allEmpty := []float64{math.Inf(1), math.Inf(1)}
	if err := FreeEnergy(mids[:2], allEmpty, "A", "empty", name); err == nil {
		Te.Error("all-empty surface should be an error")
	}
}
