package histo

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
)

func TestWeightedHisto(Te *testing.T) {
	fmt.Println("Weighted histogram test!")
	dividers := []float64{0, 1, 2, 3, 4}
	rawdata := []float64{0.5, 0.7, 1.5, 2.5, 2.7, 3.5, 44} //the 44 is off-limits, should be omitted
	weights := []float64{0.25, 0.25, 0.2, 0.1, 0.1, 0.1, 99}
	D, err := NewData(dividers, rawdata, weights)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Println(D.String())
	if math.Abs(D.Sum()-1.0) > 1e-9 {
		Te.Errorf("binned weight should be 1.0, got %f", D.Sum())
	}
	if math.Abs(D.View()[0]-0.5) > 1e-9 {
		Te.Errorf("first bin should hold weight 0.5, got %f", D.View()[0])
	}
	D.Normalize()
	if math.Abs(D.Sum()-1.0) > 1e-9 {
		Te.Errorf("normalized histogram should sum to 1, got %f", D.Sum())
	}
}

func TestFreeEnergy(Te *testing.T) {
	fmt.Println("Free energy curve test!")
	dividers := []float64{0, 1, 2, 3}
	D, err := NewData(dividers, []float64{0.5, 0.5, 1.5, 2.5}, []float64{0.4, 0.4, 0.1, 0.1})
	if err != nil {
		Te.Fatal(err)
	}
	kT := 2.5
	F, err := D.FreeEnergy(kT)
	if err != nil {
		Te.Fatal(err)
	}
	fmt.Println("F:", F)
	if F[0] != 0 {
		Te.Errorf("lowest free energy should be shifted to zero, got %f", F[0])
	}
	//bins 1 and 2 have the same population, 8 times lower than bin 0
	want := -kT * math.Log(0.1/0.8)
	if math.Abs(F[1]-want) > 1e-9 || math.Abs(F[2]-want) > 1e-9 {
		Te.Errorf("wanted %f for bins 1,2 got %f %f", want, F[1], F[2])
	}
	//an empty histogram has no free energy curve
	E, _ := NewData(dividers, nil, nil)
	if _, err := E.FreeEnergy(kT); err == nil {
		Te.Error("empty histogram should not produce a free-energy curve")
	}
}

func TestHistoIO(Te *testing.T) {
	fmt.Println("Histogram JSON output test!")
	D, err := NewData([]float64{0, 1, 2, 3, 4, 8}, []float64{1, 6, 3, 2, 4, 5, 7, 6, 3.5}, nil, 3)
	if err != nil {
		Te.Fatal(err)
	}
	j, err := json.Marshal(D)
	fmt.Println("JSON:", string(j), err)
	D2 := new(Data)
	json.Unmarshal(j, D2)
	fmt.Printf("%v\n", D2)
	if D2.ID() != 3 || D2.Sum() != D.Sum() {
		Te.Error("histogram did not survive the JSON round trip")
	}
}
