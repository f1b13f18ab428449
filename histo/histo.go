//Package histo provides weighted histograms for reweighted trajectory data.
//Unlike a plain count histogram, each data point carries an importance weight,
//so a frame contributes its weight (not 1) to its bin. A normalized weighted
//histogram is an estimate of the unbiased probability distribution of the
//binned observable, and can be turned into a free-energy curve.
package histo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rmera/gopka"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//Data is a weighted histogram. The dividers are the bin edges; a point x
//falls in bin j if dividers[j] <= x < dividers[j+1]. Points outside the
//dividers are omitted.
type Data struct {
	id         int
	normalized bool
	totalw     float64 //accumulated weight of the binned points only
	dividers   []float64
	histo      []float64
}

//NewData returns a new histogram with the given dividers. rawdata and
//weights can be nil, in which case an empty histogram is created. If weights
//is nil but rawdata is not, unit weights are used. If an ID for the histogram
//is given, it will be set. If not, the ID will be set to -1.
func NewData(dividers []float64, rawdata, weights []float64, ID ...int) (*Data, error) {
	if len(dividers) < 2 || !sort.Float64sAreSorted(dividers) {
		return nil, pka.NewInputError("histogram needs at least 2 sorted dividers", "NewData")
	}
	d := new(Data)
	//we copy the slice to avoid somebody changing it from outside
	d.dividers = make([]float64, len(dividers))
	copy(d.dividers, dividers)
	d.histo = make([]float64, len(dividers)-1)
	d.id = -1
	if len(ID) > 0 {
		d.id = ID[0]
	}
	if rawdata != nil {
		if err := d.ReHisto(rawdata, weights); err != nil {
			return nil, err
		}
	}
	return d, nil
}

//ReHisto discards the current contents of the histogram and re-bins the
//given data with the given weights (unit weights if nil). Points outside the
//dividers are omitted, together with their weight.
func (D *Data) ReHisto(rawdata, weights []float64) error {
	if weights != nil && len(weights) != len(rawdata) {
		return pka.NewInputError(fmt.Sprintf("%d data points but %d weights", len(rawdata), len(weights)), "ReHisto")
	}
	if weights == nil {
		weights = make([]float64, len(rawdata))
		for i := range weights {
			weights[i] = 1
		}
	}
	//stat.Histogram wants the data sorted, and panics on off-limits values,
	//so we sort a paired copy and trim before the call.
	p := &pairs{x: make([]float64, len(rawdata)), w: make([]float64, len(rawdata))}
	copy(p.x, rawdata)
	copy(p.w, weights)
	sort.Sort(p)
	lo := sort.SearchFloat64s(p.x, D.dividers[0])
	hi := sort.SearchFloat64s(p.x, D.dividers[len(D.dividers)-1])
	p.x = p.x[lo:hi]
	p.w = p.w[lo:hi]
	D.normalized = false
	D.histo = stat.Histogram(nil, D.dividers, p.x, p.w)
	D.totalw = floats.Sum(p.w)
	return nil
}

//AddWeighted adds one data point with the given weight to the histogram.
//Values off the dividers are omitted.
func (D *Data) AddWeighted(point, weight float64) {
	var norma bool
	if D.normalized {
		norma = true
		D.UnNormalize()
	}
	for j := 0; j < len(D.dividers)-1; j++ {
		if D.dividers[j] <= point && point < D.dividers[j+1] {
			D.histo[j] += weight
			D.totalw += weight
			break
		}
	}
	//if it was normalized, we should return it to that state
	if norma {
		D.Normalize()
	}
}

//ID returns the ID of the histogram
func (D *Data) ID() int {
	return D.id
}

//Normalized returns true if the histogram is normalized
func (D *Data) Normalized() bool {
	return D.normalized
}

//Normalize normalizes the histogram so its bins sum to 1.
func (D *Data) Normalize() {
	D.normaunnorma(true)
}

//UnNormalize un-normalizes the histogram
func (D *Data) UnNormalize() {
	D.normaunnorma(false)
}

//normalizes or un-normalizes the histogram depending
//on whether normalize is true
func (D *Data) normaunnorma(normalize bool) {
	if D.totalw <= 0 || D.normalized == normalize {
		return
	}
	n := D.totalw
	D.normalized = false
	if normalize {
		n = 1 / D.totalw
		D.normalized = true
	}
	floats.Scale(n, D.histo)
}

//FreeEnergy returns the free-energy curve -kT*ln(p) of the histogram, in the
//energy units of kT, shifted so the lowest value is zero. Empty bins yield
//+Inf. The receiver is not modified: a normalized copy of the bins is used.
func (D *Data) FreeEnergy(kT float64) ([]float64, error) {
	if D.totalw <= 0 {
		return nil, pka.NewDegeneracyError("empty histogram has no free-energy curve", "FreeEnergy")
	}
	p := D.Copy()
	if !D.normalized {
		floats.Scale(1/D.totalw, p)
	}
	F := make([]float64, len(p))
	min := math.Inf(1)
	for i, v := range p {
		if v <= 0 {
			F[i] = math.Inf(1)
			continue
		}
		F[i] = -kT * math.Log(v)
		if F[i] < min {
			min = F[i]
		}
	}
	if math.IsInf(min, 1) {
		return nil, pka.NewDegeneracyError("all histogram bins are empty", "FreeEnergy")
	}
	for i := range F {
		F[i] -= min
	}
	return F, nil
}

//Add adds the histograms a and b putting the result in the receiver.
//The dividers of a and b must match.
func (D *Data) Add(a, b *Data) error {
	if len(a.dividers) != len(b.dividers) || !floats.Equal(a.dividers, b.dividers) {
		return pka.NewInputError("dividers must match in added histograms", "Add")
	}
	D.dividers = a.CopyDividers(D.dividers)
	if len(D.histo) != len(a.histo) {
		D.histo = make([]float64, len(a.histo))
	}
	for i := range a.histo {
		D.histo[i] = a.histo[i] + b.histo[i]
	}
	D.totalw = a.totalw + b.totalw
	D.normalized = a.normalized && b.normalized
	return nil
}

//Sum returns the sum over the bins of the histogram.
func (D *Data) Sum() float64 {
	return floats.Sum(D.histo)
}

//Midpoints returns the centers of the bins.
func (D *Data) Midpoints() []float64 {
	ret := make([]float64, len(D.histo))
	for i := range ret {
		ret[i] = (D.dividers[i] + D.dividers[i+1]) / 2
	}
	return ret
}

//CopyDividers copies the dividers of the histogram
func (D *Data) CopyDividers(dest ...[]float64) []float64 {
	d := getCopySlice(len(D.dividers), dest...)
	return floats.ScaleTo(d, 1, D.dividers)
}

//Copy copies the bins of the histogram
func (D *Data) Copy(dest ...[]float64) []float64 {
	d := getCopySlice(len(D.histo), dest...)
	return floats.ScaleTo(d, 1, D.histo)
}

//View returns the actual bin slice, which should not be modified.
func (D *Data) View() []float64 {
	return D.histo
}

//String prints a -hopefully- pretty string representation of
//the histogram. The representation uses 3 lines of text
func (D *Data) String() string {
	ret := fmt.Sprintf("ID: %d, Normalized: %v, TotalWeight: %6.4f\n", D.id, D.normalized, D.totalw)
	d := make([]string, 0, len(D.dividers)-1)
	h := make([]string, 0, len(D.dividers)-1)
	for i, v := range D.histo {
		d = append(d, fmt.Sprintf("%4.2f-%4.2f", D.dividers[i], D.dividers[i+1]))
		h = append(h, fmt.Sprintf("%9.3f", v))
	}
	return ret + fmt.Sprintf("%s\n%s", strings.Join(d, " "), strings.Join(h, " "))
}

func (D *Data) MarshalJSON() ([]byte, error) {
	j, err := json.Marshal(struct {
		ID         int       `json:"id"`
		Normalized bool      `json:"normalized"`
		TotalW     float64   `json:"totalweight"`
		Dividers   []float64 `json:"dividers"`
		Histo      []float64 `json:"histo"`
	}{
		ID:         D.id,
		Normalized: D.normalized,
		TotalW:     D.totalw,
		Dividers:   D.dividers,
		Histo:      D.histo,
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (D *Data) UnmarshalJSON(b []byte) error {
	var a struct {
		ID         int       `json:"id"`
		Normalized bool      `json:"normalized"`
		TotalW     float64   `json:"totalweight"`
		Dividers   []float64 `json:"dividers"`
		Histo      []float64 `json:"histo"`
	}
	err := json.Unmarshal(b, &a)
	if err != nil {
		return err
	}
	D.id = a.ID
	D.normalized = a.Normalized
	D.totalw = a.TotalW
	D.dividers = a.Dividers
	D.histo = a.Histo
	return nil
}

//pairs sorts data and weights together by data value, for stat.Histogram.
type pairs struct {
	x, w []float64
}

func (p *pairs) Len() int           { return len(p.x) }
func (p *pairs) Less(i, j int) bool { return p.x[i] < p.x[j] }
func (p *pairs) Swap(i, j int) {
	p.x[i], p.x[j] = p.x[j], p.x[i]
	p.w[i], p.w[j] = p.w[j], p.w[i]
}

func getCopySlice(N int, dest ...[]float64) []float64 {
	var d []float64
	if len(dest) > 0 && len(dest[0]) >= N {
		d = dest[0]
		if len(dest[0]) > N {
			d = dest[0][:N] //floats.ScaleTo wants both slices to _match_
		}
	} else {
		d = make([]float64, N)
	}
	return d
}
