/*
 * matrix.go, part of gopka.
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

package wham

import (
	"fmt"

	"github.com/rmera/gopka"
	"gonum.org/v1/gonum/mat"
)

// Evaluator replays the accumulated bias potential of replica k on an
// arbitrary frame's collective variables, in kJ/mol. This is the capability
// the metadynamics engine must provide: its final bias is a sum of Gaussians
// that can be evaluated anywhere, not only on the frames it produced.
type Evaluator interface {
	BiasAt(k int, cv []float64) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(k int, cv []float64) (float64, error)

func (f EvaluatorFunc) BiasAt(k int, cv []float64) (float64, error) { return f(k, cv) }

// FrameRef maps a concatenated-frame index back to its (replica, time) pair.
type FrameRef struct {
	ReplicaID int
	Time      float64
}

// BiasMatrix holds the reduced bias energies u[i][k] of every concatenated
// frame i under every replica ensemble k:
//
//	u[i][k] = b_k(x_i)/kT + ln(10)*pH_k*P_i
//
// where b_k is replica k's accumulated bias evaluated on frame i and P_i is
// frame i's protonation fraction. The sampled density of replica k is then
// proportional to p0(x)*exp(-u), with p0 the common (pH-free) reference
// ensemble the WHAM solver estimates. The matrix is read-only once built;
// frame order is the concatenation of the replicas in the order given, each
// in time order, and is stable run to run.
type BiasMatrix struct {
	u      *mat.Dense
	phs    []float64 //pH of each column's replica
	repIDs []int     //ID of each column's replica
	counts []int     //frames contributed by each column's replica
	prot   []float64 //per-frame protonation fraction
	refs   []FrameRef
}

// NewBiasMatrix concatenates the frames of all replicas and evaluates every
// replica's bias potential on every frame, building the reduced bias matrix
// for the given site model and thermal energy kT (kJ/mol). The columns are
// evaluated concurrently, one goroutine per replica, as they are fully
// independent.
func NewBiasMatrix(replicas []*pka.Replica, site *pka.SiteModel, eval Evaluator, kT float64) (*BiasMatrix, error) {
	if len(replicas) == 0 {
		return nil, pka.NewInputError("no replicas given", "NewBiasMatrix")
	}
	if kT <= 0 {
		return nil, pka.NewInputError(fmt.Sprintf("non-positive kT: %f", kT), "NewBiasMatrix")
	}
	M := new(BiasMatrix)
	var n int
	for _, R := range replicas {
		if R.Len() == 0 {
			return nil, pka.NewInputError(fmt.Sprintf("replica %d is empty", R.ID), "NewBiasMatrix")
		}
		M.phs = append(M.phs, R.PH)
		M.repIDs = append(M.repIDs, R.ID)
		M.counts = append(M.counts, R.Len())
		n += R.Len()
	}
	frames := make([]*pka.Frame, 0, n)
	M.refs = make([]FrameRef, 0, n)
	M.prot = make([]float64, 0, n)
	for _, R := range replicas {
		P, err := R.Protonation(site)
		if err != nil {
			return nil, errDecorate(err, "NewBiasMatrix")
		}
		for i := range R.Frames {
			frames = append(frames, &R.Frames[i])
			M.refs = append(M.refs, FrameRef{ReplicaID: R.ID, Time: R.Frames[i].Time})
		}
		M.prot = append(M.prot, P...)
	}
	M.u = mat.NewDense(n, len(replicas), nil)
	//each goroutine fills its own column, so they share the matrix safely.
	errs := make(chan error, len(replicas))
	for k := range replicas {
		go func(k int) {
			for i, fr := range frames {
				b, err := eval.BiasAt(k, fr.CV)
				if err != nil {
					errs <- errDecorate(err, fmt.Sprintf("NewBiasMatrix: replica column %d, frame %d", k, i))
					return
				}
				M.u.Set(i, k, b/kT+pka.Ln10*M.phs[k]*M.prot[i])
			}
			errs <- nil
		}(k)
	}
	var err error
	for range replicas {
		if e := <-errs; e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return nil, err
	}
	return M, nil
}

// FromReduced builds a BiasMatrix directly from an already-reduced (and
// already pH-corrected) frames x replicas matrix u, the per-column frame
// counts, per-column pH values, and the per-frame protonation fractions.
// refs may be nil, in which case synthetic (column, index) references are
// generated.
func FromReduced(u *mat.Dense, counts []int, phs []float64, prot []float64, refs []FrameRef) (*BiasMatrix, error) {
	n, k := u.Dims()
	if len(counts) != k || len(phs) != k {
		return nil, pka.NewInputError(fmt.Sprintf("matrix has %d columns but %d counts and %d pH values given", k, len(counts), len(phs)), "FromReduced")
	}
	var tot int
	for _, c := range counts {
		if c <= 0 {
			return nil, pka.NewInputError("non-positive replica frame count", "FromReduced")
		}
		tot += c
	}
	if tot != n {
		return nil, pka.NewInputError(fmt.Sprintf("counts sum to %d but matrix has %d rows", tot, n), "FromReduced")
	}
	if len(prot) != n {
		return nil, pka.NewInputError(fmt.Sprintf("%d protonation fractions for %d frames", len(prot), n), "FromReduced")
	}
	if refs != nil {
		if len(refs) != n {
			return nil, pka.NewInputError(fmt.Sprintf("%d frame references for %d frames", len(refs), n), "FromReduced")
		}
		//the replica IDs of caller-supplied refs must be the column ids, and
		//their tally must match counts: Rows() and the solver's per-frame
		//multiplicities map frames to columns through them.
		seen := make([]int, k)
		for i, r := range refs {
			if r.ReplicaID < 0 || r.ReplicaID >= k {
				return nil, pka.NewInputError(fmt.Sprintf("frame reference %d names replica %d, outside the %d columns", i, r.ReplicaID, k), "FromReduced")
			}
			seen[r.ReplicaID]++
		}
		for c, v := range seen {
			if v != counts[c] {
				return nil, pka.NewInputError(fmt.Sprintf("frame references give column %d %d frames but its count is %d", c, v, counts[c]), "FromReduced")
			}
		}
	}
	M := &BiasMatrix{u: u, phs: phs, counts: counts, prot: prot, refs: refs}
	M.repIDs = make([]int, k)
	for i := range M.repIDs {
		M.repIDs[i] = i
	}
	if M.refs == nil {
		M.refs = make([]FrameRef, 0, n)
		for col, c := range counts {
			for i := 0; i < c; i++ {
				M.refs = append(M.refs, FrameRef{ReplicaID: col, Time: float64(i)})
			}
		}
	}
	return M, nil
}

// NFrames returns the number of concatenated frames.
func (M *BiasMatrix) NFrames() int {
	n, _ := M.u.Dims()
	return n
}

// NReplicas returns the number of replica ensembles (columns).
func (M *BiasMatrix) NReplicas() int {
	_, k := M.u.Dims()
	return k
}

// Ref maps the concatenated frame index i back to its (replica, time) pair.
func (M *BiasMatrix) Ref(i int) FrameRef { return M.refs[i] }

// PHs returns the pH values of the replica columns, as a new slice.
func (M *BiasMatrix) PHs() []float64 {
	ret := make([]float64, len(M.phs))
	copy(ret, M.phs)
	return ret
}

// Protonation returns the per-frame protonation fractions, as a new slice.
func (M *BiasMatrix) Protonation() []float64 {
	ret := make([]float64, len(M.prot))
	copy(ret, M.prot)
	return ret
}

// Counts returns the per-column frame counts, as a new slice.
func (M *BiasMatrix) Counts() []int {
	ret := make([]int, len(M.counts))
	copy(ret, M.counts)
	return ret
}

// Rows returns a new BiasMatrix holding the given concatenated-frame indexes,
// in the given order, with the per-column counts recomputed from the selected
// frames. This is the resampled private copy a bootstrap iteration solves
// WHAM on; the source matrix is never touched.
func (M *BiasMatrix) Rows(idx []int) (*BiasMatrix, error) {
	if len(idx) == 0 {
		return nil, pka.NewInputError("empty index selection", "Rows")
	}
	n, k := M.u.Dims()
	col := make(map[int]int, k) //replica ID -> column
	for c, id := range M.repIDs {
		col[id] = c
	}
	R := &BiasMatrix{
		u:      mat.NewDense(len(idx), k, nil),
		phs:    M.PHs(),
		repIDs: append([]int{}, M.repIDs...),
		counts: make([]int, k),
		prot:   make([]float64, len(idx)),
		refs:   make([]FrameRef, len(idx)),
	}
	for j, i := range idx {
		if i < 0 || i >= n {
			return nil, pka.NewInputError(fmt.Sprintf("frame index %d out of range", i), "Rows")
		}
		for c := 0; c < k; c++ {
			R.u.Set(j, c, M.u.At(i, c))
		}
		R.prot[j] = M.prot[i]
		R.refs[j] = M.refs[i]
		R.counts[col[M.refs[i].ReplicaID]]++
	}
	for c, v := range R.counts {
		if v == 0 {
			//a resample can leave a replica unrepresented; its column then has
			//no observed frames and the self-consistency condition for it is
			//undefined.
			return nil, pka.NewDegeneracyError(fmt.Sprintf("selection leaves replica column %d with no frames", c), "Rows")
		}
	}
	return R, nil
}

//errDecorate decorates the error with the caller's name before returning it.
//if used with a non pka.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(pka.Error)
	err2.Decorate(caller)
	return err2
}
