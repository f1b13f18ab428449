/*
 * frame.go, part of gopka.
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

package pka

import (
	"fmt"
	"sort"
)

// Frame is the atomic unit of data: one MD frame of one replica, with its
// collective-variable values, its accumulated-bias energy (kJ/mol, under the
// replica's own bias potential) and the occupancy code of the titratable site.
type Frame struct {
	ReplicaID int
	Time      float64
	CV        []float64
	Bias      float64
	Occupancy int
}

// Replica is one simulation performed at a fixed pH, as an ordered sequence
// of frames. Frames are time-ordered; across replicas there is no shared
// clock, only assumed stationarity after an equilibration cutoff.
type Replica struct {
	ID     int
	PH     float64
	Frames []Frame
}

// NewReplica aligns the per-frame series (times, collective variables, bias)
// with the sparser occupancy series (occTime, occ) into a Replica. Each
// occupancy sample holds until the next sample's timestamp
// (nearest-preceding-sample hold); frames earlier than the first occupancy
// sample take that first sample. cvs is per-frame, i.e. cvs[i] are the
// collective variables of frame i.
func NewReplica(id int, pH float64, times []float64, cvs [][]float64, bias []float64, occTime []float64, occ []int) (*Replica, error) {
	n := len(times)
	if n == 0 {
		return nil, NewInputError(fmt.Sprintf("replica %d: empty time series", id), "NewReplica")
	}
	if len(cvs) != n || len(bias) != n {
		return nil, NewInputError(fmt.Sprintf("replica %d: mismatched series lengths: %d times, %d cv rows, %d bias", id, n, len(cvs), len(bias)), "NewReplica")
	}
	if len(occTime) != len(occ) || len(occ) == 0 {
		return nil, NewInputError(fmt.Sprintf("replica %d: mismatched or empty occupancy series: %d times, %d codes", id, len(occTime), len(occ)), "NewReplica")
	}
	if !sort.Float64sAreSorted(times) || !sort.Float64sAreSorted(occTime) {
		return nil, NewInputError(fmt.Sprintf("replica %d: non-monotonic time series", id), "NewReplica")
	}
	R := &Replica{ID: id, PH: pH, Frames: make([]Frame, n)}
	j := 0 //index of the occupancy sample currently held
	for i, t := range times {
		for j+1 < len(occTime) && occTime[j+1] <= t {
			j++
		}
		R.Frames[i] = Frame{ReplicaID: id, Time: t, CV: cvs[i], Bias: bias[i], Occupancy: occ[j]}
	}
	return R, nil
}

// Len returns the number of frames in the replica.
func (R *Replica) Len() int { return len(R.Frames) }

// After returns a new Replica containing only the frames with Time >= t,
// i.e. the production part after an equilibration cutoff. The frames
// themselves are shared, not copied.
func (R *Replica) After(t float64) *Replica {
	i := sort.Search(len(R.Frames), func(i int) bool { return R.Frames[i].Time >= t })
	return &Replica{ID: R.ID, PH: R.PH, Frames: R.Frames[i:]}
}

// Bias returns the bias series of the replica, as a new slice.
func (R *Replica) Bias() []float64 {
	ret := make([]float64, len(R.Frames))
	for i, v := range R.Frames {
		ret[i] = v.Bias
	}
	return ret
}

// Times returns the time series of the replica, as a new slice.
func (R *Replica) Times() []float64 {
	ret := make([]float64, len(R.Frames))
	for i, v := range R.Frames {
		ret[i] = v.Time
	}
	return ret
}

// CV returns the series of the n-th collective variable, as a new slice.
func (R *Replica) CV(n int) ([]float64, error) {
	ret := make([]float64, len(R.Frames))
	for i, v := range R.Frames {
		if n < 0 || n >= len(v.CV) {
			return nil, NewInputError(fmt.Sprintf("replica %d: collective variable %d out of range at frame %d", R.ID, n, i), "CV")
		}
		ret[i] = v.CV[n]
	}
	return ret, nil
}

// Protonation returns the protonation-fraction series of the replica under
// the given site model.
func (R *Replica) Protonation(site *SiteModel) ([]float64, error) {
	ret := make([]float64, len(R.Frames))
	var err error
	for i, v := range R.Frames {
		ret[i], err = site.Fraction(v.Occupancy)
		if err != nil {
			return nil, errDecorate(err, fmt.Sprintf("Protonation: replica %d, frame %d", R.ID, i))
		}
	}
	return ret, nil
}

func (R *Replica) String() string {
	return fmt.Sprintf("replica %d pH %4.2f: %d frames", R.ID, R.PH, len(R.Frames))
}
