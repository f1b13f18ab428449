/*
 * colvar.go, part of gopka.
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

//Package colvar reads the whitespace-separated per-frame time-series files
//produced by the simulation side: COLVAR-style tables (time, collective
//variables, accumulated bias), HILLS-style tables of deposited Gaussians,
//and sparse occupancy-state series. Files compressed with zstd or gzip are
//read transparently; these tables get long enough that storing them
//uncompressed is a waste.
package colvar

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rmera/gopka"
)

// Table is a parsed time-series file: named columns, frame-major rows.
type Table struct {
	fields []string
	data   [][]float64
}

// ReadTable reads a whitespace-separated table. A leading "#! FIELDS ..."
// header line, if present, names the columns; other "#" lines are skipped.
// Files ending in .zst or .gz are decompressed on the fly.
func ReadTable(filename string) (*Table, error) {
	fin, err := os.Open(filename)
	if err != nil {
		return nil, Error{UnableToOpen, filename, []string{"ReadTable"}}
	}
	defer fin.Close()
	r, closer, err := decompress(fin, filename)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer()
	}
	T := new(Table)
	bfin := bufio.NewReader(r)
	lineno := 0
	for {
		line, err := bfin.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, Error{ReadFailed, filename, []string{"ReadTable"}}
		}
		lineno++
		s := strings.TrimSpace(line)
		if s != "" {
			if strings.HasPrefix(s, "#") {
				if f := strings.Fields(s); len(f) >= 3 && f[0] == "#!" && f[1] == "FIELDS" {
					T.fields = f[2:]
				}
			} else {
				row, perr := parseRow(s)
				if perr != nil {
					return nil, Error{fmt.Sprintf("%s at line %d", WrongFormat, lineno), filename, []string{"ReadTable"}}
				}
				if len(T.data) > 0 && len(row) != len(T.data[0]) {
					return nil, Error{fmt.Sprintf("ragged row at line %d", lineno), filename, []string{"ReadTable"}}
				}
				T.data = append(T.data, row)
			}
		}
		if err == io.EOF {
			break
		}
	}
	if len(T.data) == 0 {
		return nil, Error{EmptyFile, filename, []string{"ReadTable"}}
	}
	if T.fields != nil && len(T.fields) != len(T.data[0]) {
		return nil, Error{fmt.Sprintf("header names %d columns but rows have %d", len(T.fields), len(T.data[0])), filename, []string{"ReadTable"}}
	}
	return T, nil
}

func parseRow(s string) ([]float64, error) {
	f := strings.Fields(s)
	row := make([]float64, len(f))
	var err error
	for i, v := range f {
		row[i], err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
	}
	return row, nil
}

func decompress(fin *os.File, filename string) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(filename, ".zst"):
		d, err := zstd.NewReader(fin)
		if err != nil {
			return nil, nil, Error{UnableToOpen + " (zstd)", filename, []string{"decompress"}}
		}
		return d, d.Close, nil
	case strings.HasSuffix(filename, ".gz"):
		g, err := gzip.NewReader(fin)
		if err != nil {
			return nil, nil, Error{UnableToOpen + " (gzip)", filename, []string{"decompress"}}
		}
		return g, func() { g.Close() }, nil
	}
	return fin, nil, nil
}

// NFrames returns the number of rows in the table.
func (T *Table) NFrames() int { return len(T.data) }

// NCols returns the number of columns in the table.
func (T *Table) NCols() int {
	if len(T.data) == 0 {
		return 0
	}
	return len(T.data[0])
}

// Fields returns the column names from the header, or nil if there was no
// header.
func (T *Table) Fields() []string {
	if T.fields == nil {
		return nil
	}
	ret := make([]string, len(T.fields))
	copy(ret, T.fields)
	return ret
}

// Column returns the column with the given header name, as a new slice.
func (T *Table) Column(name string) ([]float64, error) {
	for i, f := range T.fields {
		if f == name {
			return T.ColumnIndex(i)
		}
	}
	return nil, pka.NewInputError(fmt.Sprintf("no column named %s in table (fields: %v)", name, T.fields), "Column")
}

// ColumnIndex returns the i-th column, as a new slice.
func (T *Table) ColumnIndex(i int) ([]float64, error) {
	if i < 0 || i >= T.NCols() {
		return nil, pka.NewInputError(fmt.Sprintf("column %d out of range (table has %d)", i, T.NCols()), "ColumnIndex")
	}
	ret := make([]float64, len(T.data))
	for j, row := range T.data {
		ret[j] = row[i]
	}
	return ret, nil
}

// Columns returns several columns by name, frame-major: ret[j] holds the
// selected values of frame j. This is the shape pka.NewReplica wants for the
// collective variables.
func (T *Table) Columns(names ...string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	var err error
	for i, name := range names {
		cols[i], err = T.Column(name)
		if err != nil {
			return nil, errDecorate(err, "Columns")
		}
	}
	ret := make([][]float64, len(T.data))
	for j := range ret {
		ret[j] = make([]float64, len(names))
		for i := range names {
			ret[j][i] = cols[i][j]
		}
	}
	return ret, nil
}

// ReadOccupancy reads a sparse occupancy series: a two-column (time,
// state-code) table, "#" comments allowed, compression as in ReadTable. The
// codes must be integers.
func ReadOccupancy(filename string) ([]float64, []int, error) {
	T, err := ReadTable(filename)
	if err != nil {
		return nil, nil, errDecorate(err, "ReadOccupancy")
	}
	if T.NCols() < 2 {
		return nil, nil, Error{"occupancy series needs 2 columns", filename, []string{"ReadOccupancy"}}
	}
	times, _ := T.ColumnIndex(0)
	raw, _ := T.ColumnIndex(1)
	codes := make([]int, len(raw))
	for i, v := range raw {
		codes[i] = int(v)
		if float64(codes[i]) != v {
			return nil, nil, Error{fmt.Sprintf("non-integer occupancy code %f at row %d", v, i), filename, []string{"ReadOccupancy"}}
		}
	}
	return times, codes, nil
}

// Hills is the parsed content of a HILLS-style file: the Gaussians one
// replica deposited, ready for wham.NewSumOfGaussians.
type Hills struct {
	Heights []float64
	Centers [][]float64
	Sigmas  [][]float64
}

// ReadHills reads a HILLS-style table for the collective variables named in
// cvs. The expected columns are, per PLUMED convention, one per collective
// variable plus "sigma_<cv>" for each, and "height".
func ReadHills(filename string, cvs ...string) (*Hills, error) {
	if len(cvs) == 0 {
		return nil, pka.NewInputError("no collective variables named", "ReadHills")
	}
	T, err := ReadTable(filename)
	if err != nil {
		return nil, errDecorate(err, "ReadHills")
	}
	H := new(Hills)
	H.Heights, err = T.Column("height")
	if err != nil {
		return nil, errDecorate(err, "ReadHills")
	}
	H.Centers, err = T.Columns(cvs...)
	if err != nil {
		return nil, errDecorate(err, "ReadHills")
	}
	sigmanames := make([]string, len(cvs))
	for i, v := range cvs {
		sigmanames[i] = "sigma_" + v
	}
	H.Sigmas, err = T.Columns(sigmanames...)
	if err != nil {
		return nil, errDecorate(err, "ReadHills")
	}
	return H, nil
}

//Error is the general structure for time-series file errors. It fullfills
//pka.Error and pka.Kinder.
type Error struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	deco     []string
}

func (err Error) Error() string {
	return fmt.Sprintf("time-series file %s error: %s", err.filename, err.message)
}

//Decorate Adds new information to the error
func (E Error) Decorate(deco string) []string {
	//Even thought this method does not use a pointer as a receiver, and tries to alter the received,
	//it should work, since E.deco is a slice, and hence a pointer itself.
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing table was associated
func (err Error) FileName() string { return err.filename }

//Kind returns the classification of the error.
func (err Error) Kind() pka.Kind { return pka.KindInput }

const (
	UnableToOpen = "Unable to open file"
	ReadFailed   = "Error reading file"
	WrongFormat  = "Wrong format in table"
	EmptyFile    = "File has no data rows"
)

//errDecorate decorates the error with the caller's name before returning it.
//if used with a non pka.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(pka.Error)
	err2.Decorate(caller)
	return err2
}
