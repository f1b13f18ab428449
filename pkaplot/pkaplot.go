/*
 * pkaplot.go, part of gopka.
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

//Package pkaplot produces png plots of titration curves and free energy
//surfaces.
package pkaplot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/rmera/gopka/titration"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

func basicPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Padding = 3 * vg.Millimeter
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

/*Titration plots the average protonation of a site against pH, in png format.
  If fit is not nil, the fitted model curve is drawn over the data points.
  The ".png" extension is appended to plotname. Returns an error or nil*/
func Titration(pH, prot []float64, fit *titration.FitResult, title, plotname string) error {
	if len(pH) != len(prot) || len(pH) == 0 {
		return fmt.Errorf("Titration: %d pH values for %d protonation values", len(pH), len(prot))
	}
	p := basicPlot(title, "pH", "Average protonation")
	p.Y.Min = 0
	p.Y.Max = 1
	pts := make(plotter.XYs, len(pH))
	for i := range pH {
		pts[i].X = pH[i]
		pts[i].Y = prot[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
	p.Add(s)
	if fit != nil {
		//the fitted curve, drawn densely over the data range
		min, max := pH[0], pH[0]
		for _, x := range pH {
			min = math.Min(min, x)
			max = math.Max(max, x)
		}
		const steps = 200
		curve := make(plotter.XYs, steps+1)
		for i := 0; i <= steps; i++ {
			x := min + (max-min)*float64(i)/steps
			curve[i].X = x
			curve[i].Y = titration.Protonation(x, fit.PKa, fit.N)
		}
		l, err := plotter.NewLine(curve)
		if err != nil {
			return err
		}
		l.LineStyle.Color = color.RGBA{R: 255, A: 255}
		p.Add(l)
	}
	return p.Save(4*vg.Inch, 4*vg.Inch, fmt.Sprintf("%s.png", plotname))
}

/*FreeEnergy plots a one-dimensional free energy curve against its collective
  variable, in png format. Empty bins (infinite free energy) are left out of
  the curve. The ".png" extension is appended to plotname.
  Returns an error or nil*/
func FreeEnergy(mids, fes []float64, ylabel, title, plotname string) error {
	if len(mids) != len(fes) || len(mids) == 0 {
		return fmt.Errorf("FreeEnergy: %d bin midpoints for %d values", len(mids), len(fes))
	}
	p := basicPlot(title, "Collective variable", ylabel)
	pts := make(plotter.XYs, 0, len(mids))
	for i := range mids {
		if math.IsInf(fes[i], 0) || math.IsNaN(fes[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: mids[i], Y: fes[i]})
	}
	if len(pts) == 0 {
		return fmt.Errorf("FreeEnergy: every bin is empty")
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.LineStyle.Width = vg.Points(1.5)
	l.LineStyle.Color = color.RGBA{R: 255, A: 255}
	p.Add(l)
	return p.Save(5*vg.Inch, 4*vg.Inch, fmt.Sprintf("%s.png", plotname))
}
