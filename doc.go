/*
 * doc.go, part of gopka.
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
 */
/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*Package pka is the main package of the goPKA library. It estimates equilibrium
properties (conformational populations, protonation fractions and pKa values) of
titratable molecular sites from biased, multi-replica enhanced-sampling
simulations performed at several pH values.

	**goPKA Capabilities**

    Aligns per-frame collective-variable/bias series with sparser protonation
	(occupancy) series into per-replica frame tables.

    Reweights single-replica metadynamics trajectories into unbiased
	populations, averages, histograms and free-energy curves (subpackages
	reweight and histo).

    Combines replicas simulated at different pH values into one consistent
	free-energy/protonation model with a binless WHAM solver, and produces
	frame weights at arbitrary target pH values (subpackage wham).

    Estimates statistical errors of any of the above with a block bootstrap
	that preserves short-range time correlation (subpackage bootstrap).

    Extracts pKa values (and, optionally, Hill cooperativity coefficients) by
	nonlinear fitting of titration curves, or by a non-parametric midpoint
	scan (subpackage titration).

    Plots titration curves and free-energy profiles (subpackage pkaplot).

This root package holds the shared data model (Frame, Replica, SiteModel),
the physical constants and the library-wide error contract. The pipeline is a
chain of pure transformations: frame tables go in, a bias matrix is built, a
WHAM solution comes out, and weight vectors are derived from it on demand.
Nothing is mutated in place once constructed, so independent analyses (and
bootstrap resamples) can run concurrently on shared inputs.*/
package pka
