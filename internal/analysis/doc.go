// Package analysis evaluates recorded gas trajectories against kinetic theory.
//
// The core is the Maxwell-Boltzmann speed density for a 2D ideal gas whose
// temperature is taken from the initial kinetic energy:
//
//	mb := analysis.For(gas)
//	f := mb.Density(2.5)
//
// Around it sit the checks used by the CLI and automation:
//
//   - [SpeedHistogram]: density-normalized histogram of pooled speeds
//   - [KolmogorovSmirnov]: distance between sampled speeds and the MB CDF
//   - [EnergyConservation]: total kinetic energy of the first and last snapshot
//   - [Separation] and [LyapunovExponent]: divergence of two nearby runs
//   - [Occupancy]: where in the box particles spend their time
package analysis
