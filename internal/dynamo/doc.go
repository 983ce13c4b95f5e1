// Package dynamo provides the stepping engine for particle simulations.
//
// The package defines the primitives shared by every simulation run:
//
//   - [System]: a particle population that can advance itself by one timestep
//   - [Simulator]: drives a System for a fixed number of steps and records
//     a [Trajectory]
//   - [Metric] and [Observer]: per-step hooks fed with a [Frame]
//   - [Ensemble]: independent seeded runs executed in parallel
//
// # Example
//
//	gas, _ := physics.NewGas(params, physics.RuleElastic, rng)
//	sim := dynamo.New(gas)
//	result, _ := sim.Run(ctx, dynamo.Config{Dt: 0.01, Steps: 100})
//	speeds := result.Trajectory.Speeds
//
// # Thread Safety
//
// A run is strictly sequential: step n+1 reads the positions written by
// step n. A System has exactly one writer, the Simulator that owns it.
// Simulator instances are NOT thread-safe; use [Ensemble] for parallel runs
// over distinct systems.
package dynamo
