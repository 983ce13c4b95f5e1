// Package physics provides the 2D ideal-gas particle system.
//
// A [Gas] is a fixed population of equal-mass, equal-radius discs confined
// to the square box [0, L] x [0, L]. It implements [dynamo.System] and
// [dynamo.Energetic]:
//
//   - [NewGas]: grid placement (no initial overlap) and random velocity
//     directions at a fixed initial speed
//   - [ResolveCollisions]: wall and pairwise elastic collisions, detected on
//     predicted next-step positions
//   - [Integrate]: explicit position update
//
// Collision detection is exhaustive pairwise, O(N²) per step. Collisions are
// detected by checking where particles would be after one timestep, not by
// exact time of impact, so large timesteps can still let particles overlap
// or leave the box briefly.
//
// # Collision Rules
//
// [RuleElastic] applies the textbook equal-mass impulse (subtract from i,
// add to j) and conserves kinetic energy and momentum. [RuleLiteral]
// subtracts the same impulse from both particles, reproducing a historical
// variant of the model for comparison runs.
package physics
