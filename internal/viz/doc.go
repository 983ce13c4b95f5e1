// Package viz replays recorded gas trajectories in the terminal.
//
// [Model] is a Bubble Tea program that draws the box and particles on a
// braille [Canvas] and plots the speed histogram of the recent frames
// against the Maxwell-Boltzmann density.
//
// # Key Bindings
//
//	Space - Pause/Resume replay
//	R     - Restart from the first step
//	[ ]   - Scrub backward/forward
//	+ -   - Change playback speed
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//
// # Recording
//
// G starts capturing every tick as a GIF frame; pressing it again, or
// quitting, writes the animation to the configured path.
package viz
