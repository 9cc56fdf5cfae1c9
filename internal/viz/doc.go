// Package viz draws a running fluid simulation in the terminal.
//
// The live view is a Bubble Tea program that feeds the scheduler the wall
// time between its ticks and renders the particles on a braille [Canvas],
// or a volume slice of the grid as coloured blocks.
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	R      - Reset the scene
//	M      - Cycle realtime, simulate-and-render and paused
//	F      - Fast forward one simulated second
//	C      - Start/stop recording
//	G      - Flip gravity
//	V      - Cycle volume views (velocity, divergence, pressure, marker)
//	P      - Cycle projections
//	T      - Cycle color themes
//	?      - Show help overlay
//
// # Recording
//
// Recording resets the scene and switches the scheduler to a fixed number of
// steps per frame. Frames go to whatever [Recording] the caller provides.
package viz
