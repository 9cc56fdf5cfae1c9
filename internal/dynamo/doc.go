// Package dynamo provides the primitives shared by the fluid core.
//
// The package defines the small value types and error kinds every other
// package builds on:
//
//   - [Vec3]: world or grid space vector
//   - [Dims]: integer lattice dimensions
//   - [ErrCapacityExceeded], [ErrInvalidConfiguration], [ErrNonConvergence]
//
// # Errors
//
// All core errors are recoverable at the scene boundary. Match them with
// errors.Is:
//
//	if errors.Is(err, dynamo.ErrCapacityExceeded) {
//	    // report and keep the previous scene
//	}
package dynamo
