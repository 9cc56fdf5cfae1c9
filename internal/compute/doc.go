// Package compute provides the data-parallel dispatch used by the solver stages.
//
// Every per-cell and per-particle kernel is expressed as a bulk parallel-for over
// a fixed-size buffer:
//
//   - CPU: chunked goroutines, one per available processor
//   - Serial: a single chunk on the calling goroutine
//
// A ParallelFor call returns only after every chunk finished, so consecutive
// calls behave like dispatches separated by a barrier:
//
//	backend := compute.Default()
//	backend.ParallelFor(len(cells), 256, func(start, end int) {
//	    for i := start; i < end; i++ {
//	        out[i] = kernel(in, i)
//	    }
//	})
//
// Kernels must only write indices inside their own [start, end) range, or
// buffers no other chunk reads during the same call.
package compute
