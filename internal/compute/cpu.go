package compute

import (
	"runtime"
	"sync"
)

type CPUBackend struct {
	workers int
}

func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CPUBackend{
		workers: workers,
	}
}

func (c *CPUBackend) Name() string { return "cpu" }
func (c *CPUBackend) Workers() int { return c.workers }
func (c *CPUBackend) Cleanup()     {}

// ParallelFor splits [0, n) into at most Workers() chunks of at least minChunk
// elements and blocks until all of them are done.
func (c *CPUBackend) ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n <= minChunk || c.workers <= 1 {
		fn(0, n)
		return
	}

	size := chunkSize(n, c.workers, minChunk)
	chunks := (n + size - 1) / size

	var wg sync.WaitGroup
	wg.Add(chunks)

	for w := 0; w < chunks; w++ {
		start := w * size
		end := start + size
		if end > n {
			end = n
		}

		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// SerialBackend runs every kernel on the calling goroutine. Useful for
// profiling and for comparing against the parallel path.
type SerialBackend struct{}

func NewSerialBackend() *SerialBackend { return &SerialBackend{} }

func (s *SerialBackend) Name() string { return "serial" }
func (s *SerialBackend) Workers() int { return 1 }
func (s *SerialBackend) Cleanup()     {}

func (s *SerialBackend) ParallelFor(n, _ int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	fn(0, n)
}
