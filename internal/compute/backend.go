package compute

import (
	"fmt"
	"math"
	"strings"
)

type Backend interface {
	Name() string
	Workers() int
	ParallelFor(n, minChunk int, fn func(start, end int))
	Cleanup()
}

// DefaultMinChunk is the smallest slice of work worth handing to a goroutine.
const DefaultMinChunk = 1024

var activeBackend Backend

func init() {
	activeBackend = NewCPUBackend(0)
}

// Default returns the process-wide backend.
func Default() Backend {
	return activeBackend
}

// NewBackend selects a backend by name. workers <= 0 means one per processor.
func NewBackend(name string, workers int) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "cpu":
		return NewCPUBackend(workers), nil
	case "serial":
		return NewSerialBackend(), nil
	default:
		return nil, fmt.Errorf("unknown compute backend: %s", name)
	}
}

// ReduceMax runs fn over [0, n) in parallel and returns the largest value any
// chunk reported.
func ReduceMax(b Backend, n, minChunk int, fn func(start, end int) float64) float64 {
	if n <= 0 {
		return 0
	}
	chunk := chunkSize(n, b.Workers(), minChunk)
	partial := make([]float64, (n+chunk-1)/chunk)
	b.ParallelFor(len(partial), 1, func(start, end int) {
		for c := start; c < end; c++ {
			lo := c * chunk
			hi := lo + chunk
			if hi > n {
				hi = n
			}
			partial[c] = fn(lo, hi)
		}
	})
	best := partial[0]
	for _, v := range partial[1:] {
		if v > best || math.IsNaN(v) {
			best = v
		}
	}
	return best
}

func chunkSize(n, workers, minChunk int) int {
	if minChunk < 1 {
		minChunk = 1
	}
	if workers < 1 {
		workers = 1
	}
	size := (n + workers - 1) / workers
	if size < minChunk {
		size = minChunk
	}
	return size
}
