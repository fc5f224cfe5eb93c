package htmlinline

import "runtime"

// Worker sizing constants.
const (
	// MinWorkers ensures at least one document is processed at a time.
	MinWorkers = 1

	// MaxWorkers caps parallel documents; each holds its parsed tree in memory.
	MaxWorkers = 16
)

// ResolveWorkers determines how many documents to transform in parallel.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers
	n := runtime.GOMAXPROCS(0)
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
