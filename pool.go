package mdrender

import "runtime"

// Worker sizing constants.
const (
	// MinWorkers ensures at least one worker is available.
	MinWorkers = 1

	// MaxWorkers caps concurrent renders; goldmark and chroma are CPU bound.
	MaxWorkers = 16
)

// ResolveWorkers determines how many renders to run in parallel.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Used by Prerender and by the CLI batch mode.
func ResolveWorkers(workers int) int {
	// Explicit value takes priority
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers
	n := runtime.GOMAXPROCS(0)

	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
