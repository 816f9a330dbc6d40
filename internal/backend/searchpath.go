package backend

import "sync"

// SearchPath is the ordered list of directories backend loaders consult.
//
// It is not safe for concurrent mutation. Acquire must be serialized by the
// caller; the resolver holds loadMu for the whole load step.
type SearchPath struct {
	dirs []string
}

// Acquire prepends dir and returns a release func that restores the list
// to its prior state. Release is idempotent.
func (p *SearchPath) Acquire(dir string) (release func()) {
	prev := p.dirs
	next := make([]string, 0, len(prev)+1)
	next = append(next, dir)
	next = append(next, prev...)
	p.dirs = next

	released := false
	return func() {
		if released {
			return
		}
		released = true
		p.dirs = prev
	}
}

// Dirs returns a copy of the current list.
func (p *SearchPath) Dirs() []string {
	return append([]string(nil), p.dirs...)
}

var (
	// loadMu serializes every load step across all resolvers.
	loadMu sync.Mutex

	processPath = &SearchPath{}
)
