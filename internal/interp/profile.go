package interp

import "sync"

// Profile collects execution statistics for one method. The profiling
// tiers update it; the compiler reads it when deciding whether loops are
// worth vectorizing.
//
// Profile is safe for concurrent use.
type Profile struct {
	mu          sync.Mutex
	invocations int64
	maxTrip     map[int]int64
}

// NewProfile returns an empty profile.
func NewProfile() *Profile {
	return &Profile{maxTrip: make(map[int]int64)}
}

// RecordInvocation counts one invocation.
func (p *Profile) RecordInvocation() {
	p.mu.Lock()
	p.invocations++
	p.mu.Unlock()
}

// RecordTrip records that loop ran trips iterations.
func (p *Profile) RecordTrip(loop int, trips int64) {
	p.mu.Lock()
	if trips > p.maxTrip[loop] {
		p.maxTrip[loop] = trips
	}
	p.mu.Unlock()
}

// Invocations returns the number of recorded invocations.
func (p *Profile) Invocations() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invocations
}

// MaxTrip returns the largest trip count seen for loop and whether the
// loop was ever reached.
func (p *Profile) MaxTrip(loop int) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.maxTrip[loop]
	return n, ok
}

// Reset clears all statistics.
func (p *Profile) Reset() {
	p.mu.Lock()
	p.invocations = 0
	p.maxTrip = make(map[int]int64)
	p.mu.Unlock()
}
