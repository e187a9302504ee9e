package media

import "sync"

// Fallback walks an ordered candidate list after load failures. It never goes
// past the last candidate, so the number of swaps is bounded by len-1.
type Fallback struct {
	mu         sync.Mutex
	candidates []string
	pos        int
}

// NewFallback starts at the first candidate
func NewFallback(candidates []string) *Fallback {
	cp := make([]string, len(candidates))
	copy(cp, candidates)
	return &Fallback{candidates: cp}
}

// Current is the address that should be rendered now
func (f *Fallback) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.candidates) == 0 {
		return ""
	}
	return f.candidates[f.pos]
}

// Fail records a failure of the current address and returns the next one.
// ok is false once the last candidate has failed.
func (f *Fallback) Fail() (next string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos+1 >= len(f.candidates) {
		if len(f.candidates) == 0 {
			return "", false
		}
		return f.candidates[f.pos], false
	}
	f.pos++
	return f.candidates[f.pos], true
}

// Attempts is the number of swaps made so far
func (f *Fallback) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Exhausted reports whether the placeholder (last candidate) is in use
func (f *Fallback) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos == len(f.candidates)-1
}
