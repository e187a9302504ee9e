package feed

import (
	"sort"
)

// Entry is one observed item's geometry, in pixels relative to the viewport top
type Entry struct {
	Index  int
	Top    float64
	Height float64
}

// Change is the outcome of one visibility batch
type Change struct {
	// Active is the newly active index, or -1 when no item newly qualified.
	Active  int
	Entered []int
	Left    []int
}

// IntersectionRatio is the fraction of the item inside the viewport after the
// bottom margin (a fraction of the viewport height) is cut off.
func IntersectionRatio(e Entry, viewportHeight, bottomMargin float64) float64 {
	if e.Height <= 0 || viewportHeight <= 0 {
		return 0
	}
	rootBottom := viewportHeight * (1 - bottomMargin)
	top := max(e.Top, 0)
	bottom := min(e.Top+e.Height, rootBottom)
	if bottom <= top {
		return 0
	}
	return (bottom - top) / e.Height
}

// Tracker decides which observed item is intersecting the viewport
type Tracker struct {
	threshold    float64
	bottomMargin float64

	connected    bool
	observed     int
	intersecting map[int]bool
	active       int
}

// NewTracker creates a disconnected Tracker
func NewTracker(threshold, bottomMargin float64) *Tracker {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	if bottomMargin < 0 || bottomMargin >= 1 {
		bottomMargin = 0.1
	}
	return &Tracker{
		threshold:    threshold,
		bottomMargin: bottomMargin,
		intersecting: make(map[int]bool),
		active:       -1,
	}
}

// Observe (re)connects to count items. A changed count drops all previous
// observations instead of accumulating them.
func (t *Tracker) Observe(count int) {
	if t.connected && count == t.observed {
		return
	}
	t.Disconnect()
	t.connected = true
	t.observed = count
}

// Disconnect drops every observation
func (t *Tracker) Disconnect() {
	t.connected = false
	t.observed = 0
	t.intersecting = make(map[int]bool)
}

// Connected reports whether the tracker is observing
func (t *Tracker) Connected() bool {
	return t.connected
}

// Observed is the number of items being observed
func (t *Tracker) Observed() int {
	return t.observed
}

// Active is the last active index, -1 if none
func (t *Tracker) Active() int {
	return t.active
}

// Reset forgets the active index and observations
func (t *Tracker) Reset() {
	t.Disconnect()
	t.active = -1
}

// Update processes one batch of geometry reports
func (t *Tracker) Update(viewportHeight float64, entries []Entry) Change {
	change := Change{Active: -1}
	if !t.connected {
		return change
	}

	for _, e := range entries {
		if e.Index < 0 || e.Index >= t.observed {
			continue
		}
		now := IntersectionRatio(e, viewportHeight, t.bottomMargin) >= t.threshold
		was := t.intersecting[e.Index]
		switch {
		case now && !was:
			t.intersecting[e.Index] = true
			change.Entered = append(change.Entered, e.Index)
		case !now && was:
			delete(t.intersecting, e.Index)
			change.Left = append(change.Left, e.Index)
		}
	}

	sort.Ints(change.Entered)
	sort.Ints(change.Left)
	if n := len(change.Entered); n > 0 {
		// With full-height items only one can qualify; prefer the last entered.
		change.Active = change.Entered[n-1]
		t.active = change.Active
	}
	return change
}
