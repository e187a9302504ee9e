package feed

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ScrollTrigger decides whether a scroll event should start a page load.
// Checks are throttled to one per interval regardless of how often the
// client reports scroll positions.
type ScrollTrigger struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	threshold float64
	now       func() time.Time
}

// NewScrollTrigger fires when the list bottom is within threshold pixels
func NewScrollTrigger(threshold float64, interval time.Duration) *ScrollTrigger {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &ScrollTrigger{
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		threshold: threshold,
		now:       time.Now,
	}
}

// Check returns LoadLoaded when a load should start, or the reason it should not
func (t *ScrollTrigger) Check(distanceFromBottom float64) LoadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.limiter.AllowN(t.now(), 1) {
		return LoadSkippedThrottled
	}
	if distanceFromBottom > t.threshold {
		return LoadSkippedDistance
	}
	return LoadLoaded
}
