// Package story drives the story viewer: per-image progress, auto-advance
// and tap navigation.
package story

import (
	"errors"
	"sync"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/rs/zerolog"
)

// ErrStoryNotFound is returned when Open names a story that is not openable
var ErrStoryNotFound = errors.New("story not found")

// Status is the viewer's state machine state
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
)

// State is a snapshot of the viewer
type State struct {
	Status        Status `json:"status"`
	StoryID       string `json:"story_id,omitempty"`
	StoryIndex    int    `json:"story_index"`
	ImageIndex    int    `json:"image_index"`
	ImageCount    int    `json:"image_count"`
	ImageRef      string `json:"image_ref,omitempty"`
	Progress      int    `json:"progress"`
	StoriesInView int    `json:"stories_in_view"`
}

// Options tunes the progress timer
type Options struct {
	TickInterval time.Duration
	Step         int
	// ManualTicks disables the internal ticker; the caller drives Tick.
	ManualTicks bool
	// OnStoryShown is called, outside the viewer lock, whenever a story becomes active.
	OnStoryShown func(storyID string)
}

// Viewer is the progress driver of one story viewer
type Viewer struct {
	mu       sync.Mutex
	interval time.Duration
	step     int
	manual   bool
	onShown  func(string)
	log      zerolog.Logger

	stories  []models.FeedItem
	storyIdx int
	imageIdx int
	progress int
	open     bool
	playing  bool

	stopTimer func()
	timerGen  uint64
	subs      map[int]chan State
	nextSub   int
}

// NewViewer creates an idle Viewer
func NewViewer(opts Options, log zerolog.Logger) *Viewer {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.Step <= 0 {
		opts.Step = 2
	}
	return &Viewer{
		interval: opts.TickInterval,
		step:     opts.Step,
		manual:   opts.ManualTicks,
		onShown:  opts.OnStoryShown,
		log:      log.With().Str("component", "story_viewer").Logger(),
		subs:     make(map[int]chan State),
	}
}

// Openable reports whether a story has at least one image
func Openable(s models.FeedItem) bool {
	for _, ref := range s.ImageRefs {
		if ref != "" {
			return true
		}
	}
	return false
}

// Open starts playing storyID. The ordering of stories is captured now and
// used for every later advance until the viewer closes.
func (v *Viewer) Open(stories []models.FeedItem, storyID string) (State, error) {
	list := make([]models.FeedItem, 0, len(stories))
	for _, s := range stories {
		if Openable(s) {
			list = append(list, s)
		}
	}
	idx := -1
	for i, s := range list {
		if s.ID == storyID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return v.State(), ErrStoryNotFound
	}

	v.mu.Lock()
	v.stories = list
	v.storyIdx = idx
	v.imageIdx = 0
	v.progress = 0
	v.open = true
	v.playing = true
	v.startTimerLocked()
	state, shown := v.settleLocked(true)
	v.mu.Unlock()

	v.log.Debug().Str("story", storyID).Int("stories", len(list)).Msg("story viewer opened")
	v.emit(state, shown)
	return state, nil
}

// Tick advances progress by one step while playing
func (v *Viewer) Tick() State {
	return v.tick(0)
}

// tick ignores ticks from a timer that has since been replaced (gen != 0).
func (v *Viewer) tick(gen uint64) State {
	v.mu.Lock()
	if !v.open || !v.playing || (gen != 0 && gen != v.timerGen) {
		state := v.stateLocked()
		v.mu.Unlock()
		return state
	}
	v.progress += v.step
	storyChanged := false
	if v.progress >= 100 {
		storyChanged = v.forwardLocked()
	}
	state, shown := v.settleLocked(storyChanged)
	v.mu.Unlock()

	v.emit(state, shown)
	return state
}

// Pause freezes progress
func (v *Viewer) Pause() State {
	return v.setPlaying(false)
}

// Resume continues from the frozen progress
func (v *Viewer) Resume() State {
	return v.setPlaying(true)
}

// TogglePlay flips between playing and paused
func (v *Viewer) TogglePlay() State {
	return v.updatePlaying(func(playing bool) bool { return !playing })
}

func (v *Viewer) setPlaying(playing bool) State {
	return v.updatePlaying(func(bool) bool { return playing })
}

func (v *Viewer) updatePlaying(next func(bool) bool) State {
	v.mu.Lock()
	if v.open {
		v.playing = next(v.playing)
	}
	state := v.stateLocked()
	v.mu.Unlock()

	v.emit(state, "")
	return state
}

// Next goes to the next image, the next story's first image, or closes the
// viewer after the last image of the last story.
func (v *Viewer) Next() State {
	v.mu.Lock()
	if !v.open {
		state := v.stateLocked()
		v.mu.Unlock()
		return state
	}
	storyChanged := v.forwardLocked()
	state, shown := v.settleLocked(storyChanged)
	v.mu.Unlock()

	v.emit(state, shown)
	return state
}

// Previous goes to the previous image, or the previous story's last image.
// At the very first image it restarts that image.
func (v *Viewer) Previous() State {
	v.mu.Lock()
	if !v.open {
		state := v.stateLocked()
		v.mu.Unlock()
		return state
	}
	storyChanged := false
	switch {
	case v.imageIdx > 0:
		v.imageIdx--
	case v.storyIdx > 0:
		v.storyIdx--
		v.imageIdx = len(v.stories[v.storyIdx].ImageRefs) - 1
		storyChanged = true
	}
	v.progress = 0
	state, shown := v.settleLocked(storyChanged)
	v.mu.Unlock()

	v.emit(state, shown)
	return state
}

// Tap dispatches a tap by horizontal thirds: left previous, centre
// pause/resume, right next.
func (v *Viewer) Tap(x, width float64) State {
	switch {
	case width <= 0:
		return v.State()
	case x < width/3:
		return v.Previous()
	case x > 2*width/3:
		return v.Next()
	default:
		return v.TogglePlay()
	}
}

// Close returns to Idle and resets all position state
func (v *Viewer) Close() State {
	v.mu.Lock()
	v.closeLocked()
	state := v.stateLocked()
	v.mu.Unlock()

	v.emit(state, "")
	return state
}

// State returns the current snapshot
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

// Subscribe streams state snapshots until the returned disposer is called.
// Slow subscribers miss intermediate snapshots rather than blocking ticks.
func (v *Viewer) Subscribe() (<-chan State, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	ch := make(chan State, 8)
	v.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if c, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(c)
			}
		})
	}
}

// Shutdown closes the viewer and every subscription
func (v *Viewer) Shutdown() {
	v.Close()
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}

// forwardLocked advances one image, rolling over to the next story. It
// reports whether the active story changed.
func (v *Viewer) forwardLocked() bool {
	v.progress = 0
	if v.imageIdx+1 < len(v.stories[v.storyIdx].ImageRefs) {
		v.imageIdx++
		return false
	}
	if v.storyIdx+1 < len(v.stories) {
		v.storyIdx++
		v.imageIdx = 0
		return true
	}
	v.closeLocked()
	return false
}

func (v *Viewer) closeLocked() {
	if v.stopTimer != nil {
		v.stopTimer()
		v.stopTimer = nil
	}
	v.timerGen++
	v.open = false
	v.playing = false
	v.stories = nil
	v.storyIdx = 0
	v.imageIdx = 0
	v.progress = 0
}

// settleLocked snapshots the state and returns the story id to report as shown.
func (v *Viewer) settleLocked(storyChanged bool) (State, string) {
	state := v.stateLocked()
	if storyChanged && v.open {
		return state, state.StoryID
	}
	return state, ""
}

func (v *Viewer) stateLocked() State {
	if !v.open {
		return State{Status: StatusIdle}
	}
	s := v.stories[v.storyIdx]
	status := StatusPaused
	if v.playing {
		status = StatusPlaying
	}
	return State{
		Status:        status,
		StoryID:       s.ID,
		StoryIndex:    v.storyIdx,
		ImageIndex:    v.imageIdx,
		ImageCount:    len(s.ImageRefs),
		ImageRef:      s.ImageRefs[v.imageIdx],
		Progress:      v.progress,
		StoriesInView: len(v.stories),
	}
}

// startTimerLocked replaces the running ticker, stopping the old one first
func (v *Viewer) startTimerLocked() {
	if v.stopTimer != nil {
		v.stopTimer()
		v.stopTimer = nil
	}
	v.timerGen++
	if v.manual {
		return
	}
	gen := v.timerGen
	ticker := time.NewTicker(v.interval)
	done := make(chan struct{})
	var once sync.Once
	v.stopTimer = func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				v.tick(gen)
			}
		}
	}()
}

func (v *Viewer) emit(state State, shown string) {
	if shown != "" && v.onShown != nil {
		v.onShown(shown)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, ch := range v.subs {
		select {
		case ch <- state:
		default:
		}
	}
}
