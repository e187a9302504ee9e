package feed

// MediaStatus is the tagged state of one item's media
type MediaStatus string

const (
	MediaIdle    MediaStatus = "idle"
	MediaLoading MediaStatus = "loading"
	MediaPlaying MediaStatus = "playing"
	MediaPaused  MediaStatus = "paused"
	MediaErrored MediaStatus = "errored"
)

// MediaState is an item's media status; Reason is set only when Errored
type MediaState struct {
	Status MediaStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// AllowsPlayback is the per-item "may autoplay" flag
func (s MediaState) AllowsPlayback() bool {
	return s.Status == MediaLoading || s.Status == MediaPlaying
}

// Gate enforces that at most one item may play and nothing plays before the
// user has interacted with the page. Gate is not safe for concurrent use;
// the Controller serialises access.
type Gate struct {
	interacted bool
	states     map[int]MediaState
}

// NewGate creates a Gate with no interaction recorded
func NewGate() *Gate {
	return &Gate{states: make(map[int]MediaState)}
}

// Interacted reports the latch value
func (g *Gate) Interacted() bool {
	return g.interacted
}

// SetUserInteracted flips the latch; it reports whether this call flipped it
func (g *Gate) SetUserInteracted() bool {
	if g.interacted {
		return false
	}
	g.interacted = true
	return true
}

// State returns the media state of index
func (g *Gate) State(index int) MediaState {
	if s, ok := g.states[index]; ok {
		return s
	}
	return MediaState{Status: MediaIdle}
}

// States returns a copy of all non-idle states
func (g *Gate) States() map[int]MediaState {
	out := make(map[int]MediaState, len(g.states))
	for k, v := range g.states {
		out[k] = v
	}
	return out
}

// Playing lists indices whose media may play. It has at most one element.
func (g *Gate) Playing() []int {
	var out []int
	for i, s := range g.states {
		if s.AllowsPlayback() {
			out = append(out, i)
		}
	}
	return out
}

// SetActive makes index the only item allowed to play. It reports whether
// index moved to Loading, meaning a media pipeline should start for it.
func (g *Gate) SetActive(index int, playable bool) bool {
	if !g.interacted {
		return false
	}
	target := g.State(index)
	if target.Status == MediaErrored {
		g.commit(index, target)
		return false
	}
	if !playable {
		g.commit(-1, MediaState{})
		return false
	}
	if target.AllowsPlayback() {
		return false
	}
	g.commit(index, MediaState{Status: MediaLoading})
	return true
}

// commit builds the next state map in one step: every other playing entry is
// paused and index (if >= 0) takes next.
func (g *Gate) commit(index int, next MediaState) {
	states := make(map[int]MediaState, len(g.states)+1)
	for i, s := range g.states {
		if i == index {
			continue
		}
		if s.AllowsPlayback() {
			s = MediaState{Status: MediaPaused}
		}
		states[i] = s
	}
	if index >= 0 {
		states[index] = next
	}
	g.states = states
}

// Clear pauses index when it leaves the viewport
func (g *Gate) Clear(index int) {
	s, ok := g.states[index]
	if !ok || !s.AllowsPlayback() {
		return
	}
	g.states[index] = MediaState{Status: MediaPaused}
}

// TogglePlay is the manual play/pause control. It implies interaction and
// reports whether index moved to Loading.
func (g *Gate) TogglePlay(index int, playable bool) bool {
	g.SetUserInteracted()
	if g.State(index).AllowsPlayback() {
		g.states[index] = MediaState{Status: MediaPaused}
		return false
	}
	if !playable {
		return false
	}
	g.commit(index, MediaState{Status: MediaLoading})
	return true
}

// MediaStarted confirms that loading media of index is now playing
func (g *Gate) MediaStarted(index int) {
	if g.State(index).Status == MediaLoading {
		g.states[index] = MediaState{Status: MediaPlaying}
	}
}

// MediaFailed records a load error or a rejected play request; the item's
// playback flag falls back to false.
func (g *Gate) MediaFailed(index int, reason string) {
	if reason == "" {
		reason = "playback failed"
	}
	g.states[index] = MediaState{Status: MediaErrored, Reason: reason}
}

// Retry leaves the Errored state. It reports whether index moved to Loading.
func (g *Gate) Retry(index int, active bool) bool {
	if g.State(index).Status != MediaErrored {
		return false
	}
	if active && g.interacted {
		g.commit(index, MediaState{Status: MediaLoading})
		return true
	}
	g.states[index] = MediaState{Status: MediaIdle}
	return false
}

// PauseAll stops every playing entry
func (g *Gate) PauseAll() {
	g.commit(-1, MediaState{})
}

// Reset forgets all per-item states; the interaction latch is kept
func (g *Gate) Reset() {
	g.states = make(map[int]MediaState)
}
