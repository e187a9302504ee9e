package story

import (
	"sync"
	"testing"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shownRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *shownRecorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *shownRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func stories() []models.FeedItem {
	return []models.FeedItem{
		{ID: "a", Kind: models.KindStory, ImageRefs: []string{"a1", "a2"}},
		{ID: "empty", Kind: models.KindStory},
		{ID: "b", Kind: models.KindStory, ImageRefs: []string{"b1"}},
	}
}

func manualViewer(rec *shownRecorder) *Viewer {
	opts := Options{ManualTicks: true}
	if rec != nil {
		opts.OnStoryShown = rec.record
	}
	return NewViewer(opts, zerolog.Nop())
}

func tickN(v *Viewer, n int) State {
	var s State
	for i := 0; i < n; i++ {
		s = v.Tick()
	}
	return s
}

func TestViewerAutoAdvancesThroughStories(t *testing.T) {
	rec := &shownRecorder{}
	v := manualViewer(rec)

	state, err := v.Open(stories(), "a")
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, state.Status)
	assert.Equal(t, "a1", state.ImageRef)
	assert.Equal(t, 0, state.Progress)
	assert.Equal(t, 2, state.StoriesInView, "stories without images are skipped")

	state = tickN(v, 49)
	assert.Equal(t, 98, state.Progress)
	assert.Equal(t, 0, state.ImageIndex)

	state = v.Tick()
	assert.Equal(t, 1, state.ImageIndex)
	assert.Equal(t, "a2", state.ImageRef)
	assert.Equal(t, 0, state.Progress)

	state = tickN(v, 50)
	assert.Equal(t, "b", state.StoryID)
	assert.Equal(t, "b1", state.ImageRef)
	assert.Equal(t, 0, state.Progress)

	state = tickN(v, 50)
	assert.Equal(t, State{Status: StatusIdle}, state)
	assert.Equal(t, []string{"a", "b"}, rec.get())
}

func TestViewerPauseFreezesProgress(t *testing.T) {
	v := manualViewer(nil)
	_, err := v.Open(stories(), "a")
	require.NoError(t, err)

	tickN(v, 10)
	state := v.Pause()
	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, 20, state.Progress)

	state = tickN(v, 5)
	assert.Equal(t, 20, state.Progress)

	state = v.Resume()
	assert.Equal(t, StatusPlaying, state.Status)
	assert.Equal(t, 20, state.Progress, "resume does not reset progress")
	assert.Equal(t, 22, v.Tick().Progress)

	assert.Equal(t, StatusPaused, v.TogglePlay().Status)
	assert.Equal(t, StatusPlaying, v.TogglePlay().Status)
}

func TestViewerNavigation(t *testing.T) {
	rec := &shownRecorder{}
	v := manualViewer(rec)
	_, err := v.Open(stories(), "a")
	require.NoError(t, err)

	// Previous at the very first image restarts it.
	tickN(v, 5)
	state := v.Previous()
	assert.Equal(t, "a1", state.ImageRef)
	assert.Equal(t, 0, state.Progress)

	state = v.Next()
	assert.Equal(t, "a2", state.ImageRef)
	state = v.Next()
	assert.Equal(t, "b1", state.ImageRef)

	// Back from the first image of b lands on the last image of a.
	state = v.Previous()
	assert.Equal(t, "a", state.StoryID)
	assert.Equal(t, "a2", state.ImageRef)

	v.Next()
	state = v.Next()
	assert.Equal(t, StatusIdle, state.Status, "next after the last image closes")
	assert.Equal(t, []string{"a", "b", "a", "b"}, rec.get())
}

func TestViewerTapThirds(t *testing.T) {
	v := manualViewer(nil)
	_, err := v.Open(stories(), "a")
	require.NoError(t, err)

	state := v.Tap(250, 300)
	assert.Equal(t, "a2", state.ImageRef)

	state = v.Tap(150, 300)
	assert.Equal(t, StatusPaused, state.Status)
	state = v.Tap(150, 300)
	assert.Equal(t, StatusPlaying, state.Status)

	state = v.Tap(50, 300)
	assert.Equal(t, "a1", state.ImageRef)

	state = v.Tap(10, 0)
	assert.Equal(t, "a1", state.ImageRef, "zero width is ignored")
}

func TestViewerOpenRejectsUnknownOrEmptyStory(t *testing.T) {
	v := manualViewer(nil)

	_, err := v.Open(stories(), "empty")
	assert.ErrorIs(t, err, ErrStoryNotFound)
	_, err = v.Open(stories(), "missing")
	assert.ErrorIs(t, err, ErrStoryNotFound)
	assert.Equal(t, StatusIdle, v.State().Status)
}

func TestViewerUsesStoryOrderCapturedAtOpen(t *testing.T) {
	v := manualViewer(nil)
	list := stories()
	_, err := v.Open(list, "a")
	require.NoError(t, err)

	list[2] = models.FeedItem{ID: "c", ImageRefs: []string{"c1"}}
	v.Next()
	assert.Equal(t, "b", v.Next().StoryID)
}

func TestViewerCloseResets(t *testing.T) {
	v := manualViewer(nil)
	_, err := v.Open(stories(), "b")
	require.NoError(t, err)
	tickN(v, 7)

	assert.Equal(t, State{Status: StatusIdle}, v.Close())
	assert.Equal(t, State{Status: StatusIdle}, v.Tick())
	assert.Equal(t, State{Status: StatusIdle}, v.Next())
	assert.Equal(t, StatusIdle, v.Resume().Status)
}

func TestViewerSubscribe(t *testing.T) {
	v := manualViewer(nil)
	updates, dispose := v.Subscribe()

	_, err := v.Open(stories(), "a")
	require.NoError(t, err)
	v.Tick()

	first := <-updates
	assert.Equal(t, 0, first.Progress)
	second := <-updates
	assert.Equal(t, 2, second.Progress)

	dispose()
	dispose()
	_, ok := <-updates
	assert.False(t, ok)

	other, _ := v.Subscribe()
	v.Shutdown()
	var last State
	for s := range other {
		last = s
	}
	assert.Equal(t, StatusIdle, last.Status)
}

func TestViewerTimerDrivesProgress(t *testing.T) {
	v := NewViewer(Options{TickInterval: 2 * time.Millisecond, Step: 10}, zerolog.Nop())
	defer v.Shutdown()

	_, err := v.Open(stories(), "a")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		s := v.State()
		return s.ImageIndex > 0 || s.Progress > 0
	}, time.Second, 5*time.Millisecond)

	v.Close()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, State{Status: StatusIdle}, v.State())
}
