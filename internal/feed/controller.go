package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/rs/zerolog"
)

// Options tunes one feed controller
type Options struct {
	Kind                models.Kind
	PageSize            int
	ScrollThreshold     float64
	ScrollInterval      time.Duration
	VisibilityThreshold float64
	BottomMargin        float64
	ImageTransform      media.Transform
	ProbeTimeout        time.Duration
}

// Deps are the collaborators of a controller
type Deps struct {
	Fetcher    PageFetcher
	Likes      LikeWriter
	Collection string
	Resolver   *media.Resolver
	Prober     media.Prober
	Log        zerolog.Logger
}

// ItemView is one item as the client should render it
type ItemView struct {
	models.FeedItem
	Index       int        `json:"index"`
	Renderable  bool       `json:"renderable"`
	ImageURLs   []string   `json:"image_urls,omitempty"`
	ManifestURL string     `json:"manifest_url,omitempty"`
	Media       MediaState `json:"media"`
}

// Snapshot is the rendered state of a feed
type Snapshot struct {
	Kind        models.Kind `json:"kind"`
	Items       []ItemView  `json:"items"`
	Exhausted   bool        `json:"exhausted"`
	Fetching    bool        `json:"fetching"`
	Error       string      `json:"error,omitempty"`
	Stale       bool        `json:"stale"`
	ActiveIndex int         `json:"active_index"`
	Playing     int         `json:"playing_index"`
	Interacted  bool        `json:"user_interacted"`
}

// ImageErrorResult is the next address to try after an image failed
type ImageErrorResult struct {
	URL       string `json:"url"`
	Swapped   bool   `json:"swapped"`
	Attempts  int    `json:"attempts"`
	Exhausted bool   `json:"exhausted"`
}

// Controller is the feed controller of one mounted screen: pagination,
// visibility, single-item playback and the media pipeline.
type Controller struct {
	mu sync.Mutex

	kind       models.Kind
	collection string
	transform  media.Transform

	pager    *Paginator
	trigger  *ScrollTrigger
	tracker  *Tracker
	gate     *Gate
	pipeline *media.Pipeline
	resolver *media.Resolver
	likes    LikeWriter
	log      zerolog.Logger

	fallbacks  map[string]*media.Fallback
	mediaIndex int
	mediaGen   uint64
	closed     bool
}

// NewController builds a controller; call Mount to perform the first load
func NewController(opts Options, deps Deps) *Controller {
	log := deps.Log.With().Str("component", "feed_controller").Str("kind", string(opts.Kind)).Logger()
	transform := opts.ImageTransform
	if transform == (media.Transform{}) {
		transform = media.Preset(media.PresetPublic)
	}
	if opts.ScrollThreshold <= 0 {
		opts.ScrollThreshold = 1000
	}
	return &Controller{
		kind:       opts.Kind,
		collection: deps.Collection,
		transform:  transform,
		pager:      NewPaginator(deps.Fetcher, opts.PageSize, log),
		trigger:    NewScrollTrigger(opts.ScrollThreshold, opts.ScrollInterval),
		tracker:    NewTracker(opts.VisibilityThreshold, opts.BottomMargin),
		gate:       NewGate(),
		pipeline:   media.NewPipeline(deps.Resolver, deps.Prober, opts.ProbeTimeout, log),
		resolver:   deps.Resolver,
		likes:      deps.Likes,
		log:        log,
		fallbacks:  make(map[string]*media.Fallback),
		mediaIndex: -1,
	}
}

// Mount performs the initial load
func (c *Controller) Mount(ctx context.Context) (LoadStatus, error) {
	return c.LoadMore(ctx)
}

// OnScroll loads the next page when the list bottom is close enough
func (c *Controller) OnScroll(ctx context.Context, distanceFromBottom float64) (LoadStatus, error) {
	if status := c.trigger.Check(distanceFromBottom); status != LoadLoaded {
		return status, nil
	}
	return c.LoadMore(ctx)
}

// LoadMore loads the next page unconditionally (initial mount, "try again")
func (c *Controller) LoadMore(ctx context.Context) (LoadStatus, error) {
	status, err := c.pager.LoadNext(ctx)
	c.observe()
	return status, err
}

// Refresh clears the feed and loads the first page again. Playback state is
// only reset when the refresh actually starts a fetch.
func (c *Controller) Refresh(ctx context.Context) (LoadStatus, error) {
	status, err := c.pager.RefreshWithReset(ctx, c.resetPlayback)
	c.observe()
	return status, err
}

func (c *Controller) resetPlayback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipeline.Destroy()
	c.gate.Reset()
	c.tracker.Reset()
	c.fallbacks = make(map[string]*media.Fallback)
	c.mediaIndex, c.mediaGen = -1, 0
}

// observe reconnects the tracker when the item count changed
func (c *Controller) observe() {
	n := c.pager.Len()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.tracker.Observe(n)
}

// OnVisibility applies one batch of intersection changes
func (c *Controller) OnVisibility(viewportHeight float64, entries []Entry) Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Change{Active: -1}
	}

	change := c.tracker.Update(viewportHeight, entries)
	for _, i := range change.Left {
		c.gate.Clear(i)
	}
	if change.Active >= 0 {
		c.activate(change.Active)
	}
	return change
}

// activate runs the gate for index and starts media if it was let through. Caller holds mu.
func (c *Controller) activate(index int) {
	item, err := c.pager.Item(index)
	if err != nil {
		return
	}
	if c.gate.SetActive(index, item.Playable()) {
		c.startMedia(index, item)
	}
}

// startMedia replaces the pipeline source with item's stream. Caller holds mu.
func (c *Controller) startMedia(index int, item models.FeedItem) {
	gen, err := c.pipeline.Load(item.StreamID, c.onMediaReady)
	if err != nil {
		c.gate.MediaFailed(index, err.Error())
		return
	}
	c.mediaIndex, c.mediaGen = index, gen
}

func (c *Controller) onMediaReady(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.mediaGen || !c.pipeline.IsCurrent(gen) {
		return
	}
	if err != nil {
		c.gate.MediaFailed(c.mediaIndex, err.Error())
		return
	}
	c.gate.MediaStarted(c.mediaIndex)
}

// Interact records the first user gesture. The item already in view may
// start playing from this point on.
func (c *Controller) Interact() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	flipped := c.gate.SetUserInteracted()
	if flipped && c.tracker.Active() >= 0 {
		c.activate(c.tracker.Active())
	}
	return flipped
}

// TogglePlay is the manual play/pause control on one item
func (c *Controller) TogglePlay(index int) (MediaState, error) {
	item, err := c.pager.Item(index)
	if err != nil {
		return MediaState{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate.TogglePlay(index, item.Playable()) {
		c.startMedia(index, item)
	}
	return c.gate.State(index), nil
}

// ReportPlayback applies the client's result of a play request. A rejected
// request (e.g. autoplay blocked) leaves the item not playing.
func (c *Controller) ReportPlayback(index int, started bool, reason string) (MediaState, error) {
	if _, err := c.pager.Item(index); err != nil {
		return MediaState{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if started {
		c.gate.MediaStarted(index)
	} else {
		c.gate.MediaFailed(index, reason)
	}
	return c.gate.State(index), nil
}

// RetryMedia re-initialises the media pipeline for an errored item
func (c *Controller) RetryMedia(index int) (MediaState, error) {
	item, err := c.pager.Item(index)
	if err != nil {
		return MediaState{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate.Retry(index, index == c.tracker.Active()) {
		c.startMedia(index, item)
	}
	return c.gate.State(index), nil
}

// ReportImageError moves one image of an item to its next fallback address
func (c *Controller) ReportImageError(index, image int) (ImageErrorResult, error) {
	item, err := c.pager.Item(index)
	if err != nil {
		return ImageErrorResult{}, err
	}
	refs := imageRefs(item)
	if image < 0 || image >= len(refs) {
		return ImageErrorResult{}, ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fb := c.fallbackLocked(item.ID, image, refs[image])
	next, swapped := fb.Fail()
	return ImageErrorResult{
		URL:       next,
		Swapped:   swapped,
		Attempts:  fb.Attempts(),
		Exhausted: fb.Exhausted(),
	}, nil
}

func (c *Controller) fallbackLocked(itemID string, image int, ref string) *media.Fallback {
	key := fmt.Sprintf("%s/%d", itemID, image)
	fb, ok := c.fallbacks[key]
	if !ok {
		fb = media.NewFallback(c.resolver.ImageCandidates(ref, c.transform))
		c.fallbacks[key] = fb
	}
	return fb
}

// ToggleLike flips the like flag optimistically and persists the counter
// change; the local flag is reverted when the write fails.
func (c *Controller) ToggleLike(ctx context.Context, index int) (models.FeedItem, error) {
	item, err := c.pager.Item(index)
	if err != nil {
		return models.FeedItem{}, err
	}

	// Direction comes from the live item, not the copy read above.
	var delta int64
	err = c.pager.UpdateByID(item.ID, func(it *models.FeedItem) {
		delta = 1
		if it.Liked {
			delta = -1
		}
		it.Liked = delta > 0
		it.LikeCount += delta
	})
	if err != nil {
		return models.FeedItem{}, err
	}

	if err := c.likes.Increment(ctx, c.collection, item.ID, repositories.LikesField, delta); err != nil {
		c.log.Warn().Err(err).Str("item", item.ID).Msg("like update failed, reverting")
		_ = c.pager.UpdateByID(item.ID, func(it *models.FeedItem) {
			it.Liked = !it.Liked
			it.LikeCount -= delta
		})
		reverted, _ := c.pager.Item(index)
		return reverted, fmt.Errorf("update likes: %w", err)
	}

	updated, err := c.pager.Item(index)
	if err != nil {
		return models.FeedItem{}, err
	}
	return updated, nil
}

// Snapshot renders the current state
func (c *Controller) Snapshot() Snapshot {
	state := c.pager.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Kind:        c.kind,
		Items:       make([]ItemView, 0, len(state.Items)),
		Exhausted:   state.Exhausted,
		Fetching:    state.Fetching,
		ActiveIndex: c.tracker.Active(),
		Playing:     -1,
		Interacted:  c.gate.Interacted(),
	}
	if state.Err != nil {
		snap.Error = state.Err.Error()
		snap.Stale = len(state.Items) > 0
	}
	if playing := c.gate.Playing(); len(playing) == 1 {
		snap.Playing = playing[0]
	}

	for i, it := range state.Items {
		view := ItemView{
			FeedItem:   it,
			Index:      i,
			Renderable: it.HasValidMedia(),
			Media:      c.gate.State(i),
		}
		for n, ref := range imageRefs(it) {
			key := fmt.Sprintf("%s/%d", it.ID, n)
			if fb, ok := c.fallbacks[key]; ok {
				view.ImageURLs = append(view.ImageURLs, fb.Current())
				continue
			}
			view.ImageURLs = append(view.ImageURLs, c.resolver.Image(ref, c.transform))
		}
		if it.IsVideo() {
			view.ManifestURL, _ = c.resolver.Video(it.StreamID)
		}
		snap.Items = append(snap.Items, view)
	}
	return snap
}

// Close tears the feed down: late fetches are discarded, the tracker is
// disconnected and the media pipeline destroyed.
func (c *Controller) Close() {
	c.pager.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.tracker.Disconnect()
	c.pipeline.Destroy()
	c.gate.PauseAll()
}

// Closed reports whether Close has run
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func imageRefs(it models.FeedItem) []string {
	if len(it.ImageRefs) > 0 {
		return it.ImageRefs
	}
	if it.HasValidMedia() && !it.IsVideo() {
		return []string{it.MediaRef}
	}
	return nil
}
