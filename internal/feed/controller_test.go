package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver() *media.Resolver {
	return media.NewResolver(media.Config{
		ImageHost:     "imagedelivery.net",
		ImagesAccount: "acct",
		StreamHost:    "customer-xyz.cloudflarestream.com",
	})
}

func newTestController(t *testing.T, kind models.Kind, f PageFetcher, likes LikeWriter, prober media.Prober) *Controller {
	t.Helper()
	c := NewController(Options{Kind: kind, PageSize: 10}, Deps{
		Fetcher:    f,
		Likes:      likes,
		Collection: string(kind) + "s",
		Resolver:   testResolver(),
		Prober:     prober,
		Log:        zerolog.Nop(),
	})
	t.Cleanup(c.Close)
	return c
}

func fullScreen(indices ...int) []Entry {
	entries := make([]Entry, 0, len(indices)+1)
	for n, i := range indices {
		top := 0.0
		if n < len(indices)-1 {
			top = -1000
		}
		entries = append(entries, Entry{Index: i, Top: top, Height: 700})
	}
	return entries
}

func TestControllerAutoplayWaitsForInteraction(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 3)}}}
	prober := &fakeProber{}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, prober)

	status, err := c.Mount(context.Background())
	require.NoError(t, err)
	require.Equal(t, LoadLoaded, status)

	c.OnVisibility(800, fullScreen(0))
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, -1, snap.Playing)
	assert.False(t, snap.Interacted)

	assert.True(t, c.Interact())
	c.pipeline.Wait()

	snap = c.Snapshot()
	assert.Equal(t, 0, snap.Playing)
	assert.Equal(t, MediaPlaying, snap.Items[0].Media.Status)
	assert.Equal(t, "https://customer-xyz.cloudflarestream.com/stream-r0/manifest/video.m3u8", snap.Items[0].ManifestURL)
	assert.Equal(t, []string{snap.Items[0].ManifestURL}, prober.urls)
}

func TestControllerScrollMovesPlayback(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 3)}}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})
	_, err := c.Mount(context.Background())
	require.NoError(t, err)
	c.Interact()

	c.OnVisibility(800, fullScreen(0))
	c.pipeline.Wait()
	change := c.OnVisibility(800, []Entry{
		{Index: 0, Top: -700, Height: 700},
		{Index: 1, Top: 0, Height: 700},
	})
	assert.Equal(t, 1, change.Active)
	c.pipeline.Wait()

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Playing)
	assert.Equal(t, MediaPaused, snap.Items[0].Media.Status)
	assert.Equal(t, MediaPlaying, snap.Items[1].Media.Status)
	assert.Equal(t, MediaIdle, snap.Items[2].Media.Status)
}

func TestControllerMediaFailureAndRetry(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 2)}}}
	prober := &fakeProber{err: media.ErrManifestUnavailable}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, prober)
	_, err := c.Mount(context.Background())
	require.NoError(t, err)
	c.Interact()

	c.OnVisibility(800, fullScreen(0))
	c.pipeline.Wait()

	snap := c.Snapshot()
	assert.Equal(t, MediaErrored, snap.Items[0].Media.Status)
	assert.Contains(t, snap.Items[0].Media.Reason, "manifest unavailable")
	assert.Equal(t, -1, snap.Playing)

	prober.setErr(nil)
	state, err := c.RetryMedia(0)
	require.NoError(t, err)
	assert.Equal(t, MediaLoading, state.Status)
	c.pipeline.Wait()
	assert.Equal(t, MediaPlaying, c.Snapshot().Items[0].Media.Status)
}

func TestControllerRejectedPlayReport(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 1)}}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})
	_, _ = c.Mount(context.Background())

	state, err := c.TogglePlay(0)
	require.NoError(t, err)
	assert.Equal(t, MediaLoading, state.Status)
	c.pipeline.Wait()

	state, err = c.ReportPlayback(0, false, "NotAllowedError")
	require.NoError(t, err)
	assert.Equal(t, MediaErrored, state.Status)
	assert.Equal(t, -1, c.Snapshot().Playing)

	_, err = c.ReportPlayback(9, true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerImageFallback(t *testing.T) {
	post := models.FeedItem{
		ID:        "p1",
		Kind:      models.KindPost,
		CreatedAt: baseTime,
		ImageRefs: []string{"img-1"},
		MediaRef:  "img-1",
	}
	f := &scriptedFetcher{results: []fetchResult{{items: []models.FeedItem{post}}}}
	c := newTestController(t, models.KindPost, f, &fakeLikes{}, &fakeProber{})
	_, _ = c.Mount(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, []string{"https://imagedelivery.net/acct/img-1/public"}, snap.Items[0].ImageURLs)

	res, err := c.ReportImageError(0, 0)
	require.NoError(t, err)
	assert.Equal(t, ImageErrorResult{URL: "https://imagedelivery.net/acct/img-1", Swapped: true, Attempts: 1}, res)

	res, err = c.ReportImageError(0, 0)
	require.NoError(t, err)
	assert.Equal(t, ImageErrorResult{URL: "/placeholder.svg", Swapped: true, Attempts: 2, Exhausted: true}, res)

	// The placeholder failing does not start another round.
	res, err = c.ReportImageError(0, 0)
	require.NoError(t, err)
	assert.False(t, res.Swapped)
	assert.Equal(t, 2, res.Attempts)

	assert.Equal(t, []string{"/placeholder.svg"}, c.Snapshot().Items[0].ImageURLs)

	_, err = c.ReportImageError(0, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestControllerMarksItemsWithoutMedia(t *testing.T) {
	broken := reel("r1", 1)
	broken.StreamID, broken.MediaRef = "  ", "  "
	f := &scriptedFetcher{results: []fetchResult{{items: []models.FeedItem{reel("r0", 0), broken}}}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})
	_, _ = c.Mount(context.Background())
	c.Interact()

	snap := c.Snapshot()
	assert.True(t, snap.Items[0].Renderable)
	assert.False(t, snap.Items[1].Renderable)
	assert.Empty(t, snap.Items[1].ManifestURL)

	c.OnVisibility(800, fullScreen(1))
	assert.Equal(t, MediaIdle, c.Snapshot().Items[1].Media.Status)
}

func TestControllerToggleLike(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 1)}}}
	likes := &fakeLikes{}
	c := newTestController(t, models.KindReel, f, likes, &fakeProber{})
	_, _ = c.Mount(context.Background())

	item, err := c.ToggleLike(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, item.Liked)
	assert.EqualValues(t, 1, item.LikeCount)

	likes.err = errors.New("write failed")
	item, err = c.ToggleLike(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, item.Liked, "failed unlike is reverted")
	assert.EqualValues(t, 1, item.LikeCount)
	assert.Equal(t, []int64{1, -1}, likes.calls)
}

func TestControllerConcurrentLikesAlternate(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 1)}}}
	likes := &fakeLikes{}
	c := newTestController(t, models.KindReel, f, likes, &fakeProber{})
	_, _ = c.Mount(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.ToggleLike(context.Background(), 0)
		}()
	}
	wg.Wait()

	item := c.Snapshot().Items[0]
	assert.False(t, item.Liked)
	assert.EqualValues(t, 0, item.LikeCount)

	var sum int64
	for _, d := range likes.calls {
		sum += d
	}
	assert.Len(t, likes.calls, 10)
	assert.Zero(t, sum)
}

func TestControllerLoadFailureShowsBanner(t *testing.T) {
	boom := errors.New("timeout")
	f := &scriptedFetcher{results: []fetchResult{
		{err: boom},
		{items: reels("r", 0, 10)},
		{err: boom},
	}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})

	status, err := c.Mount(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, LoadFailed, status)
	snap := c.Snapshot()
	assert.Equal(t, "timeout", snap.Error)
	assert.False(t, snap.Stale)
	assert.Empty(t, snap.Items)

	status, err = c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadLoaded, status)
	assert.Empty(t, c.Snapshot().Error)

	_, err = c.LoadMore(context.Background())
	require.Error(t, err)
	snap = c.Snapshot()
	assert.True(t, snap.Stale, "existing items stay visible under a soft warning")
	assert.Len(t, snap.Items, 10)
}

func TestControllerRefreshResetsPlayback(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{
		{items: reels("r", 0, 2)},
		{items: reels("n", 0, 2)},
	}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})
	_, _ = c.Mount(context.Background())
	c.Interact()
	c.OnVisibility(800, fullScreen(0))
	c.pipeline.Wait()

	status, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadLoaded, status)

	snap := c.Snapshot()
	assert.Equal(t, []string{"n0", "n1"}, []string{snap.Items[0].ID, snap.Items[1].ID})
	assert.Equal(t, -1, snap.Playing)
	assert.Equal(t, -1, snap.ActiveIndex)
	assert.True(t, snap.Interacted)
}

func TestControllerRefreshSkippedWhileLoadingKeepsPlayback(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{
		{items: reels("r", 0, 10)},
		{items: reels("r", 10, 2)},
	}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})
	_, _ = c.Mount(context.Background())
	c.Interact()
	c.OnVisibility(800, fullScreen(0))
	c.pipeline.Wait()
	require.Equal(t, 0, c.Snapshot().Playing)

	f.mu.Lock()
	f.entered, f.release = make(chan struct{}), make(chan struct{})
	f.mu.Unlock()

	done := make(chan LoadStatus)
	go func() {
		status, _ := c.LoadMore(context.Background())
		done <- status
	}()
	<-f.entered

	status, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadSkippedInFlight, status)

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Playing, "a skipped refresh leaves playback alone")
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, MediaPlaying, snap.Items[0].Media.Status)

	f.release <- struct{}{}
	assert.Equal(t, LoadLoaded, <-done)
	assert.Len(t, c.Snapshot().Items, 12)
}

func TestControllerCloseTearsDown(t *testing.T) {
	f := &scriptedFetcher{results: []fetchResult{{items: reels("r", 0, 2)}}}
	c := newTestController(t, models.KindReel, f, &fakeLikes{}, &fakeProber{})
	_, _ = c.Mount(context.Background())
	c.Interact()
	c.OnVisibility(800, fullScreen(0))
	c.pipeline.Wait()

	c.Close()
	assert.True(t, c.Closed())
	assert.Empty(t, c.pipeline.Source())
	assert.Equal(t, -1, c.Snapshot().Playing)

	status, err := c.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadDiscarded, status)
	assert.Equal(t, Change{Active: -1}, c.OnVisibility(800, fullScreen(1)))
}
