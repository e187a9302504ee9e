package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/feed"
	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/anonto42/shunye-ott/backend/internal/story"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okProber struct{}

func (okProber) Probe(context.Context, string) error { return nil }

type recordingSeen struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (r *recordingSeen) MarkSeen(_ context.Context, viewerID, storyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	r.seen[viewerID+"/"+storyID] = true
	return nil
}

func (r *recordingSeen) SeenStoryIDs(_ context.Context, viewerID string, storyIDs []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for _, id := range storyIDs {
		if r.seen[viewerID+"/"+id] {
			out[id] = true
		}
	}
	return out, nil
}

func (r *recordingSeen) has(viewerID, storyID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[viewerID+"/"+storyID]
}

func seedStore() *repositories.MemoryStore {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := repositories.NewMemoryStore()
	for i, id := range []string{"r1", "r2", "r3"} {
		s.Put("reels", id, map[string]interface{}{
			"createdAt": base.Add(-time.Duration(i) * time.Minute),
			"videoId":   "vid-" + id,
		})
	}
	s.Put("stories", "s1", map[string]interface{}{
		"createdAt": base,
		"imageIds":  []interface{}{"s1-a", "s1-b"},
	})
	s.Put("stories", "s2", map[string]interface{}{
		"createdAt": base.Add(-time.Minute),
	})
	return s
}

func newTestService(seen repositories.StorySeenRepository) *Service {
	resolver := media.NewResolver(media.Config{ImageHost: "img.test", ImagesAccount: "acct", StreamHost: "stream.test"})
	return NewService(NewManager(time.Minute, zerolog.Nop()), seedStore(), resolver, okProber{}, seen, Settings{
		ManualStoryTicks: true,
	}, zerolog.Nop())
}

type fakeCloser struct{ closed bool }

func (f *fakeCloser) close() { f.closed = true }

func TestManagerOwnership(t *testing.T) {
	m := NewManager(time.Minute, zerolog.Nop())
	c := &fakeCloser{}
	id := m.add("alice", c)

	_, err := m.get(id, "bob")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = m.get("nope", "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Feed(id, "alice")
	assert.ErrorIs(t, err, ErrNotFound, "a non-feed session is not a feed")

	assert.ErrorIs(t, m.Remove(id, "bob"), ErrForbidden)
	require.NoError(t, m.Remove(id, "alice"))
	assert.True(t, c.closed)
	assert.Zero(t, m.Len())
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	m := NewManager(time.Minute, zerolog.Nop())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, fresh := &fakeCloser{}, &fakeCloser{}
	m.add("u", stale)
	now = now.Add(50 * time.Second)
	freshID := m.add("u", fresh)

	now = now.Add(20 * time.Second)
	_, err := m.get(freshID, "u")
	require.NoError(t, err)

	assert.Equal(t, 1, m.EvictIdle())
	assert.True(t, stale.closed)
	assert.False(t, fresh.closed)
	assert.Equal(t, 1, m.Len())
}

func TestManagerStartAndShutdown(t *testing.T) {
	m := NewManager(time.Minute, zerolog.Nop())
	require.NoError(t, m.Start(time.Hour))

	c := &fakeCloser{}
	m.add("u", c)
	require.NoError(t, m.Shutdown())
	assert.True(t, c.closed)
	assert.Zero(t, m.Len())
}

func TestServiceCreateFeed(t *testing.T) {
	svc := newTestService(nil)
	sess, status, err := svc.CreateFeed(context.Background(), "alice", models.KindReel, 2)
	require.NoError(t, err)
	assert.Equal(t, feed.LoadLoaded, status)

	got, err := svc.Manager().Feed(sess.ID, "alice")
	require.NoError(t, err)
	snap := got.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "r1", snap.Items[0].ID)
	assert.Equal(t, "https://stream.test/vid-r1/manifest/video.m3u8", snap.Items[0].ManifestURL)

	require.NoError(t, svc.Manager().Remove(sess.ID, "alice"))
	assert.True(t, sess.Closed())

	_, _, err = svc.CreateFeed(context.Background(), "alice", models.KindStory, 0)
	assert.Error(t, err)
}

func TestServiceStorySession(t *testing.T) {
	seen := &recordingSeen{}
	svc := newTestService(seen)

	sess, status, err := svc.CreateStories(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, feed.LoadLoaded, status)

	snap := sess.Snapshot(context.Background())
	require.Len(t, snap.Stories, 1, "stories without images are not listed")
	assert.Equal(t, []string{"https://img.test/acct/s1-a/public", "https://img.test/acct/s1-b/public"}, snap.Stories[0].ImageURLs)
	assert.False(t, snap.Stories[0].Seen)

	state, err := sess.Open("s1")
	require.NoError(t, err)
	assert.Equal(t, story.StatusPlaying, state.Status)
	assert.Eventually(t, func() bool { return seen.has("alice", "s1") }, time.Second, 5*time.Millisecond)

	snap = sess.Snapshot(context.Background())
	assert.True(t, snap.Stories[0].Seen)
	assert.Equal(t, "https://img.test/acct/s1-a/public", snap.ImageURL)

	_, err = sess.Open("s2")
	assert.ErrorIs(t, err, story.ErrStoryNotFound)

	_, err = svc.Manager().Stories(sess.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, svc.Manager().Remove(sess.ID, "alice"))
	assert.Equal(t, story.StatusIdle, sess.Viewer.State().Status)
	assert.False(t, sess.Stories.Mounted())
}
