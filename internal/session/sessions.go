package session

import (
	"context"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/feed"
	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/anonto42/shunye-ott/backend/internal/story"
	"github.com/rs/zerolog"
)

// FeedSession is one mounted reels or posts screen
type FeedSession struct {
	ID    string `json:"id"`
	Owner string `json:"-"`
	*feed.Controller
}

func (s *FeedSession) close() {
	s.Controller.Close()
}

// StoryView is one story as the story bar renders it
type StoryView struct {
	models.FeedItem
	Index     int      `json:"index"`
	ImageURLs []string `json:"image_urls"`
	Seen      bool     `json:"seen"`
}

// StorySnapshot is the rendered state of a story session
type StorySnapshot struct {
	Stories   []StoryView `json:"stories"`
	Exhausted bool        `json:"exhausted"`
	Fetching  bool        `json:"fetching"`
	Error     string      `json:"error,omitempty"`
	Viewer    story.State `json:"viewer"`
	ImageURL  string      `json:"image_url,omitempty"`
}

// StorySession is one story bar plus its full-screen viewer
type StorySession struct {
	ID    string `json:"id"`
	Owner string `json:"-"`

	Stories *feed.Paginator
	Viewer  *story.Viewer

	resolver  *media.Resolver
	transform media.Transform
	seen      repositories.StorySeenRepository
	log       zerolog.Logger
}

// Open shows storyID using the stories loaded so far
func (s *StorySession) Open(storyID string) (story.State, error) {
	return s.Viewer.Open(s.Stories.State().Items, storyID)
}

// Snapshot renders the story bar and viewer state
func (s *StorySession) Snapshot(ctx context.Context) StorySnapshot {
	state := s.Stories.State()
	snap := StorySnapshot{
		Stories:   make([]StoryView, 0, len(state.Items)),
		Exhausted: state.Exhausted,
		Fetching:  state.Fetching,
		Viewer:    s.Viewer.State(),
	}
	if state.Err != nil {
		snap.Error = state.Err.Error()
	}

	ids := make([]string, 0, len(state.Items))
	for _, it := range state.Items {
		ids = append(ids, it.ID)
	}
	seen := map[string]bool{}
	if s.Owner != "" {
		var err error
		if seen, err = s.seen.SeenStoryIDs(ctx, s.Owner, ids); err != nil {
			s.log.Warn().Err(err).Msg("loading seen stories failed")
			seen = map[string]bool{}
		}
	}

	for i, it := range state.Items {
		view := StoryView{FeedItem: it, Index: i, Seen: seen[it.ID]}
		for _, ref := range it.ImageRefs {
			view.ImageURLs = append(view.ImageURLs, s.resolver.Image(ref, s.transform))
		}
		snap.Stories = append(snap.Stories, view)
	}
	if snap.Viewer.ImageRef != "" {
		snap.ImageURL = s.resolver.Image(snap.Viewer.ImageRef, s.transform)
	}
	return snap
}

func (s *StorySession) markSeen(storyID string) {
	if s.Owner == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.seen.MarkSeen(ctx, s.Owner, storyID); err != nil {
			s.log.Warn().Err(err).Str("story", storyID).Msg("marking story seen failed")
		}
	}()
}

func (s *StorySession) close() {
	s.Stories.Close()
	s.Viewer.Shutdown()
}
