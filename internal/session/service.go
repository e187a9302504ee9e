package session

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/feed"
	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/anonto42/shunye-ott/backend/internal/story"
	"github.com/rs/zerolog"
)

// Settings are the tunables applied to every new session
type Settings struct {
	Collections map[models.Kind]string
	OrderBy     string
	PageSizes   map[models.Kind]int

	ScrollThreshold     float64
	ScrollInterval      time.Duration
	VisibilityThreshold float64
	BottomMargin        float64
	ProbeTimeout        time.Duration
	ImageTransform      media.Transform

	StoryTick        time.Duration
	StoryStep        int
	ManualStoryTicks bool
}

var defaultCollections = map[models.Kind]string{
	models.KindReel:  "reels",
	models.KindPost:  "posts",
	models.KindStory: "stories",
}

// Service mounts feed and story sessions on the shared store and CDN
type Service struct {
	manager  *Manager
	store    repositories.DocumentStore
	resolver *media.Resolver
	prober   media.Prober
	seen     repositories.StorySeenRepository
	settings Settings
	log      zerolog.Logger
}

// NewService creates a new Service
func NewService(
	manager *Manager,
	store repositories.DocumentStore,
	resolver *media.Resolver,
	prober media.Prober,
	seen repositories.StorySeenRepository,
	settings Settings,
	log zerolog.Logger,
) *Service {
	if seen == nil {
		seen = repositories.NoopStorySeenRepository{}
	}
	if settings.OrderBy == "" {
		settings.OrderBy = "createdAt"
	}
	return &Service{
		manager:  manager,
		store:    store,
		resolver: resolver,
		prober:   prober,
		seen:     seen,
		settings: settings,
		log:      log,
	}
}

// Manager exposes the registry
func (s *Service) Manager() *Manager {
	return s.manager
}

// Resolver exposes the CDN resolver
func (s *Service) Resolver() *media.Resolver {
	return s.resolver
}

func (s *Service) collection(kind models.Kind) string {
	if c, ok := s.settings.Collections[kind]; ok && c != "" {
		return c
	}
	return defaultCollections[kind]
}

func (s *Service) pageSize(kind models.Kind, requested int) int {
	if requested > 0 {
		return requested
	}
	if n, ok := s.settings.PageSizes[kind]; ok && n > 0 {
		return n
	}
	return 10
}

// CreateFeed mounts a reels or posts feed and performs its first load. A
// failed first load still yields a session; its snapshot carries the error.
func (s *Service) CreateFeed(ctx context.Context, owner string, kind models.Kind, pageSize int) (*FeedSession, feed.LoadStatus, error) {
	if kind != models.KindReel && kind != models.KindPost {
		return nil, "", fmt.Errorf("unsupported feed kind %q", kind)
	}
	collection := s.collection(kind)
	source := feed.NewSource(s.store, collection, kind, s.settings.OrderBy)

	ctrl := feed.NewController(feed.Options{
		Kind:                kind,
		PageSize:            s.pageSize(kind, pageSize),
		ScrollThreshold:     s.settings.ScrollThreshold,
		ScrollInterval:      s.settings.ScrollInterval,
		VisibilityThreshold: s.settings.VisibilityThreshold,
		BottomMargin:        s.settings.BottomMargin,
		ImageTransform:      s.settings.ImageTransform,
		ProbeTimeout:        s.settings.ProbeTimeout,
	}, feed.Deps{
		Fetcher:    source,
		Likes:      source,
		Collection: collection,
		Resolver:   s.resolver,
		Prober:     s.prober,
		Log:        s.log,
	})

	sess := &FeedSession{Owner: owner, Controller: ctrl}
	sess.ID = s.manager.add(owner, sess)

	status, err := ctrl.Mount(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("session", sess.ID).Str("kind", string(kind)).Msg("initial feed load failed")
	}
	return sess, status, nil
}

// CreateStories mounts a story bar session and loads its first page.
// Stories without images are dropped as they are fetched.
func (s *Service) CreateStories(ctx context.Context, owner string, pageSize int) (*StorySession, feed.LoadStatus, error) {
	collection := s.collection(models.KindStory)
	source := feed.NewSource(s.store, collection, models.KindStory, s.settings.OrderBy)

	log := s.log.With().Str("component", "story_session").Logger()
	sess := &StorySession{
		Owner:     owner,
		Stories:   feed.NewPaginator(source, s.pageSize(models.KindStory, pageSize), log, feed.WithItemFilter(story.Openable)),
		resolver:  s.resolver,
		transform: s.settings.ImageTransform,
		seen:      s.seen,
		log:       log,
	}
	if sess.transform == (media.Transform{}) {
		sess.transform = media.Preset(media.PresetPublic)
	}
	sess.Viewer = story.NewViewer(story.Options{
		TickInterval: s.settings.StoryTick,
		Step:         s.settings.StoryStep,
		ManualTicks:  s.settings.ManualStoryTicks,
		OnStoryShown: sess.markSeen,
	}, log)
	sess.ID = s.manager.add(owner, sess)

	status, err := sess.Stories.LoadNext(ctx)
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("initial story load failed")
	}
	return sess, status, nil
}
