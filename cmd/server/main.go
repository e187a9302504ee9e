package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/anonto42/shunye-ott/backend/internal/router"
	"github.com/anonto42/shunye-ott/backend/internal/session"
	"github.com/anonto42/shunye-ott/backend/internal/validators"
	"github.com/anonto42/shunye-ott/backend/pkg/config"
	"github.com/anonto42/shunye-ott/backend/pkg/firebase"
	"github.com/anonto42/shunye-ott/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("development", "info")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize databases")
	}
	defer db.CloseDB()

	// Initialize Firebase
	var firebaseApp *firebase.App
	if cfg.Firebase.CredentialsPath != "" {
		firebaseApp, err = firebase.InitFirebase(ctx, cfg.Firebase.CredentialsPath, cfg.Firebase.ProjectID, cfg.Store.Backend == "firestore", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Firebase")
		}
		defer firebaseApp.Close()
	}

	store, err := documentStore(cfg, db, firebaseApp)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open document store")
	}

	var seen repositories.StorySeenRepository = repositories.NoopStorySeenRepository{}
	if db.Postgres != nil {
		seen = repositories.NewPostgresStorySeenRepository(db.Postgres)
	}

	resolver := media.NewResolver(media.Config{
		ImageHost:     cfg.CDN.ImagesHost,
		ImagesAccount: cfg.CDN.ImagesAccountHash,
		StreamHost:    cfg.StreamHost(),
		ManifestFile:  cfg.CDN.ManifestFile,
		Placeholder:   cfg.CDN.Placeholder,
	})
	prober := media.NewHTTPProber(&http.Client{Timeout: cfg.CDN.ProbeTimeout})

	manager := session.NewManager(cfg.Session.TTL, log)
	if err := manager.Start(cfg.Session.SweepEvery); err != nil {
		log.Fatal().Err(err).Msg("failed to start session eviction")
	}

	service := session.NewService(manager, store, resolver, prober, seen, session.Settings{
		Collections: map[models.Kind]string{
			models.KindReel:  cfg.Store.ReelsColl,
			models.KindPost:  cfg.Store.PostsColl,
			models.KindStory: cfg.Store.StoriesColl,
		},
		OrderBy: cfg.Store.OrderField,
		PageSizes: map[models.Kind]int{
			models.KindReel:  cfg.Feed.ReelsPageSize,
			models.KindPost:  cfg.Feed.PostsPageSize,
			models.KindStory: cfg.Feed.StoriesPageSize,
		},
		ScrollThreshold:     cfg.Feed.ScrollThreshold,
		ScrollInterval:      cfg.Feed.ScrollThrottle,
		VisibilityThreshold: cfg.Feed.VisibilityThreshold,
		BottomMargin:        cfg.Feed.BottomMargin,
		ProbeTimeout:        cfg.CDN.ProbeTimeout,
		ImageTransform:      media.Preset(cfg.CDN.ImagePreset),
		StoryTick:           cfg.Story.TickInterval,
		StoryStep:           cfg.Story.Step,
	}, log)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, log)

	// Setup routes and dependencies
	deps := router.Deps{Service: service, Log: log}
	if cfg.Firebase.AuthRequired && firebaseApp != nil {
		deps.Verifier = firebaseApp.AuthClient
	}
	router.SetupRoutes(e, deps)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := manager.Shutdown(); err != nil {
		log.Error().Err(err).Msg("session manager shutdown failed")
	}
}

func documentStore(cfg *config.Config, db *config.DB, app *firebase.App) (repositories.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "mongo":
		return repositories.NewMongoStore(db.Mongo.Database(cfg.Mongo.Database)), nil
	case "memory":
		if cfg.Store.MemorySeedPath == "" {
			return repositories.NewMemoryStore(), nil
		}
		return repositories.LoadMemoryStore(cfg.Store.MemorySeedPath)
	default:
		if app == nil || app.Firestore == nil {
			return nil, errors.New("firestore client not initialized")
		}
		return repositories.NewFirestoreStore(app.Firestore), nil
	}
}
