package router

import (
	"github.com/anonto42/shunye-ott/backend/internal/handlers"
	"github.com/anonto42/shunye-ott/backend/internal/middleware"
	"github.com/anonto42/shunye-ott/backend/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Deps are the dependencies shared by all routes
type Deps struct {
	Service *session.Service
	// Verifier is nil when authentication is disabled
	Verifier middleware.TokenVerifier
	Log      zerolog.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Deps) {
	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	api := e.Group("/api/v1")
	if deps.Verifier != nil {
		api.Use(middleware.FirebaseAuthMiddleware(deps.Verifier, deps.Log))
		deps.Log.Info().Msg("firebase authentication applied to /api/v1")
	} else {
		deps.Log.Warn().Msg("authentication disabled, sessions are anonymous")
	}

	feedHandler := handlers.NewFeedHandler(deps.Service)
	feedHandler.RegisterFeedRoutes(api)

	storyHandler := handlers.NewStoryHandler(deps.Service, deps.Log)
	storyHandler.RegisterStoryRoutes(api)

	mediaHandler := handlers.NewMediaHandler(deps.Service.Resolver())
	mediaHandler.RegisterMediaRoutes(api)

	deps.Log.Info().Msg("all routes configured")
}
