package handlers

import (
	"net/http"

	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// MediaHandler exposes the CDN address resolver
type MediaHandler struct {
	resolver *media.Resolver
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(resolver *media.Resolver) *MediaHandler {
	return &MediaHandler{resolver: resolver}
}

// RegisterMediaRoutes registers media address routes
func (h *MediaHandler) RegisterMediaRoutes(g *echo.Group) {
	g.GET("/media/images/:id", h.ImageAddress)
	g.GET("/media/videos/:id", h.VideoAddress)
}

// ImageAddress resolves an image id with an optional transform
func (h *MediaHandler) ImageAddress(c echo.Context) error {
	var q models.ImageQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}
	t := media.Transform{Preset: q.Preset, Width: q.Width, Height: q.Height, Fit: q.Fit}
	id := c.Param("id")

	return respond(c, http.StatusOK, echo.Map{
		"url":        h.resolver.Image(id, t),
		"candidates": h.resolver.ImageCandidates(id, t),
	})
}

// VideoAddress resolves a stream id to its HLS manifest
func (h *MediaHandler) VideoAddress(c echo.Context) error {
	url, err := h.resolver.Video(c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, echo.Map{"manifest_url": url})
}
