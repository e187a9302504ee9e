package handlers

import (
	"net/http"

	"github.com/anonto42/shunye-ott/backend/internal/feed"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles reels and posts feed sessions
type FeedHandler struct {
	service *session.Service
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(service *session.Service) *FeedHandler {
	return &FeedHandler{service: service}
}

// RegisterFeedRoutes registers feed session routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.POST("/feeds", h.CreateFeed)
	g.GET("/feeds/:sid", h.GetFeed)
	g.DELETE("/feeds/:sid", h.CloseFeed)
	g.POST("/feeds/:sid/scroll", h.Scroll)
	g.POST("/feeds/:sid/more", h.LoadMore)
	g.POST("/feeds/:sid/refresh", h.Refresh)
	g.POST("/feeds/:sid/visibility", h.Visibility)
	g.POST("/feeds/:sid/interact", h.Interact)
	g.POST("/feeds/:sid/items/:index/toggle", h.TogglePlay)
	g.POST("/feeds/:sid/items/:index/playback", h.ReportPlayback)
	g.POST("/feeds/:sid/items/:index/retry", h.RetryMedia)
	g.POST("/feeds/:sid/items/:index/image-error", h.ImageError)
	g.POST("/feeds/:sid/items/:index/like", h.ToggleLike)
}

// LoadResponse is returned by every operation that may load a page
type LoadResponse struct {
	SessionID string          `json:"session_id"`
	Status    feed.LoadStatus `json:"status"`
	Feed      feed.Snapshot   `json:"feed"`
}

func (h *FeedHandler) session(c echo.Context) (*session.FeedSession, error) {
	sess, err := h.service.Manager().Feed(c.Param("sid"), ownerFromContext(c))
	if err != nil {
		return nil, toHTTPError(err)
	}
	return sess, nil
}

func loaded(c echo.Context, status int, sess *session.FeedSession, load feed.LoadStatus) error {
	return respond(c, status, LoadResponse{
		SessionID: sess.ID,
		Status:    load,
		Feed:      sess.Snapshot(),
	})
}

// CreateFeed mounts a feed and loads its first page
func (h *FeedHandler) CreateFeed(c echo.Context) error {
	var req models.CreateFeedRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, status, err := h.service.CreateFeed(c.Request().Context(), ownerFromContext(c), req.Kind, req.PageSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return loaded(c, http.StatusCreated, sess, status)
}

// GetFeed returns the rendered feed
func (h *FeedHandler) GetFeed(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, sess.Snapshot())
}

// CloseFeed unmounts the feed
func (h *FeedHandler) CloseFeed(c echo.Context) error {
	if err := h.service.Manager().Remove(c.Param("sid"), ownerFromContext(c)); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Scroll reports the distance between the list bottom and the viewport
func (h *FeedHandler) Scroll(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req models.ScrollRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	status, _ := sess.OnScroll(c.Request().Context(), req.DistanceFromBottom)
	return loaded(c, http.StatusOK, sess, status)
}

// LoadMore loads the next page regardless of scroll position
func (h *FeedHandler) LoadMore(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	status, _ := sess.LoadMore(c.Request().Context())
	return loaded(c, http.StatusOK, sess, status)
}

// Refresh reloads the feed from the newest item
func (h *FeedHandler) Refresh(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	status, _ := sess.Refresh(c.Request().Context())
	return loaded(c, http.StatusOK, sess, status)
}

// Visibility applies a batch of item geometry reports
func (h *FeedHandler) Visibility(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req models.VisibilityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	entries := make([]feed.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, feed.Entry{Index: e.Index, Top: e.Top, Height: e.Height})
	}
	change := sess.OnVisibility(req.ViewportHeight, entries)

	return respond(c, http.StatusOK, echo.Map{
		"active":  change.Active,
		"entered": change.Entered,
		"left":    change.Left,
		"feed":    sess.Snapshot(),
	})
}

// Interact records the first user gesture on the page
func (h *FeedHandler) Interact(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	flipped := sess.Interact()
	return respond(c, http.StatusOK, echo.Map{"changed": flipped, "feed": sess.Snapshot()})
}

// TogglePlay is the manual play/pause control
func (h *FeedHandler) TogglePlay(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	state, err := sess.TogglePlay(index)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, state)
}

// ReportPlayback receives the outcome of the client's play request
func (h *FeedHandler) ReportPlayback(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	var req models.PlaybackReport
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	state, err := sess.ReportPlayback(index, req.Started, req.Reason)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, state)
}

// RetryMedia re-initialises an errored item's media
func (h *FeedHandler) RetryMedia(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	state, err := sess.RetryMedia(index)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, state)
}

// ImageError returns the next address to try for a failed image
func (h *FeedHandler) ImageError(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	var req models.ImageErrorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	result, err := sess.ReportImageError(index, req.Image)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, result)
}

// ToggleLike likes or unlikes an item
func (h *FeedHandler) ToggleLike(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, err := indexParam(c)
	if err != nil {
		return err
	}
	item, err := sess.ToggleLike(c.Request().Context(), index)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, echo.Map{
		"id":         item.ID,
		"liked":      item.Liked,
		"like_count": item.LikeCount,
	})
}
