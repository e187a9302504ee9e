package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/feed"
	"github.com/anonto42/shunye-ott/backend/internal/models"
	"github.com/anonto42/shunye-ott/backend/internal/session"
	"github.com/anonto42/shunye-ott/backend/internal/story"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StoryEvent is one message on the story events socket
type StoryEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StoryHandler handles story bar and story viewer sessions
type StoryHandler struct {
	service *session.Service
	log     zerolog.Logger
}

// NewStoryHandler creates a new StoryHandler
func NewStoryHandler(service *session.Service, log zerolog.Logger) *StoryHandler {
	return &StoryHandler{
		service: service,
		log:     log.With().Str("component", "story_handler").Logger(),
	}
}

// RegisterStoryRoutes registers story session routes
func (h *StoryHandler) RegisterStoryRoutes(g *echo.Group) {
	g.POST("/stories", h.CreateStories)
	g.GET("/stories/:sid", h.GetStories)
	g.DELETE("/stories/:sid", h.CloseStories)
	g.POST("/stories/:sid/more", h.LoadMore)
	g.POST("/stories/:sid/refresh", h.Refresh)
	g.POST("/stories/:sid/open", h.Open)
	g.POST("/stories/:sid/pause", h.viewerAction((*story.Viewer).Pause))
	g.POST("/stories/:sid/resume", h.viewerAction((*story.Viewer).Resume))
	g.POST("/stories/:sid/toggle", h.viewerAction((*story.Viewer).TogglePlay))
	g.POST("/stories/:sid/next", h.viewerAction((*story.Viewer).Next))
	g.POST("/stories/:sid/previous", h.viewerAction((*story.Viewer).Previous))
	g.POST("/stories/:sid/close", h.viewerAction((*story.Viewer).Close))
	g.POST("/stories/:sid/tap", h.Tap)
	g.GET("/stories/:sid/events", h.Events)
}

// StoriesResponse is returned by every operation that may load a page
type StoriesResponse struct {
	SessionID string                `json:"session_id"`
	Status    feed.LoadStatus       `json:"status"`
	Stories   session.StorySnapshot `json:"stories"`
}

func (h *StoryHandler) session(c echo.Context) (*session.StorySession, error) {
	sess, err := h.service.Manager().Stories(c.Param("sid"), ownerFromContext(c))
	if err != nil {
		return nil, toHTTPError(err)
	}
	return sess, nil
}

func (h *StoryHandler) loaded(c echo.Context, status int, sess *session.StorySession, load feed.LoadStatus) error {
	return respond(c, status, StoriesResponse{
		SessionID: sess.ID,
		Status:    load,
		Stories:   sess.Snapshot(c.Request().Context()),
	})
}

// CreateStories mounts a story bar and loads its first page
func (h *StoryHandler) CreateStories(c echo.Context) error {
	var req models.CreateStoriesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sess, status, err := h.service.CreateStories(c.Request().Context(), ownerFromContext(c), req.PageSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.loaded(c, http.StatusCreated, sess, status)
}

// GetStories returns the story bar and viewer state
func (h *StoryHandler) GetStories(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, sess.Snapshot(c.Request().Context()))
}

// CloseStories unmounts the story session
func (h *StoryHandler) CloseStories(c echo.Context) error {
	if err := h.service.Manager().Remove(c.Param("sid"), ownerFromContext(c)); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LoadMore loads the next page of stories
func (h *StoryHandler) LoadMore(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	status, _ := sess.Stories.LoadNext(c.Request().Context())
	return h.loaded(c, http.StatusOK, sess, status)
}

// Refresh reloads the story bar. An open viewer keeps its own story order.
func (h *StoryHandler) Refresh(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	status, _ := sess.Stories.Refresh(c.Request().Context())
	return h.loaded(c, http.StatusOK, sess, status)
}

// Open shows a story full screen
func (h *StoryHandler) Open(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req models.OpenStoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	state, err := sess.Open(req.StoryID)
	if err != nil {
		return toHTTPError(err)
	}
	return respond(c, http.StatusOK, state)
}

func (h *StoryHandler) viewerAction(action func(*story.Viewer) story.State) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := h.session(c)
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, action(sess.Viewer))
	}
}

// Tap handles a tap on the viewer surface
func (h *StoryHandler) Tap(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req models.TapRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	return respond(c, http.StatusOK, sess.Viewer.Tap(req.X, req.Width))
}

// Events streams viewer state over a websocket until either side leaves
func (h *StoryHandler) Events(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session", sess.ID).Msg("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	updates, dispose := sess.Viewer.Subscribe()
	defer dispose()

	// The read side only watches for the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Str("session", sess.ID).Msg("story socket closed")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := writeEvent(conn, StoryEvent{Type: "state", Payload: sess.Viewer.State()}); err != nil {
		return nil
	}
	for {
		select {
		case <-gone:
			return nil
		case state, ok := <-updates:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return nil
			}
			if err := writeEvent(conn, StoryEvent{Type: "state", Payload: state}); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event StoryEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}
