package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/shunye-ott/backend/internal/feed"
	"github.com/anonto42/shunye-ott/backend/internal/media"
	"github.com/anonto42/shunye-ott/backend/internal/repositories"
	"github.com/anonto42/shunye-ott/backend/internal/session"
	"github.com/anonto42/shunye-ott/backend/internal/story"
	"github.com/labstack/echo/v4"
)

// ownerFromContext returns the Firebase UID set by the auth middleware, or
// "" when authentication is disabled.
func ownerFromContext(c echo.Context) string {
	uid, _ := c.Get("firebaseUID").(string)
	return uid
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func indexParam(c echo.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid item index")
	}
	return index, nil
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// toHTTPError maps domain errors onto HTTP statuses
func toHTTPError(err error) error {
	var he *echo.HTTPError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &he):
		return he
	case errors.Is(err, session.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "Session belongs to another user")
	case errors.Is(err, feed.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Item not found")
	case errors.Is(err, story.ErrStoryNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Story not found")
	case errors.Is(err, repositories.ErrDocumentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Document not found")
	case errors.Is(err, media.ErrEmptyStreamID):
		return echo.NewHTTPError(http.StatusNotFound, "Video has no stream")
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
