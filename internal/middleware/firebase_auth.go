package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// TokenVerifier verifies Firebase ID tokens; *auth.Client implements it
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware creates an Echo middleware to verify Firebase ID tokens
func FirebaseAuthMiddleware(verifier TokenVerifier, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
			}

			token, err := verifier.VerifyIDToken(c.Request().Context(), tokenParts[1])
			if err != nil {
				log.Debug().Err(err).Msg("id token rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			// Sessions are owned by the Firebase UID
			c.Set("firebaseUID", token.UID)
			c.Set("firebaseToken", token)

			return next(c)
		}
	}
}
