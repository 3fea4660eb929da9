package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequesterKey is the context key for the authenticated requester
	RequesterKey ContextKey = "requester"

	// PhabricatorTokenKey is the context key for the caller's own
	// Phabricator API token, when provided
	PhabricatorTokenKey ContextKey = "phabricator_token"
)

// ExtractRequester extracts the X-Requester header (the identity of the
// user asking to land) and the optional X-Phabricator-API-Key header into
// the request context.
func ExtractRequester() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if requester := c.Request().Header.Get("X-Requester"); requester != "" {
				c.Set(string(RequesterKey), requester)
			}
			if token := c.Request().Header.Get("X-Phabricator-API-Key"); token != "" {
				c.Set(string(PhabricatorTokenKey), token)
			}
			return next(c)
		}
	}
}

// GetRequester retrieves the requester identity from the request context.
// Returns empty string if not set.
func GetRequester(c echo.Context) string {
	requester := c.Get(string(RequesterKey))
	if requester == nil {
		return ""
	}
	return requester.(string)
}

// GetPhabricatorToken retrieves the caller's own API token, if any
func GetPhabricatorToken(c echo.Context) string {
	token := c.Get(string(PhabricatorTokenKey))
	if token == nil {
		return ""
	}
	return token.(string)
}

// RequireRequester ensures a requester identity exists in context.
// Returns an error response if not found.
func RequireRequester(c echo.Context) (string, error) {
	requester := GetRequester(c)
	if requester == "" {
		err := c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "authentication required (X-Requester header missing)",
		})
		return "", err
	}
	return requester, nil
}
