package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

// RequireStoredRole lets the request through only when the caller's
// stored role, read from users/<id>, is one of roles. Token claims are
// ignored because they can lag behind a role change.
func RequireStoredRole(docs store.DocumentStore, roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := CallerID(c)
			if id == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			var u model.User
			if err := docs.Get(ctx, store.Users, id, &u); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load caller"})
			}
			if !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
