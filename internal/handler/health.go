package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/venture-platform/internal/store"
)

// HealthHandler reports liveness and, when configured, Redis and store
// reachability.
type HealthHandler struct {
	Docs  store.DocumentStore
	Redis *redis.Client
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := echo.Map{"status": "ok"}
	code := http.StatusOK
	if h.Docs != nil {
		if _, err := h.Docs.Query(ctx, store.Users, store.Where("id", store.OpEq, "__health__")); err != nil {
			status["store"], code = "down", http.StatusServiceUnavailable
		} else {
			status["store"] = "up"
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}
	if code != http.StatusOK {
		status["status"] = "degraded"
	}
	return c.JSON(code, status)
}
