package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/middleware"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/store"
)

// NotificationHandler lets users read their own notifications.
type NotificationHandler struct {
	Docs store.DocumentStore
}

// List returns the caller's notifications, newest first. ?unread=true
// limits the list to unread ones.
func (h *NotificationHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	filters := []store.Filter{store.Where("userId", store.OpEq, middleware.CallerID(c))}
	if c.QueryParam("unread") == "true" {
		filters = append(filters, store.Where("read", store.OpEq, false))
	}
	docs, err := h.Docs.Query(ctx, store.Notifications, filters...)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		var n model.Notification
		if err := d.Decode(&n); err != nil {
			return writeError(c, err)
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return c.JSON(http.StatusOK, echo.Map{"notifications": out})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var n model.Notification
	if err := h.Docs.Get(ctx, store.Notifications, c.Param("id"), &n); err != nil {
		return writeError(c, err)
	}
	// other users' notifications read as missing
	if n.UserID != middleware.CallerID(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if err := h.Docs.Update(ctx, store.Notifications, n.ID, map[string]any{"read": true}); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
