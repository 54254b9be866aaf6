package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/middleware"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/store"
)

// RoleHandler exposes the role transition authority.
type RoleHandler struct {
	Authority *roles.Authority
	Docs      store.DocumentStore
}

type roleReq struct {
	Role   string `json:"role"`
	UserID string `json:"userId"`
}

// Me returns the caller's profile with stored and claimed role.
func (h *RoleHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	id := middleware.CallerID(c)

	var u model.User
	if err := h.Docs.Get(ctx, store.Users, id, &u); err != nil {
		return writeError(c, err)
	}
	st, err := h.Authority.Status(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	u.PasswordHash = ""
	return c.JSON(http.StatusOK, echo.Map{"user": u, "roleStatus": st, "tokenRole": middleware.ClaimedRole(c)})
}

func (h *RoleHandler) Change(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil || req.Role == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Authority.ChangeRole(ctx, middleware.CallerID(c), roles.Role(req.Role))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *RoleHandler) Available(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Authority.ListAvailableRoles(ctx, middleware.CallerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Reconcile rewrites the caller's claim from the stored role.
func (h *RoleHandler) Reconcile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	role, changed, err := h.Authority.ReconcileClaim(ctx, middleware.CallerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"role": role, "reconciled": changed})
}

// Grant assigns any role, restricted ones included. Admin only.
func (h *RoleHandler) Grant(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil || req.Role == "" || req.UserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId and role required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Authority.GrantRole(ctx, middleware.CallerID(c), req.UserID, roles.Role(req.Role))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
