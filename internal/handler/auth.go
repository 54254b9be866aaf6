package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/apperr"
	"github.com/iliyamo/venture-platform/internal/config"
	"github.com/iliyamo/venture-platform/internal/identity"
	"github.com/iliyamo/venture-platform/internal/middleware"
	"github.com/iliyamo/venture-platform/internal/model"
	"github.com/iliyamo/venture-platform/internal/roles"
	"github.com/iliyamo/venture-platform/internal/store"
	"github.com/iliyamo/venture-platform/internal/utils"
)

// AuthHandler issues tokens. New accounts always start with the user
// role; other roles are reached through the role endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Docs   store.DocumentStore
	Claims identity.ClaimStore
}

func NewAuthHandler(cfg config.Config, docs store.DocumentStore, claims identity.ClaimStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Docs: docs, Claims: claims}
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Docs.Query(ctx, store.Users, store.Where("email", store.OpEq, req.Email))
	if err != nil {
		return writeError(c, err)
	}
	if len(existing) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	}
	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hash password failed"})
	}
	now := time.Now().UTC()
	u := model.User{
		ID:           store.NewID(),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         string(roles.User),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Docs.Set(ctx, store.Users, u.ID, u); err != nil {
		return writeError(c, err)
	}
	if err := h.Claims.SetClaims(ctx, u.ID, identity.Claims{Role: u.Role, UpdatedAt: now}); err != nil {
		c.Logger().Warnf("initial claims for %s not set: %v", u.ID, err)
	}
	resp, err := h.issue(ctx, u, u.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	found, err := h.Docs.Query(ctx, store.Users, store.Where("email", store.OpEq, req.Email))
	if err != nil {
		return writeError(c, err)
	}
	if len(found) == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	var u model.User
	if err := found[0].Decode(&u); err != nil || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u, h.claimedRole(ctx, u))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token. The new access token carries the
// current claim, so it picks up role changes and reconciliations.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var rt model.RefreshToken
	if err := h.Docs.Get(ctx, store.RefreshTokens, hash, &rt); err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Docs.Update(ctx, store.RefreshTokens, hash, map[string]any{"revoked": true}); err != nil {
		return writeError(c, err)
	}
	var u model.User
	if err := h.Docs.Get(ctx, store.Users, rt.UserID, &u); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return writeError(c, err)
	}
	resp, err := h.issue(ctx, u, h.claimedRole(ctx, u))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes one refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	var rt model.RefreshToken
	if err := h.Docs.Get(ctx, store.RefreshTokens, hash, &rt); err != nil || rt.UserID != middleware.CallerID(c) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err := h.Docs.Update(ctx, store.RefreshTokens, hash, map[string]any{"revoked": true}); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// claimedRole reads the role claim to embed in a token, falling back to
// the stored role when no claim exists yet.
func (h *AuthHandler) claimedRole(ctx context.Context, u model.User) string {
	cl, err := h.Claims.Claims(ctx, u.ID)
	if err != nil || cl.Role == "" {
		return u.Role
	}
	return cl.Role
}

func (h *AuthHandler) issue(ctx context.Context, u model.User, role string) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	hash := utils.HashRefreshRaw(refresh.Raw)
	if err := h.Docs.Set(ctx, store.RefreshTokens, hash, model.RefreshToken{
		ID:        hash,
		UserID:    u.ID,
		ExpiresAt: refresh.Exp,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
