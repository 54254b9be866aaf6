package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/middleware"
	"github.com/iliyamo/venture-platform/internal/platform"
)

// PlatformHandler exposes scoring and analytics.
type PlatformHandler struct {
	Service *platform.Service
}

func (h *PlatformHandler) CreateRiskAssessment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ra, err := h.Service.GenerateRiskAssessment(ctx, middleware.CallerID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ra)
}

func (h *PlatformHandler) LatestRiskAssessment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ra, err := h.Service.LatestRiskAssessment(ctx, middleware.CallerID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ra)
}

func (h *PlatformHandler) UpdatePortfolioMetrics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Service.UpdatePortfolioMetrics(ctx, middleware.CallerID(c), c.Param("investorId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *PlatformHandler) Analytics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, err := h.Service.GetPlatformAnalytics(ctx, middleware.CallerID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
