package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/intake"
	"github.com/iliyamo/venture-platform/internal/middleware"
)

// maxRecordBody caps submitted record bodies.
const maxRecordBody = 64 << 10

// RecordHandler accepts user-submitted records.
type RecordHandler struct {
	Intake *intake.Service
}

func (h *RecordHandler) Create(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRecordBody+1))
	if err != nil || len(body) > maxRecordBody {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rec, err := h.Intake.Create(ctx, middleware.CallerID(c), intake.Kind(c.Param("kind")), body)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *RecordHandler) UpdateProposalStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	p, err := h.Intake.UpdateProposalStatus(ctx, middleware.CallerID(c), c.Param("id"), req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
