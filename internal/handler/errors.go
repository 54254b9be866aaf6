package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venture-platform/internal/apperr"
)

// writeError maps a service error onto a status code and the
// {"error": "..."} body used across the API.
func writeError(c echo.Context, err error) error {
	var te *apperr.TransitionError
	switch {
	case errors.As(err, &te):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":        te.Error(),
			"allowedRoles": te.Allowed,
		})
	case errors.Is(err, apperr.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	case errors.Is(err, apperr.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, apperr.ErrRestrictedRole):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidRole), errors.Is(err, apperr.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
