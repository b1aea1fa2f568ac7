package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tixforge/tixforge/internal/inventory"
	"github.com/tixforge/tixforge/internal/repository"
)

// writeError maps engine failures onto HTTP responses. Every engine
// error kind has exactly one status; anything untyped is a 500 with a
// generic message so internals never leak to shoppers.
func writeError(c echo.Context, err error) error {
	var e *inventory.Error
	if errors.As(err, &e) {
		status := http.StatusConflict
		switch e.Kind {
		case inventory.KindLockTimeout:
			// Transient: the shopper should simply retry.
			c.Response().Header().Set("Retry-After", "1")
			status = http.StatusServiceUnavailable
		case inventory.KindCartGone:
			status = http.StatusGone
		case inventory.KindSalesClosed:
			status = http.StatusForbidden
		}
		return c.JSON(status, echo.Map{"error": string(e.Kind), "message": e.Reason})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
}
