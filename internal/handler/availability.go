package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tixforge/tixforge/internal/inventory"
)

// AvailabilityHandler serves advisory availability snapshots for
// product pages. The numbers are cached with a short TTL and may be
// stale; the authoritative answer is only ever computed inside the
// event lock when a claim is made.
type AvailabilityHandler struct {
	Cache *inventory.SnapshotCache
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(cache *inventory.SnapshotCache) *AvailabilityHandler {
	if cache == nil {
		panic("nil cache passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Cache: cache}
}

// Get handles GET /v1/quotas/:id/availability.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quota id"})
	}
	snap, err := h.Cache.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
