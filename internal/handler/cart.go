package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tixforge/tixforge/internal/inventory"
	"github.com/tixforge/tixforge/internal/middleware"
	"github.com/tixforge/tixforge/internal/model"
)

// CartHandler exposes the cart hold lifecycle: open a session, claim
// positions, extend, list and remove. All capacity decisions are the
// engine's; the handler only translates HTTP to engine calls.
type CartHandler struct {
	Engine    *inventory.Engine
	JWTSecret string
	TokenTTL  time.Duration
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(engine *inventory.Engine, jwtSecret string, tokenTTL time.Duration) *CartHandler {
	if engine == nil {
		panic("nil engine passed to NewCartHandler")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &CartHandler{Engine: engine, JWTSecret: jwtSecret, TokenTTL: tokenTTL}
}

// positionView is the JSON shape of one cart hold.
type positionView struct {
	ID           uint64  `json:"id"`
	ItemID       uint64  `json:"item_id"`
	VariationID  *uint64 `json:"variation_id,omitempty"`
	SubeventID   *uint64 `json:"subevent_id,omitempty"`
	SeatID       *uint64 `json:"seat_id,omitempty"`
	MembershipID *uint64 `json:"membership_id,omitempty"`
	IsBundled    bool    `json:"is_bundled"`
	Price        string  `json:"price"`
	ExpiresAt    string  `json:"expires_at"`
}

func toPositionView(p model.CartPosition) positionView {
	return positionView{
		ID:           p.ID,
		ItemID:       p.ItemID,
		VariationID:  p.VariationID,
		SubeventID:   p.SubeventID,
		SeatID:       p.SeatID,
		MembershipID: p.MembershipID,
		IsBundled:    p.IsBundled,
		Price:        p.Price.StringFixed(2),
		ExpiresAt:    p.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// CreateCart handles POST /v1/carts. It opens a new shopping session
// and returns the cart id plus the signed session token the client
// must present on all further cart and checkout calls.
func (h *CartHandler) CreateCart(c echo.Context) error {
	cartID := uuid.NewString()
	token, err := middleware.IssueCartToken(h.JWTSecret, cartID, h.TokenTTL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"cart_id": cartID, "token": token})
}

// AddPosition handles POST /v1/carts/positions. The request claims
// quantity units of an item (plus mandatory bundled add-ons) for the
// session's cart; the engine enforces every capacity and exclusivity
// rule before any hold is written.
func (h *CartHandler) AddPosition(c echo.Context) error {
	var body struct {
		EventID      uint64  `json:"event_id"`
		ItemID       uint64  `json:"item_id"`
		VariationID  *uint64 `json:"variation_id"`
		SubeventID   *uint64 `json:"subevent_id"`
		VoucherCode  string  `json:"voucher_code"`
		SeatID       *uint64 `json:"seat_id"`
		MembershipID *uint64 `json:"membership_id"`
		Quantity     int     `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || body.ItemID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and item_id are required"})
	}

	created, err := h.Engine.AddToCart(c.Request().Context(), inventory.AddToCartRequest{
		EventID:      body.EventID,
		ItemID:       body.ItemID,
		VariationID:  body.VariationID,
		SubeventID:   body.SubeventID,
		VoucherCode:  body.VoucherCode,
		SeatID:       body.SeatID,
		MembershipID: body.MembershipID,
		CartID:       middleware.CartID(c),
		Quantity:     body.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	views := make([]positionView, 0, len(created))
	for _, p := range created {
		views = append(views, toPositionView(p))
	}
	return c.JSON(http.StatusCreated, echo.Map{"positions": views})
}

// ListPositions handles GET /v1/carts/positions and returns the live
// holds of the session's cart.
func (h *CartHandler) ListPositions(c echo.Context) error {
	positions, err := h.Engine.CartPositions(c.Request().Context(), middleware.CartID(c))
	if err != nil {
		return writeError(c, err)
	}
	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, toPositionView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"positions": views})
}

// Extend handles POST /v1/carts/extend. Every still-active hold of the
// cart gets a fresh expiry; lapsed holds stay lapsed.
func (h *CartHandler) Extend(c echo.Context) error {
	n, err := h.Engine.ExtendCart(c.Request().Context(), middleware.CartID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"extended": n})
}

// RemovePosition handles DELETE /v1/carts/positions/:id.
func (h *CartHandler) RemovePosition(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid position id"})
	}
	if err := h.Engine.RemoveCartPosition(c.Request().Context(), middleware.CartID(c), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
