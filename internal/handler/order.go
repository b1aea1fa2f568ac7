package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tixforge/tixforge/internal/inventory"
	"github.com/tixforge/tixforge/internal/middleware"
	"github.com/tixforge/tixforge/internal/model"
	"github.com/tixforge/tixforge/internal/payment"
	q "github.com/tixforge/tixforge/internal/queue"
	publisher "github.com/tixforge/tixforge/internal/service"
)

// OrderHandler exposes checkout confirmation and the order status
// transitions. Settlement and broker publishing happen strictly after
// the engine returned, never inside a lock scope.
type OrderHandler struct {
	Engine   *inventory.Engine
	Store    inventory.Store
	Provider payment.Provider
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(engine *inventory.Engine, store inventory.Store, provider payment.Provider) *OrderHandler {
	if engine == nil || store == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	if provider == nil {
		provider = payment.AutoConfirm{}
	}
	return &OrderHandler{Engine: engine, Store: store, Provider: provider}
}

type orderView struct {
	Code      string `json:"code"`
	EventID   uint64 `json:"event_id"`
	Status    string `json:"status"`
	Email     string `json:"email"`
	Total     string `json:"total"`
	ExpiresAt string `json:"expires_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

func toOrderView(o *model.Order) orderView {
	v := orderView{
		Code:      o.Code,
		EventID:   o.EventID,
		Status:    o.Status,
		Email:     o.Email,
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.ExpiresAt != nil {
		v.ExpiresAt = o.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return v
}

// Checkout handles POST /v1/orders. It promotes the named cart holds
// into a pending order; the engine re-validates everything inside the
// event lock. On success the order.placed event is published best
// effort in the background.
func (h *OrderHandler) Checkout(c echo.Context) error {
	var body struct {
		EventID      uint64   `json:"event_id"`
		PositionIDs  []uint64 `json:"position_ids"`
		Email        string   `json:"email"`
		Locale       string   `json:"locale"`
		SalesChannel string   `json:"sales_channel"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || len(body.PositionIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and position_ids are required"})
	}
	if body.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	order, err := h.Engine.PerformOrder(c.Request().Context(), inventory.OrderRequest{
		EventID:      body.EventID,
		CartID:       middleware.CartID(c),
		PositionIDs:  body.PositionIDs,
		Email:        body.Email,
		Locale:       body.Locale,
		SalesChannel: body.SalesChannel,
	})
	if err != nil {
		return writeError(c, err)
	}

	go h.publishPlaced(order)
	return c.JSON(http.StatusCreated, toOrderView(order))
}

// publishPlaced assembles and publishes the order.placed event. Broker
// trouble is logged by the publisher and otherwise ignored; the order
// is already committed.
func (h *OrderHandler) publishPlaced(order *model.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ev := q.OrderPlacedEvent{
		OrderCode: order.Code,
		EventID:   order.EventID,
		Email:     order.Email,
		Locale:    order.Locale,
		Total:     order.Total.StringFixed(2),
		PlacedAt:  order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.ExpiresAt != nil {
		ev.ExpiresAt = order.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if tx, err := h.Store.Begin(ctx); err == nil {
		if event, err := tx.EventByID(ctx, order.EventID); err == nil {
			ev.EventName = event.Name
			ev.Currency = event.Currency
		}
		if positions, err := tx.OrderPositionsByOrder(ctx, order.ID); err == nil {
			for _, p := range positions {
				if item, err := tx.ItemByID(ctx, p.ItemID); err == nil {
					ev.Items = append(ev.Items, item.Name)
				}
			}
		}
		_ = tx.Rollback()
	}
	_ = publisher.PublishOrderPlaced(ctx, ev)
}

// Get handles GET /v1/orders/:code. The order code is the lookup
// credential, mirroring the link shoppers receive by mail.
func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	tx, err := h.Store.Begin(ctx)
	if err != nil {
		return writeError(c, err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := tx.OrderByCode(ctx, c.Param("code"), false)
	if err != nil {
		return writeError(c, err)
	}
	positions, err := tx.OrderPositionsByOrder(ctx, order.ID)
	if err != nil {
		return writeError(c, err)
	}

	type opView struct {
		ItemID   uint64 `json:"item_id"`
		SeatID   *uint64 `json:"seat_id,omitempty"`
		Price    string `json:"price"`
		Canceled bool   `json:"canceled"`
	}
	views := make([]opView, 0, len(positions))
	for _, p := range positions {
		views = append(views, opView{ItemID: p.ItemID, SeatID: p.SeatID, Price: p.Price.StringFixed(2), Canceled: p.Canceled})
	}
	resp := echo.Map{"order": toOrderView(order), "positions": views}
	return c.JSON(http.StatusOK, resp)
}

// Pay handles POST /v1/orders/:code/pay. Settlement runs against the
// external provider first; only a confirmed settlement flips the order
// to paid.
func (h *OrderHandler) Pay(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.Param("code")

	tx, err := h.Store.Begin(ctx)
	if err != nil {
		return writeError(c, err)
	}
	order, err := tx.OrderByCode(ctx, code, false)
	_ = tx.Rollback()
	if err != nil {
		return writeError(c, err)
	}

	status, err := h.Provider.AttemptSettlement(ctx, order)
	if err != nil {
		return writeError(c, err)
	}
	switch status {
	case payment.StatusPending:
		return c.JSON(http.StatusAccepted, echo.Map{"status": "settlement_pending"})
	case payment.StatusFailed:
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "settlement_failed"})
	}

	paid, err := h.Engine.MarkPaid(ctx, code)
	if err != nil {
		return writeError(c, err)
	}

	go func(order model.Order) {
		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = publisher.PublishOrderPaid(pctx, q.OrderPaidEvent{
			OrderCode: order.Code,
			EventID:   order.EventID,
			Email:     order.Email,
			Total:     order.Total.StringFixed(2),
			PaidAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}(*paid)

	return c.JSON(http.StatusOK, toOrderView(paid))
}

// Cancel handles POST /v1/orders/:code/cancel. Works for pending and
// paid orders; capacity is released the moment the engine commits.
func (h *OrderHandler) Cancel(c echo.Context) error {
	order, err := h.Engine.CancelOrder(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderView(order))
}
