package handler

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/tixforge/tixforge/internal/model"
	"github.com/tixforge/tixforge/internal/repository"
	"github.com/tixforge/tixforge/internal/utils"
)

// OrganizerHandler exposes the organizer-side catalog operations:
// creating events, items, quotas and vouchers. These writes are rare
// compared to shop traffic and need no event lock; they go straight
// through the repositories in one transaction per request.
type OrganizerHandler struct {
	DB       *sql.DB
	Events   *repository.EventRepo
	Items    *repository.ItemRepo
	Quotas   *repository.QuotaRepo
	Vouchers *repository.VoucherRepo
}

// NewOrganizerHandler constructs an OrganizerHandler over one database
// handle.
func NewOrganizerHandler(db *sql.DB) *OrganizerHandler {
	if db == nil {
		panic("nil db passed to NewOrganizerHandler")
	}
	return &OrganizerHandler{
		DB:       db,
		Events:   repository.NewEventRepo(db),
		Items:    repository.NewItemRepo(db),
		Quotas:   repository.NewQuotaRepo(db),
		Vouchers: repository.NewVoucherRepo(db),
	}
}

// inTx runs fn inside one transaction with the usual rollback guard.
func (h *OrganizerHandler) inTx(c echo.Context, fn func(tx *sql.Tx) error) error {
	ctx := c.Request().Context()
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return writeError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return writeError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return writeError(c, err)
	}
	committed = true
	return nil
}

// CreateEvent handles POST /v1/organizer/events.
func (h *OrganizerHandler) CreateEvent(c echo.Context) error {
	var body struct {
		OrganizerID  uint64     `json:"organizer_id"`
		Slug         string     `json:"slug"`
		Name         string     `json:"name"`
		Currency     string     `json:"currency"`
		Live         bool       `json:"live"`
		CountPending *bool      `json:"count_pending"`
		StartsAt     time.Time  `json:"starts_at"`
		EndsAt       time.Time  `json:"ends_at"`
		SalesStart   *time.Time `json:"sales_start"`
		SalesEnd     *time.Time `json:"sales_end"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Slug == "" || body.Name == "" || body.Currency == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug, name and currency are required"})
	}
	if !body.EndsAt.After(body.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	// Pending orders consume capacity unless the organizer opts out.
	countPending := true
	if body.CountPending != nil {
		countPending = *body.CountPending
	}
	event := &model.Event{
		OrganizerID:  body.OrganizerID,
		Slug:         body.Slug,
		Name:         body.Name,
		Currency:     body.Currency,
		Live:         body.Live,
		CountPending: countPending,
		StartsAt:     body.StartsAt,
		EndsAt:       body.EndsAt,
		SalesStart:   body.SalesStart,
		SalesEnd:     body.SalesEnd,
	}
	if err := h.inTx(c, func(tx *sql.Tx) error {
		return h.Events.CreateTx(c.Request().Context(), tx, event)
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": event.ID})
}

// CreateItem handles POST /v1/organizer/items.
func (h *OrganizerHandler) CreateItem(c echo.Context) error {
	var body struct {
		EventID       uint64 `json:"event_id"`
		Name          string `json:"name"`
		DefaultPrice  string `json:"default_price"`
		Active        bool   `json:"active"`
		HasVariations bool   `json:"has_variations"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and name are required"})
	}
	price, err := decimal.NewFromString(body.DefaultPrice)
	if err != nil || price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid default_price"})
	}
	item := &model.Item{
		EventID:       body.EventID,
		Name:          body.Name,
		DefaultPrice:  price,
		Active:        body.Active,
		HasVariations: body.HasVariations,
	}
	if err := h.inTx(c, func(tx *sql.Tx) error {
		return h.Items.CreateTx(c.Request().Context(), tx, item)
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": item.ID})
}

// CreateQuota handles POST /v1/organizer/quotas. The covered item list
// defines which (item, variation) pairs draw from the new pool.
func (h *OrganizerHandler) CreateQuota(c echo.Context) error {
	var body struct {
		EventID    uint64  `json:"event_id"`
		SubeventID *uint64 `json:"subevent_id"`
		Name       string  `json:"name"`
		Size       *int64  `json:"size"` // null = unlimited
		Items      []struct {
			ItemID      uint64  `json:"item_id"`
			VariationID *uint64 `json:"variation_id"`
		} `json:"items"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || body.Name == "" || len(body.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id, name and items are required"})
	}
	if body.Size != nil && *body.Size < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "size must not be negative"})
	}
	quota := &model.Quota{
		EventID:    body.EventID,
		SubeventID: body.SubeventID,
		Name:       body.Name,
		Size:       body.Size,
	}
	covered := make([]model.QuotaItem, 0, len(body.Items))
	for _, it := range body.Items {
		covered = append(covered, model.QuotaItem{ItemID: it.ItemID, VariationID: it.VariationID})
	}
	if err := h.inTx(c, func(tx *sql.Tx) error {
		return h.Quotas.CreateTx(c.Request().Context(), tx, quota, covered)
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": quota.ID})
}

// CreateVoucher handles POST /v1/organizer/vouchers.
func (h *OrganizerHandler) CreateVoucher(c echo.Context) error {
	var body struct {
		EventID     uint64     `json:"event_id"`
		Code        string     `json:"code"`
		ItemID      *uint64    `json:"item_id"`
		VariationID *uint64    `json:"variation_id"`
		SubeventID  *uint64    `json:"subevent_id"`
		QuotaID     *uint64    `json:"quota_id"`
		MaxUsages   int64      `json:"max_usages"`
		BlockQuota  bool       `json:"block_quota"`
		Price       *string    `json:"price"`
		ValidUntil  *time.Time `json:"valid_until"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.EventID == 0 || body.MaxUsages < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and max_usages are required"})
	}
	if body.Code == "" {
		body.Code = strings.ToUpper(utils.RandomToken(5))
	}
	if body.BlockQuota && body.QuotaID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "block_quota requires quota_id"})
	}
	voucher := &model.Voucher{
		EventID:     body.EventID,
		Code:        body.Code,
		ItemID:      body.ItemID,
		VariationID: body.VariationID,
		SubeventID:  body.SubeventID,
		QuotaID:     body.QuotaID,
		MaxUsages:   body.MaxUsages,
		BlockQuota:  body.BlockQuota,
		ValidUntil:  body.ValidUntil,
	}
	if body.Price != nil {
		p, err := decimal.NewFromString(*body.Price)
		if err != nil || p.IsNegative() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid price"})
		}
		voucher.Price = &p
	}
	if err := h.inTx(c, func(tx *sql.Tx) error {
		return h.Vouchers.CreateTx(c.Request().Context(), tx, voucher)
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": voucher.ID, "code": voucher.Code})
}
