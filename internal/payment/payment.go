// Package payment defines the settlement collaborator interface. The
// engine treats payment as strictly external: settlement runs after
// the allocation lock is released, and its outcome feeds back through
// the order status transitions.
package payment

import (
	"context"

	"github.com/tixforge/tixforge/internal/model"
)

// Status is the outcome of one settlement attempt.
type Status string

const (
	// StatusPending means the provider accepted the attempt but has not
	// settled yet; the order stays pending until a later confirmation
	// or its payment deadline passes.
	StatusPending Status = "pending"
	// StatusConfirmed means funds are settled and the order may be
	// marked paid.
	StatusConfirmed Status = "confirmed"
	// StatusFailed means the attempt was declined; the order stays
	// pending and the shopper may retry until the deadline.
	StatusFailed Status = "failed"
)

// Provider attempts settlement for an order. Implementations must not
// be called while any allocation lock is held.
type Provider interface {
	AttemptSettlement(ctx context.Context, order *model.Order) (Status, error)
}

// AutoConfirm is the development provider: every attempt settles
// immediately. Production deployments plug a real PSP adapter in here.
type AutoConfirm struct{}

func (AutoConfirm) AttemptSettlement(ctx context.Context, order *model.Order) (Status, error) {
	return StatusConfirmed, nil
}
