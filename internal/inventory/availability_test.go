package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tixforge/tixforge/internal/model"
)

func TestComputeAvailability(t *testing.T) {
	size := func(n int64) *model.Quota { return &model.Quota{Size: &n} }

	tests := []struct {
		name          string
		quota         *model.Quota
		usage         QuotaUsage
		wantStatus    string
		wantRemaining *int64 // nil = unlimited
	}{
		{
			name:          "unlimited",
			quota:         &model.Quota{},
			usage:         QuotaUsage{CoveredItems: 1, Paid: 9000},
			wantStatus:    StatusOrdered,
			wantRemaining: nil,
		},
		{
			name:          "plenty left",
			quota:         size(100),
			usage:         QuotaUsage{CoveredItems: 2, Paid: 10, CartHolds: 5},
			wantStatus:    StatusOK,
			wantRemaining: ptr(int64(85)),
		},
		{
			name:          "paid orders exhaust capacity",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 1, Paid: 10},
			wantStatus:    StatusGone,
			wantRemaining: ptr(int64(0)),
		},
		{
			name:          "pending orders count as hard",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 1, Paid: 6, Pending: 4},
			wantStatus:    StatusGone,
			wantRemaining: ptr(int64(0)),
		},
		{
			name:          "cart holds only soft-block",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 1, Paid: 5, CartHolds: 5},
			wantStatus:    StatusReserved,
			wantRemaining: ptr(int64(0)),
		},
		{
			name:          "blocking vouchers only soft-block",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 1, Paid: 5, BlockingVouchers: 5},
			wantStatus:    StatusReserved,
			wantRemaining: ptr(int64(0)),
		},
		{
			name:          "oversold clamps to zero",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 1, Paid: 8, CartHolds: 7},
			wantStatus:    StatusReserved,
			wantRemaining: ptr(int64(0)),
		},
		{
			name:          "exactly one left",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 1, Paid: 4, Pending: 3, CartHolds: 1, BlockingVouchers: 1},
			wantStatus:    StatusOK,
			wantRemaining: ptr(int64(1)),
		},
		{
			name:          "covers nothing",
			quota:         size(10),
			usage:         QuotaUsage{CoveredItems: 0},
			wantStatus:    StatusGone,
			wantRemaining: ptr(int64(0)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, remaining := ComputeAvailability(tt.quota, tt.usage)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantRemaining == nil {
				assert.Nil(t, remaining)
			} else {
				assert.Equal(t, *tt.wantRemaining, *remaining)
			}
		})
	}
}

func TestGrants(t *testing.T) {
	assert.True(t, Grants(StatusOK))
	assert.True(t, Grants(StatusOrdered))
	assert.False(t, Grants(StatusReserved))
	assert.False(t, Grants(StatusGone))
}
