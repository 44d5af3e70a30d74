package services

import (
	"context"
	"testing"
	"time"

	"smartevents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ev := h.seedEvent(t, 10, 2000)
	h.seedCode(t, ev.ID, "SAVE10", domain.DiscountPercentage, 10, nil)
	h.seedCode(t, ev.ID, "FIVE", domain.DiscountFixedAmount, 500, nil)
	h.seedCode(t, ev.ID, "HUGE", domain.DiscountFixedAmount, 5000, nil)

	tests := []struct {
		code string
		want int64
	}{
		{"SAVE10", 1800},
		{" save10 ", 1800},
		{"FIVE", 1500},
		{"HUGE", 0},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			res, err := h.discounts.Resolve(ctx, ev.ID, tt.code)
			require.NoError(t, err)
			assert.Equal(t, int64(2000), res.BasePrice)
			assert.Equal(t, tt.want, res.FinalPrice)
		})
	}
}

func TestDiscountResolver_RejectsUnusableCodes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ev := h.seedEvent(t, 10, 2000)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := &domain.DiscountCode{EventID: ev.ID, Code: "OLD", Type: domain.DiscountPercentage, Value: 10, Active: true, ValidUntil: &past}
	early := &domain.DiscountCode{EventID: ev.ID, Code: "SOON", Type: domain.DiscountPercentage, Value: 10, Active: true, ValidFrom: &future}
	inactive := &domain.DiscountCode{EventID: ev.ID, Code: "OFF", Type: domain.DiscountPercentage, Value: 10, Active: false}
	for _, d := range []*domain.DiscountCode{expired, early, inactive} {
		require.NoError(t, h.repos.Discounts.Create(ctx, d))
	}
	spent := h.seedCode(t, ev.ID, "SPENT", domain.DiscountPercentage, 10, intPtr(1))
	require.NoError(t, h.repos.Discounts.Redeem(ctx, spent.ID, "co-earlier"))

	for _, code := range []string{"OLD", "SOON", "OFF", "SPENT", "UNKNOWN"} {
		_, err := h.discounts.Resolve(ctx, ev.ID, code)
		assert.ErrorIs(t, err, domain.ErrInvalidCode, code)
	}

	_, err := h.discounts.Resolve(ctx, ev.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.discounts.Resolve(ctx, "missing-event", "SAVE10")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDiscountResolver_RedeemRespectsLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ev := h.seedEvent(t, 10, 2000)
	d := h.seedCode(t, ev.ID, "TWICE", domain.DiscountFixedAmount, 100, intPtr(2))

	require.NoError(t, h.discounts.Redeem(ctx, d, "co-1"))
	require.NoError(t, h.discounts.Redeem(ctx, d, "co-1"))
	require.NoError(t, h.discounts.Redeem(ctx, d, "co-2"))
	require.ErrorIs(t, h.discounts.Redeem(ctx, d, "co-3"), domain.ErrInvalidCode)
	require.NoError(t, h.discounts.Redeem(ctx, nil, "co-4"))
}
