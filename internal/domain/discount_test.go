package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiscountCode_Apply(t *testing.T) {
	tests := []struct {
		name  string
		typ   DiscountType
		value float64
		base  int64
		want  int64
	}{
		{"ten percent", DiscountPercentage, 10, 2000, 1800},
		{"rounds half up", DiscountPercentage, 12.5, 1005, 879}, // 879.375
		{"exact half", DiscountPercentage, 50, 101, 51},         // 50.5
		{"two decimals", DiscountPercentage, 33.33, 3000, 2000}, // 2000.1
		{"zero percent", DiscountPercentage, 0, 2050, 2050},
		{"full percent", DiscountPercentage, 100, 2050, 0},
		{"fixed", DiscountFixedAmount, 500, 2000, 1500},
		{"fixed floors at zero", DiscountFixedAmount, 5000, 2000, 0},
		{"free event", DiscountFixedAmount, 100, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &DiscountCode{Type: tt.typ, Value: tt.value}
			assert.Equal(t, tt.want, d.Apply(tt.base))
		})
	}
}

func TestDiscountCode_ApplyPercentageProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5000; i++ {
		base := r.Int64N(10_000_000)
		bp := r.Int64N(10_001)
		d := &DiscountCode{Type: DiscountPercentage, Value: float64(bp) / 100}
		got := d.Apply(base)

		// Exact half-up rounding of base*(100-p)/100 in integer arithmetic.
		num := base * (10000 - bp)
		want := num / 10000
		if num%10000 >= 5000 {
			want++
		}
		if !assert.Equal(t, want, got, "base=%d bp=%d", base, bp) {
			return
		}
		assert.GreaterOrEqual(t, got, int64(0))
		assert.LessOrEqual(t, got, base)
	}
}

func TestDiscountCode_ApplyFixedProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 5000; i++ {
		base := r.Int64N(1_000_000)
		off := r.Int64N(2_000_000)
		d := &DiscountCode{Type: DiscountFixedAmount, Value: float64(off)}
		want := max(0, base-off)
		if !assert.Equal(t, want, d.Apply(base), "base=%d off=%d", base, off) {
			return
		}
	}
}

func TestDiscountCode_UsableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before, after := now.Add(-time.Hour), now.Add(time.Hour)
	limit := 2

	assert.True(t, (&DiscountCode{Active: true}).UsableAt(now))
	assert.False(t, (&DiscountCode{Active: false}).UsableAt(now))
	assert.False(t, (&DiscountCode{Active: true, UsageLimit: &limit, UsageCount: 2}).UsableAt(now))
	assert.True(t, (&DiscountCode{Active: true, UsageLimit: &limit, UsageCount: 1}).UsableAt(now))
	assert.False(t, (&DiscountCode{Active: true, ValidFrom: &after}).UsableAt(now))
	assert.False(t, (&DiscountCode{Active: true, ValidUntil: &before}).UsableAt(now))
	assert.True(t, (&DiscountCode{Active: true, ValidFrom: &before, ValidUntil: &after}).UsableAt(now))
}

func TestFailureReasonRoundTrip(t *testing.T) {
	for _, reason := range []string{ReasonDeclined, ReasonTimeout, ReasonFull, ReasonInvalidCode, ReasonAlreadyRegistered, ReasonValidation, ReasonCancelled} {
		assert.Equal(t, reason, FailureReason(ReasonError(reason)))
	}
	assert.Equal(t, ReasonValidation, FailureReason(NewValidationError("x")))
	assert.Empty(t, FailureReason(ErrStorage))
}
