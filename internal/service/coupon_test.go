package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/storefront-api/internal/model"
)

type mockCouponRepo struct {
	coupons map[string]*model.Coupon
}

func newMockCouponRepo() *mockCouponRepo {
	return &mockCouponRepo{coupons: make(map[string]*model.Coupon)}
}

func (m *mockCouponRepo) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	return m.coupons[code], nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func activeCoupon() *model.Coupon {
	return &model.Coupon{
		ID:       uuid.New(),
		Code:     "SAVE10",
		Type:     model.CouponTypePercentage,
		Value:    dec("10"),
		IsActive: true,
	}
}

func TestValidateCoupon_Percentage(t *testing.T) {
	discount, err := ValidateCoupon(activeCoupon(), dec("150.00"), time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(dec("15")), "got %s", discount)
}

func TestValidateCoupon_PercentageCapped(t *testing.T) {
	c := activeCoupon()
	c.MaxDiscountAmount = decPtr("15.00")

	// 10% of 200 is 20, capped at 15
	discount, err := ValidateCoupon(c, dec("200.00"), time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(dec("15.00")), "got %s", discount)
}

func TestValidateCoupon_FixedAmountNotCapped(t *testing.T) {
	c := activeCoupon()
	c.Type = model.CouponTypeFixedAmount
	c.Value = dec("50.00")

	// fixed discounts may exceed the subtotal; checkout guards the total
	discount, err := ValidateCoupon(c, dec("30.00"), time.Now())
	require.NoError(t, err)
	assert.True(t, discount.Equal(dec("50.00")), "got %s", discount)
}

func TestValidateCoupon_Rejections(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		mutate   func(*model.Coupon)
		subtotal decimal.Decimal
		wantErr  error
	}{
		{
			name:     "inactive",
			mutate:   func(c *model.Coupon) { c.IsActive = false },
			subtotal: dec("100"),
			wantErr:  ErrCouponInvalid,
		},
		{
			name:     "not started",
			mutate:   func(c *model.Coupon) { c.ValidFrom = timePtr(now.Add(time.Hour)) },
			subtotal: dec("100"),
			wantErr:  ErrCouponNotStarted,
		},
		{
			name:     "expired",
			mutate:   func(c *model.Coupon) { c.ValidUntil = timePtr(now.Add(-time.Hour)) },
			subtotal: dec("100"),
			wantErr:  ErrCouponExpired,
		},
		{
			name:     "below minimum purchase",
			mutate:   func(c *model.Coupon) { c.MinPurchaseAmount = decPtr("150.00") },
			subtotal: dec("100"),
			wantErr:  ErrCouponMinPurchase,
		},
		{
			name: "usage limit reached",
			mutate: func(c *model.Coupon) {
				c.UsageLimit = intPtr(5)
				c.UsageCount = 5
			},
			subtotal: dec("100"),
			wantErr:  ErrCouponExhausted,
		},
		{
			name:     "unknown type",
			mutate:   func(c *model.Coupon) { c.Type = "bogo" },
			subtotal: dec("100"),
			wantErr:  ErrCouponInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCoupon()
			tt.mutate(c)
			discount, err := ValidateCoupon(c, tt.subtotal, now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, discount.IsZero())
		})
	}
}

func TestValidateCoupon_Nil(t *testing.T) {
	_, err := ValidateCoupon(nil, dec("100"), time.Now())
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

// An inactive coupon carrying a future start date reports inactive, not
// not-started: checks run in a fixed order.
func TestValidateCoupon_CheckOrder(t *testing.T) {
	c := activeCoupon()
	c.IsActive = false
	c.ValidFrom = timePtr(time.Now().Add(time.Hour))
	_, err := ValidateCoupon(c, dec("100"), time.Now())
	assert.ErrorIs(t, err, ErrCouponInvalid)
}

func TestCouponService_Validate_NormalizesCode(t *testing.T) {
	repo := newMockCouponRepo()
	c := activeCoupon()
	repo.coupons[c.Code] = c
	svc := NewCouponService(repo)

	coupon, discount, err := svc.Validate(context.Background(), "  save10 ", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, c.ID, coupon.ID)
	assert.True(t, discount.Equal(dec("10")))
}

func TestCouponService_Validate_UnknownCode(t *testing.T) {
	svc := NewCouponService(newMockCouponRepo())
	_, _, err := svc.Validate(context.Background(), "NOPE", dec("100"))
	assert.ErrorIs(t, err, ErrCouponInvalid)
}
