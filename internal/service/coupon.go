package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/repository"
)

var (
	ErrCouponInvalid     = errors.New("coupon not valid")
	ErrCouponNotStarted  = errors.New("coupon not yet valid")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrCouponMinPurchase = errors.New("minimum purchase not reached")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
)

// ValidateCoupon checks a coupon against a subtotal at a given instant and
// returns the discount it grants. Checks run in a fixed order and the first
// failure wins: active, start date, expiry, minimum purchase, usage limit.
func ValidateCoupon(coupon *model.Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if coupon == nil || !coupon.IsActive {
		return decimal.Zero, ErrCouponInvalid
	}
	if coupon.ValidFrom != nil && coupon.ValidFrom.After(now) {
		return decimal.Zero, ErrCouponNotStarted
	}
	if coupon.ValidUntil != nil && coupon.ValidUntil.Before(now) {
		return decimal.Zero, ErrCouponExpired
	}
	if coupon.MinPurchaseAmount != nil && subtotal.LessThan(*coupon.MinPurchaseAmount) {
		return decimal.Zero, fmt.Errorf("%w: need %s", ErrCouponMinPurchase, coupon.MinPurchaseAmount)
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return decimal.Zero, ErrCouponExhausted
	}

	switch coupon.Type {
	case model.CouponTypePercentage:
		discount := subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscountAmount != nil && discount.GreaterThan(*coupon.MaxDiscountAmount) {
			discount = *coupon.MaxDiscountAmount
		}
		return discount, nil
	case model.CouponTypeFixedAmount:
		// Deliberately not capped to the subtotal; the negative-total guard
		// at checkout is the backstop.
		return coupon.Value, nil
	default:
		return decimal.Zero, ErrCouponInvalid
	}
}

type CouponService struct {
	couponRepo repository.CouponRepository
}

func NewCouponService(couponRepo repository.CouponRepository) *CouponService {
	return &CouponService{couponRepo: couponRepo}
}

// Validate resolves a code and runs the pure validator against the subtotal.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*model.Coupon, decimal.Decimal, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("get coupon: %w", err)
	}
	discount, err := ValidateCoupon(coupon, subtotal, time.Now())
	if err != nil {
		return nil, decimal.Zero, err
	}
	return coupon, discount, nil
}
