package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadito/storefront-api/internal/model"
)

type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
}

type pgCouponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepository(pool *pgxpool.Pool) CouponRepository {
	return &pgCouponRepo{pool: pool}
}

func (r *pgCouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c := &model.Coupon{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, type, value, valid_from, valid_until, min_purchase_amount,
		        max_discount_amount, usage_limit, usage_count, is_active, created_at, updated_at
		 FROM coupons WHERE code = $1`, code,
	).Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.ValidFrom, &c.ValidUntil, &c.MinPurchaseAmount,
		&c.MaxDiscountAmount, &c.UsageLimit, &c.UsageCount, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}
