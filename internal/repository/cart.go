package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercadito/storefront-api/internal/model"
)

type CartRepository interface {
	GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetOrCreateBySession(ctx context.Context, token string) (*model.Cart, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	GetBySession(ctx context.Context, token string) (*model.Cart, error)
	GetWithItems(ctx context.Context, cartID uuid.UUID) (*model.Cart, error)

	UpsertItem(ctx context.Context, item *model.CartItem) error
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error

	Merge(ctx context.Context, fromCartID, toCartID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

// nilVariant stands in for a missing variant_id so one unique index covers
// both variant and variant-less lines.
const nilVariant = "'00000000-0000-0000-0000-000000000000'::uuid"

const cartItemConflict = `ON CONFLICT (cart_id, product_id, COALESCE(variant_id, ` + nilVariant + `))`

func (r *pgCartRepo) GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.getOrCreate(ctx, `user_id = $1`, `(id, user_id, created_at, updated_at)`, userID)
}

func (r *pgCartRepo) GetOrCreateBySession(ctx context.Context, token string) (*model.Cart, error) {
	return r.getOrCreate(ctx, `session_token = $1`, `(id, session_token, created_at, updated_at)`, token)
}

func (r *pgCartRepo) getOrCreate(ctx context.Context, where, insertCols string, owner any) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, session_token, created_at, updated_at FROM carts WHERE `+where, owner,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionToken, &cart.CreatedAt, &cart.UpdatedAt)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart.ID = uuid.New()
	err = r.pool.QueryRow(ctx,
		`INSERT INTO carts `+insertCols+` VALUES ($1, $2, NOW(), NOW()) RETURNING user_id, session_token, created_at, updated_at`,
		cart.ID, owner,
	).Scan(&cart.UserID, &cart.SessionToken, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

func (r *pgCartRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	return r.getBy(ctx, `user_id = $1`, userID)
}

func (r *pgCartRepo) GetBySession(ctx context.Context, token string) (*model.Cart, error) {
	return r.getBy(ctx, `session_token = $1`, token)
}

func (r *pgCartRepo) getBy(ctx context.Context, where string, owner any) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, session_token, created_at, updated_at FROM carts WHERE `+where, owner,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionToken, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (r *pgCartRepo) GetWithItems(ctx context.Context, cartID uuid.UUID) (*model.Cart, error) {
	cart := &model.Cart{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, session_token, created_at, updated_at FROM carts WHERE id = $1`, cartID,
	).Scan(&cart.ID, &cart.UserID, &cart.SessionToken, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, cart_id, product_id, variant_id, quantity, unit_price, created_at, updated_at
		 FROM cart_items WHERE cart_id = $1`, cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID,
			&item.Quantity, &item.UnitPrice, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

// UpsertItem inserts the line or, when the (product, variant) pair already
// exists in the cart, adds to its quantity. The conflict path deliberately
// ignores the incoming unit_price so the price captured at first add sticks.
func (r *pgCartRepo) UpsertItem(ctx context.Context, item *model.CartItem) error {
	item.ID = uuid.New()
	query := `INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			  ` + cartItemConflict + ` DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
			  RETURNING id, quantity, unit_price, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		item.ID, item.CartID, item.ProductID, item.VariantID, item.Quantity, item.UnitPrice,
	).Scan(&item.ID, &item.Quantity, &item.UnitPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1`,
		itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (r *pgCartRepo) Clear(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Merge folds the items of fromCartID into toCartID and deletes the source
// cart. Matching (product, variant) lines have their quantities summed and
// keep the destination cart's unit price; the rest move over as-is.
func (r *pgCartRepo) Merge(ctx context.Context, fromCartID, toCartID uuid.UUID) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE cart_items AS dst
			 SET quantity = dst.quantity + src.quantity, updated_at = NOW()
			 FROM cart_items AS src
			 WHERE src.cart_id = $1 AND dst.cart_id = $2
			   AND dst.product_id = src.product_id
			   AND COALESCE(dst.variant_id, `+nilVariant+`) = COALESCE(src.variant_id, `+nilVariant+`)`,
			fromCartID, toCartID,
		)
		if err != nil {
			return fmt.Errorf("merge matching items: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price, created_at, updated_at)
			 SELECT gen_random_uuid(), $2, src.product_id, src.variant_id, src.quantity, src.unit_price, NOW(), NOW()
			 FROM cart_items AS src
			 WHERE src.cart_id = $1
			 `+cartItemConflict+` DO NOTHING`,
			fromCartID, toCartID,
		)
		if err != nil {
			return fmt.Errorf("move remaining items: %w", err)
		}

		if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, fromCartID); err != nil {
			return fmt.Errorf("delete merged items: %w", err)
		}
		if _, err = tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, fromCartID); err != nil {
			return fmt.Errorf("delete merged cart: %w", err)
		}
		return nil
	})
}
