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

var (
	ErrOrderNumberTaken  = errors.New("order number already taken")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOrderNotFound     = errors.New("order not found")
)

type PlaceOrderOptions struct {
	// CartID is cleared as part of the checkout transaction.
	CartID uuid.UUID
	// CouponID, when set, has its usage count incremented.
	CouponID *uuid.UUID
	// AllowBackorder selects the oversell policy for stock decrements.
	AllowBackorder bool
}

type OrderRepository interface {
	// PlaceOrder persists the order header, item snapshots, inventory
	// adjustments, payment record, coupon usage, and cart clear as one
	// transaction. Either everything is visible afterwards or nothing is.
	PlaceOrder(ctx context.Context, order *model.Order, opts PlaceOrderOptions) error

	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error)
	List(ctx context.Context, status model.OrderStatus, limit, offset int) ([]model.Order, error)

	// UpdateStatus validates the transition against the current row under
	// lock, stamps the matching timestamp once, and completes the payment
	// when the order moves to pagado.
	UpdateStatus(ctx context.Context, id uuid.UUID, next model.OrderStatus, adminNotes string) (*model.Order, error)

	ListMovements(ctx context.Context, referenceID uuid.UUID) ([]model.InventoryMovement, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) PlaceOrder(ctx context.Context, order *model.Order, opts PlaceOrderOptions) error {
	order.ID = uuid.New()
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (id, order_number, user_id, status,
			    customer_name, customer_email, customer_phone,
			    shipping_address_line1, shipping_address_line2, shipping_city, shipping_state,
			    shipping_municipality, shipping_postal_code, shipping_country, shipping_method, shipping_notes,
			    subtotal, tax_amount, shipping_amount, discount_amount, total,
			    coupon_code, customer_notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			    $17, $18, $19, $20, $21, $22, $23, NOW(), NOW())
			 RETURNING created_at, updated_at`,
			order.ID, order.OrderNumber, order.UserID, order.Status,
			order.CustomerName, order.CustomerEmail, order.CustomerPhone,
			order.ShippingAddressLine1, order.ShippingAddressLine2, order.ShippingCity, order.ShippingState,
			order.ShippingMunicipality, order.ShippingPostalCode, order.ShippingCountry, order.ShippingMethod, order.ShippingNotes,
			order.Subtotal, order.TaxAmount, order.ShippingAmount, order.DiscountAmount, order.Total,
			order.CouponCode, order.CustomerNotes,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "orders_order_number_key") {
				return ErrOrderNumberTaken
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.ID = uuid.New()
			item.OrderID = order.ID
			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (id, order_id, product_id, variant_id, sku, product_name,
				    variant_name, quantity, unit_price, tax_rate, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`,
				item.ID, item.OrderID, item.ProductID, item.VariantID, item.SKU, item.ProductName,
				item.VariantName, item.Quantity, item.UnitPrice, item.TaxRate, item.Subtotal,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}

			if item.VariantID == nil {
				continue
			}

			var previousStock int
			err = tx.QueryRow(ctx,
				`SELECT stock FROM product_variants WHERE id = $1 FOR UPDATE`, *item.VariantID,
			).Scan(&previousStock)
			if err != nil {
				return fmt.Errorf("lock variant %s: %w", *item.VariantID, err)
			}

			newStock, err := model.NextStock(previousStock, item.Quantity, opts.AllowBackorder)
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx,
				`UPDATE product_variants SET stock = $2, updated_at = NOW() WHERE id = $1`,
				*item.VariantID, newStock,
			)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO inventory_movements (id, product_id, variant_id, movement_type, quantity,
				    previous_stock, new_stock, reference_type, reference_id, created_at)
				 VALUES ($1, $2, $3, 'sale', $4, $5, $6, 'order', $7, NOW())`,
				uuid.New(), item.ProductID, *item.VariantID, -item.Quantity, previousStock, newStock, order.ID,
			)
			if err != nil {
				return fmt.Errorf("record inventory movement: %w", err)
			}
		}

		if opts.CouponID != nil {
			_, err = tx.Exec(ctx,
				`UPDATE coupons SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`,
				*opts.CouponID,
			)
			if err != nil {
				return fmt.Errorf("increment coupon usage: %w", err)
			}
		}

		if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, opts.CartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		p := order.Payment
		p.ID = uuid.New()
		p.OrderID = order.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO payments (id, order_id, payment_method, amount, currency, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`,
			p.ID, p.OrderID, p.Method, p.Amount, p.Currency, p.Status,
		).Scan(&p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

const orderColumns = `id, order_number, user_id, status,
	customer_name, customer_email, customer_phone,
	shipping_address_line1, shipping_address_line2, shipping_city, shipping_state,
	shipping_municipality, shipping_postal_code, shipping_country, shipping_method, shipping_notes,
	subtotal, tax_amount, shipping_amount, discount_amount, total,
	coupon_code, customer_notes, admin_notes,
	paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.ShippingAddressLine1, &o.ShippingAddressLine2, &o.ShippingCity, &o.ShippingState,
		&o.ShippingMunicipality, &o.ShippingPostalCode, &o.ShippingCountry, &o.ShippingMethod, &o.ShippingNotes,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.Total,
		&o.CouponCode, &o.CustomerNotes, &o.AdminNotes,
		&o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *pgOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	return r.getBy(ctx, `order_number = $1`, orderNumber)
}

func (r *pgOrderRepo) getBy(ctx context.Context, where string, arg any) (*model.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, variant_id, sku, product_name, variant_name,
		        quantity, unit_price, tax_rate, subtotal
		 FROM order_items WHERE order_id = $1`, order.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID, &item.SKU,
			&item.ProductName, &item.VariantName, &item.Quantity, &item.UnitPrice, &item.TaxRate, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	rows.Close()

	p := &model.Payment{}
	err = r.pool.QueryRow(ctx,
		`SELECT id, order_id, payment_method, amount, currency, status, processed_at, created_at
		 FROM payments WHERE order_id = $1`, order.ID,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Currency, &p.Status, &p.ProcessedAt, &p.CreatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get payment: %w", err)
		}
	} else {
		order.Payment = p
	}

	return order, nil
}

func (r *pgOrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
}

func (r *pgOrderRepo) List(ctx context.Context, status model.OrderStatus, limit, offset int) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(status), limit, offset)
}

func (r *pgOrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, next model.OrderStatus, adminNotes string) (*model.Order, error) {
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current model.OrderStatus
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !current.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
		}

		// COALESCE keeps an already stamped timestamp, so re-running a
		// transition into the same state is a no-op on the stamp.
		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2,
			    admin_notes = CASE WHEN $3 <> '' THEN $3 ELSE admin_notes END,
			    paid_at      = CASE WHEN $2 = 'pagado'    THEN COALESCE(paid_at, NOW())      ELSE paid_at END,
			    shipped_at   = CASE WHEN $2 = 'enviado'   THEN COALESCE(shipped_at, NOW())   ELSE shipped_at END,
			    delivered_at = CASE WHEN $2 = 'entregado' THEN COALESCE(delivered_at, NOW()) ELSE delivered_at END,
			    cancelled_at = CASE WHEN $2 = 'cancelado' THEN COALESCE(cancelled_at, NOW()) ELSE cancelled_at END,
			    updated_at = NOW()
			 WHERE id = $1`,
			id, next, adminNotes,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if next == model.OrderStatusPaid {
			_, err = tx.Exec(ctx,
				`UPDATE payments SET status = 'completed', processed_at = COALESCE(processed_at, NOW())
				 WHERE order_id = $1`, id,
			)
			if err != nil {
				return fmt.Errorf("complete payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *pgOrderRepo) ListMovements(ctx context.Context, referenceID uuid.UUID) ([]model.InventoryMovement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, variant_id, movement_type, quantity, previous_stock, new_stock,
		        reference_type, reference_id, created_at
		 FROM inventory_movements WHERE reference_id = $1 ORDER BY created_at`, referenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory movements: %w", err)
	}
	defer rows.Close()

	var movements []model.InventoryMovement
	for rows.Next() {
		var m model.InventoryMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.VariantID, &m.MovementType, &m.Quantity,
			&m.PreviousStock, &m.NewStock, &m.ReferenceType, &m.ReferenceID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}
