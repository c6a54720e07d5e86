package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/storefront-api/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email: email, Password: "hashed",
		FullName: "Ana López", Phone: "+50255551234", Role: "cliente",
	}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), user))
	return user
}

func seedProduct(t *testing.T, slug, price string) *model.Product {
	t.Helper()
	product := &model.Product{
		Name: "Camiseta", Slug: slug, SKU: "CAM-001",
		BasePrice: dec(price), Status: model.ProductStatusPublished,
	}
	require.NoError(t, NewProductRepository(testPool).Create(context.Background(), product))
	return product
}

func seedVariant(t *testing.T, productID uuid.UUID, stock int) *model.ProductVariant {
	t.Helper()
	variant := &model.ProductVariant{
		ProductID: productID, Name: "Talla M", SKU: "CAM-001-M", Stock: stock,
	}
	require.NoError(t, NewProductRepository(testPool).CreateVariant(context.Background(), variant))
	return variant
}

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "ana@example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Ana López", found.FullName)

	missing, err := repo.GetByEmail(ctx, "nadie@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductRepo_CRUD(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := seedProduct(t, "camiseta", "99.00")
	assert.NotEqual(t, uuid.Nil, product.ID)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Camiseta", found.Name)

	bySlug, err := repo.GetBySlug(ctx, "camiseta")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, product.ID, bySlug.ID)

	product.Name = "Camiseta Premium"
	sale := dec("79.00")
	product.SalePrice = &sale
	require.NoError(t, repo.Update(ctx, product))

	found, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Camiseta Premium", found.Name)
	require.NotNil(t, found.SalePrice)
	assert.True(t, found.SalePrice.Equal(sale))

	require.NoError(t, repo.Delete(ctx, product.ID))
	found, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestProductRepo_Variants(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := seedProduct(t, "camiseta", "99.00")
	variant := seedVariant(t, product.ID, 10)

	found, err := repo.GetVariant(ctx, variant.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 10, found.Stock)

	withVariants, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, withVariants.Variants, 1)
	assert.Equal(t, variant.ID, withVariants.Variants[0].ID)
}

func TestCartRepo_UpsertKeepsFirstPrice(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "cart@example.com")
	product := seedProduct(t, "camiseta", "50.00")

	// a plain lookup does not create the cart
	none, err := cartRepo.GetByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Nil(t, none)

	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)

	found, err := cartRepo.GetByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, cart.ID, found.ID)

	// second call returns the same cart
	again, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)

	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, Quantity: 1, UnitPrice: dec("50.00"),
	}))

	// the price changed between adds; the line keeps the captured one
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, Quantity: 2, UnitPrice: dec("30.00"),
	}))

	withItems, err := cartRepo.GetWithItems(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, withItems.Items, 1)
	assert.Equal(t, 3, withItems.Items[0].Quantity)
	assert.True(t, withItems.Items[0].UnitPrice.Equal(dec("50.00")), "got %s", withItems.Items[0].UnitPrice)
}

func TestCartRepo_VariantsAreSeparateLines(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "cart@example.com")
	product := seedProduct(t, "camiseta", "50.00")
	variant := seedVariant(t, product.ID, 10)

	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)

	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, Quantity: 1, UnitPrice: dec("50.00"),
	}))
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, VariantID: &variant.ID, Quantity: 1, UnitPrice: dec("50.00"),
	}))

	withItems, err := cartRepo.GetWithItems(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, withItems.Items, 2)
}

func TestCartRepo_Merge(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "merge@example.com")
	shared := seedProduct(t, "camiseta", "50.00")
	guestOnly := seedProduct(t, "gorra", "20.00")

	userCart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)
	guestCart, err := cartRepo.GetOrCreateBySession(ctx, uuid.NewString())
	require.NoError(t, err)

	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: userCart.ID, ProductID: shared.ID, Quantity: 1, UnitPrice: dec("50.00"),
	}))
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: guestCart.ID, ProductID: shared.ID, Quantity: 2, UnitPrice: dec("45.00"),
	}))
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: guestCart.ID, ProductID: guestOnly.ID, Quantity: 1, UnitPrice: dec("20.00"),
	}))

	require.NoError(t, cartRepo.Merge(ctx, guestCart.ID, userCart.ID))

	merged, err := cartRepo.GetWithItems(ctx, userCart.ID)
	require.NoError(t, err)
	require.Len(t, merged.Items, 2)

	byProduct := map[uuid.UUID]model.CartItem{}
	for _, item := range merged.Items {
		byProduct[item.ProductID] = item
	}
	assert.Equal(t, 3, byProduct[shared.ID].Quantity)
	assert.True(t, byProduct[shared.ID].UnitPrice.Equal(dec("50.00")), "merged line keeps the destination price")
	assert.Equal(t, 1, byProduct[guestOnly.ID].Quantity)

	gone, err := cartRepo.GetWithItems(ctx, guestCart.ID)
	require.NoError(t, err)
	assert.Nil(t, gone, "guest cart row is deleted")
}

func placedOrder(user *model.User, product *model.Product, variant *model.ProductVariant, quantity int) *model.Order {
	item := model.OrderItem{
		ProductID: product.ID, SKU: product.SKU, ProductName: product.Name,
		Quantity: quantity, UnitPrice: product.BasePrice,
		Subtotal: product.BasePrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
	if variant != nil {
		item.VariantID = &variant.ID
		item.SKU = variant.SKU
		item.VariantName = variant.Name
	}
	subtotal := item.Subtotal
	total := subtotal.Add(dec("25.00"))
	return &model.Order{
		OrderNumber: "ORD-20260901-" + uuid.NewString()[:8],
		UserID:      &user.ID,
		Status:      model.OrderStatusNew,
		CustomerName: "Ana López", CustomerEmail: user.Email, CustomerPhone: user.Phone,
		ShippingAddressLine1: "4a calle 5-20 zona 1", ShippingCity: "Guatemala",
		ShippingCountry: "GT", ShippingMethod: "delivery",
		Subtotal: subtotal, TaxAmount: decimal.Zero, ShippingAmount: dec("25.00"),
		DiscountAmount: decimal.Zero, Total: total,
		Items: []model.OrderItem{item},
		Payment: &model.Payment{
			Method: "sandbox", Amount: total, Currency: "GTQ", Status: model.PaymentStatusPending,
		},
	}
}

func TestOrderRepo_PlaceOrder(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	productRepo := NewProductRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "order@example.com")
	product := seedProduct(t, "camiseta", "50.00")
	variant := seedVariant(t, product.ID, 10)

	coupon := &model.Coupon{ID: uuid.New(), Code: "SAVE10", Type: model.CouponTypePercentage, Value: dec("10"), IsActive: true}
	_, err := testPool.Exec(ctx,
		`INSERT INTO coupons (id, code, type, value, is_active) VALUES ($1, $2, $3, $4, $5)`,
		coupon.ID, coupon.Code, coupon.Type, coupon.Value, coupon.IsActive,
	)
	require.NoError(t, err)

	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, VariantID: &variant.ID, Quantity: 2, UnitPrice: dec("50.00"),
	}))

	order := placedOrder(user, product, variant, 2)
	err = orderRepo.PlaceOrder(ctx, order, PlaceOrderOptions{
		CartID: cart.ID, CouponID: &coupon.ID, AllowBackorder: false,
	})
	require.NoError(t, err)

	// stock decremented and the movement recorded
	v, err := productRepo.GetVariant(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, v.Stock)

	movements, err := orderRepo.ListMovements(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, -2, movements[0].Quantity)
	assert.Equal(t, 10, movements[0].PreviousStock)
	assert.Equal(t, 8, movements[0].NewStock)
	assert.Equal(t, "sale", movements[0].MovementType)

	// coupon usage incremented
	var usage int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT usage_count FROM coupons WHERE id = $1`, coupon.ID).Scan(&usage))
	assert.Equal(t, 1, usage)

	// cart emptied
	emptied, err := cartRepo.GetWithItems(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, emptied.Items)

	// readable back with items and payment
	found, err := orderRepo.GetByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 2, found.Items[0].Quantity)
	require.NotNil(t, found.Payment)
	assert.Equal(t, model.PaymentStatusPending, found.Payment.Status)
}

func TestOrderRepo_PlaceOrder_DuplicateNumber(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "dup@example.com")
	product := seedProduct(t, "camiseta", "50.00")
	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)

	first := placedOrder(user, product, nil, 1)
	require.NoError(t, orderRepo.PlaceOrder(ctx, first, PlaceOrderOptions{CartID: cart.ID}))

	second := placedOrder(user, product, nil, 1)
	second.OrderNumber = first.OrderNumber
	err = orderRepo.PlaceOrder(ctx, second, PlaceOrderOptions{CartID: cart.ID})
	assert.ErrorIs(t, err, ErrOrderNumberTaken)
}

func TestOrderRepo_PlaceOrder_InsufficientStockRollsBack(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	productRepo := NewProductRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "short@example.com")
	product := seedProduct(t, "camiseta", "50.00")
	variant := seedVariant(t, product.ID, 1)

	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: product.ID, VariantID: &variant.ID, Quantity: 3, UnitPrice: dec("50.00"),
	}))

	order := placedOrder(user, product, variant, 3)
	err = orderRepo.PlaceOrder(ctx, order, PlaceOrderOptions{CartID: cart.ID, AllowBackorder: false})
	require.ErrorIs(t, err, model.ErrInsufficientStock)

	// nothing committed: no order, cart intact, stock untouched
	found, err := orderRepo.GetByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Nil(t, found)

	intact, err := cartRepo.GetWithItems(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, intact.Items, 1)

	v, err := productRepo.GetVariant(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Stock)
}

func TestOrderRepo_PlaceOrder_BackorderClampsAtZero(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	productRepo := NewProductRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "backorder@example.com")
	product := seedProduct(t, "camiseta", "50.00")
	variant := seedVariant(t, product.ID, 1)

	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)

	order := placedOrder(user, product, variant, 3)
	err = orderRepo.PlaceOrder(ctx, order, PlaceOrderOptions{CartID: cart.ID, AllowBackorder: true})
	require.NoError(t, err)

	v, err := productRepo.GetVariant(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stock)

	movements, err := orderRepo.ListMovements(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, -3, movements[0].Quantity, "the ledger records the real delta")
	assert.Equal(t, 0, movements[0].NewStock)
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	cleanupAll(t)

	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	ctx := context.Background()

	user := seedUser(t, "status@example.com")
	product := seedProduct(t, "camiseta", "50.00")
	cart, err := cartRepo.GetOrCreateByUser(ctx, user.ID)
	require.NoError(t, err)

	order := placedOrder(user, product, nil, 1)
	require.NoError(t, orderRepo.PlaceOrder(ctx, order, PlaceOrderOptions{CartID: cart.ID}))

	// skipping a step is rejected
	_, err = orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusShipped, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	paid, err := orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusPaid, "transferencia recibida")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "transferencia recibida", paid.AdminNotes)
	require.NotNil(t, paid.Payment)
	assert.Equal(t, model.PaymentStatusCompleted, paid.Payment.Status)
	firstPaidAt := *paid.PaidAt

	processing, err := orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, "")
	require.NoError(t, err)
	require.NotNil(t, processing.PaidAt)
	assert.True(t, processing.PaidAt.Equal(firstPaidAt), "paid_at stamped once")

	// going back is rejected
	_, err = orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusPaid, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, "cliente desistió")
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)

	// terminal orders are frozen
	_, err = orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusShipped, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = orderRepo.UpdateStatus(ctx, uuid.New(), model.OrderStatusPaid, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
