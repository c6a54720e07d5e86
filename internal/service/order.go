package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/mercadito/storefront-api/internal/config"
	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/repository"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrNegativeTotal     = errors.New("order total is negative")
	ErrInvalidStatus     = errors.New("invalid status transition")
)

const orderCreatedQueue = "orders.created"

type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	couponSvc   *CouponService
	amqpCh      *amqp.Channel
	cfg         config.CheckoutConfig
	log         *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	couponSvc *CouponService,
	amqpCh *amqp.Channel,
	cfg config.CheckoutConfig,
	log *slog.Logger,
) *OrderService {
	if log == nil {
		log = slog.Default()
	}
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponSvc:   couponSvc,
		amqpCh:      amqpCh,
		cfg:         cfg,
		log:         log,
	}
}

// CreateOrder turns the identity's priced cart into a persisted order. The
// subtotal comes from the prices captured when items were added, not from
// the live catalog. All writes happen in one transaction; a failure leaves
// no partial order behind.
func (s *OrderService) CreateOrder(ctx context.Context, identity CartIdentity, req dto.CheckoutRequest) (*model.Order, error) {
	cart, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := cart.Total()

	// A coupon that went invalid between review and confirm is dropped
	// silently rather than blocking the order.
	var discount decimal.Decimal
	var couponID *uuid.UUID
	couponCode := ""
	if req.CouponCode != "" {
		coupon, d, err := s.couponSvc.Validate(ctx, req.CouponCode, subtotal)
		switch {
		case err == nil:
			discount = d
			couponID = &coupon.ID
			couponCode = coupon.Code
		case isCouponRejection(err):
			// keep discount at zero
		default:
			return nil, fmt.Errorf("validate coupon: %w", err)
		}
	}

	shipping := s.resolveShipping(req)
	tax := decimal.Zero

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		return nil, ErrNegativeTotal
	}

	items, err := s.snapshotItems(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	country := req.ShippingCountry
	if country == "" {
		country = "GT"
	}
	method := req.ShippingMethod
	if method == "" {
		method = "delivery"
	}

	order := &model.Order{
		Status:               model.OrderStatusNew,
		CustomerName:         req.CustomerName,
		CustomerEmail:        req.CustomerEmail,
		CustomerPhone:        req.CustomerPhone,
		ShippingAddressLine1: req.ShippingAddressLine1,
		ShippingAddressLine2: req.ShippingAddressLine2,
		ShippingCity:         req.ShippingCity,
		ShippingState:        req.ShippingState,
		ShippingMunicipality: req.ShippingMunicipality,
		ShippingPostalCode:   req.ShippingPostalCode,
		ShippingCountry:      country,
		ShippingMethod:       method,
		ShippingNotes:        req.ShippingNotes,
		Subtotal:             subtotal,
		TaxAmount:            tax,
		ShippingAmount:       shipping,
		DiscountAmount:       discount,
		Total:                total,
		CouponCode:           couponCode,
		CustomerNotes:        req.CustomerNotes,
		Items:                items,
		Payment: &model.Payment{
			Method:   "sandbox",
			Amount:   total,
			Currency: s.cfg.Currency,
			Status:   model.PaymentStatusPending,
		},
	}
	if identity.UserID != uuid.Nil {
		uid := identity.UserID
		order.UserID = &uid
	}

	opts := repository.PlaceOrderOptions{
		CartID:         cart.ID,
		CouponID:       couponID,
		AllowBackorder: s.cfg.AllowBackorder,
	}

	// The random suffix space is large, but the order_number column is
	// unique anyway; regenerate on the rare collision.
	attempts := s.cfg.OrderNumberRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; ; attempt++ {
		order.OrderNumber = generateOrderNumber()
		err = s.orderRepo.PlaceOrder(ctx, order, opts)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrOrderNumberTaken) && attempt < attempts-1 {
			continue
		}
		return nil, fmt.Errorf("place order: %w", err)
	}

	s.publishOrderCreated(ctx, order)

	return order, nil
}

func (s *OrderService) loadCart(ctx context.Context, identity CartIdentity) (*model.Cart, error) {
	if identity.IsZero() {
		return nil, ErrEmptyCart
	}

	// Lookup only: a checkout must never create the cart it is about to
	// reject as empty.
	var cart *model.Cart
	var err error
	if identity.UserID != uuid.Nil {
		cart, err = s.cartRepo.GetByUser(ctx, identity.UserID)
	} else {
		cart, err = s.cartRepo.GetBySession(ctx, identity.SessionToken)
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return nil, ErrEmptyCart
	}
	return s.cartRepo.GetWithItems(ctx, cart.ID)
}

// snapshotItems freezes product name, sku, and variant name onto the order
// lines so later catalog edits cannot rewrite history.
func (s *OrderService) snapshotItems(ctx context.Context, cartItems []model.CartItem) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		product, err := s.productRepo.GetByID(ctx, ci.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, ci.ProductID)
		}

		item := model.OrderItem{
			ProductID:   ci.ProductID,
			VariantID:   ci.VariantID,
			SKU:         product.SKU,
			ProductName: product.Name,
			Quantity:    ci.Quantity,
			UnitPrice:   ci.UnitPrice,
			TaxRate:     product.TaxRate,
			Subtotal:    ci.UnitPrice.Mul(decimal.NewFromInt(int64(ci.Quantity))),
		}

		if ci.VariantID != nil {
			variant, err := s.productRepo.GetVariant(ctx, *ci.VariantID)
			if err != nil {
				return nil, fmt.Errorf("get variant: %w", err)
			}
			if variant == nil {
				return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, ci.VariantID)
			}
			item.SKU = variant.SKU
			item.VariantName = variant.Name
		}

		items = append(items, item)
	}
	return items, nil
}

func (s *OrderService) resolveShipping(req dto.CheckoutRequest) decimal.Decimal {
	if req.ShippingAmount != nil {
		return *req.ShippingAmount
	}
	if req.ShippingMethod == "pickup" {
		return decimal.Zero
	}
	return s.cfg.ShippingRate()
}

// publishOrderCreated feeds the merchant-notification worker. The order is
// already committed at this point, so a failed publish is logged rather
// than surfaced to the buyer.
func (s *OrderService) publishOrderCreated(ctx context.Context, order *model.Order) {
	if s.amqpCh == nil {
		return
	}
	msg, err := json.Marshal(model.OrderCreatedMessage{OrderID: order.ID, OrderNumber: order.OrderNumber})
	if err != nil {
		s.log.Warn("marshal order created event", "order_number", order.OrderNumber, "error", err)
		return
	}
	err = s.amqpCh.PublishWithContext(ctx, "", orderCreatedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.log.Warn("publish order created event", "order_number", order.OrderNumber, "error", err)
	}
}

func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix)
}

func isCouponRejection(err error) bool {
	for _, sentinel := range []error{
		ErrCouponInvalid, ErrCouponNotStarted, ErrCouponExpired, ErrCouponMinPurchase, ErrCouponExhausted,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID == nil || *order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

// GetByNumber serves the post-checkout confirmation page; order numbers are
// unguessable enough to act as the lookup capability for guest orders.
func (s *OrderService) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	order, err := s.orderRepo.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID, limit, (page-1)*limit)
}

func (s *OrderService) ListAll(ctx context.Context, status model.OrderStatus, page, limit int) ([]model.Order, error) {
	return s.orderRepo.List(ctx, status, limit, (page-1)*limit)
}

// UpdateStatus advances the admin-driven order lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, adminNotes string) (*model.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, status)
	}

	order, err := s.orderRepo.UpdateStatus(ctx, orderID, status, adminNotes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, ErrOrderNotFound
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return order, nil
}
