package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone"`
	Role     string    `json:"role"`
}

// --- Product ---

type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Slug        string           `json:"slug" binding:"required"`
	Description string           `json:"description"`
	SKU         string           `json:"sku" binding:"required"`
	BasePrice   decimal.Decimal  `json:"base_price" binding:"required"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	TaxRate     decimal.Decimal  `json:"tax_rate"`
	Status      string           `json:"status" binding:"omitempty,oneof=borrador publicado archivado"`
	IsFeatured  bool             `json:"is_featured"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Slug        *string          `json:"slug"`
	Description *string          `json:"description"`
	SKU         *string          `json:"sku"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	Status      *string          `json:"status" binding:"omitempty,oneof=borrador publicado archivado"`
	IsFeatured  *bool            `json:"is_featured"`
}

type CreateVariantRequest struct {
	Name            string          `json:"name" binding:"required"`
	SKU             string          `json:"sku" binding:"required"`
	Stock           int             `json:"stock" binding:"min=0"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

type ListProductsRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search string `form:"search"`
	Sort   string `form:"sort,default=created_at" binding:"oneof=name base_price created_at"`
	Order  string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type VariantResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	Stock           int             `json:"stock"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
}

type ProductResponse struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	SKU         string            `json:"sku"`
	BasePrice   decimal.Decimal   `json:"base_price"`
	SalePrice   *decimal.Decimal  `json:"sale_price,omitempty"`
	TaxRate     decimal.Decimal   `json:"tax_rate"`
	Status      string            `json:"status"`
	IsFeatured  bool              `json:"is_featured"`
	Variants    []VariantResponse `json:"variants,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	// Zero removes the item.
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

type CartItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type CartResponse struct {
	ID    uuid.UUID          `json:"id"`
	Items []CartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
	Count int                `json:"count"`
}

// --- Checkout ---

type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

type CouponResponse struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

type CheckoutRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	CustomerPhone string `json:"customer_phone" binding:"required"`

	ShippingAddressLine1 string `json:"shipping_address_line1"`
	ShippingAddressLine2 string `json:"shipping_address_line2"`
	ShippingCity         string `json:"shipping_city"`
	ShippingState        string `json:"shipping_state"`
	ShippingMunicipality string `json:"shipping_municipality"`
	ShippingPostalCode   string `json:"shipping_postal_code"`
	ShippingCountry      string `json:"shipping_country"`
	ShippingMethod       string `json:"shipping_method" binding:"omitempty,oneof=delivery pickup"`
	ShippingNotes        string `json:"shipping_notes"`

	ShippingAmount *decimal.Decimal `json:"shipping_amount"`
	CouponCode     string           `json:"coupon_code"`
	CustomerNotes  string           `json:"customer_notes"`
}

// --- Order ---

type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type PaymentResponse struct {
	Method      string          `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

type OrderResponse struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	Status      model.OrderStatus `json:"status"`

	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`

	CouponCode string              `json:"coupon_code,omitempty"`
	Items      []OrderItemResponse `json:"items"`
	Payment    *PaymentResponse    `json:"payment,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

type ListOrdersRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=nuevo pagado procesando enviado entregado cancelado"`
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
}

type UpdateOrderStatusRequest struct {
	Status     string `json:"status" binding:"required,oneof=nuevo pagado procesando enviado entregado cancelado"`
	AdminNotes string `json:"admin_notes"`
}
