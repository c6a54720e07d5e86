package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	FullName  string
	Phone     string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "borrador"
	ProductStatusPublished ProductStatus = "publicado"
	ProductStatusArchived  ProductStatus = "archivado"
)

type Product struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description string
	SKU         string
	BasePrice   decimal.Decimal
	SalePrice   *decimal.Decimal
	TaxRate     decimal.Decimal
	Status      ProductStatus
	IsFeatured  bool
	Variants    []ProductVariant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CurrentPrice is the price charged at add-to-cart time: the sale price
// when one is set, the base price otherwise.
func (p *Product) CurrentPrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.BasePrice
}

type ProductVariant struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	SKU             string
	Stock           int
	PriceAdjustment decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Cart is owned by exactly one identity: an authenticated user or an
// anonymous session token, never both.
type Cart struct {
	ID           uuid.UUID
	UserID       *uuid.UUID
	SessionToken *string
	Items        []CartItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *Cart) Total() decimal.Decimal {
	var total decimal.Decimal
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) Count() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CouponType string

const (
	CouponTypePercentage  CouponType = "percentage"
	CouponTypeFixedAmount CouponType = "fixed_amount"
)

type Coupon struct {
	ID                uuid.UUID
	Code              string
	Type              CouponType
	Value             decimal.Decimal
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	MinPurchaseAmount *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	UsageLimit        *int
	UsageCount        int
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Order struct {
	ID          uuid.UUID
	OrderNumber string
	UserID      *uuid.UUID
	Status      OrderStatus

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	ShippingAddressLine1 string
	ShippingAddressLine2 string
	ShippingCity         string
	ShippingState        string
	ShippingMunicipality string
	ShippingPostalCode   string
	ShippingCountry      string
	ShippingMethod       string
	ShippingNotes        string

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal

	CouponCode    string
	CustomerNotes string
	AdminNotes    string

	Items   []OrderItem
	Payment *Payment

	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem snapshots the product at purchase time; later catalog edits do
// not change it.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	SKU         string
	ProductName string
	VariantName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	Subtotal    decimal.Decimal
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Method      string
	Amount      decimal.Decimal
	Currency    string
	Status      PaymentStatus
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// InventoryMovement is an append-only ledger row; quantity is signed
// (negative for sales) and previous/new stock bracket the change.
type InventoryMovement struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	VariantID     *uuid.UUID
	MovementType  string
	Quantity      int
	PreviousStock int
	NewStock      int
	ReferenceType string
	ReferenceID   uuid.UUID
	CreatedAt     time.Time
}

type OrderCreatedMessage struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
}
