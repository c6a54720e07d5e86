package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/middleware"
	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/service"
)

type OrderHandler struct {
	orderSvc *service.OrderService
	cartSvc  *service.CartService
	couponSvc *service.CouponService
}

func NewOrderHandler(orderSvc *service.OrderService, cartSvc *service.CartService, couponSvc *service.CouponService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, cartSvc: cartSvc, couponSvc: couponSvc}
}

// ApplyCoupon validates a code against the caller's current cart subtotal.
// Used at review time; the checkout re-validates on confirm.
func (h *OrderHandler) ApplyCoupon(c *gin.Context) {
	var req dto.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart, err := h.cartSvc.GetCart(c.Request.Context(), cartIdentity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	coupon, discount, err := h.couponSvc.Validate(c.Request.Context(), req.Code, cart.Total())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": couponRejectionMessage(err)})
		return
	}
	c.JSON(http.StatusOK, dto.CouponResponse{Code: coupon.Code, Discount: discount})
}

func couponRejectionMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrCouponNotStarted):
		return "coupon is not valid yet"
	case errors.Is(err, service.ErrCouponExpired):
		return "coupon has expired"
	case errors.Is(err, service.ErrCouponMinPurchase):
		return "cart subtotal is below the coupon minimum"
	case errors.Is(err, service.ErrCouponExhausted):
		return "coupon usage limit reached"
	default:
		return "coupon is not valid"
	}
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderSvc.CreateOrder(c.Request.Context(), cartIdentity(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		case errors.Is(err, service.ErrNegativeTotal):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "order total cannot be negative"})
		case errors.Is(err, model.ErrInsufficientStock):
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orders, err := h.orderSvc.ListByUser(c.Request.Context(), middleware.GetUserID(c), req.Page, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}

	order, err := h.orderSvc.GetByID(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, service.ErrOrderAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// GetByNumber backs the post-checkout confirmation view, guest orders
// included.
func (h *OrderHandler) GetByNumber(c *gin.Context) {
	order, err := h.orderSvc.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orders, err := h.orderSvc.ListAll(c.Request.Context(), model.OrderStatus(req.Status), req.Page, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return
	}
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orderSvc.UpdateStatus(c.Request.Context(), orderID, model.OrderStatus(req.Status), req.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidStatus):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	var items []dto.OrderItemResponse
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			SKU:         item.SKU,
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		})
	}

	var payment *dto.PaymentResponse
	if order.Payment != nil {
		payment = &dto.PaymentResponse{
			Method:      order.Payment.Method,
			Amount:      order.Payment.Amount,
			Currency:    order.Payment.Currency,
			Status:      string(order.Payment.Status),
			ProcessedAt: order.Payment.ProcessedAt,
		}
	}

	return dto.OrderResponse{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		CustomerPhone:  order.CustomerPhone,
		Subtotal:       order.Subtotal,
		TaxAmount:      order.TaxAmount,
		ShippingAmount: order.ShippingAmount,
		DiscountAmount: order.DiscountAmount,
		Total:          order.Total,
		CouponCode:     order.CouponCode,
		Items:          items,
		Payment:        payment,
		PaidAt:         order.PaidAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CancelledAt:    order.CancelledAt,
		CreatedAt:      order.CreatedAt,
	}
}

func toOrderListResponse(orders []model.Order) dto.OrderListResponse {
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	return dto.OrderListResponse{Orders: items, Total: len(items)}
}
