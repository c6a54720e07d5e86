package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/middleware"
	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/service"
)

// guestCartCookie carries the anonymous cart session token.
const guestCartCookie = "cart_session"

const guestCartCookieMaxAge = 30 * 24 * 60 * 60

type CartHandler struct {
	svc *service.CartService
}

func NewCartHandler(svc *service.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

// cartIdentity resolves the caller's cart owner: the authenticated user
// when present, otherwise whatever guest token the cookie holds.
func cartIdentity(c *gin.Context) service.CartIdentity {
	if userID := middleware.GetUserID(c); userID != uuid.Nil {
		return service.CartIdentity{UserID: userID}
	}
	token, _ := c.Cookie(guestCartCookie)
	return service.CartIdentity{SessionToken: token}
}

// persistIdentity writes back a session token minted during a mutating
// cart operation.
func persistIdentity(c *gin.Context, before, after service.CartIdentity) {
	if after.SessionToken != "" && after.SessionToken != before.SessionToken {
		c.SetCookie(guestCartCookie, after.SessionToken, guestCartCookieMaxAge, "/", "", false, true)
	}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.svc.GetCart(c.Request.Context(), cartIdentity(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toCartResponse(cart))
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := cartIdentity(c)
	after, err := h.svc.AddItem(c.Request.Context(), identity, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, service.ErrVariantNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		case errors.Is(err, service.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	persistIdentity(c, identity, after)
	c.JSON(http.StatusCreated, gin.H{"message": "item added"})
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.UpdateItem(c.Request.Context(), cartIdentity(c), itemID, *req.Quantity); err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item updated"})
}

func (h *CartHandler) DeleteItem(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.svc.RemoveItem(c.Request.Context(), cartIdentity(c), itemID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context(), cartIdentity(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func toCartResponse(cart *model.Cart) dto.CartResponse {
	items := make([]dto.CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, dto.CartItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return dto.CartResponse{ID: cart.ID, Items: items, Total: cart.Total(), Count: cart.Count()}
}
