package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/repository"
)

var (
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrVariantNotFound  = errors.New("variant not found")
)

// CartIdentity names the owner of a cart: an authenticated user or an
// anonymous session token. At most one side is set.
type CartIdentity struct {
	UserID       uuid.UUID
	SessionToken string
}

func (id CartIdentity) IsZero() bool {
	return id.UserID == uuid.Nil && id.SessionToken == ""
}

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

// resolveCart finds or creates the cart for an identity. A mutating call
// with no identity mints a session token; the returned identity carries it
// so the handler can persist it in the caller's session.
func (s *CartService) resolveCart(ctx context.Context, id CartIdentity) (*model.Cart, CartIdentity, error) {
	if id.UserID != uuid.Nil {
		cart, err := s.cartRepo.GetOrCreateByUser(ctx, id.UserID)
		return cart, id, err
	}
	if id.SessionToken == "" {
		id.SessionToken = uuid.NewString()
	}
	cart, err := s.cartRepo.GetOrCreateBySession(ctx, id.SessionToken)
	return cart, id, err
}

// GetCart returns the cart with its items. An identity that has never
// touched a cart gets an empty view without creating rows.
func (s *CartService) GetCart(ctx context.Context, id CartIdentity) (*model.Cart, error) {
	if id.IsZero() {
		return &model.Cart{}, nil
	}
	var cart *model.Cart
	var err error
	if id.UserID != uuid.Nil {
		cart, err = s.cartRepo.GetByUser(ctx, id.UserID)
	} else {
		cart, err = s.cartRepo.GetBySession(ctx, id.SessionToken)
	}
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &model.Cart{}, nil
	}
	return s.cartRepo.GetWithItems(ctx, cart.ID)
}

// AddItem puts quantity units of a product (or one of its variants) in the
// cart at the product's current price. Re-adding an existing line bumps its
// quantity while keeping the originally captured unit price.
func (s *CartService) AddItem(ctx context.Context, id CartIdentity, productID uuid.UUID, variantID *uuid.UUID, quantity int) (CartIdentity, error) {
	if quantity < 1 {
		return id, ErrInvalidQuantity
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return id, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return id, ErrProductNotFound
	}

	if variantID != nil {
		variant, err := s.productRepo.GetVariant(ctx, *variantID)
		if err != nil {
			return id, fmt.Errorf("get variant: %w", err)
		}
		if variant == nil || variant.ProductID != productID {
			return id, ErrVariantNotFound
		}
	}

	cart, id, err := s.resolveCart(ctx, id)
	if err != nil {
		return id, fmt.Errorf("get or create cart: %w", err)
	}

	err = s.cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
		UnitPrice: product.CurrentPrice(),
	})
	if err != nil {
		return id, err
	}
	return id, nil
}

// UpdateItem sets a line's quantity; zero or less removes the line.
func (s *CartService) UpdateItem(ctx context.Context, id CartIdentity, itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id, itemID)
	}

	if err := s.checkOwnership(ctx, id, itemID); err != nil {
		return err
	}
	return s.cartRepo.SetItemQuantity(ctx, itemID, quantity)
}

// RemoveItem deletes a line; removing an absent line is not an error.
func (s *CartService) RemoveItem(ctx context.Context, id CartIdentity, itemID uuid.UUID) error {
	if err := s.checkOwnership(ctx, id, itemID); err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return nil
		}
		return err
	}
	return s.cartRepo.DeleteItem(ctx, itemID)
}

// Clear deletes every line of the identity's cart, leaving the cart row.
func (s *CartService) Clear(ctx context.Context, id CartIdentity) error {
	cart, err := s.GetCart(ctx, id)
	if err != nil {
		return err
	}
	if cart.ID == uuid.Nil {
		return nil
	}
	return s.cartRepo.Clear(ctx, cart.ID)
}

func (s *CartService) checkOwnership(ctx context.Context, id CartIdentity, itemID uuid.UUID) error {
	cart, err := s.GetCart(ctx, id)
	if err != nil {
		return err
	}
	for _, item := range cart.Items {
		if item.ID == itemID {
			return nil
		}
	}
	return ErrCartItemNotFound
}

// MergeOnLogin folds the anonymous cart behind sessionToken into the user's
// cart: matching (product, variant) lines add their quantities, the rest
// move over, and the anonymous cart is deleted. Safe to call again once the
// anonymous cart is gone.
func (s *CartService) MergeOnLogin(ctx context.Context, sessionToken string, userID uuid.UUID) error {
	if sessionToken == "" {
		return nil
	}

	guestCart, err := s.cartRepo.GetBySession(ctx, sessionToken)
	if err != nil {
		return fmt.Errorf("get guest cart: %w", err)
	}
	if guestCart == nil {
		return nil
	}

	userCart, err := s.cartRepo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get or create user cart: %w", err)
	}

	return s.cartRepo.Merge(ctx, guestCart.ID, userCart.ID)
}
