package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/repository"
)

var ErrProductNotFound = errors.New("product not found")

const productCacheTTL = 60 * time.Second

// ProductService is the catalog: admin CRUD plus the price and variant
// lookups the cart and checkout consume.
type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient}
}

// GetPrice resolves the price charged when a product is added to a cart:
// the sale price when set, the base price otherwise.
func (s *ProductService) GetPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return decimal.Zero, ErrProductNotFound
	}
	return product.CurrentPrice(), nil
}

func (s *ProductService) GetVariant(ctx context.Context, variantID uuid.UUID) (*model.ProductVariant, error) {
	variant, err := s.productRepo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if variant == nil {
		return nil, ErrVariantNotFound
	}
	return variant, nil
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	status := model.ProductStatus(req.Status)
	if req.Status == "" {
		status = model.ProductStatusDraft
	}
	product := &model.Product{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		SKU:         req.SKU,
		BasePrice:   req.BasePrice,
		SalePrice:   req.SalePrice,
		TaxRate:     req.TaxRate,
		Status:      status,
		IsFeatured:  req.IsFeatured,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return &resp, nil
}

func (s *ProductService) GetBySlug(ctx context.Context, slug string) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.Status != model.ProductStatusPublished {
		return nil, ErrProductNotFound
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	offset := (req.Page - 1) * req.Limit
	products, total, err := s.productRepo.List(ctx, req.Limit, offset, req.Search, req.Sort, req.Order)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var items []dto.ProductResponse
	for _, p := range products {
		items = append(items, toProductResponse(&p))
	}

	return &dto.ProductListResponse{Products: items, Total: total, Page: req.Page, Limit: req.Limit}, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Slug != nil {
		product.Slug = *req.Slug
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.SKU != nil {
		product.SKU = *req.SKU
	}
	if req.BasePrice != nil {
		product.BasePrice = *req.BasePrice
	}
	if req.SalePrice != nil {
		product.SalePrice = req.SalePrice
	}
	if req.TaxRate != nil {
		product.TaxRate = *req.TaxRate
	}
	if req.Status != nil {
		product.Status = model.ProductStatus(*req.Status)
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *ProductService) AddVariant(ctx context.Context, productID uuid.UUID, req dto.CreateVariantRequest) (*dto.VariantResponse, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	variant := &model.ProductVariant{
		ProductID:       productID,
		Name:            req.Name,
		SKU:             req.SKU,
		Stock:           req.Stock,
		PriceAdjustment: req.PriceAdjustment,
	}
	if err := s.productRepo.CreateVariant(ctx, variant); err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}

	s.invalidateCache(ctx, productID)
	resp := toVariantResponse(variant)
	return &resp, nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.String())
	}
}

func toVariantResponse(v *model.ProductVariant) dto.VariantResponse {
	return dto.VariantResponse{
		ID:              v.ID,
		Name:            v.Name,
		SKU:             v.SKU,
		Stock:           v.Stock,
		PriceAdjustment: v.PriceAdjustment,
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	var variants []dto.VariantResponse
	for i := range p.Variants {
		variants = append(variants, toVariantResponse(&p.Variants[i]))
	}
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		SKU:         p.SKU,
		BasePrice:   p.BasePrice,
		SalePrice:   p.SalePrice,
		TaxRate:     p.TaxRate,
		Status:      string(p.Status),
		IsFeatured:  p.IsFeatured,
		Variants:    variants,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
