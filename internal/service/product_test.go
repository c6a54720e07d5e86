package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/model"
)

type mockProductRepo struct {
	products map[uuid.UUID]*model.Product
	variants map[uuid.UUID]*model.ProductVariant
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{
		products: make(map[uuid.UUID]*model.Product),
		variants: make(map[uuid.UUID]*model.ProductVariant),
	}
}

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return m.products[id], nil
}

func (m *mockProductRepo) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProductRepo) List(_ context.Context, limit, offset int, search, sort, order string) ([]model.Product, int, error) {
	var all []model.Product
	for _, p := range m.products {
		all = append(all, *p)
	}
	return all, len(all), nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) GetVariant(_ context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	return m.variants[id], nil
}

func (m *mockProductRepo) CreateVariant(_ context.Context, v *model.ProductVariant) error {
	v.ID = uuid.New()
	m.variants[v.ID] = v
	return nil
}

func (m *mockProductRepo) ListVariants(_ context.Context, productID uuid.UUID) ([]model.ProductVariant, error) {
	var out []model.ProductVariant
	for _, v := range m.variants {
		if v.ProductID == productID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func TestProductService_Create(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)
	resp, err := svc.Create(context.Background(), dto.CreateProductRequest{
		Name: "Camiseta", Slug: "camiseta", SKU: "CAM-001", BasePrice: dec("99.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Camiseta", resp.Name)
	assert.Equal(t, string(model.ProductStatusDraft), resp.Status)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)
	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_GetBySlug_UnpublishedHidden(t *testing.T) {
	repo := newMockProductRepo()
	id := uuid.New()
	repo.products[id] = &model.Product{ID: id, Slug: "borrador-item", Status: model.ProductStatusDraft}
	svc := NewProductService(repo, nil)

	_, err := svc.GetBySlug(context.Background(), "borrador-item")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_GetPrice_PrefersSalePrice(t *testing.T) {
	repo := newMockProductRepo()
	id := uuid.New()
	repo.products[id] = &model.Product{ID: id, BasePrice: dec("100.00"), SalePrice: decPtr("80.00")}
	svc := NewProductService(repo, nil)

	price, err := svc.GetPrice(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("80.00")), "got %s", price)
}

func TestProductService_Delete(t *testing.T) {
	repo := newMockProductRepo()
	id := uuid.New()
	repo.products[id] = &model.Product{ID: id}
	svc := NewProductService(repo, nil)
	err := svc.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, repo.products)
}

func TestProductService_AddVariant(t *testing.T) {
	repo := newMockProductRepo()
	id := uuid.New()
	repo.products[id] = &model.Product{ID: id}
	svc := NewProductService(repo, nil)

	resp, err := svc.AddVariant(context.Background(), id, dto.CreateVariantRequest{
		Name: "Talla M", SKU: "CAM-001-M", Stock: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Talla M", resp.Name)
	assert.Len(t, repo.variants, 1)
}

func TestProductService_AddVariant_ProductNotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)
	_, err := svc.AddVariant(context.Background(), uuid.New(), dto.CreateVariantRequest{Name: "Talla M"})
	assert.ErrorIs(t, err, ErrProductNotFound)
}
