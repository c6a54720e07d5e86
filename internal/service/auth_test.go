package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/model"
)

type mockUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	user.ID = uuid.New()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func newAuthFixture() (*AuthService, *mockUserRepo, *mockCartRepo, *mockProductRepo) {
	userRepo := newMockUserRepo()
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	cartSvc := NewCartService(cartRepo, productRepo)
	svc := NewAuthService(userRepo, cartSvc, "test-secret", time.Hour, nil)
	return svc, userRepo, cartRepo, productRepo
}

func TestAuthService_Register(t *testing.T) {
	svc, userRepo, _, _ := newAuthFixture()

	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "ana@example.com", Password: "secret123", FullName: "Ana López",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "cliente", resp.User.Role)
	assert.Len(t, userRepo.users, 1)

	_, err = svc.Register(context.Background(), dto.RegisterRequest{
		Email: "ana@example.com", Password: "other",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_Login(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "ana@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	resp, cartMerged, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "ana@example.com", Password: "secret123",
	}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.False(t, cartMerged, "no guest token, nothing to merge")

	_, _, err = svc.Login(context.Background(), dto.LoginRequest{
		Email: "ana@example.com", Password: "wrong",
	}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), dto.LoginRequest{
		Email: "nadie@example.com", Password: "secret123",
	}, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_MergesGuestCart(t *testing.T) {
	svc, _, cartRepo, productRepo := newAuthFixture()
	cartSvc := NewCartService(cartRepo, productRepo)

	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "ana@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	pid := seedProduct(productRepo, "50.00")
	guestIdentity, err := cartSvc.AddItem(context.Background(), CartIdentity{}, pid, nil, 2)
	require.NoError(t, err)

	_, cartMerged, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "ana@example.com", Password: "secret123",
	}, guestIdentity.SessionToken)
	require.NoError(t, err)
	assert.True(t, cartMerged)

	cart, err := cartSvc.GetCart(context.Background(), CartIdentity{UserID: resp.User.ID})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	// guest cart is gone after the merge
	guestCart, err := cartRepo.GetBySession(context.Background(), guestIdentity.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, guestCart)
}

// failingMergeCartRepo simulates a merge that cannot complete.
type failingMergeCartRepo struct {
	*mockCartRepo
}

func (f *failingMergeCartRepo) Merge(_ context.Context, _, _ uuid.UUID) error {
	return errors.New("merge failed")
}

func TestAuthService_Login_MergeFailureKeepsGuestCart(t *testing.T) {
	userRepo := newMockUserRepo()
	cartRepo := &failingMergeCartRepo{newMockCartRepo()}
	productRepo := newMockProductRepo()
	cartSvc := NewCartService(cartRepo, productRepo)
	svc := NewAuthService(userRepo, cartSvc, "test-secret", time.Hour, nil)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Email: "ana@example.com", Password: "secret123",
	})
	require.NoError(t, err)

	pid := seedProduct(productRepo, "50.00")
	guestIdentity, err := cartSvc.AddItem(context.Background(), CartIdentity{}, pid, nil, 2)
	require.NoError(t, err)

	// login still succeeds, but the merge is reported as not having run
	resp, cartMerged, err := svc.Login(context.Background(), dto.LoginRequest{
		Email: "ana@example.com", Password: "secret123",
	}, guestIdentity.SessionToken)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.False(t, cartMerged, "a failed merge must not claim the guest cart was folded in")

	// the guest cart and its item are still reachable by token
	guestCart, err := cartRepo.GetBySession(context.Background(), guestIdentity.SessionToken)
	require.NoError(t, err)
	require.NotNil(t, guestCart)
	withItems, err := cartRepo.GetWithItems(context.Background(), guestCart.ID)
	require.NoError(t, err)
	assert.Len(t, withItems.Items, 1)
}
