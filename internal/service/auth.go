package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mercadito/storefront-api/internal/dto"
	"github.com/mercadito/storefront-api/internal/model"
	"github.com/mercadito/storefront-api/internal/repository"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthService struct {
	userRepo  repository.UserRepository
	cartSvc   *CartService
	jwtSecret []byte
	jwtExpiry time.Duration
	log       *slog.Logger
}

func NewAuthService(userRepo repository.UserRepository, cartSvc *CartService, jwtSecret string, jwtExpiry time.Duration, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{userRepo: userRepo, cartSvc: cartSvc, jwtSecret: []byte(jwtSecret), jwtExpiry: jwtExpiry, log: log}
}

func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email: req.Email, Password: string(hashed),
		FullName: req.FullName, Phone: req.Phone, Role: "cliente",
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, nil
}

// Login authenticates and, when the caller carried an anonymous cart,
// reconciles it into the user's cart. A merge failure does not fail the
// login; cartMerged reports false so the caller keeps the guest token and
// the cart survives for the next attempt.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest, guestCartToken string) (*dto.AuthResponse, bool, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, false, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, false, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, false, ErrInvalidCredentials
	}

	cartMerged := false
	if guestCartToken != "" && s.cartSvc != nil {
		if err := s.cartSvc.MergeOnLogin(ctx, guestCartToken, user.ID); err != nil {
			s.log.Warn("merge guest cart on login", "user_id", user.ID, "error", err)
		} else {
			cartMerged = true
		}
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, false, fmt.Errorf("generate token: %w", err)
	}
	return &dto.AuthResponse{Token: token, User: toUserResponse(user)}, cartMerged, nil
}

func (s *AuthService) generateToken(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  time.Now().Add(s.jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID: user.ID, Email: user.Email,
		FullName: user.FullName, Phone: user.Phone, Role: user.Role,
	}
}
