package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/ticket-sale/internal/auth"
	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

// AuthService registers buyers and exchanges credentials for access
// tokens. It never touches orders or stock.
type AuthService struct {
	buyers     port.BuyerRepository
	tokens     *auth.TokenManager
	logger     *logrus.Logger
	bcryptCost int
	now        func() time.Time
}

type AuthServiceProperty struct {
	Buyers     port.BuyerRepository
	Tokens     *auth.TokenManager
	Logger     *logrus.Logger
	BcryptCost int
	Clock      func() time.Time
}

func NewAuthService(props AuthServiceProperty) *AuthService {
	s := &AuthService{
		buyers:     props.Buyers,
		tokens:     props.Tokens,
		logger:     props.Logger,
		bcryptCost: props.BcryptCost,
		now:        props.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// Register creates a customer account and returns its id.
func (s *AuthService) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	now := s.now()
	buyer := domain.Buyer{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.buyers.CreateBuyer(ctx, buyer); err != nil {
		return "", err
	}

	s.logger.WithContext(ctx).WithField("buyer_id", buyer.ID).Info("buyer registered")
	return buyer.ID, nil
}

// Login returns a signed access token for valid credentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	buyer, err := s.buyers.GetBuyerByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to load buyer")
		return "", err
	}
	if buyer == nil {
		return "", domain.ErrInvalidCredentials
	}

	ok, err := auth.CheckPassword(buyer.PasswordHash, password)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("buyer_id", buyer.ID).Error("stored password hash is unusable")
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCredentials
	}

	return s.tokens.Issue(*buyer)
}

// EnsureBuyer registers the given account when no buyer exists yet.
func (s *AuthService) EnsureBuyer(ctx context.Context, username, password string) (bool, error) {
	n, err := s.buyers.CountBuyers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if _, err := s.Register(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}
