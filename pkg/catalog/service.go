// Package catalog serves users from the primary datasource and products from the secondary one.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
)

const (
	gmailPattern   = `@gmail\.com`
	expensivePrice = 100.0
)

// ErrInvalid is returned for documents missing required fields.
var ErrInvalid = errors.New("invalid document")

type Service struct {
	users    ports.UserRepository
	products ports.ProductRepository
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService binds users to the primary repository and products to the secondary one.
func NewService(users ports.UserRepository, products ports.ProductRepository, opts ...Option) *Service {
	s := &Service{users: users, products: products, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) SaveUser(ctx context.Context, u domain.User) (domain.User, error) {
	if strings.TrimSpace(u.Name) == "" {
		return domain.User{}, fmt.Errorf("%w: user name is required", ErrInvalid)
	}
	saved, err := s.users.Save(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("User saved", "user_id", saved.ID)
	return saved, nil
}

func (s *Service) SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.Product{}, fmt.Errorf("%w: product name is required", ErrInvalid)
	}
	if p.Price < 0 {
		return domain.Product{}, fmt.Errorf("%w: price cannot be negative", ErrInvalid)
	}
	saved, err := s.products.Save(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("Product saved", "product_id", saved.ID)
	return saved, nil
}

func (s *Service) FindUsersByName(ctx context.Context, name string) ([]domain.User, error) {
	return s.users.FindByName(ctx, name)
}

// FindGmailUsers returns users whose email ends in @gmail.com.
func (s *Service) FindGmailUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.FindByEmailPattern(ctx, gmailPattern)
}

// FindExpensiveProducts returns products priced above 100.
func (s *Service) FindExpensiveProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products.FindByPriceGreaterThan(ctx, expensivePrice)
}

func (s *Service) FindProductsPricedAbove(ctx context.Context, price float64) ([]domain.Product, error) {
	return s.products.FindByPriceGreaterThan(ctx, price)
}
