package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/google/uuid"
)

// UserRepository implements ports.UserRepository in memory.
type UserRepository struct {
	data map[string]domain.User
	mu   sync.RWMutex
}

func NewUserRepository() *UserRepository {
	return &UserRepository{data: make(map[string]domain.User)}
}

// Save inserts or replaces a user, assigning an ID when missing.
func (r *UserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[user.ID] = user
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.data[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrDocumentNotFound)
	}
	return u, nil
}

func (r *UserRepository) FindByName(ctx context.Context, name string) ([]domain.User, error) {
	return r.filter(func(u domain.User) bool { return u.Name == name }), nil
}

func (r *UserRepository) FindByEmailPattern(ctx context.Context, pattern string) ([]domain.User, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid email pattern: %w", err)
	}
	return r.filter(func(u domain.User) bool { return re.MatchString(u.Email) }), nil
}

func (r *UserRepository) filter(keep func(domain.User) bool) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.User{}
	for _, u := range r.data {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProductRepository implements ports.ProductRepository in memory.
type ProductRepository struct {
	data map[string]domain.Product
	mu   sync.RWMutex
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{data: make(map[string]domain.Product)}
}

// Save inserts or replaces a product, assigning an ID when missing.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[product.ID] = product
	return product, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.data[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrDocumentNotFound)
	}
	return p, nil
}

func (r *ProductRepository) FindByPriceGreaterThan(ctx context.Context, price float64) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Product{}
	for _, p := range r.data {
		if p.Price > price {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out, nil
}
