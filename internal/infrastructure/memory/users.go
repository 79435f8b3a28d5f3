package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agrismart-api/internal/domain"
)

// UserRepo is a process-local user store with a unique phone index.
type UserRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byPhone map[string]string
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:    make(map[string]domain.User),
		byPhone: make(map[string]string),
	}
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.UserID]; ok {
		return fmt.Errorf("user id taken: %w", domain.ErrConflict)
	}
	if _, ok := r.byPhone[u.Phone]; ok {
		return fmt.Errorf("phone already exists: %w", domain.ErrConflict)
	}
	r.byID[u.UserID] = *u
	r.byPhone[u.Phone] = u.UserID
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	r.mu.RLock()
	userID, ok := r.byPhone[phone]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, userID)
}

func (r *UserRepo) UpdateProfile(_ context.Context, userID string, p domain.Profile) error {
	return r.update(userID, func(u *domain.User) {
		u.Name = p.Name
		u.Email = p.Email
		u.Language = p.Language
	})
}

func (r *UserRepo) SetActive(_ context.Context, userID string, active bool) error {
	return r.update(userID, func(u *domain.User) { u.IsActive = active })
}

func (r *UserRepo) update(userID string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.byID[userID] = u
	return nil
}
