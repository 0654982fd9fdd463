package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"spendbook/internal/core"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateName  = errors.New("name already registered")
)

// UserRepository keeps every account in one JSON array under KeyUsers.
type UserRepository struct {
	kv KV
	mu sync.Mutex
}

func NewUserRepository(kv KV) *UserRepository {
	return &UserRepository{kv: kv}
}

// List returns all registered accounts.
func (r *UserRepository) List(ctx context.Context) ([]core.User, error) {
	raw, err := r.kv.Get(ctx, KeyUsers)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	var users []core.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// Create appends an account. Emails and names are unique, compared without
// regard to case.
func (r *UserRepository) Create(ctx context.Context, u core.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.List(ctx)
	if err != nil {
		return err
	}
	email := core.NormalizeEmail(u.Email)
	for _, existing := range users {
		if core.NormalizeEmail(existing.Email) == email {
			return ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Name, u.Name) {
			return ErrDuplicateName
		}
	}
	u.Email = email
	users = append(users, u)

	b, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := r.kv.Put(ctx, KeyUsers, b); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

// FindByEmail returns ErrNotFound when no account matches.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (core.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return core.User{}, err
	}
	email = core.NormalizeEmail(email)
	for _, u := range users {
		if core.NormalizeEmail(u.Email) == email {
			return u, nil
		}
	}
	return core.User{}, ErrNotFound
}
