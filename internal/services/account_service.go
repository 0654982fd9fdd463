package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/storage"
)

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrNameTaken          = errors.New("an account with this name already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid session token")
)

const tokenIssuer = "spendbook"

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u core.User) error
	FindByEmail(ctx context.Context, email string) (core.User, error)
}

// SessionClaims is the JWT payload of a session cookie.
type SessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AccountService registers users, checks passwords and issues session tokens.
type AccountService struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *applog.Logger
}

func NewAccountService(users UserStore, secret string, ttl time.Duration, logger *applog.Logger) *AccountService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &AccountService{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger.WithComponent(applog.ComponentAuth),
	}
}

// TTL is the lifetime of issued tokens.
func (s *AccountService) TTL() time.Duration { return s.ttl }

// Register validates the form, hashes the password and stores the account.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (core.User, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateRegistration(name, email, password); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := core.User{
		Name:         name,
		Email:        core.NormalizeEmail(email),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	switch err := s.users.Create(ctx, u); {
	case errors.Is(err, storage.ErrDuplicateEmail):
		return core.User{}, ErrEmailTaken
	case errors.Is(err, storage.ErrDuplicateName):
		return core.User{}, ErrNameTaken
	case err != nil:
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", applog.FieldUsername, u.Name, applog.FieldOperation, applog.OpRegister)
	return u, nil
}

// Login returns the account when the password matches.
func (s *AccountService) Login(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed login", applog.FieldUsername, u.Name, applog.FieldOperation, applog.OpLogin)
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken signs an HS256 session token for the user.
func (s *AccountService) IssueToken(u core.User) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		Name:  u.Name,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   u.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies the signature and expiry of a session token.
func (s *AccountService) ParseToken(token string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.Name == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
