package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service manages account lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account with a hashed password and a fresh QR token.
// The QR token is the opaque payload riders present at readers and to drivers.
func (s *Service) Register(ctx context.Context, creds Credentials) (Account, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" {
		return Account{}, errors.New("email is required")
	}
	if len(creds.Password) < 6 {
		return Account{}, errors.New("password must be at least 6 characters")
	}
	role := creds.Role
	if role == "" {
		role = RoleRider
	}
	if role != RoleRider && role != RoleDriver {
		return Account{}, errors.New("unknown role")
	}
	if role == RoleDriver && strings.TrimSpace(creds.LicenseNumber) == "" {
		return Account{}, errors.New("driver license number is required")
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return Account{}, errors.New("email already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:            uuid.New().String(),
		Name:          strings.TrimSpace(creds.Name),
		Email:         email,
		Role:          role,
		PasswordHash:  hash,
		QRToken:       uuid.New().String(),
		LicenseNumber: strings.TrimSpace(creds.LicenseNumber),
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Authenticate verifies email and password.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return Account{}, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(creds.Password)); err != nil {
		return Account{}, errors.New("invalid credentials")
	}

	return account, nil
}
