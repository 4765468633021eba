package auth

import (
	"time"

	"github.com/transitpago/transitpago/internal/config"
	"github.com/transitpago/transitpago/internal/identity"
)

// Service issues access tokens for authenticated accounts.
type Service struct {
	cfg config.Config
}

// NewService constructs a token service.
func NewService(cfg config.Config) *Service {
	return &Service{cfg: cfg}
}

// Token is the response body for a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Issue signs an access token carrying the account id and role.
func (s *Service) Issue(account identity.Account) (Token, error) {
	now := time.Now()
	exp := now.Add(s.cfg.AccessTokenTTL)
	claims := map[string]any{
		"sub":  account.ID,
		"role": account.Role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	signed, err := SignHS256(claims, []byte(s.cfg.JWTSecret))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresIn: int64(exp.Sub(now).Seconds())}, nil
}
