// Package auth implements the single shared-password gate in front of
// the API. A correct password yields a signed bearer token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/fabricdesk/fabricdesk/internal/shared"
)

const issuer = "fabricdesk"

// Config holds the gate settings.
type Config struct {
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration
}

// Claims are the token claims.
type Claims struct {
	jwt.RegisteredClaims
}

// Service wraps authentication business rules.
type Service struct {
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.PasswordHash == "" {
		return nil, errors.New("auth: password hash required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("auth: invalid password hash: %w", err)
	}
	if cfg.Secret == "" {
		return nil, errors.New("auth: token secret required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{hash: []byte(cfg.PasswordHash), secret: []byte(cfg.Secret), ttl: ttl, now: time.Now}, nil
}

// Login checks password and issues a token with its expiry.
func (s *Service) Login(password string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		return "", time.Time{}, shared.ErrInvalidCredentials
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "operator",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify validates a bearer token.
func (s *Service) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, shared.ErrUnauthorized
	}
	return claims, nil
}
