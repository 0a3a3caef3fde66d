// Package auth mints and verifies the socket credential. The HTTP layer
// issues a token per browser session; the hub verifies it on the auth event.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService signs and checks the short-lived HS256 tokens presented
// over the socket.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

var _ core.TokenVerifier = (*TokenService)(nil)

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue mints a token for the given user.
func (s *TokenService) Issue(id domain.UserID) (string, error) {
	if id == 0 {
		return "", errors.New("user id required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(int64(id), 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the subject user.
func (s *TokenService) Verify(token string) (domain.UserID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return domain.UserID(id), nil
}
