package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

func TestTokenService_Issue_And_Verify(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("secret", time.Hour)

	tok, err := svc.Issue(domain.UserID(42))
	req.NoError(err)
	req.NotEmpty(tok)

	uid, err := svc.Verify(tok)
	req.NoError(err)
	req.Equal(domain.UserID(42), uid)
}

func TestTokenService_Issue_Requires_User(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("secret", time.Hour)

	_, err := svc.Issue(0)
	req.Error(err)
}

func TestTokenService_Rejects_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	minted := NewTokenService("right", time.Hour)
	checker := NewTokenService("wrong", time.Hour)

	tok, err := minted.Issue(domain.UserID(1))
	req.NoError(err)

	_, err = checker.Verify(tok)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_Rejects_Expired(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("secret", -time.Minute)

	tok, err := svc.Issue(domain.UserID(1))
	req.NoError(err)

	_, err = svc.Verify(tok)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_Rejects_Garbage(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("secret", time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		_, err := svc.Verify(tok)
		req.ErrorIs(err, ErrInvalidToken)
	}
}

func TestTokenService_Tokens_Are_Unique(t *testing.T) {
	req := require.New(t)
	svc := NewTokenService("secret", time.Hour)

	// Each token carries its own id, so two logins never share a credential
	first, err := svc.Issue(domain.UserID(1))
	req.NoError(err)
	second, err := svc.Issue(domain.UserID(1))
	req.NoError(err)
	req.NotEqual(first, second)
}
