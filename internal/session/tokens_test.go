package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokens_IssueAndVerify(t *testing.T) {
	req := require.New(t)
	tokens, err := NewTokens("test-secret")
	req.NoError(err)
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issuedAt }

	raw, err := tokens.Issue("alice", time.Hour)
	req.NoError(err)

	identity, err := tokens.Verify(raw)
	req.NoError(err)
	req.Equal("alice", identity.Username)
	req.True(identity.AuthenticatedAt.Equal(issuedAt))
}

func TestTokens_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	tokens, _ := NewTokens("test-secret")
	clock := time.Now()
	tokens.now = func() time.Time { return clock }

	raw, err := tokens.Issue("alice", time.Minute)
	req.NoError(err)

	clock = clock.Add(2 * time.Minute)
	_, err = tokens.Verify(raw)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokens_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	ours, _ := NewTokens("our-secret")
	theirs, _ := NewTokens("their-secret")

	raw, err := theirs.Issue("mallory", time.Hour)
	req.NoError(err)

	_, err = ours.Verify(raw)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokens_RejectsUnexpectedAlgorithm(t *testing.T) {
	req := require.New(t)
	tokens, _ := NewTokens("test-secret")
	claims := &Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	req.NoError(err)

	_, err = tokens.Verify(raw)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokens_RejectsBadUsernames(t *testing.T) {
	req := require.New(t)
	tokens, _ := NewTokens("test-secret")

	_, err := tokens.Issue("", time.Hour)
	req.Error(err)

	_, err = tokens.Issue(strings.Repeat("a", 33), time.Hour)
	req.Error(err)

	_, err = tokens.Issue(" \t ", time.Hour)
	req.Error(err)
}

func TestTokens_IssueTrimsUsername(t *testing.T) {
	req := require.New(t)
	tokens, _ := NewTokens("test-secret")

	raw, err := tokens.Issue("  alice ", time.Hour)
	req.NoError(err)

	identity, err := tokens.Verify(raw)
	req.NoError(err)
	req.Equal("alice", identity.Username)
}

func TestTokens_RejectsBlankUsernameClaim(t *testing.T) {
	req := require.New(t)
	tokens, _ := NewTokens("test-secret")
	claims := &Claims{
		Username: "   ",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	req.NoError(err)

	_, err = tokens.Verify(raw)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokens_RejectsGarbage(t *testing.T) {
	tokens, _ := NewTokens("test-secret")

	_, err := tokens.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokens_RequiresSecret(t *testing.T) {
	_, err := NewTokens("")
	require.ErrorIs(t, err, ErrEmptySecret)
}
