package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Tyrowin/roombroker/internal/broker"
)

const issuer = "roombroker"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrEmptySecret  = errors.New("session secret must not be empty")
)

var validate = validator.New()

// Claims is the payload of a session token.
type Claims struct {
	Username string `json:"username" validate:"required,max=32"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens signed with one secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) (*Tokens, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Tokens{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for username that expires after ttl.
func (t *Tokens) Issue(username string, ttl time.Duration) (string, error) {
	username = strings.TrimSpace(username)
	now := t.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if err := validate.Struct(claims); err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks the signature, issuer and expiry of raw and returns the
// identity it carries. AuthenticatedAt is the token's issue time.
func (t *Tokens) Verify(raw string) (broker.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return broker.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return broker.Identity{}, ErrInvalidToken
	}
	claims.Username = strings.TrimSpace(claims.Username)
	if err := validate.Struct(claims); err != nil {
		return broker.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := broker.Identity{Username: claims.Username, AuthenticatedAt: t.now()}
	if claims.IssuedAt != nil {
		identity.AuthenticatedAt = claims.IssuedAt.Time
	}
	return identity, nil
}
