// Package identity connects the service to the hosted identity provider:
// verifying its access tokens, exchanging OAuth codes for sessions and keeping
// the session in a cookie.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

const leeway = 30 * time.Second

// Claims are the fields read from a provider access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens signed with the project secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(leeway),
		),
	}
}

func (v *Verifier) Verify(token string) (*types.Identity, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("identity secret not configured: %w", types.ErrUnauthenticated)
	}

	var claims Claims
	parsed, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %v: %w", err, types.ErrUnauthenticated)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid: %w", types.ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject %q: %w", claims.Subject, types.ErrUnauthenticated)
	}
	return &types.Identity{UserID: userID, Email: claims.Email}, nil
}

// Sign issues a token the Verifier accepts. Used by tests and local tooling.
func Sign(secret string, id types.Identity, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("empty secret")
	}
	now := time.Now()
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
