// Package auth verifies member bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid member token")
)

const minSecretLength = 32

// Member is the signed-in shopper a token names.
type Member struct {
	ID    string
	Email string
}

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 member tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("member token secret must be at least %d characters", minSecretLength)
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for memberID. The storefront never logs members in
// itself; this exists for the identity service and tests.
func (v *Verifier) Issue(memberID, email string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(memberID) == "" {
		return "", fmt.Errorf("member id is required")
	}
	now := v.now().UTC()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) Verify(token string) (Member, error) {
	if token == "" {
		return Member{}, ErrMissingToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Member{}, ErrInvalidToken
	}

	return Member{ID: claims.Subject, Email: claims.Email}, nil
}

// FromRequest verifies the request's Authorization bearer token. It
// returns ErrMissingToken when the header is absent.
func (v *Verifier) FromRequest(r *http.Request) (Member, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return Member{}, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return Member{}, ErrInvalidToken
	}
	return v.Verify(strings.TrimSpace(token))
}
