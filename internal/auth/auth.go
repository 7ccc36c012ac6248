package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce-basket/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns HS256 bearer tokens into authenticated principals.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewHS256(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: jwt secret required", domain.ErrConfiguration)
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify checks signature and expiry and returns the token subject as an
// authenticated principal.
func (v *Verifier) Verify(token string) (*domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &domain.Principal{ID: claims.Subject, Authenticated: true}, nil
}

// Sign issues a token for subject valid for ttl. Used by tests and tooling.
func (v *Verifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
