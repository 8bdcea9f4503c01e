package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"jwt-auth-demo/internal/models"
)

// ErrInvalidAccessToken is the single rejection outcome for every validation
// failure: bad signature, wrong issuer or audience, expired, malformed. The
// caller never learns which check failed.
var ErrInvalidAccessToken = errors.New("invalid access token")

type AccessClaims struct {
	UserID uint   `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AccessIssuer signs and validates short-lived HS256 bearer tokens. The
// secret, issuer and audience are fixed at construction time.
type AccessIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewAccessIssuer(secret []byte, issuer, audience string, ttl time.Duration) *AccessIssuer {
	return &AccessIssuer{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

// Issue builds a signed access token for the user. Every token carries a
// fresh jti so issuances are distinguishable even within the same second.
func (i *AccessIssuer) Issue(user *models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(i.ttl)

	claims := AccessClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, exp, nil
}

// Validate checks signature, issuer, audience and expiry with no clock-skew
// leeway. An expired token is rejected at the exact instant of expiry.
func (i *AccessIssuer) Validate(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	t, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}
