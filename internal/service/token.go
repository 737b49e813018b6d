package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/shopfront/internal/domain"
)

// TokenIssuer wraps a session token in a signed JWT for API clients that
// cannot hold cookies. The JWT is only a carrier: destroying the session
// invalidates it regardless of its exp claim.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewTokenIssuer signs with HMAC-SHA256 using secret.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// Issue returns a JWT whose sid claim is sessionToken, expiring with the
// session.
func (t *TokenIssuer) Issue(sessionToken string, sess *domain.Session) (string, error) {
	claims := sessionClaims{
		SessionID: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID().String(),
			IssuedAt:  jwt.NewNumericDate(t.now()),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates the JWT and returns the session token it carries.
func (t *TokenIssuer) Parse(tokenString string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.SessionID == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.SessionID, nil
}
