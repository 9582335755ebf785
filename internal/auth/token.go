package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenLifetime = 7 * 24 * time.Hour

// TokenCodec signs and verifies the self-contained bearer token. It is
// a pure function pair: no token is ever persisted server-side, so a
// minted token stays valid until its expiry. Revocation before expiry
// is handled by the session layer, not here.
type TokenCodec struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenCodec(secret, issuer string, lifetime time.Duration, now func() time.Time) *TokenCodec {
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenCodec{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
		now:      now,
	}
}

// Sign mints an HS256 token for the given identity. The issuer doubles
// as audience, matching the deployment base URL.
func (c *TokenCodec) Sign(userID int64, email string) (string, error) {
	issuedAt := c.now()
	claims := jwt.MapClaims{
		"iss":    c.issuer,
		"aud":    c.issuer,
		"iat":    issuedAt.Unix(),
		"exp":    issuedAt.Add(c.lifetime).Unix(),
		"userId": userID,
		"email":  email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks the signature and expiry of a token and returns its
// claims. Every failure mode collapses into ErrInvalidToken; callers
// are never told whether the signature or the expiry was at fault.
func (c *TokenCodec) Verify(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
