package jwt

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const (
	DefaultAlgorithm  = "HS256"
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the payload of every token the service mints.
// Timestamps are whole seconds since the epoch.
type Claims struct {
	Type TokenType `json:"type"`
	jwtlib.RegisteredClaims
}

// UserID returns the subject as a user id. Non-numeric or non-positive
// subjects are rejected.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErr.ErrInvalidToken
	}
	return id, nil
}

// Codec signs and verifies tokens with a single symmetric secret.
type Codec struct {
	secret     []byte
	method     jwtlib.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret []byte, algorithm string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	method, ok := jwtlib.GetSigningMethod(algorithm).(*jwtlib.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Codec{
		secret:     secret,
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (c *Codec) TTL(typ TokenType) time.Duration {
	if typ == TokenTypeRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// NewClaims builds claims for subject issued at now, expiring after the
// TTL configured for typ.
func (c *Codec) NewClaims(subject string, typ TokenType, now time.Time) Claims {
	iat := now.Truncate(time.Second)
	return Claims{
		Type: typ,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(iat),
			ExpiresAt: jwtlib.NewNumericDate(iat.Add(c.TTL(typ))),
		},
	}
}

func (c *Codec) Encode(claims Claims) (string, error) {
	token := jwtlib.NewWithClaims(c.method, claims)
	return token.SignedString(c.secret)
}

// Decode verifies signature, algorithm and expiry. When expected is set the
// token type must match. Every failure is reported as ErrInvalidToken.
func (c *Codec) Decode(tokenString string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenString, claims, func(token *jwtlib.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwtlib.WithValidMethods([]string{c.method.Alg()}),
		jwtlib.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		return nil, appErr.ErrInvalidToken
	}
	// exp itself is still valid; the token dies one second later.
	if claims.ExpiresAt == nil || c.now().Unix() > claims.ExpiresAt.Unix() {
		return nil, appErr.ErrInvalidToken
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeRefresh {
		return nil, appErr.ErrInvalidToken
	}
	if expected != "" && claims.Type != expected {
		return nil, appErr.ErrInvalidToken
	}
	return claims, nil
}
