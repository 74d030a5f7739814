// Package auth resolves bearer credentials to user ids.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// JWTVerifier accepts HS256 tokens signed with a shared secret; the subject is the user id.
type JWTVerifier struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

var _ domain.TokenVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (domain.UserID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return domain.UserID(claims.Subject), nil
}

// Issuer mints tokens JWTVerifier accepts, for local runs and the CLI.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for userID and its expiry.
func (i *Issuer) Issue(userID domain.UserID) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// UserTokens mints a fresh token for one user on every call.
type UserTokens struct {
	Issuer *Issuer
	UserID domain.UserID
}

func (u UserTokens) Token(context.Context) (string, error) {
	token, _, err := u.Issuer.Issue(u.UserID)
	return token, err
}
