package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Identity is what the identity provider vouches for.
type Identity struct {
	Email string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 access tokens signed with the identity provider's shared secret.
type JWTVerifier struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTVerifier(secret string, ttl time.Duration) *JWTVerifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTVerifier{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for email. The service itself never exposes this; it
// exists for tooling and tests standing in for the identity provider.
func (v *JWTVerifier) Issue(email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Email: email}, nil
}
