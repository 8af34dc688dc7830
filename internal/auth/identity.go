package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("auth: no token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Identity is a caller resolved from an access token.
type Identity struct {
	UserID      string
	DisplayName string
}

// Resolver maps an opaque caller token to a stable user id. Callers treat any error
// as "anonymous".
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// TokenClaims mirrors the access tokens issued by the auth service.
type TokenClaims struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	TokenType   string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTResolver validates HS256 access tokens.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (r *JWTResolver) Resolve(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrNoToken
	}
	if len(r.secret) == 0 {
		return Identity{}, ErrInvalidToken
	}

	claims := &TokenClaims{}
	token, err := r.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	})
	if err != nil || !token.Valid || claims.TokenType != "access" || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	name := claims.DisplayName
	if name == "" {
		name = claims.Email
	}
	return Identity{UserID: claims.UserID, DisplayName: name}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Anonymous resolves nothing; every caller is a guest.
type Anonymous struct{}

func (Anonymous) Resolve(ctx context.Context, token string) (Identity, error) {
	return Identity{}, ErrNoToken
}
