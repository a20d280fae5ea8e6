package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Tenant identifies the caller of an /api route.
type Tenant struct {
	AppID  string
	UserID string
}

type tenantKey struct{}

// TenantFromContext returns the authenticated tenant.
func TenantFromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantKey{}).(Tenant)
	return t, ok
}

// Claims is the bearer token payload. The subject is the user.
type Claims struct {
	AppID string `json:"app_id"`
	jwt.RegisteredClaims
}

// authenticate requires a valid HS256 bearer token carrying app_id and sub.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tenant, err := s.parseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), tenantKey{}, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) parseToken(raw string) (Tenant, error) {
	if s.opts.JWTSecret == "" {
		return Tenant{}, errors.New("no JWT secret configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.opts.JWTSecret), nil
	})
	if err != nil {
		return Tenant{}, err
	}
	if claims.AppID == "" || claims.Subject == "" {
		return Tenant{}, errors.New("token lacks app_id or sub")
	}
	return Tenant{AppID: claims.AppID, UserID: claims.Subject}, nil
}

// NewToken signs a tenant token. Used by the CLI to mint tokens for callers.
func NewToken(secret string, claims Claims) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is required")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
