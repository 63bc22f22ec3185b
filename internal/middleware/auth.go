package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/mediarank/mediarank/internal/services"
)

type authCtxKey int

const authKey authCtxKey = 3

type AdminClaims struct {
	Username   string `json:"sub"`
	SuperAdmin bool   `json:"is_super_admin"`
	jwt.RegisteredClaims
}

func secret() []byte {
	s := os.Getenv("MEDIARANK_JWT_SECRET")
	if s == "" {
		s = "mediarank-dev-secret"
	}
	return []byte(s)
}

// SignAdminToken issues an HS256 bearer token for an authenticated
// admin. Wired into the auth service as its TokenSigner.
func SignAdminToken(username string, superAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Username:   username,
		SuperAdmin: superAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret())
}

func parseToken(tok string) (*AdminClaims, error) {
	t, err := jwt.ParseWithClaims(tok, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) { return secret(), nil })
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*AdminClaims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// WithAuth attaches admin claims to the context if a valid bearer
// token is present; requests without one pass through unauthenticated.
func WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if c, err := parseToken(tok); err == nil {
				ctx := context.WithValue(r.Context(), authKey, c)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(authKey).(*AdminClaims); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := r.Context().Value(authKey).(*AdminClaims)
		if !ok || !c.SuperAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFromContext exposes the verified admin identity as the explicit
// actor parameter the lifecycle services take.
func ActorFromContext(ctx context.Context) (services.Actor, bool) {
	if c, ok := ctx.Value(authKey).(*AdminClaims); ok && c.Username != "" {
		return services.Actor{Username: c.Username, SuperAdmin: c.SuperAdmin}, true
	}
	return services.Actor{}, false
}
