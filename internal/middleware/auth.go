package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/seoinsight/seoinsight/internal/models"
)

var publicPaths = map[string]bool{
	"/":        true,
	"/health":  true,
	"/metrics": true,
}

type ctxKey int

const subjectKey ctxKey = iota

// SubjectFromContext returns the authenticated user id set by Auth when the
// request carried a valid session token.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

type AuthConfig struct {
	APIKeys    []string
	HeaderName string
	// JWTSecret verifies HS256 session tokens from the Authorization header.
	JWTSecret string
}

// supabaseClaims is the subset of a Supabase access token we rely on.
type supabaseClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Auth accepts either a bearer session token (when a JWT secret is set) or
// one of the configured API keys.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	keySet := make(map[string]bool, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			keySet[k] = true
		}
	}
	header := cfg.HeaderName
	if header == "" {
		header = "X-API-Key"
	}
	secret := []byte(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if token, ok := bearerToken(r); ok && len(secret) > 0 {
				sub, err := verifyToken(token, secret)
				if err != nil {
					models.WriteError(w, http.StatusUnauthorized, "invalid or expired session token")
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
				return
			}

			key := r.Header.Get(header)
			if key == "" {
				if c, err := r.Cookie("api_key"); err == nil {
					key = c.Value
				}
			}

			if key == "" {
				models.WriteError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !keySet[key] {
				models.WriteError(w, http.StatusForbidden, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func verifyToken(token string, secret []byte) (string, error) {
	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
