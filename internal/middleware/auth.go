// Package middleware contains the HTTP middleware of the shop backend.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/modestmuse/museshop/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// UserSource loads the token subject so the middleware can verify the
// account still exists, is active, and has not changed its password since
// the token was issued.
type UserSource interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthMiddleware authenticates requests by a signed bearer token. The
// token is "<subject>.<issuedUnix>.<hex hmac-sha256>" over the first two
// fields, so the issue time is tamper-proof.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	users     UserSource
}

// NewAuthMiddleware creates the middleware with the given signing secret,
// token lifetime and user source.
func NewAuthMiddleware(secret string, ttl time.Duration, users UserSource) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
		users:     users,
	}
}

// IssueToken signs a token for the given subject at the given time.
func (a *AuthMiddleware) IssueToken(userID string, issuedAt time.Time) string {
	payload := userID + "." + strconv.FormatInt(issuedAt.Unix(), 10)
	return payload + "." + a.sign(payload)
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string, now time.Time) (string, time.Time, bool) {
	lastDot := strings.LastIndex(token, ".")
	if lastDot <= 0 {
		return "", time.Time{}, false
	}
	payload, signature := token[:lastDot], token[lastDot+1:]

	if !hmac.Equal([]byte(signature), []byte(a.sign(payload))) {
		return "", time.Time{}, false
	}

	subject, issuedStr, found := strings.Cut(payload, ".")
	if !found || subject == "" {
		return "", time.Time{}, false
	}

	issuedUnix, err := strconv.ParseInt(issuedStr, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	issuedAt := time.Unix(issuedUnix, 0)

	if now.After(issuedAt.Add(a.ttl)) {
		return "", time.Time{}, false
	}

	return subject, issuedAt, true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// resolve authenticates the request's bearer token and loads its user.
func (a *AuthMiddleware) resolve(r *http.Request) (*model.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	subject, issuedAt, ok := a.parseToken(token, time.Now())
	if !ok {
		return nil, fmt.Errorf("invalid or expired token")
	}

	user, err := a.users.GetUserByID(r.Context(), subject)
	if err != nil {
		return nil, fmt.Errorf("token subject not found")
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account deactivated")
	}
	if user.ChangedPasswordAfter(issuedAt) {
		return nil, fmt.Errorf("password changed after token issue")
	}

	return user, nil
}

// Middleware requires a valid bearer token and puts the authenticated user
// into the request context.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.resolve(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional resolves the bearer token when one is present but lets
// anonymous requests through. Used by guest-capable endpoints such as
// checkout.
func (a *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.resolve(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated requests whose user is not an admin.
// Must be mounted after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok || !user.IsAdmin() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext extracts the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok
}
