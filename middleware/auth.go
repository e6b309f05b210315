package middleware

import (
	"context"
	"net/http"
	"strings"

	"nfl-pickem/logging"
	"nfl-pickem/models"
)

// UserContextKey is the key used to store user in request context
type UserContextKey string

const UserKey UserContextKey = "user"

// AdminKeyHeader carries the admin API key for tooling without a user token
const AdminKeyHeader = "X-Admin-Key"

// TokenAuthenticator resolves bearer tokens and admin keys
type TokenAuthenticator interface {
	GetUserFromToken(ctx context.Context, token string) (*models.User, error)
	CheckAdminKey(key string) bool
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	auth   TokenAuthenticator
	logger *logging.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(auth TokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{
		auth:   auth,
		logger: logging.WithPrefix("Auth"),
	}
}

// RequireAuth rejects requests without a valid user token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.getUserFromRequest(r)
		if err != nil || user == nil {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, user)))
	})
}

// OptionalAuth adds the user to the context when a valid token is present
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, _ := m.getUserFromRequest(r); user != nil {
			r = r.WithContext(context.WithValue(r.Context(), UserKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin accepts an admin user token or the admin API key
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(AdminKeyHeader); key != "" {
			if !m.auth.CheckAdminKey(key) {
				m.logger.Warnf("Rejected admin key from %s", r.RemoteAddr)
				writeForbidden(w)
				return
			}
			admin := &models.User{DisplayName: "admin key", IsAdmin: true}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, admin)))
			return
		}

		user, err := m.getUserFromRequest(r)
		if err != nil || user == nil {
			writeUnauthorized(w)
			return
		}
		if !user.IsAdmin {
			writeForbidden(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, user)))
	})
}

// getUserFromRequest extracts and validates user from request
func (m *AuthMiddleware) getUserFromRequest(r *http.Request) (*models.User, error) {
	// Expected format: "Bearer <token>"
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return m.auth.GetUserFromToken(r.Context(), strings.TrimSpace(parts[1]))
		}
	}

	cookie, err := r.Cookie("auth_token")
	if err == nil && cookie.Value != "" {
		return m.auth.GetUserFromToken(r.Context(), cookie.Value)
	}

	return nil, http.ErrNoCookie
}

// GetUserFromContext retrieves the authenticated user from request context
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserKey).(*models.User); ok {
		return user
	}
	return nil
}

// IsAuthenticated checks if the request has an authenticated user
func IsAuthenticated(r *http.Request) bool {
	return GetUserFromContext(r) != nil
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}

func writeForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden"}`))
}
