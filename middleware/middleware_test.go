package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nfl-pickem/models"

	"github.com/stretchr/testify/assert"
)

type fakeAuth struct {
	users map[string]*models.User
	key   string
}

func (f *fakeAuth) GetUserFromToken(_ context.Context, token string) (*models.User, error) {
	if user, ok := f.users[token]; ok {
		return user, nil
	}
	return nil, errors.New("invalid token")
}

func (f *fakeAuth) CheckAdminKey(key string) bool { return key == f.key }

func newTestMiddleware() *AuthMiddleware {
	return NewAuthMiddleware(&fakeAuth{
		users: map[string]*models.User{
			"player": {ID: 2, DisplayName: "Tyler"},
			"boss":   {ID: 1, DisplayName: "Daniel", IsAdmin: true},
		},
		key: "admin-key",
	})
}

func whoami(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if user == nil {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(user.DisplayName))
}

func serve(handler http.Handler, configure func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if configure != nil {
		configure(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	handler := newTestMiddleware().RequireAuth(http.HandlerFunc(whoami))

	rec := serve(handler, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(handler, func(r *http.Request) { r.Header.Set("Authorization", "Bearer player") })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tyler", rec.Body.String())

	rec = serve(handler, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth_token", Value: "boss"}) })
	assert.Equal(t, "Daniel", rec.Body.String())

	rec = serve(handler, func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	handler := newTestMiddleware().OptionalAuth(http.HandlerFunc(whoami))

	assert.Equal(t, "anonymous", serve(handler, nil).Body.String())
	rec := serve(handler, func(r *http.Request) { r.Header.Set("Authorization", "Bearer player") })
	assert.Equal(t, "Tyler", rec.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	handler := newTestMiddleware().RequireAdmin(http.HandlerFunc(whoami))

	assert.Equal(t, http.StatusUnauthorized, serve(handler, nil).Code)

	rec := serve(handler, func(r *http.Request) { r.Header.Set("Authorization", "Bearer player") })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(handler, func(r *http.Request) { r.Header.Set("Authorization", "Bearer boss") })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(handler, func(r *http.Request) { r.Header.Set(AdminKeyHeader, "admin-key") })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin key", rec.Body.String())

	rec = serve(handler, func(r *http.Request) { r.Header.Set(AdminKeyHeader, "guess") })
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	handler := Security(SecurityConfig{AllowedOrigins: []string{"https://pickem.example.com/"}})(http.HandlerFunc(whoami))

	rec := serve(handler, nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(handler, func(r *http.Request) {
		r.Method = http.MethodOptions
		r.Header.Set("Origin", "https://pickem.example.com")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://pickem.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	behindProxy := Security(SecurityConfig{BehindProxy: true})(http.HandlerFunc(whoami))
	assert.Empty(t, serve(behindProxy, nil).Header().Get("Strict-Transport-Security"))
}
