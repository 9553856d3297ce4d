package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdohealth/chat-backend/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func okHandler(t *testing.T, wantUID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, wantUID, uid)
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	maker := jwt.NewMaker("test-secret", time.Hour, 30*time.Minute, false)
	token, err := maker.CreateToken("user-123", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	JWTMiddleware(maker, newNoopLogger())(okHandler(t, "user-123")).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// Токену осталось жить больше порога, продления нет
	assert.Empty(t, w.Header().Get("X-New-Token"))
}

func TestJWTMiddleware_SlidingRefresh(t *testing.T) {
	// Порог продления больше TTL: любой токен продлевается сразу
	maker := jwt.NewMaker("test-secret", time.Hour, 2*time.Hour, false)
	token, err := maker.CreateToken("user-123", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	JWTMiddleware(maker, newNoopLogger())(okHandler(t, "user-123")).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	newToken := w.Header().Get("X-New-Token")
	require.NotEmpty(t, newToken)
	assert.Equal(t, "3600", w.Header().Get("X-Token-Expires-In"))

	// Выпущенный токен валиден и сохраняет subject
	claims, err := maker.ParseToken(newToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestJWTMiddleware_NoRefreshOnErrorResponse(t *testing.T) {
	maker := jwt.NewMaker("test-secret", time.Hour, 2*time.Hour, false)
	token, err := maker.CreateToken("user-123", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	failing := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	JWTMiddleware(maker, newNoopLogger())(failing).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("X-New-Token"))
}

func TestJWTMiddleware_Unauthorized(t *testing.T) {
	maker := jwt.NewMaker("test-secret", time.Hour, 30*time.Minute, false)

	tests := []struct {
		name       string
		authHeader string
	}{
		{name: "нет заголовка", authHeader: ""},
		{name: "нет префикса Bearer", authHeader: "Token abc"},
		{name: "мусор вместо токена", authHeader: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatal("handler must not be called")
			})
			JWTMiddleware(maker, newNoopLogger())(next).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	expired := jwt.NewMaker("test-secret", -time.Hour, 30*time.Minute, false)
	token, err := expired.CreateToken("user-123", nil)
	require.NoError(t, err)

	maker := jwt.NewMaker("test-secret", time.Hour, 30*time.Minute, false)
	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not be called")
	})
	JWTMiddleware(maker, newNoopLogger())(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestJWTMiddleware_NotConfigured(t *testing.T) {
	maker := jwt.NewMaker("", time.Hour, 30*time.Minute, false)

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not be called")
	})
	JWTMiddleware(maker, newNoopLogger())(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
