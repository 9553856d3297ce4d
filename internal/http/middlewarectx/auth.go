// Package middlewarectx содержит HTTP middleware шлюза аутентификации.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке
// Authorization и в случае успеха добавляет в контекст идентификатор
// пользователя. Если токену осталось жить меньше порога продления,
// middleware выпускает новый токен и отдаёт его в заголовках успешного
// ответа (скользящее продление).
//
// Отсутствие секрета подписи — ошибка конфигурации процесса, а не
// аутентификации, поэтому возвращается HTTP 500, а не 401.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/jwt"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// UserUID — ключ для идентификатора пользователя в контексте.
const UserUID Key = "user_uid"

// UserID извлекает идентификатор пользователя, положенный JWTMiddleware.
func UserID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok
}

// refreshWriter подставляет заголовки скользящего продления перед первой
// записью статуса. Заголовки добавляются только к успешным ответам.
type refreshWriter struct {
	http.ResponseWriter
	newToken    string
	expiresIn   time.Duration
	wroteHeader bool
}

func (w *refreshWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if w.newToken != "" && statusCode < http.StatusBadRequest {
			w.Header().Set("X-New-Token", w.newToken)
			w.Header().Set("X-Token-Expires-In", strconv.Itoa(int(w.expiresIn.Seconds())))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *refreshWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(maker jwt.Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				if errors.Is(err, jwt.ErrNotConfigured) {
					log.Error("jwt signing key is not configured", sl.Err(err))
					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.Error("authentication is not configured"))
					return
				}
				if errors.Is(err, jwt.ErrTokenExpired) {
					log.Error("token has expired", sl.Err(err))
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.ErrorWithCode(response.CodeTokenExpired, "token has expired", nil))
					return
				}
				log.Error("invalid token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			if newToken, ok, err := maker.RefreshIfNeeded(claims); err != nil {
				log.Error("failed to refresh token", sl.Err(err))
			} else if ok {
				w = &refreshWriter{
					ResponseWriter: w,
					newToken:       newToken,
					expiresIn:      maker.TokenTTL(),
				}
			}

			ctx := context.WithValue(r.Context(), UserUID, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
