package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/gdohealth/chat-backend/internal/http/response"
)

// InternalKeyMiddleware защищает server-to-server маршруты общим секретом
// в заголовке X-Internal-Key. Если секрет не сконфигурирован, маршруты
// считаются выключенными и возвращают 503.
func InternalKeyMiddleware(internalKey string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.InternalKeyMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if internalKey == "" {
				log.Error("internal api key is not configured")
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("internal api is not configured"))
				return
			}

			got := r.Header.Get("X-Internal-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(internalKey)) != 1 {
				log.Error("invalid internal api key")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid internal api key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
