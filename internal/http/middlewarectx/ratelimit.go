package middlewarectx

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"

	"github.com/gdohealth/chat-backend/internal/http/response"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
)

// RateLimitMiddleware ограничивает частоту запросов фиксированным окном
// в Redis. Ключ — идентификатор пользователя из контекста либо адрес
// клиента для неаутентифицированных маршрутов. При недоступном Redis
// запросы пропускаются: лимитер не должен ронять основной трафик.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RateLimitMiddleware"

			if rdb == nil {
				next.ServeHTTP(w, r)
				return
			}

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			key := "ratelimit:ip:" + r.RemoteAddr
			if uid, ok := UserID(r.Context()); ok {
				key = "ratelimit:user:" + uid
			}

			ctx := r.Context()
			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				log.Warn("rate limiter unavailable, passing request through", sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			// TTL выставляется только первым запросом окна; иначе
			// постоянные ретраи никогда не дали бы окну закрыться
			if count == 1 {
				if err := rdb.Expire(ctx, key, window).Err(); err != nil {
					log.Warn("failed to set rate limit window", sl.Err(err))
				}
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				log.Info("rate limit exceeded", slog.String("key", key))
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
