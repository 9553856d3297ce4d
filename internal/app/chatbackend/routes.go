// Package chatbackend предоставляет маршруты для основного приложения.
package chatbackend

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/gdohealth/chat-backend/internal/api/handlers/auth/devtoken"
	"github.com/gdohealth/chat-backend/internal/api/handlers/auth/forgotpassword"
	"github.com/gdohealth/chat-backend/internal/api/handlers/auth/login"
	"github.com/gdohealth/chat-backend/internal/api/handlers/auth/register"
	"github.com/gdohealth/chat-backend/internal/api/handlers/auth/resetpassword"
	"github.com/gdohealth/chat-backend/internal/api/handlers/health"
	"github.com/gdohealth/chat-backend/internal/api/handlers/internalapi/grantcredits"
	"github.com/gdohealth/chat-backend/internal/api/handlers/internalapi/syncuser"
	sessioncreate "github.com/gdohealth/chat-backend/internal/api/handlers/session/create"
	sessionend "github.com/gdohealth/chat-backend/internal/api/handlers/session/end"
	sessionmessages "github.com/gdohealth/chat-backend/internal/api/handlers/session/messages"
	sessionmode "github.com/gdohealth/chat-backend/internal/api/handlers/session/mode"
	sessionread "github.com/gdohealth/chat-backend/internal/api/handlers/session/read"
	sessionsummary "github.com/gdohealth/chat-backend/internal/api/handlers/session/summary"
	"github.com/gdohealth/chat-backend/internal/api/handlers/triage/extractfields"
	"github.com/gdohealth/chat-backend/internal/api/handlers/triage/intakescore"
	"github.com/gdohealth/chat-backend/internal/api/handlers/triage/riskcheck"
	"github.com/gdohealth/chat-backend/internal/api/handlers/triage/switchmode"
	"github.com/gdohealth/chat-backend/internal/api/handlers/user/creditsbalance"
	"github.com/gdohealth/chat-backend/internal/api/handlers/user/historylist"
	"github.com/gdohealth/chat-backend/internal/api/handlers/user/preferences"
	"github.com/gdohealth/chat-backend/internal/api/handlers/user/preferencesupdate"
	"github.com/gdohealth/chat-backend/internal/api/handlers/user/profile"
	"github.com/gdohealth/chat-backend/internal/api/handlers/user/update"
	"github.com/gdohealth/chat-backend/internal/config"
	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/lib/jwt"
	authservice "github.com/gdohealth/chat-backend/internal/services/auth"
	creditsservice "github.com/gdohealth/chat-backend/internal/services/credits"
	retentionservice "github.com/gdohealth/chat-backend/internal/services/retention"
	sessionservice "github.com/gdohealth/chat-backend/internal/services/session"
	triageservice "github.com/gdohealth/chat-backend/internal/services/triage"
	"github.com/gdohealth/chat-backend/internal/storage/cache"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, jwtMaker jwt.Maker,
	cacheRedis *cache.Cache, db *repository.Storage, rabbit *amqp.Connection,
	authService *authservice.Service, creditsService *creditsservice.Service,
	sessionService *sessionservice.Service, retentionService *retentionservice.Service,
	triageService *triageservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/auth/register", register.New(logger, authService).ServeHTTP)
		r.Post("/auth/login", login.New(logger, authService).ServeHTTP)
		r.Post("/auth/forgot-password", forgotpassword.New(logger, authService).ServeHTTP)
		r.Post("/auth/reset-password", resetpassword.New(logger, authService).ServeHTTP)
		r.Post("/auth/dev-token", devtoken.New(logger, authService, cfg.DevTokenEnabled).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			if cacheRedis != nil {
				r.Use(middlewarectx.RateLimitMiddleware(cacheRedis.Db,
					cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window, logger))
			}

			r.Get("/users/me", profile.New(logger, authService).ServeHTTP)
			r.Patch("/users/me", update.New(logger, authService).ServeHTTP)
			r.Get("/users/credits", creditsbalance.New(logger, creditsService).ServeHTTP)
			r.Get("/users/me/preferences", preferences.New(logger, retentionService).ServeHTTP)
			r.Patch("/users/me/preferences", preferencesupdate.New(logger, retentionService).ServeHTTP)
			r.Get("/users/me/sessions", historylist.New(logger, retentionService).ServeHTTP)

			r.Post("/sessions", sessioncreate.New(logger, sessionService).ServeHTTP)
			r.Get("/sessions/{id}", sessionread.New(logger, sessionService).ServeHTTP)
			r.Post("/sessions/{id}/end", sessionend.New(logger, sessionService).ServeHTTP)
			r.Get("/sessions/{id}/messages", sessionmessages.New(logger, retentionService).ServeHTTP)
			r.Post("/sessions/{id}/mode", sessionmode.New(logger, sessionService).ServeHTTP)
			r.Post("/sessions/{id}/summary", sessionsummary.New(logger, sessionService).ServeHTTP)

			r.Post("/triage/intake-score", intakescore.New(logger, triageService).ServeHTTP)
			r.Post("/triage/risk-check", riskcheck.New(logger, triageService).ServeHTTP)
			r.Post("/triage/extract-fields", extractfields.New(logger, triageService).ServeHTTP)
			r.Post("/triage/switch-mode", switchmode.New(logger, triageService).ServeHTTP)
		})

		// Внутренние конечные точки для WordPress и платёжных вебхуков
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.InternalKeyMiddleware(cfg.InternalAPIKey, logger))
			r.Post("/internal/sync-user", syncuser.New(logger, authService).ServeHTTP)
			r.Post("/internal/grant-credits", grantcredits.New(logger, creditsService).ServeHTTP)
		})
	})

	var rdb *redis.Client
	if cacheRedis != nil {
		rdb = cacheRedis.Db
	}
	r.Get("/health", health.New(logger, db, rabbit, rdb).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
