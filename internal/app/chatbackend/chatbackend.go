// Package chatbackend собирает основное приложение: хранилище, брокер,
// сервисы и HTTP-сервер.
package chatbackend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	openai "github.com/sashabaranov/go-openai"
	"github.com/streadway/amqp"

	"github.com/gdohealth/chat-backend/internal/config"
	"github.com/gdohealth/chat-backend/internal/events"
	"github.com/gdohealth/chat-backend/internal/lib/jwt"
	"github.com/gdohealth/chat-backend/internal/lib/rabbitmq"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/migrations"
	authservice "github.com/gdohealth/chat-backend/internal/services/auth"
	creditsservice "github.com/gdohealth/chat-backend/internal/services/credits"
	retentionservice "github.com/gdohealth/chat-backend/internal/services/retention"
	sessionservice "github.com/gdohealth/chat-backend/internal/services/session"
	triageservice "github.com/gdohealth/chat-backend/internal/services/triage"
	"github.com/gdohealth/chat-backend/internal/storage/cache"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	rabbit *amqp.Connection
	cache  *cache.Cache
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	// Redis нужен только лимитеру; без него лимитер пропускает всё
	var cacheRedis *cache.Cache
	if cfg.RedisConnection.AddressRedis != "" {
		cacheRedis, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			logger.Warn("redis is unavailable, rate limiting is disabled", sl.Err(err))
			cacheRedis = nil
		}
	}

	var rabbitConn *amqp.Connection
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitURL != "" {
		rabbitConn, err = rabbitmq.Connect(cfg.RabbitURL, 5, 2*time.Second)
		if err != nil {
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(rabbitConn, events.Exchange)
		if err != nil {
			return nil, err
		}
		publisher = events.NewRabbitPublisher(ch)
	}

	var openaiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	}

	jwtMaker := jwt.NewMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL,
		cfg.JWTToken.RefreshThreshold, cfg.JWTToken.StrictSubject)

	authService := authservice.New(db, jwtMaker, logger)
	creditsService := creditsservice.New(db)
	sessionService := sessionservice.New(db, publisher, logger)
	retentionService := retentionservice.New(db, cfg.Retention.GracePeriod, cfg.Retention.SweepLimit, logger)

	// Нетипизированный nil: триаж различает "клиент не задан" по nil-интерфейсу
	var triageClient triageservice.OpenAIClient
	if openaiClient != nil {
		triageClient = openaiClient
	}
	triageService := triageservice.New(triageClient, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, jwtMaker, cacheRedis, db, rabbitConn,
		authService, creditsService, sessionService, retentionService, triageService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		rabbit: rabbitConn,
		cache:  cacheRedis,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.rabbit != nil {
			_ = a.rabbit.Close()
		}
		if a.cache != nil {
			_ = a.cache.Close()
		}
		_ = a.db.DB.Close()
		return err
	}
}
