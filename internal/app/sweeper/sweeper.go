// Package sweeper содержит приложение планового удаления истории.
// По расписанию находит пользователей с истёкшим сроком отсрочки и
// безвозвратно удаляет их сессии и переписку.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdohealth/chat-backend/internal/config"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	retentionservice "github.com/gdohealth/chat-backend/internal/services/retention"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// App представляет приложение планового удаления истории.
type App struct {
	retentionService *retentionservice.Service
	cronSpec         string
	db               *repository.Storage
	logger           *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения удаления истории.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		return nil, err
	}

	retentionService := retentionservice.New(db, cfg.Retention.GracePeriod,
		cfg.Retention.SweepLimit, logger)

	return &App{
		retentionService: retentionService,
		cronSpec:         cfg.Retention.CronSpec,
		db:               db,
		logger:           logger,
	}, nil
}

// Run запускает планировщик удаления и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	c := cron.New()

	_, err := c.AddFunc(a.cronSpec, func() {
		purged, err := a.retentionService.Sweep(ctx)
		if err != nil {
			a.logger.Error("history sweep failed", sl.Err(err))
			return
		}
		a.logger.Info("history sweep finished", slog.Int("users_purged", purged))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	c.Start()
	a.logger.Info("history sweeper started", slog.String("cron", a.cronSpec))

	<-ctx.Done()

	a.logger.Info("shutting down history sweeper")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	_ = a.db.DB.Close()
	return nil
}
