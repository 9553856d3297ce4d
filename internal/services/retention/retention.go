// Package retention содержит логику бизнес-уровня хранения истории:
// настройку пользователя, выдачу истории и фоновую очистку по расписанию.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
)

// Ошибки бизнес-уровня истории. Обе маскируются обработчиком под 404:
// чужая сессия и сессия с отключённой историей неотличимы от несуществующей.
var (
	ErrNotSessionOwner = errors.New("session belongs to another user")
	ErrHistoryDisabled = errors.New("history storage is disabled")
)

// HistoryRepository описывает контракт для работы с историей в базе данных.
type HistoryRepository interface {
	GetHistoryPreference(ctx context.Context, userID string) (*models.HistoryPreference, error)
	SetHistoryPreference(ctx context.Context, userID string, storeHistory bool, gracePeriod time.Duration) (*models.HistoryPreference, error)
	ListSessionsForHistory(ctx context.Context, userID string, limit, offset int) (*models.SessionHistory, error)
	ListSessionMessages(ctx context.Context, sessionID string) ([]models.ConversationTurn, error)
	GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error)
	ListUsersDueForDeletion(ctx context.Context, limit int) ([]string, error)
	PurgeHistory(ctx context.Context, userID string) (int64, error)
	ClearDeletionSchedule(ctx context.Context, userID string) error
}

// Service отвечает за настройку хранения истории и её очистку.
type Service struct {
	history     HistoryRepository
	gracePeriod time.Duration
	sweepLimit  int
	log         *slog.Logger
}

// New создает новый экземпляр Service.
func New(history HistoryRepository, gracePeriod time.Duration, sweepLimit int, log *slog.Logger) *Service {
	return &Service{
		history:     history,
		gracePeriod: gracePeriod,
		sweepLimit:  sweepLimit,
		log:         log,
	}
}

// GetPreference возвращает настройку хранения истории пользователя.
func (s *Service) GetPreference(ctx context.Context, userID string) (*models.HistoryPreference, error) {
	return s.history.GetHistoryPreference(ctx, userID)
}

// SetPreference меняет настройку хранения истории. Отключение планирует
// удаление через grace-период, включение снимает его.
func (s *Service) SetPreference(ctx context.Context, userID string, storeHistory bool) (*models.HistoryPreference, error) {
	return s.history.SetHistoryPreference(ctx, userID, storeHistory, s.gracePeriod)
}

// ListSessions возвращает страницу истории сессий. Если пользователь
// отключил хранение истории, список пуст и помечен history_disabled.
func (s *Service) ListSessions(ctx context.Context, userID string, limit, offset int) (*models.SessionHistory, error) {
	const op = "services.retention.ListSessions"

	pref, err := s.history.GetHistoryPreference(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !pref.StoreHistory {
		return &models.SessionHistory{
			Sessions:        []models.SessionHistoryItem{},
			HistoryDisabled: true,
		}, nil
	}

	history, err := s.history.ListSessionsForHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}

// GetMessages возвращает сообщения сессии её владельцу. При отключённом
// хранении истории сообщения недоступны.
func (s *Service) GetMessages(ctx context.Context, userID, sessionID string) ([]models.ConversationTurn, error) {
	const op = "services.retention.GetMessages"

	pref, err := s.history.GetHistoryPreference(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !pref.StoreHistory {
		return nil, ErrHistoryDisabled
	}

	session, err := s.history.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	turns, err := s.history.ListSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return turns, nil
}

// Sweep удаляет историю пользователей с истекшим grace-периодом.
// Сбой на одном пользователе логируется и не прерывает проход.
// Возвращает число обработанных пользователей.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	const op = "services.retention.Sweep"

	userIDs, err := s.history.ListUsersDueForDeletion(ctx, s.sweepLimit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	purged := 0
	for _, userID := range userIDs {
		count, err := s.history.PurgeHistory(ctx, userID)
		if err != nil {
			s.log.Error("failed to purge user history",
				slog.String("user_id", userID), sl.Err(err))
			continue
		}
		if err := s.history.ClearDeletionSchedule(ctx, userID); err != nil {
			s.log.Error("failed to clear deletion schedule",
				slog.String("user_id", userID), sl.Err(err))
			continue
		}
		s.log.Info("user history purged",
			slog.String("user_id", userID), slog.Int64("sessions_deleted", count))
		purged++
	}
	return purged, nil
}
