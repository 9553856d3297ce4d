// Package session содержит логику бизнес-уровня жизненного цикла сессий:
// создание со списанием кредита, чтение с проверкой владельца, завершение
// и переключение режимов диалога.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdohealth/chat-backend/internal/events"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Ошибки бизнес-уровня сессий.
var (
	ErrNotSessionOwner  = errors.New("session belongs to another user")
	ErrSessionNotActive = errors.New("session is not active")
	ErrUnsupportedMode  = errors.New("unsupported session mode")
)

// Максимальная длина прикрепляемого summary; лишнее обрезается.
const maxSummaryLength = 2000

// NoCreditsError возвращается, когда у пользователя нет ни одного
// кредита. Несёт текущий баланс, чтобы клиент показал его без
// дополнительного запроса.
type NoCreditsError struct {
	Balance *models.CreditBalance
}

func (e *NoCreditsError) Error() string {
	return "no session credits available"
}

// SessionRepository описывает контракт для работы с сессиями в базе данных.
type SessionRepository interface {
	ConsumeCredit(ctx context.Context, userID string, expertID *string) (*models.ConsumeResult, error)
	GetUserCredits(ctx context.Context, userID string) (*models.CreditBalance, error)
	CreateSession(ctx context.Context, userID string, expertID *string, sessionType string, durationMinutes int) (*models.Session, error)
	GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error)
	EndSession(ctx context.Context, sessionID string) (*models.Session, error)
	UpdateSessionMode(ctx context.Context, sessionID, mode string) error
	AttachSummary(ctx context.Context, sessionID, summary string) error
}

// Service отвечает за жизненный цикл сессий.
type Service struct {
	sessions  SessionRepository
	publisher events.Publisher
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(sessions SessionRepository, publisher events.Publisher, log *slog.Logger) *Service {
	return &Service{
		sessions:  sessions,
		publisher: publisher,
		log:       log,
	}
}

// Create атомарно списывает кредит и создает активную сессию.
// Тип и длительность сессии определяются тем, какой кредит был списан:
// бесплатный даёт 5 минут, оплаченный — 45.
func (s *Service) Create(ctx context.Context, userID string, expertID *string) (*models.Session, error) {
	const op = "services.session.Create"

	result, err := s.sessions.ConsumeCredit(ctx, userID, expertID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !result.Success {
		balance, err := s.sessions.GetUserCredits(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, &NoCreditsError{Balance: balance}
	}

	session, err := s.sessions.CreateSession(ctx, userID, expertID, result.SessionType, result.DurationMinutes)
	if err != nil {
		// Кредит уже списан; возврата нет, фиксируем в журнале для разбора
		s.log.Error("credit consumed but session creation failed",
			slog.String("user_id", userID), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	session.ComputeRemainingSeconds(time.Now().UTC())

	s.publish(events.TypeSessionCreated, session)
	return session, nil
}

// Get возвращает сессию владельцу. Просроченная активная сессия при
// чтении переводится в expired.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	const op = "services.session.Get"

	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	// Остаток таймера всегда на момент ответа, а не чтения из базы
	session.ComputeRemainingSeconds(time.Now().UTC())
	return session, nil
}

// End явно завершает активную сессию. Если таймер уже истёк, сессия
// получает статус expired, а не ended.
func (s *Service) End(ctx context.Context, userID, sessionID string) (*models.Session, int64, error) {
	const op = "services.session.End"

	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	if session.UserID != userID {
		return nil, 0, ErrNotSessionOwner
	}

	ended, err := s.sessions.EndSession(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	var durationUsed int64
	if ended.EndedAt != nil {
		durationUsed = int64(ended.EndedAt.Sub(ended.CreatedAt) / time.Second)
	}

	s.publish(events.TypeSessionEnded, ended)
	return ended, durationUsed, nil
}

// UpdateMode переключает режим диалога активной сессии.
func (s *Service) UpdateMode(ctx context.Context, userID, sessionID, mode string) error {
	const op = "services.session.UpdateMode"

	switch mode {
	case models.ModeIntake, models.ModeAdvice, models.ModeReflection, models.ModeSummary:
	default:
		return ErrUnsupportedMode
	}

	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if session.UserID != userID {
		return ErrNotSessionOwner
	}
	if session.Status != models.SessionStatusActive {
		return ErrSessionNotActive
	}

	if err := s.sessions.UpdateSessionMode(ctx, sessionID, mode); err != nil {
		// Гонка с завершением или истечением после проверки статуса выше
		if errors.Is(err, repository.ErrSessionAlreadyEnded) || errors.Is(err, repository.ErrSessionExpired) {
			return ErrSessionNotActive
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AttachSummary прикрепляет итог к сессии. Допустимо и для завершённых
// сессий: итог формируется после окончания диалога.
func (s *Service) AttachSummary(ctx context.Context, userID, sessionID, summary string) error {
	const op = "services.session.AttachSummary"

	session, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if session.UserID != userID {
		return ErrNotSessionOwner
	}

	if len(summary) > maxSummaryLength {
		summary = summary[:maxSummaryLength]
	}
	if err := s.sessions.AttachSummary(ctx, sessionID, summary); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) publish(eventType string, session *models.Session) {
	if s.publisher == nil {
		return
	}
	event := events.SessionEvent{
		Type:        eventType,
		SessionID:   session.ID,
		UserID:      session.UserID,
		SessionType: session.SessionType,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.publisher.PublishSessionEvent(event); err != nil {
		s.log.Warn("failed to publish session event", sl.Err(err))
	}
}
