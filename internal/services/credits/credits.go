// Package credits содержит логику бизнес-уровня для учёта кредитов сессий.
package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdohealth/chat-backend/internal/models"
)

// ErrInvalidGrant возвращается при попытке начислить неположительное
// число сессий.
var ErrInvalidGrant = errors.New("sessions count must be positive")

// CreditRepository описывает контракт для работы с кредитами в базе данных.
type CreditRepository interface {
	GetUserCredits(ctx context.Context, userID string) (*models.CreditBalance, error)
	ConsumeCredit(ctx context.Context, userID string, expertID *string) (*models.ConsumeResult, error)
	GrantCredits(ctx context.Context, userID string, count int, source string, orderReference *string, validDays *int) (*models.GrantResult, error)
}

// Service отвечает за чтение баланса и начисление кредитов. Списание
// кредита живёт в сервисе сессий: кредит расходуется только созданием
// сессии и никогда сам по себе.
type Service struct {
	credits CreditRepository
}

// New создает новый экземпляр Service.
func New(credits CreditRepository) *Service {
	return &Service{credits: credits}
}

// GetBalance возвращает текущий баланс кредитов пользователя.
func (s *Service) GetBalance(ctx context.Context, userID string) (*models.CreditBalance, error) {
	return s.credits.GetUserCredits(ctx, userID)
}

// Grant начисляет пакет оплаченных сессий. Повторная обработка того же
// orderReference ничего не добавляет.
func (s *Service) Grant(ctx context.Context, userID string, count int, source string, orderReference *string, validDays *int) (*models.GrantResult, error) {
	const op = "services.credits.Grant"

	if count <= 0 {
		return nil, ErrInvalidGrant
	}
	result, err := s.credits.GrantCredits(ctx, userID, count, source, orderReference, validDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
