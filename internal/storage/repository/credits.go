package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gdohealth/chat-backend/internal/models"
)

// GetUserCredits возвращает баланс кредитов через хранимую функцию
// get_user_credits. Чистое чтение, ничего не изменяет.
func (s *Storage) GetUserCredits(ctx context.Context, userID string) (*models.CreditBalance, error) {
	const op = "storage.GetUserCredits"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	balance := &models.CreditBalance{}
	var free, paid, total sql.NullInt64
	err := s.DB.QueryRowContext(ctx, `SELECT * FROM get_user_credits($1)`, userID).
		Scan(&free, &paid, &total)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return balance, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	balance.FreeRemaining = int(free.Int64)
	balance.PaidRemaining = int(paid.Int64)
	balance.TotalAvailable = int(total.Int64)
	return balance, nil
}

// ConsumeCredit атомарно списывает один кредит через хранимую функцию
// use_session_with_duration: сначала бесплатный, затем оплаченный.
// При конкурентных вызовах для одного пользователя с единственным
// оставшимся кредитом ровно один вызов вернёт success = true.
func (s *Storage) ConsumeCredit(ctx context.Context, userID string, expertID *string) (*models.ConsumeResult, error) {
	const op = "storage.ConsumeCredit"

	result := &models.ConsumeResult{}
	var sessionType sql.NullString
	var durationMinutes sql.NullInt64
	err := s.DB.QueryRowContext(ctx, `SELECT * FROM use_session_with_duration($1, $2)`,
		userID, expertID).
		Scan(&result.Success, &sessionType, &durationMinutes, &result.Message)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result.SessionType = sessionType.String
	result.DurationMinutes = int(durationMinutes.Int64)
	return result, nil
}

// GrantCredits начисляет пакет оплаченных сессий. Операция идемпотентна по
// orderReference: повторная обработка того же заказа возвращает исходный
// entitlement с AlreadyProcessed = true и ничего не добавляет.
func (s *Storage) GrantCredits(ctx context.Context, userID string, count int, source string, orderReference *string, validDays *int) (*models.GrantResult, error) {
	const op = "storage.GrantCredits"

	var validUntil *time.Time
	if validDays != nil {
		t := time.Now().UTC().AddDate(0, 0, *validDays)
		validUntil = &t
	}

	var entitlementID string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO entitlements
			  (id, user_id, source, sessions_total, order_reference, valid_until)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (order_reference) DO NOTHING
			  RETURNING id`,
		uuid.NewString(), userID, source, count, orderReference, validUntil).Scan(&entitlementID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// Конфликт по order_reference: заказ уже обработан.
		err = s.DB.QueryRowContext(ctx, `SELECT id FROM entitlements WHERE order_reference = $1`,
			orderReference).Scan(&entitlementID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		balance, err := s.GetUserCredits(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &models.GrantResult{
			EntitlementID:    entitlementID,
			SessionsAdded:    0,
			NewBalance:       balance.TotalAvailable,
			AlreadyProcessed: true,
		}, nil
	}

	balance, err := s.GetUserCredits(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.GrantResult{
		EntitlementID: entitlementID,
		SessionsAdded: count,
		NewBalance:    balance.TotalAvailable,
	}, nil
}
