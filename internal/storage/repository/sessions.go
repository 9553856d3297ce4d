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

const sessionColumns = `id, user_id, expert_id, mode, session_type, duration_minutes,
			  status, intake_score, COALESCE(summary, ''), message_count,
			  created_at, expires_at, ended_at`

func scanSession(row *sql.Row) (*models.Session, error) {
	sess := &models.Session{}
	var expertID sql.NullString
	var intakeScore sql.NullInt64
	var endedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.UserID, &expertID, &sess.Mode, &sess.SessionType,
		&sess.DurationMinutes, &sess.Status, &intakeScore, &sess.Summary,
		&sess.MessageCount, &sess.CreatedAt, &sess.ExpiresAt, &endedAt)
	if err != nil {
		return nil, err
	}
	if expertID.Valid {
		sess.ExpertID = &expertID.String
	}
	if intakeScore.Valid {
		score := int(intakeScore.Int64)
		sess.IntakeScore = &score
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	sess.ComputeRemainingSeconds(time.Now().UTC())
	return sess, nil
}

// CreateSession создаёт сессию с таймером: expires_at = created_at + duration.
// Вызывается только после успешного списания кредита.
func (s *Storage) CreateSession(ctx context.Context, userID string, expertID *string, sessionType string, durationMinutes int) (*models.Session, error) {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	createdAt := time.Now().UTC()
	expiresAt := createdAt.Add(time.Duration(durationMinutes) * time.Minute)

	query := `INSERT INTO sessions
			  (id, user_id, expert_id, session_type, mode, duration_minutes,
			   created_at, updated_at, expires_at, status)
			  VALUES ($1, $2, $3, $4, 'intake', $5, $6, $6, $7, 'active')
			  RETURNING ` + sessionColumns
	sess, err := scanSession(s.DB.QueryRowContext(ctx, query,
		uuid.NewString(), userID, expertID, sessionType, durationMinutes, createdAt, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// GetSessionByID возвращает сессию, лениво переводя её из active в expired,
// если таймер уже истёк. Переход идемпотентен: конкурентные читатели
// записывают один и тот же статус.
func (s *Storage) GetSessionByID(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "storage.GetSessionByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx, `UPDATE sessions
			  SET status = 'expired', updated_at = NOW()
			  WHERE id = $1 AND status = 'active' AND expires_at <= NOW()`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	sess, err := scanSession(s.DB.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

// EndSession завершает активную сессию и возвращает её с проставленным
// ended_at. Сессия в терминальном статусе не завершается повторно:
// для ended возвращается ErrSessionAlreadyEnded, для истёкшей — ErrSessionExpired.
func (s *Storage) EndSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "storage.EndSession"

	// Сначала ленивый переход по таймеру, чтобы активная, но уже
	// просроченная сессия не завершалась как живая.
	_, err := s.DB.ExecContext(ctx, `UPDATE sessions
			  SET status = 'expired', updated_at = NOW()
			  WHERE id = $1 AND status = 'active' AND expires_at <= NOW()`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE sessions
			  SET status = 'ended', mode = 'ended', ended_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND status = 'active'
			  RETURNING ` + sessionColumns
	sess, err := scanSession(s.DB.QueryRowContext(ctx, query, sessionID))
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var status string
	err = s.DB.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1`, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if status == models.SessionStatusExpired {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}
	return nil, fmt.Errorf("%s: %w", op, ErrSessionAlreadyEnded)
}

// UpdateSessionMode меняет режим диалога активной сессии. Если строка не
// обновилась, различает отсутствующую сессию и сессию в терминальном
// статусе, как это делает EndSession.
func (s *Storage) UpdateSessionMode(ctx context.Context, sessionID, mode string) error {
	const op = "storage.UpdateSessionMode"

	res, err := s.DB.ExecContext(ctx, `UPDATE sessions
			  SET mode = $1, updated_at = NOW()
			  WHERE id = $2 AND status = 'active'`,
		mode, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = s.DB.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1`, sessionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if status == models.SessionStatusExpired {
		return fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}
	return fmt.Errorf("%s: %w", op, ErrSessionAlreadyEnded)
}

// AttachSummary сохраняет summary сессии. Терминальные статусы неизменяемы,
// кроме прикрепления summary, поэтому статус здесь не проверяется.
func (s *Storage) AttachSummary(ctx context.Context, sessionID, summary string) error {
	const op = "storage.AttachSummary"

	res, err := s.DB.ExecContext(ctx, `UPDATE sessions
			  SET summary = $1, updated_at = NOW()
			  WHERE id = $2`,
		summary, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	return nil
}
