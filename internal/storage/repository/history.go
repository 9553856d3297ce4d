package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gdohealth/chat-backend/internal/models"
)

// GetHistoryPreference возвращает настройку хранения истории пользователя.
func (s *Storage) GetHistoryPreference(ctx context.Context, userID string) (*models.HistoryPreference, error) {
	const op = "storage.GetHistoryPreference"

	pref := &models.HistoryPreference{}
	var changedAt, deletionAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT store_history, history_pref_changed_at,
			      history_deletion_scheduled_at
			  FROM users WHERE id = $1`, userID).
		Scan(&pref.StoreHistory, &changedAt, &deletionAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if changedAt.Valid {
		pref.ChangedAt = &changedAt.Time
	}
	if deletionAt.Valid {
		pref.DeletionScheduledAt = &deletionAt.Time
	}
	return pref, nil
}

// SetHistoryPreference меняет настройку хранения истории. Переход
// true -> false планирует удаление через grace-период, false -> true
// снимает запланированное удаление. Повторное отключение не передвигает
// уже назначенный срок.
func (s *Storage) SetHistoryPreference(ctx context.Context, userID string, storeHistory bool, gracePeriod time.Duration) (*models.HistoryPreference, error) {
	const op = "storage.SetHistoryPreference"

	pref := &models.HistoryPreference{}
	var changedAt, deletionAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, `UPDATE users
			  SET store_history = $2,
			      history_pref_changed_at = NOW(),
			      history_deletion_scheduled_at = CASE
			          WHEN $2 THEN NULL
			          WHEN history_deletion_scheduled_at IS NOT NULL THEN history_deletion_scheduled_at
			          ELSE NOW() + make_interval(secs => $3)
			      END
			  WHERE id = $1
			  RETURNING store_history, history_pref_changed_at, history_deletion_scheduled_at`,
		userID, storeHistory, gracePeriod.Seconds()).
		Scan(&pref.StoreHistory, &changedAt, &deletionAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if changedAt.Valid {
		pref.ChangedAt = &changedAt.Time
	}
	if deletionAt.Valid {
		pref.DeletionScheduledAt = &deletionAt.Time
	}
	return pref, nil
}

// ListSessionsForHistory возвращает страницу истории сессий пользователя
// с количеством сообщений и превью последней реплики.
func (s *Storage) ListSessionsForHistory(ctx context.Context, userID string, limit, offset int) (*models.SessionHistory, error) {
	const op = "storage.ListSessionsForHistory"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = $1`, userID).
		Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT
			      s.id,
			      s.expert_id,
			      e.name AS expert_name,
			      s.session_type,
			      s.created_at AS started_at,
			      s.ended_at,
			      (SELECT COUNT(*) FROM conversation_turns ct WHERE ct.session_id = s.id) AS message_count,
			      (SELECT SUBSTRING(ct.content, 1, 100)
			       FROM conversation_turns ct
			       WHERE ct.session_id = s.id
			       ORDER BY ct.created_at DESC
			       LIMIT 1) AS last_message_preview
			  FROM sessions s
			  LEFT JOIN experts e ON s.expert_id = e.id
			  WHERE s.user_id = $1
			  ORDER BY s.created_at DESC
			  LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	history := &models.SessionHistory{
		Sessions: []models.SessionHistoryItem{},
		Total:    total,
		HasMore:  offset+limit < total,
	}
	for rows.Next() {
		var item models.SessionHistoryItem
		var expertID, expertName, preview sql.NullString
		var endedAt sql.NullTime
		if err = rows.Scan(&item.ID, &expertID, &expertName, &item.SessionType,
			&item.StartedAt, &endedAt, &item.MessageCount, &preview); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if expertID.Valid {
			item.ExpertID = &expertID.String
		}
		if expertName.Valid {
			item.ExpertName = &expertName.String
		}
		if endedAt.Valid {
			item.EndedAt = &endedAt.Time
		}
		item.LastMessagePreview = preview.String
		history.Sessions = append(history.Sessions, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}

// ListSessionMessages возвращает сообщения сессии в порядке создания.
func (s *Storage) ListSessionMessages(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	const op = "storage.ListSessionMessages"

	rows, err := s.DB.QueryContext(ctx, `SELECT id, session_id, role, content, created_at
			  FROM conversation_turns
			  WHERE session_id = $1
			  ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	turns := []models.ConversationTurn{}
	for rows.Next() {
		var turn models.ConversationTurn
		if err = rows.Scan(&turn.ID, &turn.SessionID, &turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		turns = append(turns, turn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return turns, nil
}

// ListUsersDueForDeletion возвращает пользователей, чей grace-период
// после отключения истории уже истёк.
func (s *Storage) ListUsersDueForDeletion(ctx context.Context, limit int) ([]string, error) {
	const op = "storage.ListUsersDueForDeletion"

	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM users
			  WHERE store_history = FALSE
			    AND history_deletion_scheduled_at IS NOT NULL
			    AND history_deletion_scheduled_at <= NOW()
			  LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var userIDs []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		userIDs = append(userIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return userIDs, nil
}

// PurgeHistory удаляет все сессии пользователя; сообщения удаляются
// каскадно. Возвращает число удалённых сессий.
func (s *Storage) PurgeHistory(ctx context.Context, userID string) (int64, error) {
	const op = "storage.PurgeHistory"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ClearDeletionSchedule снимает отметку о запланированном удалении
// после успешной очистки.
func (s *Storage) ClearDeletionSchedule(ctx context.Context, userID string) error {
	const op = "storage.ClearDeletionSchedule"

	_, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET history_deletion_scheduled_at = NULL
			  WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
