package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gdohealth/chat-backend/internal/models"
)

const pgUniqueViolation = "23505"

// NormalizeEmail приводит адрес к каноническому виду: нижний регистр,
// без окружающих пробелов. Уникальность email сравнивается по этому виду.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser сохраняет нового пользователя и возвращает его ID.
// Повторная регистрация email возвращает ErrEmailTaken.
func (s *Storage) CreateUser(ctx context.Context, email, passwordHash, displayName string, wpUserID *int64) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (id, email, password_hash, display_name, wp_user_id)
			  VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
			  RETURNING id;`
	err := s.DB.QueryRowContext(ctx, query,
		uuid.NewString(), NormalizeEmail(email), passwordHash, displayName, wpUserID).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

const userColumns = `id, email, COALESCE(password_hash, ''), COALESCE(display_name, ''),
			  account_type, email_verified, wp_user_id, freemium_limit, freemium_used,
			  store_history, history_pref_changed_at, history_deletion_scheduled_at,
			  created_at, last_login`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var wpUserID sql.NullInt64
	var prefChangedAt, deletionAt, lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.AccountType, &u.EmailVerified, &wpUserID, &u.FreemiumLimit, &u.FreemiumUsed,
		&u.StoreHistory, &prefChangedAt, &deletionAt,
		&u.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if wpUserID.Valid {
		u.WPUserID = &wpUserID.Int64
	}
	if prefChangedAt.Valid {
		u.HistoryPrefChangedAt = &prefChangedAt.Time
	}
	if deletionAt.Valid {
		u.HistoryDeletionScheduledAt = &deletionAt.Time
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по его ID.
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUserProfile обновляет отображаемое имя и возвращает свежий профиль.
func (s *Storage) UpdateUserProfile(ctx context.Context, userID string, displayName *string) (*models.User, error) {
	const op = "storage.UpdateUserProfile"

	query := `UPDATE users
			  SET display_name = COALESCE($2, display_name)
			  WHERE id = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID, displayName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateLastLogin отмечает время последнего входа.
func (s *Storage) UpdateLastLogin(ctx context.Context, userID string) error {
	const op = "storage.UpdateLastLogin"

	_, err := s.DB.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetPasswordResetToken сохраняет токен сброса пароля со сроком действия.
// Возвращает false, если пользователя с таким email нет.
func (s *Storage) SetPasswordResetToken(ctx context.Context, email, token string, expiresIn time.Duration) (bool, error) {
	const op = "storage.SetPasswordResetToken"

	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET password_reset_token = $1,
			      password_reset_expires = NOW() + make_interval(secs => $2)
			  WHERE email = $3`,
		token, expiresIn.Seconds(), NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected == 1, nil
}

// GetUserByResetToken возвращает пользователя по действующему токену сброса.
func (s *Storage) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	const op = "storage.GetUserByResetToken"

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE password_reset_token = $1
			    AND password_reset_expires > NOW()`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUserPassword меняет пароль и сбрасывает токен восстановления.
func (s *Storage) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	const op = "storage.UpdateUserPassword"

	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET password_hash = $1,
			      password_reset_token = NULL,
			      password_reset_expires = NULL
			  WHERE id = $2`,
		passwordHash, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// SyncWordPressUser выполняет upsert пользователя из WordPress:
// совпадение по wp_user_id обновляет запись, совпадение по email связывает
// аккаунты, иначе создаётся новый пользователь без пароля.
func (s *Storage) SyncWordPressUser(ctx context.Context, wpUserID int64, email, displayName string, createdAt *time.Time) (userID, status string, err error) {
	const op = "storage.SyncWordPressUser"
	email = NormalizeEmail(email)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE wp_user_id = $1`, wpUserID).Scan(&existingID)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE users
				  SET email = $1, display_name = COALESCE(NULLIF($2, ''), display_name)
				  WHERE wp_user_id = $3`,
			email, displayName, wpUserID)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		if err = tx.Commit(); err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		return existingID, "updated", nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&existingID)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx, `UPDATE users
				  SET wp_user_id = $1, display_name = COALESCE(NULLIF($2, ''), display_name)
				  WHERE email = $3`,
			wpUserID, displayName, email)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		if err = tx.Commit(); err != nil {
			return "", "", fmt.Errorf("%s: %w", op, err)
		}
		return existingID, "linked", nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	var newID string
	err = tx.QueryRowContext(ctx, `INSERT INTO users (id, email, display_name, wp_user_id, created_at)
			  VALUES ($1, $2, NULLIF($3, ''), $4, COALESCE($5, NOW()))
			  RETURNING id`,
		uuid.NewString(), email, displayName, wpUserID, createdAt).Scan(&newID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err = tx.Commit(); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, "created", nil
}
