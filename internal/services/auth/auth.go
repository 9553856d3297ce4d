// Package auth содержит логику бизнес-уровня для регистрации, входа
// и восстановления пароля.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gdohealth/chat-backend/internal/lib/jwt"
	"github.com/gdohealth/chat-backend/internal/lib/password"
	"github.com/gdohealth/chat-backend/internal/lib/sl"
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Ошибки бизнес-уровня аутентификации.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// Время жизни токена восстановления пароля.
const resetTokenTTL = time.Hour

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash, displayName string, wpUserID *int64) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID string, displayName *string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	SetPasswordResetToken(ctx context.Context, email, token string, expiresIn time.Duration) (bool, error)
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	SyncWordPressUser(ctx context.Context, wpUserID int64, email, displayName string, createdAt *time.Time) (string, string, error)
}

// Service отвечает за регистрацию, авторизацию и восстановление пароля.
type Service struct {
	users    UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(users UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Register создает нового пользователя с хэшированием пароля и сразу
// выдаёт токен, чтобы клиент не делал второй запрос на вход.
func (s *Service) Register(ctx context.Context, email, rawPassword, displayName string) (string, *models.User, error) {
	const op = "services.auth.Register"

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := s.users.CreateUser(ctx, email, hashed, displayName, nil)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.CreateToken(userID, map[string]any{"email": user.Email})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// Login проверяет пароль пользователя и генерирует JWT. Несуществующая
// почта и неверный пароль неразличимы для клиента.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "services.auth.Login"

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	// У аккаунтов, синхронизированных из WordPress, пароля может не быть
	if user.PasswordHash == "" {
		return "", nil, ErrInvalidCredentials
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwtMaker.CreateToken(user.ID, map[string]any{"email": user.Email})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.log.Warn("failed to update last login", sl.Err(err))
	}
	return token, user, nil
}

// ForgotPassword генерирует одноразовый токен восстановления. Ответ
// одинаков для существующей и несуществующей почты, чтобы не раскрывать
// зарегистрированные адреса.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "services.auth.ForgotPassword"

	token := uuid.NewString()
	ok, err := s.users.SetPasswordResetToken(ctx, email, token, resetTokenTTL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		// Доставка токена — забота внешнего контура, здесь только журнал
		s.log.Info("password reset token issued", slog.String("email", email))
	}
	return nil
}

// ResetPassword устанавливает новый пароль по одноразовому токену.
func (s *Service) ResetPassword(ctx context.Context, token, rawPassword string) error {
	const op = "services.auth.ResetPassword"

	user, err := s.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetProfile возвращает пользователя по идентификатору.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateProfile обновляет отображаемое имя пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userID string, displayName *string) (*models.User, error) {
	return s.users.UpdateUserProfile(ctx, userID, displayName)
}

// SyncWordPressUser создаёт, связывает или обновляет аккаунт по данным
// из WordPress. Возвращает идентификатор пользователя и статус операции:
// created, linked или updated.
func (s *Service) SyncWordPressUser(ctx context.Context, wpUserID int64, email, displayName string, createdAt *time.Time) (string, string, error) {
	return s.users.SyncWordPressUser(ctx, wpUserID, email, displayName, createdAt)
}

// DevToken выпускает токен для указанного subject без проверки пароля.
// Используется только в окружениях разработки.
func (s *Service) DevToken(_ context.Context, subject string) (string, error) {
	return s.jwtMaker.CreateToken(subject, map[string]any{"dev": true})
}
