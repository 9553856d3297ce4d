package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gdohealth/chat-backend/internal/lib/jwt"
	"github.com/gdohealth/chat-backend/internal/lib/password"
	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/services/auth"
	"github.com/gdohealth/chat-backend/internal/storage/repository"
)

// Мок для UserRepository
type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, email, passwordHash, displayName string, wpUserID *int64) (string, error) {
	args := m.Called(ctx, email, passwordHash, displayName, wpUserID)
	return args.String(0), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateUserProfile(ctx context.Context, userID string, displayName *string) (*models.User, error) {
	args := m.Called(ctx, userID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateLastLogin(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *UserRepoMock) SetPasswordResetToken(ctx context.Context, email, token string, expiresIn time.Duration) (bool, error) {
	args := m.Called(ctx, email, token, expiresIn)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepoMock) GetUserByResetToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

func (m *UserRepoMock) SyncWordPressUser(ctx context.Context, wpUserID int64, email, displayName string, createdAt *time.Time) (string, string, error) {
	args := m.Called(ctx, wpUserID, email, displayName, createdAt)
	return args.String(0), args.String(1), args.Error(2)
}

func newService(repo *UserRepoMock) *auth.Service {
	maker := jwt.NewMaker("test-secret", time.Hour, 30*time.Minute, false)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.New(repo, maker, log)
}

func TestService_Register(t *testing.T) {
	repo := new(UserRepoMock)
	repo.On("CreateUser", mock.Anything, "test@example.com", mock.MatchedBy(func(hash string) bool {
		return hash != "" && hash != "password123"
	}), "Test User", (*int64)(nil)).Return("user-uuid", nil).Once()
	repo.On("GetUserByID", mock.Anything, "user-uuid").
		Return(&models.User{ID: "user-uuid", Email: "test@example.com"}, nil).Once()

	svc := newService(repo)
	token, user, err := svc.Register(context.Background(), "test@example.com", "password123", "Test User")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "user-uuid", user.ID)
	repo.AssertExpectations(t)
}

func TestService_Register_EmailTaken(t *testing.T) {
	repo := new(UserRepoMock)
	repo.On("CreateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", repository.ErrEmailTaken).Once()

	svc := newService(repo)
	_, _, err := svc.Register(context.Background(), "taken@example.com", "password123", "")

	assert.ErrorIs(t, err, auth.ErrEmailTaken)
	repo.AssertExpectations(t)
}

func TestService_Login(t *testing.T) {
	hash, err := password.GetHash("password123")
	require.NoError(t, err)

	tests := []struct {
		name       string
		email      string
		rawPass    string
		setupMocks func(r *UserRepoMock)
		wantErr    error
	}{
		{
			name:    "successful login",
			email:   "test@example.com",
			rawPass: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "test@example.com").
					Return(&models.User{ID: "user-uuid", Email: "test@example.com", PasswordHash: hash}, nil).Once()
				r.On("UpdateLastLogin", mock.Anything, "user-uuid").Return(nil).Once()
			},
		},
		{
			name:    "wrong password",
			email:   "test@example.com",
			rawPass: "wrong-password",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "test@example.com").
					Return(&models.User{ID: "user-uuid", PasswordHash: hash}, nil).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:    "unknown email",
			email:   "nobody@example.com",
			rawPass: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "nobody@example.com").
					Return(nil, repository.ErrUserNotFound).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:    "passwordless wordpress account",
			email:   "wp@example.com",
			rawPass: "password123",
			setupMocks: func(r *UserRepoMock) {
				r.On("GetUserByEmail", mock.Anything, "wp@example.com").
					Return(&models.User{ID: "wp-uuid", PasswordHash: ""}, nil).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			tt.setupMocks(repo)

			svc := newService(repo)
			token, _, err := svc.Login(context.Background(), tt.email, tt.rawPass)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, token)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Login_LastLoginFailureIsNotFatal(t *testing.T) {
	hash, err := password.GetHash("password123")
	require.NoError(t, err)

	repo := new(UserRepoMock)
	repo.On("GetUserByEmail", mock.Anything, "test@example.com").
		Return(&models.User{ID: "user-uuid", PasswordHash: hash}, nil).Once()
	repo.On("UpdateLastLogin", mock.Anything, "user-uuid").
		Return(errors.New("db is down")).Once()

	svc := newService(repo)
	token, _, err := svc.Login(context.Background(), "test@example.com", "password123")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	repo.AssertExpectations(t)
}

func TestService_ForgotPassword_AlwaysOK(t *testing.T) {
	tests := []struct {
		name  string
		found bool
	}{
		{name: "known email", found: true},
		{name: "unknown email", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(UserRepoMock)
			repo.On("SetPasswordResetToken", mock.Anything, "someone@example.com", mock.Anything, time.Hour).
				Return(tt.found, nil).Once()

			svc := newService(repo)
			err := svc.ForgotPassword(context.Background(), "someone@example.com")

			assert.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_ResetPassword(t *testing.T) {
	repo := new(UserRepoMock)
	repo.On("GetUserByResetToken", mock.Anything, "valid-token").
		Return(&models.User{ID: "user-uuid"}, nil).Once()
	repo.On("UpdateUserPassword", mock.Anything, "user-uuid", mock.MatchedBy(func(hash string) bool {
		return password.CompareHash(hash, "new-password-123") == nil
	})).Return(nil).Once()

	svc := newService(repo)
	err := svc.ResetPassword(context.Background(), "valid-token", "new-password-123")

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestService_ResetPassword_InvalidToken(t *testing.T) {
	repo := new(UserRepoMock)
	repo.On("GetUserByResetToken", mock.Anything, "stale-token").
		Return(nil, repository.ErrUserNotFound).Once()

	svc := newService(repo)
	err := svc.ResetPassword(context.Background(), "stale-token", "new-password-123")

	assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
	repo.AssertExpectations(t)
}
