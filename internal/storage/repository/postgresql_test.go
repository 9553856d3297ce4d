package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdohealth/chat-backend/internal/models"
)

func TestCreateUser_DuplicateEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	id, err := storage.CreateUser(ctx, "User@Example.com", "hash", "Test User", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Почта нормализуется к нижнему регистру, повтор — конфликт
	_, err = storage.CreateUser(ctx, "user@example.com", "hash2", "", nil)
	assert.ErrorIs(t, err, ErrEmailTaken)

	user, err := storage.GetUserByEmail(ctx, "USER@example.COM")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, 1, user.FreemiumLimit)
	assert.True(t, user.StoreHistory)
}

func TestGetUserCredits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	tests := []struct {
		name         string
		limit, used  int
		entitlements func(userID string)
		wantFree     int
		wantPaid     int
	}{
		{
			name:  "только бесплатный кредит",
			limit: 1, used: 0,
			entitlements: func(string) {},
			wantFree:     1, wantPaid: 0,
		},
		{
			name:  "бесплатный исчерпан, есть оплаченные",
			limit: 1, used: 1,
			entitlements: func(userID string) {
				factory.CreateEntitlement(t, userID, 10, 3, nil)
			},
			wantFree: 0, wantPaid: 7,
		},
		{
			name:  "просроченный пакет не считается",
			limit: 1, used: 1,
			entitlements: func(userID string) {
				past := time.Now().Add(-time.Hour)
				factory.CreateEntitlement(t, userID, 10, 0, &past)
			},
			wantFree: 0, wantPaid: 0,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := factory.CreateUser(t, "credits"+string(rune('a'+i))+"@example.com", tt.limit, tt.used)
			tt.entitlements(userID)

			balance, err := storage.GetUserCredits(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFree, balance.FreeRemaining)
			assert.Equal(t, tt.wantPaid, balance.PaidRemaining)
			assert.Equal(t, tt.wantFree+tt.wantPaid, balance.TotalAvailable)
		})
	}
}

func TestGetUserCredits_UnknownUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	balance, err := storage.GetUserCredits(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, 0, balance.TotalAvailable)
}

func TestConsumeCredit_FreeBeforePaid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "consume@example.com", 1, 0)
	factory.CreateEntitlement(t, userID, 1, 0, nil)

	// Первое списание берёт бесплатный кредит
	res, err := storage.ConsumeCredit(ctx, userID, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.SessionTypeFreemium, res.SessionType)
	assert.Equal(t, 5, res.DurationMinutes)

	// Второе — оплаченный
	res, err = storage.ConsumeCredit(ctx, userID, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.SessionTypePaid, res.SessionType)
	assert.Equal(t, 45, res.DurationMinutes)

	// Третье — отказ без ошибки
	res, err = storage.ConsumeCredit(ctx, userID, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No session credits available", res.Message)
}

func TestConsumeCredit_ConcurrentSingleSuccess(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	// Ровно один кредит и десять одновременных списаний
	userID := factory.CreateUser(t, "race@example.com", 1, 0)

	const workers = 10
	var wg sync.WaitGroup
	results := make([]*models.ConsumeResult, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := storage.ConsumeCredit(ctx, userID, nil)
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestGrantCredits_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "grant@example.com", 1, 1)
	orderRef := "wc-order-1001"

	res, err := storage.GrantCredits(ctx, userID, 5, "woocommerce", &orderRef, nil)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, 5, res.SessionsAdded)
	assert.Equal(t, 5, res.NewBalance)

	// Повторный вызов с тем же order_reference ничего не добавляет
	res, err = storage.GrantCredits(ctx, userID, 5, "woocommerce", &orderRef, nil)
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.Equal(t, 0, res.SessionsAdded)
	assert.Equal(t, 5, res.NewBalance)
}

func TestSessionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "session@example.com", 1, 0)

	session, err := storage.CreateSession(ctx, userID, nil, models.SessionTypeFreemium, 5)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, session.Status)
	assert.Equal(t, models.ModeIntake, session.Mode)
	assert.Positive(t, session.RemainingSeconds)
	assert.InDelta(t, 5*60, session.RemainingSeconds, 2)

	got, err := storage.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, models.SessionStatusActive, got.Status)

	require.NoError(t, storage.UpdateSessionMode(ctx, session.ID, models.ModeAdvice))

	ended, err := storage.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, ended.Status)
	assert.Equal(t, models.ModeEnded, ended.Mode)
	require.NotNil(t, ended.EndedAt)

	// Повторное завершение — ошибка
	_, err = storage.EndSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionAlreadyEnded)

	// Завершённую сессию нельзя переключить в другой режим; ошибка
	// отличает терминальный статус от отсутствующей сессии
	err = storage.UpdateSessionMode(ctx, session.ID, models.ModeReflection)
	assert.ErrorIs(t, err, ErrSessionAlreadyEnded)

	err = storage.UpdateSessionMode(ctx, "00000000-0000-0000-0000-000000000000", models.ModeReflection)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Но summary прикрепить можно
	require.NoError(t, storage.AttachSummary(ctx, session.ID, "Session summary text"))
	got, err = storage.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Session summary text", got.Summary)
}

func TestGetSessionByID_LazyExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "expiry@example.com", 1, 0)
	sessionID := factory.CreateExpiredSession(t, userID)

	session, err := storage.GetSessionByID(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusExpired, session.Status)
	assert.Zero(t, session.RemainingSeconds)

	// Завершить просроченную сессию уже нельзя
	_, err = storage.EndSession(ctx, sessionID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHistoryPreference_Schedule(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "history@example.com", 1, 0)
	grace := 30 * 24 * time.Hour

	pref, err := storage.GetHistoryPreference(ctx, userID)
	require.NoError(t, err)
	assert.True(t, pref.StoreHistory)
	assert.Nil(t, pref.DeletionScheduledAt)

	// Отключение истории планирует удаление
	pref, err = storage.SetHistoryPreference(ctx, userID, false, grace)
	require.NoError(t, err)
	assert.False(t, pref.StoreHistory)
	require.NotNil(t, pref.DeletionScheduledAt)
	firstSchedule := *pref.DeletionScheduledAt

	// Повторное отключение не передвигает срок
	pref, err = storage.SetHistoryPreference(ctx, userID, false, grace)
	require.NoError(t, err)
	require.NotNil(t, pref.DeletionScheduledAt)
	assert.Equal(t, firstSchedule, *pref.DeletionScheduledAt)

	// Включение обратно снимает запланированное удаление
	pref, err = storage.SetHistoryPreference(ctx, userID, true, grace)
	require.NoError(t, err)
	assert.True(t, pref.StoreHistory)
	assert.Nil(t, pref.DeletionScheduledAt)
}

func TestListSessionsForHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "list@example.com", 5, 0)
	for range 3 {
		session, err := storage.CreateSession(ctx, userID, nil, models.SessionTypeFreemium, 5)
		require.NoError(t, err)
		factory.CreateTurn(t, session.ID, models.RoleUser, "hello")
		factory.CreateTurn(t, session.ID, models.RoleAssistant, "hi, how can I help?")
	}

	history, err := storage.ListSessionsForHistory(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, history.Total)
	assert.Len(t, history.Sessions, 2)
	assert.True(t, history.HasMore)
	assert.Equal(t, 2, history.Sessions[0].MessageCount)
	assert.Equal(t, "hi, how can I help?", history.Sessions[0].LastMessagePreview)

	history, err = storage.ListSessionsForHistory(ctx, userID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, history.Sessions, 1)
	assert.False(t, history.HasMore)
}

func TestPurgeHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, "purge@example.com", 5, 0)
	session, err := storage.CreateSession(ctx, userID, nil, models.SessionTypeFreemium, 5)
	require.NoError(t, err)
	factory.CreateTurn(t, session.ID, models.RoleUser, "to be deleted")

	_, err = storage.SetHistoryPreference(ctx, userID, false, -time.Hour)
	require.NoError(t, err)

	due, err := storage.ListUsersDueForDeletion(ctx, 100)
	require.NoError(t, err)
	require.Contains(t, due, userID)

	count, err := storage.PurgeHistory(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	turns, err := storage.ListSessionMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, storage.ClearDeletionSchedule(ctx, userID))
	due, err = storage.ListUsersDueForDeletion(ctx, 100)
	require.NoError(t, err)
	assert.NotContains(t, due, userID)
}

func TestSyncWordPressUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	// Нового пользователя создаёт
	userID, status, err := storage.SyncWordPressUser(ctx, 42, "wp@example.com", "WP User", nil)
	require.NoError(t, err)
	assert.Equal(t, "created", status)
	require.NotEmpty(t, userID)

	// Повторный вызов по тому же wp_user_id обновляет
	sameID, status, err := storage.SyncWordPressUser(ctx, 42, "wp-new@example.com", "WP Renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, "updated", status)
	assert.Equal(t, userID, sameID)

	// Существующий локальный аккаунт связывается по почте
	localID, err := storage.CreateUser(ctx, "local@example.com", "hash", "Local", nil)
	require.NoError(t, err)
	linkedID, status, err := storage.SyncWordPressUser(ctx, 77, "local@example.com", "Local", nil)
	require.NoError(t, err)
	assert.Equal(t, "linked", status)
	assert.Equal(t, localID, linkedID)
}

func TestPasswordResetFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	userID, err := storage.CreateUser(ctx, "reset@example.com", "oldhash", "", nil)
	require.NoError(t, err)

	ok, err := storage.SetPasswordResetToken(ctx, "reset@example.com", "token-123", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	// Неизвестная почта — false без ошибки
	ok, err = storage.SetPasswordResetToken(ctx, "nobody@example.com", "token-456", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	user, err := storage.GetUserByResetToken(ctx, "token-123")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	require.NoError(t, storage.UpdateUserPassword(ctx, userID, "newhash"))

	// Токен одноразовый
	_, err = storage.GetUserByResetToken(ctx, "token-123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
