package preferencesupdate

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/gdohealth/chat-backend/internal/http/middlewarectx"
	"github.com/gdohealth/chat-backend/internal/models"
)

// MockService реализует интерфейс preferencesupdate.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) SetPreference(ctx context.Context, userID string, storeHistory bool) (*models.HistoryPreference, error) {
	args := m.Called(ctx, userID, storeHistory)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HistoryPreference), args.Error(1)
}

func TestPreferencesUpdateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	changedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	scheduledAt := changedAt.Add(720 * time.Hour)

	tests := []struct {
		name           string
		requestBody    string
		authorized     bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "отключение истории планирует удаление",
			requestBody: `{"store_history":false}`,
			authorized:  true,
			setupMock: func(m *MockService) {
				m.On("SetPreference", mock.Anything, "user123", false).
					Return(&models.HistoryPreference{
						StoreHistory:        false,
						ChangedAt:           &changedAt,
						DeletionScheduledAt: &scheduledAt,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"store_history":false,"changed_at":"2025-06-01T12:00:00Z","deletion_scheduled_at":"2025-07-01T12:00:00Z"}}`,
		},
		{
			name:        "включение истории снимает удаление",
			requestBody: `{"store_history":true}`,
			authorized:  true,
			setupMock: func(m *MockService) {
				m.On("SetPreference", mock.Anything, "user123", true).
					Return(&models.HistoryPreference{
						StoreHistory: true,
						ChangedAt:    &changedAt,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"store_history":true,"changed_at":"2025-06-01T12:00:00Z"}}`,
		},
		{
			name:           "store_history отсутствует",
			requestBody:    `{}`,
			authorized:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"store_history is required"}`,
		},
		{
			name:           "store_history не булево значение",
			requestBody:    `{"store_history":"yes"}`,
			authorized:     true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"store_history must be a boolean"}`,
		},
		{
			name:           "отсутствует авторизация",
			requestBody:    `{"store_history":false}`,
			authorized:     false,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me/preferences", bytes.NewReader([]byte(tt.requestBody)))
			req.Header.Set("Content-Type", "application/json")

			ctx := context.WithValue(req.Context(), middleware.RequestIDKey, "req-id")
			if tt.authorized {
				ctx = context.WithValue(ctx, middlewarectx.UserUID, "user123")
			}
			req = req.WithContext(ctx)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
