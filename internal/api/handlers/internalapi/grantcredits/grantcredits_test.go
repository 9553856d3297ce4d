package grantcredits

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/gdohealth/chat-backend/internal/models"
)

// MockService реализует интерфейс grantcredits.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Grant(ctx context.Context, userID string, count int, source string, orderReference *string, validDays *int) (*models.GrantResult, error) {
	args := m.Called(ctx, userID, count, source, orderReference, validDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GrantResult), args.Error(1)
}

func TestGrantCreditsHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	const userID = "7f68a9c4-1b2d-4f3a-8811-92d07c5ab4e3"

	tests := []struct {
		name           string
		requestBody    string
		setupMock      func(*MockService)
		expectedStatus int
		checkBody      func(t *testing.T, body string)
	}{
		{
			name:        "успешное начисление",
			requestBody: `{"user_id":"` + userID + `","sessions":5,"source":"woocommerce","order_reference":"order-1001"}`,
			setupMock: func(m *MockService) {
				m.On("Grant", mock.Anything, userID, 5, "woocommerce",
					mock.MatchedBy(func(ref *string) bool { return ref != nil && *ref == "order-1001" }),
					(*int)(nil)).
					Return(&models.GrantResult{
						EntitlementID: "e1",
						SessionsAdded: 5,
						NewBalance:    5,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, `"sessions_added":5`)
			},
		},
		{
			name:        "повторный вебхук идемпотентен",
			requestBody: `{"user_id":"` + userID + `","sessions":5,"source":"woocommerce","order_reference":"order-1001"}`,
			setupMock: func(m *MockService) {
				m.On("Grant", mock.Anything, userID, 5, "woocommerce", mock.Anything, (*int)(nil)).
					Return(&models.GrantResult{
						EntitlementID:    "e1",
						SessionsAdded:    0,
						NewBalance:       5,
						AlreadyProcessed: true,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, `"already_processed":true`)
				assert.Contains(t, body, `"sessions_added":0`)
			},
		},
		{
			name:           "нулевое количество сессий",
			requestBody:    `{"user_id":"` + userID + `","sessions":0}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, "Sessions")
			},
		},
		{
			name:           "некорректный user_id",
			requestBody:    `{"user_id":"42","sessions":5}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, "UserID")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/grant-credits", bytes.NewReader([]byte(tt.requestBody)))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-id"))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			tt.checkBody(t, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
