package credits_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gdohealth/chat-backend/internal/models"
	"github.com/gdohealth/chat-backend/internal/services/credits"
)

// Мок для CreditRepository
type CreditRepoMock struct {
	mock.Mock
}

func (m *CreditRepoMock) GetUserCredits(ctx context.Context, userID string) (*models.CreditBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditBalance), args.Error(1)
}

func (m *CreditRepoMock) ConsumeCredit(ctx context.Context, userID string, expertID *string) (*models.ConsumeResult, error) {
	args := m.Called(ctx, userID, expertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsumeResult), args.Error(1)
}

func (m *CreditRepoMock) GrantCredits(ctx context.Context, userID string, count int, source string, orderReference *string, validDays *int) (*models.GrantResult, error) {
	args := m.Called(ctx, userID, count, source, orderReference, validDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GrantResult), args.Error(1)
}

func TestService_GetBalance(t *testing.T) {
	repo := new(CreditRepoMock)
	repo.On("GetUserCredits", mock.Anything, "user-1").
		Return(&models.CreditBalance{FreeRemaining: 1, PaidRemaining: 4, TotalAvailable: 5}, nil).Once()

	svc := credits.New(repo)
	balance, err := svc.GetBalance(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 5, balance.TotalAvailable)
	repo.AssertExpectations(t)
}

func TestService_Grant(t *testing.T) {
	orderRef := "wc-order-1001"

	repo := new(CreditRepoMock)
	repo.On("GrantCredits", mock.Anything, "user-1", 5, "woocommerce", &orderRef, (*int)(nil)).
		Return(&models.GrantResult{EntitlementID: "ent-1", SessionsAdded: 5, NewBalance: 5}, nil).Once()

	svc := credits.New(repo)
	result, err := svc.Grant(context.Background(), "user-1", 5, "woocommerce", &orderRef, nil)

	require.NoError(t, err)
	assert.Equal(t, 5, result.SessionsAdded)
	repo.AssertExpectations(t)
}

func TestService_Grant_RejectsNonPositiveCount(t *testing.T) {
	svc := credits.New(new(CreditRepoMock))

	for _, count := range []int{0, -3} {
		_, err := svc.Grant(context.Background(), "user-1", count, "admin", nil, nil)
		assert.ErrorIs(t, err, credits.ErrInvalidGrant)
	}
}
