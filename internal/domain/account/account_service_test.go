package account

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockRepository) EnsureUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockRepository) Reactivate(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
}

func TestReactivate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("soft-deleted account is restored", func(t *testing.T) {
		repo := new(MockRepository)
		deletedAt := fixedNow().Add(-time.Hour)
		repo.On("GetUser", mock.Anything, userID).Return(&types.User{ID: userID, IsDeleted: true, DeletedAt: &deletedAt}, nil)
		repo.On("Reactivate", mock.Anything, userID, fixedNow()).Return(nil)

		svc := NewService(repo, fixedNow, logger.Discard())
		require.NoError(t, svc.Reactivate(ctx, userID))
		repo.AssertExpectations(t)
	})

	t.Run("live account is rejected without writing", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", mock.Anything, userID).Return(&types.User{ID: userID}, nil)

		svc := NewService(repo, fixedNow, logger.Discard())
		err := svc.Reactivate(ctx, userID)
		assert.ErrorIs(t, err, types.ErrAccountNotDeleted)
		repo.AssertNotCalled(t, "Reactivate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", mock.Anything, userID).Return(nil, fmt.Errorf("user: %w", types.ErrNotFound))

		svc := NewService(repo, fixedNow, logger.Discard())
		assert.ErrorIs(t, svc.Reactivate(ctx, userID), types.ErrNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", mock.Anything, userID).Return(&types.User{ID: userID, IsDeleted: true}, nil)
		repo.On("Reactivate", mock.Anything, userID, fixedNow()).Return(errors.New("connection reset"))

		svc := NewService(repo, fixedNow, logger.Discard())
		err := svc.Reactivate(ctx, userID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrAccountNotDeleted)
	})
}
