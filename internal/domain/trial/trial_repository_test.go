package trial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

var trialColumns = []string{"user_id", "trial_end_time", "is_trial_used", "created_at", "updated_at"}

func TestRepository_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRepository(mock, logger.Discard())
	userID := uuid.New()
	end := time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC)
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT user_id, trial_end_time, is_trial_used, created_at, updated_at\s+FROM user_trials`).
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(trialColumns).AddRow(userID, &end, false, created, created))

		got, err := repo.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, &types.UserTrial{UserID: userID, TrialEndTime: &end, CreatedAt: created, UpdatedAt: created}, got)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`FROM user_trials`).
			WithArgs(userID).
			WillReturnRows(pgxmock.NewRows(trialColumns))

		_, err := repo.Get(context.Background(), userID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery(`FROM user_trials`).
			WithArgs(userID).
			WillReturnError(errors.New("timeout"))

		_, err := repo.Get(context.Background(), userID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
