package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/rocketstart-api/internal/domain/servicetest"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

var testNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestService(userIDs ...uuid.UUID) (*ServiceImpl, *servicetest.MockSubscriptionRepo, *servicetest.MockUsers) {
	repo := servicetest.NewMockSubscriptionRepo()
	users := servicetest.NewMockUsers(userIDs...)
	svc := NewService(repo, users, func() time.Time { return testNow }, logger.Discard())
	return svc, repo, users
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	future := testNow.Add(24 * time.Hour)
	past := testNow.Add(-time.Second)

	tests := []struct {
		name      string
		sub       *types.Subscription
		wantSub   bool
		wantValid bool
	}{
		{"no subscription", nil, false, false},
		{"active in period", &types.Subscription{StripeSubscriptionID: "sub_a", Status: types.SubscriptionActive, CurrentPeriodEnd: &future}, true, true},
		{"trialing in period", &types.Subscription{StripeSubscriptionID: "sub_t", Status: types.SubscriptionTrialing, CurrentPeriodEnd: &future}, true, true},
		{"active but period over", &types.Subscription{StripeSubscriptionID: "sub_p", Status: types.SubscriptionActive, CurrentPeriodEnd: &past}, true, false},
		{"canceled is not returned", &types.Subscription{StripeSubscriptionID: "sub_c", Status: types.SubscriptionCanceled, CurrentPeriodEnd: &future}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.New()
			svc, repo, _ := newTestService(userID)
			if tt.sub != nil {
				tt.sub.UserID = userID
				repo.Put(tt.sub)
			}

			resp, err := svc.Status(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSub, resp.Subscription != nil)
			assert.Equal(t, tt.wantValid, resp.IsValid)
			assert.Equal(t, resp.IsValid, resp.IsSubscriber)
		})
	}
}

func TestStatus_UnknownUser(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.Status(context.Background(), uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Empty(t, repo.Calls, "no subscription read for unknown users")
}

func TestStatus_StoreError(t *testing.T) {
	userID := uuid.New()
	svc, repo, _ := newTestService(userID)
	repo.Err = errors.New("pool exhausted")

	_, err := svc.Status(context.Background(), userID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrNotFound)
}

func TestHandler(t *testing.T) {
	userID := uuid.New()
	svc, repo, _ := newTestService(userID)
	end := testNow.Add(time.Hour)
	repo.Put(&types.Subscription{UserID: userID, StripeSubscriptionID: "sub_1", Status: types.SubscriptionActive, CurrentPeriodEnd: &end})
	h := NewHandler(svc, logger.Discard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/subscription?user_id="+userID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body types.SubscriptionStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.IsValid)
	assert.Equal(t, "sub_1", body.Subscription.StripeSubscriptionID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/subscription?user_id="+uuid.NewString(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid user ID")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/user/subscription", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_id is required")
}
