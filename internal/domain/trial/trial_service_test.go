package trial

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
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

var now = time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestService_Status(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name   string
		trial  *types.UserTrial
		status types.SubscriptionStatus
		want   types.TrialStatus
	}{
		{
			name: "no trial no subscription",
			want: types.TrialStatus{IsInTrial: true},
		},
		{
			name:  "running trial",
			trial: &types.UserTrial{UserID: userID, TrialEndTime: at(48 * time.Hour)},
			want:  types.TrialStatus{IsTrialActive: true, TrialEndTime: at(48 * time.Hour), IsInTrial: true},
		},
		{
			name:  "expired trial",
			trial: &types.UserTrial{UserID: userID, TrialEndTime: at(-time.Hour)},
			want:  types.TrialStatus{IsTrialExpired: true, TrialEndTime: at(-time.Hour)},
		},
		{
			name:  "used trial before end",
			trial: &types.UserTrial{UserID: userID, TrialEndTime: at(time.Hour), IsTrialUsed: true},
			want:  types.TrialStatus{IsTrialActive: true, IsTrialUsed: true, TrialEndTime: at(time.Hour)},
		},
		{
			name:   "active subscription",
			status: types.SubscriptionActive,
			want: types.TrialStatus{
				Subscription:          &types.SubscriptionStatusRef{Status: types.SubscriptionActive},
				HasActiveSubscription: true,
			},
		},
		{
			name:   "trialing subscription is live but not active",
			status: types.SubscriptionTrialing,
			want:   types.TrialStatus{Subscription: &types.SubscriptionStatusRef{Status: types.SubscriptionTrialing}},
		},
		{
			name:   "canceled subscription without trial",
			status: types.SubscriptionCanceled,
			want:   types.TrialStatus{Subscription: &types.SubscriptionStatusRef{Status: types.SubscriptionCanceled}, IsInTrial: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trials := servicetest.NewMockTrialRepo()
			subs := servicetest.NewMockSubscriptionRepo()
			if tt.trial != nil {
				trials.Rows[userID] = tt.trial
			}
			if tt.status != "" {
				subs.Put(&types.Subscription{UserID: userID, StripeSubscriptionID: "sub_1", Status: tt.status})
			}
			svc := NewService(trials, subs, servicetest.NewMockUsers(userID), func() time.Time { return now }, logger.Discard())

			got, err := svc.Status(context.Background(), userID)
			require.NoError(t, err)

			tt.want.Trial = tt.trial
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestService_Status_NewestSubscriptionWins(t *testing.T) {
	userID := uuid.New()
	subs := servicetest.NewMockSubscriptionRepo()
	subs.Put(&types.Subscription{UserID: userID, StripeSubscriptionID: "sub_old", Status: types.SubscriptionCanceled, CreatedAt: now.Add(-48 * time.Hour)})
	subs.Put(&types.Subscription{UserID: userID, StripeSubscriptionID: "sub_new", Status: types.SubscriptionActive, CreatedAt: now.Add(-time.Hour)})

	svc := NewService(servicetest.NewMockTrialRepo(), subs, servicetest.NewMockUsers(userID), func() time.Time { return now }, logger.Discard())
	got, err := svc.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, got.HasActiveSubscription)
	assert.False(t, got.IsInTrial)
}

func TestHandler_Get(t *testing.T) {
	userID := uuid.New()
	failing := uuid.New()

	trials := servicetest.NewMockTrialRepo()
	svc := NewService(trials, servicetest.NewMockSubscriptionRepo(), servicetest.NewMockUsers(userID, failing),
		func() time.Time { return now }, logger.Discard())
	h := NewHandler(svc, logger.Discard())

	tests := []struct {
		name       string
		query      string
		trialErr   error
		wantStatus int
		wantError  string
	}{
		{name: "missing user", wantStatus: http.StatusBadRequest, wantError: "user_id is required"},
		{name: "malformed user", query: "?user_id=123", wantStatus: http.StatusBadRequest, wantError: "Invalid parameters"},
		{name: "unknown user", query: "?user_id=" + uuid.NewString(), wantStatus: http.StatusBadRequest, wantError: httpx.InvalidUserID},
		{name: "trial store down", query: "?user_id=" + failing.String(), trialErr: errors.New("down"), wantStatus: http.StatusInternalServerError, wantError: "Failed to fetch trial status"},
		{name: "ok", query: "?user_id=" + userID.String(), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trials.Err = tt.trialErr
			rec := httptest.NewRecorder()
			h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/user/trial"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantError != "" {
				var body httpx.ErrorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body.Error)
				return
			}
			assert.JSONEq(t, `{"subscription":null,"trial":null,"isTrialActive":false,"isTrialExpired":false,
				"isTrialUsed":false,"hasActiveSubscription":false,"trialEndTime":null,"isInTrial":true}`, rec.Body.String())
		})
	}
}
