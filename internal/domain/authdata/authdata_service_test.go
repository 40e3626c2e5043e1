package authdata

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

type fixture struct {
	userID uuid.UUID
	subs   *servicetest.MockSubscriptionRepo
	prefs  *servicetest.MockPreferencesRepo
	svc    *ServiceImpl
}

func newFixture() *fixture {
	f := &fixture{
		userID: uuid.New(),
		subs:   servicetest.NewMockSubscriptionRepo(),
		prefs:  servicetest.NewMockPreferencesRepo(),
	}
	f.svc = NewService(f.subs, f.prefs, servicetest.NewMockUsers(f.userID), logger.Discard())
	return f
}

func TestService_Get_NewUserGetsDefaultRow(t *testing.T) {
	f := newFixture()

	got, err := f.svc.Get(context.Background(), f.userID)
	require.NoError(t, err)

	assert.False(t, got.IsSubscriber)
	assert.Nil(t, got.Subscription)
	assert.Equal(t, 1, got.OnboardingStep)
	assert.True(t, got.ShouldRedirectToOnboarding)
	assert.False(t, got.ShouldRedirectToDashboard)
	assert.Equal(t, 1, f.prefs.Inserts)

	// A second read finds the row and does not insert again.
	_, err = f.svc.Get(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.prefs.Inserts)
}

func TestService_Get_Subscriber(t *testing.T) {
	f := newFixture()
	end := time.Now().Add(24 * time.Hour)
	f.subs.Put(&types.Subscription{UserID: f.userID, StripeSubscriptionID: "sub_1", Status: types.SubscriptionActive, CurrentPeriodEnd: &end})
	step := 4
	done := true
	require.NoError(t, f.prefs.Upsert(context.Background(), f.userID, types.UpdatePreferencesParams{OnboardingStep: &step, HasCompletedOnboarding: &done}))

	got, err := f.svc.Get(context.Background(), f.userID)
	require.NoError(t, err)

	assert.True(t, got.IsSubscriber)
	require.NotNil(t, got.Subscription)
	assert.Equal(t, "sub_1", got.Subscription.StripeSubscriptionID)
	assert.True(t, got.HasCompletedOnboarding)
	assert.Equal(t, 4, got.OnboardingStep)
	assert.True(t, got.ShouldRedirectToDashboard)
	assert.False(t, got.ShouldRedirectToOnboarding)
}

func TestService_Get_TrialingIsNotSubscriber(t *testing.T) {
	f := newFixture()
	f.subs.Put(&types.Subscription{UserID: f.userID, StripeSubscriptionID: "sub_1", Status: types.SubscriptionTrialing})

	got, err := f.svc.Get(context.Background(), f.userID)
	require.NoError(t, err)
	assert.False(t, got.IsSubscriber)
	assert.Nil(t, got.Subscription)
}

func TestService_Get_StoreFailure(t *testing.T) {
	f := newFixture()
	f.subs.Err = errors.New("db down")

	_, err := f.svc.Get(context.Background(), f.userID)
	require.Error(t, err)
}

func TestHandler_Get(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc, logger.Discard())

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantError  string
	}{
		{name: "missing user", wantStatus: http.StatusBadRequest, wantError: "user_id parameter is required"},
		{name: "malformed user", query: "?user_id=abc", wantStatus: http.StatusBadRequest, wantError: "Validation failed"},
		{name: "unknown user", query: "?user_id=" + uuid.NewString(), wantStatus: http.StatusBadRequest, wantError: httpx.InvalidUserID},
		{name: "ok", query: "?user_id=" + f.userID.String(), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/user/auth-data"+tt.query, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantError != "" {
				var body httpx.ErrorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body.Error)
				return
			}
			var resp types.AuthDataResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Data)
			assert.True(t, resp.Data.ShouldRedirectToOnboarding)
		})
	}
}

func TestHandler_Get_InternalError(t *testing.T) {
	f := newFixture()
	f.prefs.Err = errors.New("db down")
	h := NewHandler(f.svc, logger.Discard())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/user/auth-data?user_id="+f.userID.String(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}
