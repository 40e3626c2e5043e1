package authdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

func TestParseAuthData(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    AuthData
		wantErr bool
	}{
		{
			name: "full",
			body: `{"success":true,"data":{"isSubscriber":true,"hasCompletedOnboarding":true,"selectedPlanId":"pro",
				"subscription":{"stripe_subscription_id":"sub_1","status":"active"}}}`,
		},
		{
			name: "absent fields default",
			body: `{"success":true,"data":{}}`,
			want: AuthData{},
		},
		{
			name: "mistyped fields default",
			body: `{"data":{"isSubscriber":"yes","selectedPlanId":42,"subscription":null}}`,
			want: AuthData{},
		},
		{name: "not json", body: `<html>`, wantErr: true},
		{name: "no data", body: `{"success":false}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAuthData([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.name == "full" {
				assert.True(t, got.IsSubscriber)
				assert.True(t, got.HasCompletedOnboarding)
				require.NotNil(t, got.SelectedPlan)
				assert.Equal(t, "pro", *got.SelectedPlan)
				require.NotNil(t, got.Subscription)
				assert.Equal(t, "sub_1", got.Subscription.StripeSubscriptionID)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/auth-data", r.URL.Path)
		if r.URL.Query().Get("user_id") != userID.String() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid user ID"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"isSubscriber":true}}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/", time.Second)

	got, err := f.Fetch(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, got.IsSubscriber)

	_, err = f.Fetch(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

type payloadSourceFunc func(ctx context.Context, userID uuid.UUID) (*types.AuthDataPayload, error)

func (f payloadSourceFunc) Get(ctx context.Context, userID uuid.UUID) (*types.AuthDataPayload, error) {
	return f(ctx, userID)
}

func TestServiceFetcher(t *testing.T) {
	plan := "pro"
	sub := &types.Subscription{Status: "active"}
	want := uuid.New()

	fetcher := ServiceFetcher(payloadSourceFunc(func(_ context.Context, userID uuid.UUID) (*types.AuthDataPayload, error) {
		assert.Equal(t, want, userID)
		return &types.AuthDataPayload{
			IsSubscriber:           true,
			HasCompletedOnboarding: true,
			SelectedPlanID:         &plan,
			Subscription:           sub,
		}, nil
	}), time.Second)

	got, err := fetcher.Fetch(context.Background(), want)
	require.NoError(t, err)
	assert.True(t, got.IsSubscriber)
	assert.True(t, got.HasCompletedOnboarding)
	require.NotNil(t, got.SelectedPlan)
	assert.Equal(t, "pro", *got.SelectedPlan)
	assert.Same(t, sub, got.Subscription)

	failing := ServiceFetcher(payloadSourceFunc(func(context.Context, uuid.UUID) (*types.AuthDataPayload, error) {
		return nil, errors.New("db down")
	}), 0)
	_, err = failing.Fetch(context.Background(), want)
	assert.EqualError(t, err, "db down")
}

func TestFromPayload_EmptyPlan(t *testing.T) {
	empty := ""
	got := FromPayload(&types.AuthDataPayload{SelectedPlanID: &empty})
	assert.Nil(t, got.SelectedPlan)
	assert.Equal(t, AuthData{}, FromPayload(nil))
}
