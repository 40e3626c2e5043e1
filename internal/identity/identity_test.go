package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/rocketstart-api/internal/client/authdata"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/servicetest"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/cache"
	"github.com/FACorreiaa/rocketstart-api/pkg/clock"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

func TestVerifier(t *testing.T) {
	v := NewVerifier(secret)
	id := types.Identity{UserID: uuid.New(), Email: "ada@example.com"}

	t.Run("valid", func(t *testing.T) {
		token, err := Sign(secret, id, time.Hour)
		require.NoError(t, err)
		got, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, &id, got)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := Sign("another-secret", id, time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := Sign(secret, id, -time.Hour)
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("subject not a uuid", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "service-role",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   id.UserID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = v.Verify(token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("no secret configured", func(t *testing.T) {
		_, err := NewVerifier("").Verify("anything")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestExchanger(t *testing.T) {
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var req exchangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.AuthCode != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
			return
		}
		assert.Equal(t, "verifier-1", req.CodeVerifier)
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_at":1767225600,
			"user":{"id":"` + userID.String() + `","email":"ada@example.com"}}`))
	}))
	defer srv.Close()

	ex := NewExchanger(srv.URL+"/", "anon", time.Second)

	user, sess, err := ex.Exchange(context.Background(), "good", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "at", sess.AccessToken)
	assert.Equal(t, "rt", sess.RefreshToken)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), sess.ExpiresAt)

	_, _, err = ex.Exchange(context.Background(), "bad", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "code expired")
}

func newSessionStore() *SessionStore {
	return NewSessionStore(SessionOptions{Name: "test_session", Secret: "cookie-secret-0123456789abcdef01"}, NewVerifier(secret))
}

// carryCookies copies Set-Cookie headers from a response onto a new request.
func carryCookies(rec *httptest.ResponseRecorder, req *http.Request) {
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store := newSessionStore()
	id := types.Identity{UserID: uuid.New(), Email: "ada@example.com"}
	token, err := Sign(secret, id, time.Hour)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), &types.Session{AccessToken: token}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	carryCookies(rec, req)
	got, err := store.Identity(req)
	require.NoError(t, err)
	assert.Equal(t, &id, got)

	cleared := httptest.NewRecorder()
	require.NoError(t, store.Clear(cleared, req))
	cookies := cleared.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestSessionStore_NoCookie(t *testing.T) {
	_, err := newSessionStore().Identity(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

type stubExchanger struct {
	user *types.Identity
	sess *types.Session
	err  error
}

func (s stubExchanger) Exchange(context.Context, string, string) (*types.Identity, *types.Session, error) {
	return s.user, s.sess, s.err
}

type recordingCache struct {
	warmed      []uuid.UUID
	invalidated []uuid.UUID
}

func (c *recordingCache) Warm(user *types.Identity) { c.warmed = append(c.warmed, user.UserID) }
func (c *recordingCache) Invalidate(_ context.Context, userID uuid.UUID) {
	c.invalidated = append(c.invalidated, userID)
}

func TestHandler_Callback(t *testing.T) {
	user := &types.Identity{UserID: uuid.New(), Email: "ada@example.com"}
	token, err := Sign(secret, *user, time.Hour)
	require.NoError(t, err)
	ok := stubExchanger{user: user, sess: &types.Session{AccessToken: token}}

	tests := []struct {
		name         string
		query        string
		exchanger    stubExchanger
		onboarded    bool
		wantLocation string
		wantWarm     bool
	}{
		{name: "no code", query: "", exchanger: ok, wantLocation: "https://app.test/login"},
		{name: "exchange fails", query: "?code=x", exchanger: stubExchanger{err: errors.New("bad code")}, wantLocation: "https://app.test/login?error=auth-failed"},
		{name: "new user onboards", query: "?code=x", exchanger: ok, wantLocation: "https://app.test/onboarding", wantWarm: true},
		{name: "returning user", query: "?code=x", exchanger: ok, onboarded: true, wantLocation: "https://app.test/dashboard", wantWarm: true},
		{name: "next wins", query: "?code=x&next=/charts", exchanger: ok, wantLocation: "https://app.test/charts", wantWarm: true},
		{name: "offsite next ignored", query: "?code=x&next=//evil.test", exchanger: ok, wantLocation: "https://app.test/onboarding", wantWarm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := servicetest.NewMockPreferencesRepo()
			if tt.onboarded {
				done := true
				require.NoError(t, prefs.Upsert(context.Background(), user.UserID, types.UpdatePreferencesParams{HasCompletedOnboarding: &done}))
			}
			rc := &recordingCache{}
			h := NewHandler(tt.exchanger, newSessionStore(), rc, prefs, "https://app.test/", logger.Discard())

			rec := httptest.NewRecorder()
			h.Callback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback"+tt.query, nil))

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			if tt.wantWarm {
				assert.Equal(t, []uuid.UUID{user.UserID}, rc.warmed)
				assert.NotNil(t, prefs.Row(user.UserID))
				assert.NotEmpty(t, rec.Result().Cookies())
			} else {
				assert.Empty(t, rc.warmed)
			}
		})
	}
}

func TestHandler_SignOut(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		rc := &recordingCache{}
		h := NewHandler(stubExchanger{}, newSessionStore(), rc, servicetest.NewMockPreferencesRepo(), "https://app.test", logger.Discard())

		rec := httptest.NewRecorder()
		h.SignOut(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://app.test/login", rec.Header().Get("Location"))
		assert.Empty(t, rc.invalidated)
	})

	t.Run("only the signed-in user is evicted", func(t *testing.T) {
		ctx := context.Background()
		alice := &types.Identity{UserID: uuid.New(), Email: "alice@example.com"}
		bob := &types.Identity{UserID: uuid.New(), Email: "bob@example.com"}

		store := cache.NewMemoryStore[authdata.AuthData]("authdata:", time.Minute, clock.System)
		agg := authdata.NewAggregator(store, authdata.FetcherFunc(func(context.Context, uuid.UUID) (authdata.AuthData, error) {
			return authdata.AuthData{IsSubscriber: true, HasCompletedOnboarding: true}, nil
		}), nil, logger.Discard())
		agg.Fetch(ctx, alice)
		agg.Fetch(ctx, bob)

		sessions := newSessionStore()
		token, err := Sign(secret, *alice, time.Hour)
		require.NoError(t, err)
		login := httptest.NewRecorder()
		require.NoError(t, sessions.Save(login, httptest.NewRequest(http.MethodGet, "/", nil), &types.Session{AccessToken: token}))

		req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
		carryCookies(login, req)
		h := NewHandler(stubExchanger{}, sessions, agg, servicetest.NewMockPreferencesRepo(), "https://app.test", logger.Discard())
		rec := httptest.NewRecorder()
		h.SignOut(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		_, ok := agg.Optimistic(ctx, alice)
		assert.False(t, ok)
		_, ok = agg.Optimistic(ctx, bob)
		assert.True(t, ok)
	})
}
