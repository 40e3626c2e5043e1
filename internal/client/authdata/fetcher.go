package authdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

const maxResponseBytes = 1 << 20

// Fetcher loads the batched auth data for one user.
type Fetcher interface {
	Fetch(ctx context.Context, userID uuid.UUID) (AuthData, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, userID uuid.UUID) (AuthData, error)

func (f FetcherFunc) Fetch(ctx context.Context, userID uuid.UUID) (AuthData, error) {
	return f(ctx, userID)
}

// HTTPFetcher calls GET {base}/api/user/auth-data.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, userID uuid.UUID) (AuthData, error) {
	u := f.base + "/api/user/auth-data?" + url.Values{"user_id": {userID.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return AuthData{}, fmt.Errorf("build auth data request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return AuthData{}, fmt.Errorf("auth data request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return AuthData{}, fmt.Errorf("read auth data: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return AuthData{}, fmt.Errorf("auth data fetch failed: %d", resp.StatusCode)
	}
	return parseAuthData(body)
}

// parseAuthData normalises the endpoint's envelope. Absent or mistyped fields
// fall back to their defaults.
func parseAuthData(body []byte) (AuthData, error) {
	if !gjson.ValidBytes(body) {
		return AuthData{}, fmt.Errorf("auth data: malformed JSON")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsObject() {
		return AuthData{}, fmt.Errorf("auth data: missing data object")
	}

	out := AuthData{
		IsSubscriber:           data.Get("isSubscriber").Type == gjson.True,
		HasCompletedOnboarding: data.Get("hasCompletedOnboarding").Type == gjson.True,
	}
	if plan := data.Get("selectedPlanId"); plan.Type == gjson.String && plan.Str != "" {
		p := plan.Str
		out.SelectedPlan = &p
	}
	if sub := data.Get("subscription"); sub.IsObject() {
		var s types.Subscription
		if err := json.Unmarshal([]byte(sub.Raw), &s); err != nil {
			return AuthData{}, fmt.Errorf("auth data: subscription: %w", err)
		}
		out.Subscription = &s
	}
	return out, nil
}

// PayloadSource is the in-process batched read.
type PayloadSource interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.AuthDataPayload, error)
}

// ServiceFetcher reads through the auth-data service directly, skipping the
// HTTP hop when the aggregator runs inside the API process. Each read is
// bounded by timeout since coalesced fetches outlive the caller's context.
func ServiceFetcher(src PayloadSource, timeout time.Duration) Fetcher {
	return FetcherFunc(func(ctx context.Context, userID uuid.UUID) (AuthData, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		p, err := src.Get(ctx, userID)
		if err != nil {
			return AuthData{}, err
		}
		return FromPayload(p), nil
	})
}

// FromPayload keeps the fields navigation uses.
func FromPayload(p *types.AuthDataPayload) AuthData {
	if p == nil {
		return AuthData{}
	}
	out := AuthData{
		IsSubscriber:           p.IsSubscriber,
		HasCompletedOnboarding: p.HasCompletedOnboarding,
		Subscription:           p.Subscription,
	}
	if p.SelectedPlanID != nil && *p.SelectedPlanID != "" {
		plan := *p.SelectedPlanID
		out.SelectedPlan = &plan
	}
	return out
}
