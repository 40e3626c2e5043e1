package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

// Exchanger swaps an OAuth authorization code for a provider session.
type Exchanger struct {
	projectURL string
	anonKey    string
	client     *http.Client
}

func NewExchanger(projectURL, anonKey string, timeout time.Duration) *Exchanger {
	return &Exchanger{
		projectURL: strings.TrimRight(projectURL, "/"),
		anonKey:    anonKey,
		client:     &http.Client{Timeout: timeout},
	}
}

type exchangeRequest struct {
	AuthCode     string `json:"auth_code"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

func (e *Exchanger) Exchange(ctx context.Context, code, verifier string) (*types.Identity, *types.Session, error) {
	if e.projectURL == "" {
		return nil, nil, fmt.Errorf("identity project URL not configured")
	}
	body, err := json.Marshal(exchangeRequest{AuthCode: code, CodeVerifier: verifier})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.projectURL+"/auth/v1/token?grant_type=pkce", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.anonKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read exchange response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error_description").String()
		return nil, nil, fmt.Errorf("exchange code: status %d: %s: %w", resp.StatusCode, msg, types.ErrUnauthenticated)
	}

	res := gjson.ParseBytes(raw)
	token := res.Get("access_token").String()
	if token == "" {
		return nil, nil, fmt.Errorf("exchange code: no access token: %w", types.ErrUnauthenticated)
	}
	userID, err := uuid.Parse(res.Get("user.id").String())
	if err != nil {
		return nil, nil, fmt.Errorf("exchange code: user id: %w", types.ErrUnauthenticated)
	}

	sess := &types.Session{
		AccessToken:  token,
		RefreshToken: res.Get("refresh_token").String(),
	}
	if at := res.Get("expires_at").Int(); at > 0 {
		sess.ExpiresAt = time.Unix(at, 0).UTC()
	} else if in := res.Get("expires_in").Int(); in > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(in) * time.Second).UTC()
	}
	return &types.Identity{UserID: userID, Email: res.Get("user.email").String()}, sess, nil
}
