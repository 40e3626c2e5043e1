package identity

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// SessionStore keeps the provider session in a signed cookie.
type SessionStore struct {
	store    sessions.Store
	name     string
	verifier *Verifier
}

type SessionOptions struct {
	Name   string
	Secret string
	Secure bool
	MaxAge int
}

func NewSessionStore(opts SessionOptions, verifier *Verifier) *SessionStore {
	store := sessions.NewCookieStore([]byte(opts.Secret))
	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = 7 * 24 * 3600
	}
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store, name: opts.Name, verifier: verifier}
}

func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, sess *types.Session) error {
	session, _ := s.store.Get(r, s.name)
	session.Values[keyAccessToken] = sess.AccessToken
	session.Values[keyRefreshToken] = sess.RefreshToken
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Identity verifies the stored access token. No cookie, or an expired or
// forged token, yields types.ErrUnauthenticated.
func (s *SessionStore) Identity(r *http.Request) (*types.Identity, error) {
	session, err := s.store.Get(r, s.name)
	if err != nil {
		return nil, fmt.Errorf("decode session: %v: %w", err, types.ErrUnauthenticated)
	}
	token, _ := session.Values[keyAccessToken].(string)
	if token == "" {
		return nil, fmt.Errorf("no session: %w", types.ErrUnauthenticated)
	}
	return s.verifier.Verify(token)
}

// Clear expires the cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, s.name)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
