package identity

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

// CodeVerifierCookie holds the PKCE verifier set by the client before the
// provider redirect.
const CodeVerifierCookie = "code_verifier"

type CodeExchanger interface {
	Exchange(ctx context.Context, code, verifier string) (*types.Identity, *types.Session, error)
}

// AuthCache is the aggregator surface the callback and sign-out touch.
type AuthCache interface {
	Warm(user *types.Identity)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type OnboardingStore interface {
	EnsureDefault(ctx context.Context, userID uuid.UUID) (*types.UserPreferences, error)
}

// Handler serves /auth/callback and /auth/signout.
type Handler struct {
	exchanger CodeExchanger
	sessions  *SessionStore
	cache     AuthCache
	prefs     OnboardingStore
	appURL    string
	logger    *slog.Logger
}

func NewHandler(exchanger CodeExchanger, sessions *SessionStore, cache AuthCache, prefs OnboardingStore, appURL string, logger *slog.Logger) *Handler {
	return &Handler{
		exchanger: exchanger,
		sessions:  sessions,
		cache:     cache,
		prefs:     prefs,
		appURL:    strings.TrimRight(appURL, "/"),
		logger:    logger,
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.appURL+path, http.StatusFound)
}

// safeNext keeps post-login redirects on our own origin.
func safeNext(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "", false
	}
	return next, true
}

func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirect(w, r, "/login")
		return
	}

	var verifier string
	if c, err := r.Cookie(CodeVerifierCookie); err == nil {
		verifier = c.Value
	}

	user, sess, err := h.exchanger.Exchange(ctx, code, verifier)
	if err != nil {
		h.logger.ErrorContext(ctx, "AuthCallback: exchange failed", slog.Any("error", err))
		h.redirect(w, r, "/login?error=auth-failed")
		return
	}
	if err := h.sessions.Save(w, r, sess); err != nil {
		h.logger.ErrorContext(ctx, "AuthCallback: session save failed", slog.Any("error", err))
		h.redirect(w, r, "/login?error=auth-failed")
		return
	}

	l := h.logger.With(slog.String("userID", user.UserID.String()))
	h.cache.Warm(user)

	needsOnboarding := true
	prefs, err := h.prefs.EnsureDefault(ctx, user.UserID)
	if err != nil {
		l.WarnContext(ctx, "AuthCallback: preferences lookup failed", slog.Any("error", err))
	} else {
		needsOnboarding = !prefs.HasCompletedOnboarding
	}

	if next, ok := safeNext(r.URL.Query().Get("next")); ok {
		h.redirect(w, r, next)
		return
	}
	if needsOnboarding {
		h.redirect(w, r, "/onboarding")
		return
	}
	h.redirect(w, r, "/dashboard")
}

// SignOut drops the session and the signed-in user's cached auth data. Other
// users' entries are left alone.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.sessions.Identity(r)
	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.WarnContext(ctx, "SignOut: clear session failed", slog.Any("error", err))
	}
	if err == nil {
		h.cache.Invalidate(ctx, user.UserID)
	}
	h.redirect(w, r, "/login")
}
