package routeguard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/FACorreiaa/rocketstart-api/internal/client/authdata"
	"github.com/FACorreiaa/rocketstart-api/internal/navigation"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/httpx"
)

type IdentityResolver interface {
	Identity(r *http.Request) (*types.Identity, error)
}

// AuthSource is the aggregator surface the guard reads.
type AuthSource interface {
	Optimistic(ctx context.Context, user *types.Identity) (authdata.AuthData, bool)
	Fetch(ctx context.Context, user *types.Identity) authdata.AuthData
	Invalidate(ctx context.Context, userID uuid.UUID)
	Warm(user *types.Identity)
}

type Guard struct {
	identities IdentityResolver
	data       AuthSource
	logger     *slog.Logger
}

func New(identities IdentityResolver, data AuthSource, logger *slog.Logger) *Guard {
	return &Guard{identities: identities, data: data, logger: logger}
}

type skeletonResponse struct {
	Skeleton   Skeleton `json:"skeleton"`
	ShowHeader bool     `json:"showHeader"`
}

type stateResponse struct {
	State       navigation.State `json:"state"`
	Redirect    string           `json:"redirect,omitempty"`
	ShowPage    bool             `json:"showPage"`
	Destination string           `json:"destination,omitempty"`
}

// resolve loads the identity and whatever auth data is cached for it. A miss
// starts a background fetch. A return from checkout drops the cached entry and
// reads through, since the subscription has just changed.
func (g *Guard) resolve(r *http.Request, query url.Values) (*types.Identity, *authdata.AuthData) {
	ctx := r.Context()
	user, err := g.identities.Identity(r)
	if err != nil {
		if !errors.Is(err, types.ErrUnauthenticated) {
			g.logger.WarnContext(ctx, "Route guard: identity lookup failed", slog.Any("error", err))
		}
		return nil, nil
	}
	if query.Has(navigation.PaymentSuccessParam) {
		g.data.Invalidate(ctx, user.UserID)
		data := g.data.Fetch(ctx, user)
		return user, &data
	}
	data, ok := g.data.Optimistic(ctx, user)
	if !ok {
		g.data.Warm(user)
		return user, nil
	}
	return user, &data
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		user, data := g.resolve(r, query)
		d := Decide(user, data, r.URL.Path, query)

		if d.Redirect != "" {
			http.Redirect(w, r, d.Redirect, http.StatusFound)
			return
		}

		switch d.Outcome {
		case RenderSkeleton:
			w.Header().Set("Refresh", "1")
			w.Header().Set("Cache-Control", "no-store")
			httpx.WriteJSON(w, http.StatusOK, skeletonResponse{Skeleton: d.Skeleton, ShowHeader: d.Skeleton.ShowHeader()})
		case RenderChildren:
			next.ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
}

// State answers GET /api/navigation?path=... with the resolved decision for
// the caller's session. Remaining query parameters are treated as the page's.
func (g *Guard) State(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	path := query.Get("path")
	if path == "" {
		path = navigation.PathHome
	}
	pageQuery := url.Values{}
	for k, v := range query {
		if k != "path" {
			pageQuery[k] = v
		}
	}

	user, data := g.resolve(r, pageQuery)
	d := Decide(user, data, path, pageQuery)
	httpx.WriteJSON(w, http.StatusOK, stateResponse{
		State:       d.State,
		Redirect:    d.Redirect,
		ShowPage:    d.Outcome == RenderChildren,
		Destination: navigation.Destination(d.State),
	})
}
