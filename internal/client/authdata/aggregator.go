// Package authdata is the client-side aggregator that turns an identity into
// the subscription and onboarding view used for navigation. Results are cached
// per user, concurrent misses share one request and late responses never
// overwrite newer ones.
package authdata

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/FACorreiaa/rocketstart-api/internal/tasks"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/cache"
	"github.com/FACorreiaa/rocketstart-api/pkg/observability"
)

// AuthData is what navigation needs to know about the current user.
type AuthData struct {
	User                   *types.Identity     `json:"user"`
	IsSubscriber           bool                `json:"isSubscriber"`
	HasCompletedOnboarding bool                `json:"hasCompletedOnboarding"`
	SelectedPlan           *string             `json:"selectedPlan"`
	Subscription           *types.Subscription `json:"subscription"`
}

// Patch is a partial optimistic update. Nil fields are left as cached.
type Patch struct {
	IsSubscriber           *bool
	HasCompletedOnboarding *bool
	SelectedPlan           *string
	Subscription           *types.Subscription
}

// Listener receives every applied or optimistic update.
type Listener func(AuthData)

type inflight struct {
	count int
	floor uint64
}

type Aggregator struct {
	store   cache.Store[AuthData]
	fetcher Fetcher
	tasks   tasks.Submitter
	logger  *slog.Logger

	group singleflight.Group

	// seq is shared by all users so a new fetch always outranks anything
	// issued before it. Per-user state lives only while fetches are in flight.
	mu    sync.Mutex
	seq   uint64
	users map[uuid.UUID]*inflight

	lmu       sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

func NewAggregator(store cache.Store[AuthData], fetcher Fetcher, submitter tasks.Submitter, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:     store,
		fetcher:   fetcher,
		tasks:     submitter,
		logger:    logger.With(slog.String("component", "authdata")),
		users:     make(map[uuid.UUID]*inflight),
		listeners: make(map[uint64]Listener),
	}
}

func defaults(user *types.Identity) AuthData {
	return AuthData{User: user}
}

// Fetch returns the user's auth data from cache or the batched endpoint. It
// never fails: errors degrade to non-subscriber defaults, which are not cached.
func (a *Aggregator) Fetch(ctx context.Context, user *types.Identity) AuthData {
	if user == nil {
		return AuthData{}
	}

	if cached, ok := a.cached(ctx, user); ok {
		observability.AuthDataCacheHit()
		a.notify(cached)
		return cached
	}
	observability.AuthDataCacheMiss()

	v, err, _ := a.group.Do(user.UserID.String(), func() (any, error) {
		return a.load(context.WithoutCancel(ctx), user)
	})
	if err != nil {
		a.logger.WarnContext(ctx, "Error fetching auth data", slog.String("userID", user.UserID.String()), slog.Any("error", err))
		return defaults(user)
	}
	data := v.(AuthData)
	data.User = user
	return data
}

func (a *Aggregator) load(ctx context.Context, user *types.Identity) (AuthData, error) {
	seq := a.begin(user.UserID)

	data, err := a.fetcher.Fetch(ctx, user.UserID)
	if err != nil {
		a.end(user.UserID)
		return AuthData{}, err
	}
	data.User = user

	if !a.apply(ctx, user.UserID, seq, data) {
		observability.AuthDataStale()
		a.logger.DebugContext(ctx, "Discarded stale auth data", slog.String("userID", user.UserID.String()), slog.Uint64("seq", seq))
		return data, nil
	}
	a.notify(data)
	return data, nil
}

func (a *Aggregator) begin(userID uuid.UUID) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	u, ok := a.users[userID]
	if !ok {
		u = &inflight{}
		a.users[userID] = u
	}
	u.count++
	return a.seq
}

// endLocked releases a fetch slot; the user's entry goes once nothing is in
// flight. Callers hold a.mu.
func (a *Aggregator) endLocked(userID uuid.UUID) {
	u, ok := a.users[userID]
	if !ok {
		return
	}
	u.count--
	if u.count <= 0 {
		delete(a.users, userID)
	}
}

func (a *Aggregator) end(userID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endLocked(userID)
}

// apply caches data unless a newer response or an invalidation got there first.
func (a *Aggregator) apply(ctx context.Context, userID uuid.UUID, seq uint64, data AuthData) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.endLocked(userID)

	u, ok := a.users[userID]
	if !ok || seq <= u.floor {
		return false
	}
	u.floor = seq
	if err := a.store.Set(ctx, userID.String(), data); err != nil {
		a.logger.WarnContext(ctx, "Failed to cache auth data", slog.Any("error", err))
	}
	return true
}

func (a *Aggregator) cached(ctx context.Context, user *types.Identity) (AuthData, bool) {
	data, ok, err := a.store.Get(ctx, user.UserID.String())
	if err != nil {
		a.logger.WarnContext(ctx, "Auth data cache read failed", slog.Any("error", err))
		return AuthData{}, false
	}
	if !ok {
		return AuthData{}, false
	}
	data.User = user
	return data, true
}

// Optimistic reads the cache only.
func (a *Aggregator) Optimistic(ctx context.Context, user *types.Identity) (AuthData, bool) {
	if user == nil {
		return AuthData{}, false
	}
	return a.cached(ctx, user)
}

// Warm fetches in the background so a later Optimistic call can hit.
func (a *Aggregator) Warm(user *types.Identity) {
	if user == nil || a.tasks == nil {
		return
	}
	a.tasks.Submit("authdata.warm", func(ctx context.Context) error {
		a.Fetch(ctx, user)
		return nil
	})
}

// Invalidate drops the user's entry. Responses still in flight are discarded.
func (a *Aggregator) Invalidate(ctx context.Context, userID uuid.UUID) {
	a.mu.Lock()
	if u, ok := a.users[userID]; ok {
		u.floor = a.seq
	}
	if err := a.store.Invalidate(ctx, userID.String()); err != nil {
		a.logger.WarnContext(ctx, "Failed to invalidate auth data", slog.Any("error", err))
	}
	a.mu.Unlock()
	a.group.Forget(userID.String())
}

// Clear drops every entry. Sign-out uses Invalidate for the one user; Clear is
// for operators.
func (a *Aggregator) Clear(ctx context.Context) {
	a.mu.Lock()
	keys := make([]string, 0, len(a.users))
	for id, u := range a.users {
		u.floor = a.seq
		keys = append(keys, id.String())
	}
	if err := a.store.Clear(ctx); err != nil {
		a.logger.WarnContext(ctx, "Failed to clear auth data", slog.Any("error", err))
	}
	a.mu.Unlock()
	for _, k := range keys {
		a.group.Forget(k)
	}
}

// OptimisticUpdate patches a cached entry ahead of server confirmation and
// refreshes its age. It reports false when nothing was cached.
func (a *Aggregator) OptimisticUpdate(ctx context.Context, userID uuid.UUID, p Patch) bool {
	a.mu.Lock()
	data, ok, err := a.store.Get(ctx, userID.String())
	if err != nil || !ok {
		a.mu.Unlock()
		return false
	}
	if p.IsSubscriber != nil {
		data.IsSubscriber = *p.IsSubscriber
	}
	if p.HasCompletedOnboarding != nil {
		data.HasCompletedOnboarding = *p.HasCompletedOnboarding
	}
	if p.SelectedPlan != nil {
		plan := *p.SelectedPlan
		data.SelectedPlan = &plan
	}
	if p.Subscription != nil {
		data.Subscription = p.Subscription
	}
	if err := a.store.Set(ctx, userID.String(), data); err != nil {
		a.mu.Unlock()
		a.logger.WarnContext(ctx, "Failed to store optimistic update", slog.Any("error", err))
		return false
	}
	a.mu.Unlock()

	a.notify(data)
	return true
}

// Subscribe registers fn and returns its unsubscribe func.
func (a *Aggregator) Subscribe(fn Listener) func() {
	a.lmu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.lmu.Unlock()

	return func() {
		a.lmu.Lock()
		delete(a.listeners, id)
		a.lmu.Unlock()
	}
}

func (a *Aggregator) notify(data AuthData) {
	a.lmu.RLock()
	fns := make([]Listener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.lmu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}
}
