// Package servicetest provides in-memory repositories and providers for
// service and handler tests.
package servicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/rocketstart-api/internal/types"
)

// MockUsers is an in-memory user directory.
type MockUsers struct {
	mu    sync.Mutex
	Users map[uuid.UUID]*types.User
	Err   error
}

func NewMockUsers(ids ...uuid.UUID) *MockUsers {
	m := &MockUsers{Users: make(map[uuid.UUID]*types.User)}
	for _, id := range ids {
		m.Users[id] = &types.User{ID: id, Email: id.String() + "@example.com"}
	}
	return m
}

func (m *MockUsers) EnsureUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Users[userID]; !ok {
		return fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	return nil
}

// MockSubscriptionRepo mirrors the store's constraints: unique external id and
// at most one live subscription per user.
type MockSubscriptionRepo struct {
	mu    sync.Mutex
	Rows  map[string]*types.Subscription
	Err   error
	Now   func() time.Time
	Calls []string
	seq   int
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{
		Rows: make(map[string]*types.Subscription),
		Now:  time.Now,
	}
}

// Put stores a row as is, for test setup.
func (m *MockSubscriptionRepo) Put(s *types.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		m.seq++
		s.CreatedAt = time.Unix(int64(m.seq), 0).UTC()
	}
	m.Rows[s.StripeSubscriptionID] = CloneSubscription(s)
}

func (m *MockSubscriptionRepo) Get(externalID string) *types.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return CloneSubscription(m.Rows[externalID])
}

func (m *MockSubscriptionRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Rows)
}

func (m *MockSubscriptionRepo) newest(match func(*types.Subscription) bool) *types.Subscription {
	var found []*types.Subscription
	for _, s := range m.Rows {
		if match(s) {
			found = append(found, s)
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.After(found[j].CreatedAt) })
	return CloneSubscription(found[0])
}

func (m *MockSubscriptionRepo) Latest(_ context.Context, userID uuid.UUID, statuses ...types.SubscriptionStatus) (*types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "Latest")
	if m.Err != nil {
		return nil, m.Err
	}
	s := m.newest(func(s *types.Subscription) bool {
		if s.UserID != userID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, st := range statuses {
			if s.Status == st {
				return true
			}
		}
		return false
	})
	if s == nil {
		return nil, fmt.Errorf("subscription: %w", types.ErrNotFound)
	}
	return s, nil
}

func (m *MockSubscriptionRepo) LiveByCustomer(_ context.Context, customerID string) (*types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "LiveByCustomer")
	if m.Err != nil {
		return nil, m.Err
	}
	s := m.newest(func(s *types.Subscription) bool {
		return s.StripeCustomerID == customerID && s.Status.IsLive()
	})
	if s == nil {
		return nil, fmt.Errorf("subscription: %w", types.ErrNotFound)
	}
	return s, nil
}

func (m *MockSubscriptionRepo) GetByExternalID(_ context.Context, externalID string) (*types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "GetByExternalID")
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Rows[externalID]
	if !ok {
		return nil, fmt.Errorf("subscription: %w", types.ErrNotFound)
	}
	return CloneSubscription(s), nil
}

func (m *MockSubscriptionRepo) liveConflict(userID uuid.UUID, externalID string) bool {
	for _, s := range m.Rows {
		if s.UserID == userID && s.Status.IsLive() && s.StripeSubscriptionID != externalID {
			return true
		}
	}
	return false
}

func (m *MockSubscriptionRepo) Create(_ context.Context, p types.CreateSubscriptionParams) (*types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "Create")
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.Rows[p.StripeSubscriptionID]; ok {
		return nil, fmt.Errorf("insert subscription: %w", types.ErrConflict)
	}
	if p.Status.IsLive() && m.liveConflict(p.UserID, p.StripeSubscriptionID) {
		return nil, fmt.Errorf("insert subscription: %w", types.ErrDuplicateSubscription)
	}
	m.seq++
	now := m.Now().UTC()
	s := &types.Subscription{
		ID:                   uuid.New(),
		UserID:               p.UserID,
		StripeCustomerID:     p.StripeCustomerID,
		StripeSubscriptionID: p.StripeSubscriptionID,
		Status:               p.Status,
		PriceID:              p.PriceID,
		ProductName:          p.ProductName,
		ProductID:            p.ProductID,
		CurrentPeriodEnd:     p.CurrentPeriodEnd,
		CancelAtPeriodEnd:    p.CancelAtPeriodEnd,
		CreatedAt:            now.Add(time.Duration(m.seq)),
		UpdatedAt:            now,
	}
	m.Rows[s.StripeSubscriptionID] = s
	return CloneSubscription(s), nil
}

func (m *MockSubscriptionRepo) UpdateByExternalID(_ context.Context, externalID string, p types.UpdateSubscriptionParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "UpdateByExternalID")
	if m.Err != nil {
		return false, m.Err
	}
	s, ok := m.Rows[externalID]
	if !ok {
		return false, nil
	}
	if p.Status != nil && p.Status.IsLive() && m.liveConflict(s.UserID, externalID) {
		return false, fmt.Errorf("update subscription: %w", types.ErrDuplicateSubscription)
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.PriceID != nil {
		s.PriceID = strPtr(*p.PriceID)
	}
	if p.ProductName != nil {
		s.ProductName = strPtr(*p.ProductName)
	}
	if p.ProductID != nil {
		s.ProductID = strPtr(*p.ProductID)
	}
	if p.CurrentPeriodEnd != nil {
		t := p.CurrentPeriodEnd.UTC()
		s.CurrentPeriodEnd = &t
	}
	if p.CancelAtPeriodEnd != nil {
		s.CancelAtPeriodEnd = *p.CancelAtPeriodEnd
	}
	s.UpdatedAt = m.Now().UTC()
	return true, nil
}

// MockPreferencesRepo is an in-memory preferences table.
type MockPreferencesRepo struct {
	mu      sync.Mutex
	Rows    map[uuid.UUID]*types.UserPreferences
	Err     error
	Inserts int
}

func NewMockPreferencesRepo() *MockPreferencesRepo {
	return &MockPreferencesRepo{Rows: make(map[uuid.UUID]*types.UserPreferences)}
}

func (m *MockPreferencesRepo) Row(userID uuid.UUID) *types.UserPreferences {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Rows[userID]; ok {
		clone := *p
		return &clone
	}
	return nil
}

func (m *MockPreferencesRepo) Get(_ context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Rows[userID]
	if !ok {
		return nil, fmt.Errorf("preferences: %w", types.ErrNotFound)
	}
	clone := *p
	return &clone, nil
}

func (m *MockPreferencesRepo) Upsert(_ context.Context, userID uuid.UUID, params types.UpdatePreferencesParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	p, ok := m.Rows[userID]
	if !ok {
		p = types.DefaultPreferences(userID)
		m.Rows[userID] = p
		m.Inserts++
	}
	if params.HasCompletedOnboarding != nil {
		p.HasCompletedOnboarding = *params.HasCompletedOnboarding
	}
	if params.OnboardingStep != nil {
		p.OnboardingStep = *params.OnboardingStep
	}
	if params.SelectedPlanID != nil {
		p.SelectedPlanID = strPtr(*params.SelectedPlanID)
	}
	if params.OnboardingCompletedAt != nil {
		t := *params.OnboardingCompletedAt
		p.OnboardingCompletedAt = &t
	}
	return nil
}

func (m *MockPreferencesRepo) EnsureDefault(_ context.Context, userID uuid.UUID) (*types.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Rows[userID]
	if !ok {
		p = types.DefaultPreferences(userID)
		m.Rows[userID] = p
		m.Inserts++
	}
	clone := *p
	return &clone, nil
}

// MockTrialRepo is an in-memory trials table.
type MockTrialRepo struct {
	mu   sync.Mutex
	Rows map[uuid.UUID]*types.UserTrial
	Err  error
}

func NewMockTrialRepo() *MockTrialRepo {
	return &MockTrialRepo{Rows: make(map[uuid.UUID]*types.UserTrial)}
}

func (m *MockTrialRepo) Get(_ context.Context, userID uuid.UUID) (*types.UserTrial, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Rows[userID]
	if !ok {
		return nil, fmt.Errorf("trial: %w", types.ErrNotFound)
	}
	clone := *t
	return &clone, nil
}

// MockBillingProvider stands in for the payment provider API.
type MockBillingProvider struct {
	mu            sync.Mutex
	Subscriptions map[string]*types.RemoteSubscription
	Products      map[string]*types.ProductInfo
	Canceled      []string
	Err           error
	CancelErr     error
}

func NewMockBillingProvider() *MockBillingProvider {
	return &MockBillingProvider{
		Subscriptions: make(map[string]*types.RemoteSubscription),
		Products:      make(map[string]*types.ProductInfo),
	}
}

func (m *MockBillingProvider) Subscription(_ context.Context, id string) (*types.RemoteSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, types.ErrNotFound)
	}
	clone := *s
	return &clone, nil
}

func (m *MockBillingProvider) Product(_ context.Context, priceID string) (*types.ProductInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Products[priceID]
	if !ok {
		return nil, fmt.Errorf("price %s: %w", priceID, types.ErrNotFound)
	}
	clone := *p
	return &clone, nil
}

func (m *MockBillingProvider) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CancelErr != nil {
		return m.CancelErr
	}
	m.Canceled = append(m.Canceled, id)
	if s, ok := m.Subscriptions[id]; ok {
		s.Status = types.SubscriptionCanceled
	}
	return nil
}

func (m *MockBillingProvider) CanceledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Canceled...)
}

// CloneSubscription returns a deep copy of s.
func CloneSubscription(s *types.Subscription) *types.Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	if s.PriceID != nil {
		clone.PriceID = strPtr(*s.PriceID)
	}
	if s.ProductName != nil {
		clone.ProductName = strPtr(*s.ProductName)
	}
	if s.ProductID != nil {
		clone.ProductID = strPtr(*s.ProductID)
	}
	if s.CurrentPeriodEnd != nil {
		t := *s.CurrentPeriodEnd
		clone.CurrentPeriodEnd = &t
	}
	return &clone
}

// WaitFor waits for a condition or times out.
func WaitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

func strPtr(s string) *string { return &s }
