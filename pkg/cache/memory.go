package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/rocketstart-api/pkg/clock"
)

type memoryItem[V any] struct {
	value    V
	storedAt time.Time
}

// MemoryStore is a process-local Store. Expiry is judged against the injected
// clock; go-cache's janitor only reclaims memory.
type MemoryStore[V any] struct {
	items  *gocache.Cache
	ttl    time.Duration
	now    clock.Clock
	prefix string
}

var _ Store[string] = (*MemoryStore[string])(nil)

// NewMemoryStore creates a store whose entries expire ttl after they were set.
func NewMemoryStore[V any](prefix string, ttl time.Duration, now clock.Clock) *MemoryStore[V] {
	if now == nil {
		now = clock.System
	}
	return &MemoryStore[V]{
		items:  gocache.New(2*ttl, 4*ttl),
		ttl:    ttl,
		now:    now,
		prefix: prefix,
	}
}

func (m *MemoryStore[V]) key(k string) string {
	return m.prefix + k
}

func (m *MemoryStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok := m.items.Get(m.key(key))
	if !ok {
		return zero, false, nil
	}
	item, ok := raw.(memoryItem[V])
	if !ok {
		return zero, false, nil
	}
	if m.now().Sub(item.storedAt) > m.ttl {
		m.items.Delete(m.key(key))
		return zero, false, nil
	}
	return item.value, true, nil
}

func (m *MemoryStore[V]) Set(_ context.Context, key string, value V) error {
	m.items.Set(m.key(key), memoryItem[V]{value: value, storedAt: m.now()}, gocache.DefaultExpiration)
	return nil
}

func (m *MemoryStore[V]) Invalidate(_ context.Context, key string) error {
	m.items.Delete(m.key(key))
	return nil
}

func (m *MemoryStore[V]) Clear(_ context.Context) error {
	if m.prefix == "" {
		m.items.Flush()
		return nil
	}
	for k := range m.items.Items() {
		if strings.HasPrefix(k, m.prefix) {
			m.items.Delete(k)
		}
	}
	return nil
}

func (m *MemoryStore[V]) TTL() time.Duration {
	return m.ttl
}

// Len counts stored entries, expired or not.
func (m *MemoryStore[V]) Len() int {
	return m.items.ItemCount()
}

// MemoryLedger claims keys in a go-cache instance.
type MemoryLedger struct {
	claims *gocache.Cache
	ttl    time.Duration
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{
		claims: gocache.New(retention, retention),
		ttl:    retention,
	}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	// Add fails when the key is already present and unexpired.
	if err := l.claims.Add(key, struct{}{}, gocache.DefaultExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, key string) error {
	l.claims.Delete(key)
	return nil
}
