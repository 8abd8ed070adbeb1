// Package cache holds ledger.SummaryCache implementations: a no-op, an
// in-process map invalidated over PostgreSQL LISTEN/NOTIFY, and Redis.
package cache

import (
	"context"
	"sync"
	"time"

	"invencare/internal/domain/ledger"
)

// Noop never caches.
type Noop struct{}

var _ ledger.SummaryCache = Noop{}

func (Noop) GetSummary(context.Context, string) (*ledger.Summary, bool, error) {
	return nil, false, nil
}

func (Noop) Generation(context.Context) (int64, error) {
	return 0, nil
}

func (Noop) SetSummary(context.Context, string, int64, *ledger.Summary, time.Duration) error {
	return nil
}

func (Noop) InvalidateSummaries(context.Context) error {
	return nil
}

// Notifier tells other processes that cached summaries are stale.
type Notifier interface {
	Notify(ctx context.Context) error
}

type entry struct {
	summary ledger.Summary
	expires time.Time
}

// Memory is a per-process summary cache. With a Notifier, invalidations
// are broadcast so that peers can Clear their own copies.
type Memory struct {
	mu       sync.RWMutex
	gen      int64
	entries  map[string]entry
	notifier Notifier
	now      func() time.Time
}

var _ ledger.SummaryCache = (*Memory)(nil)

// NewMemory creates an empty cache. notifier may be nil.
func NewMemory(notifier Notifier) *Memory {
	return &Memory{
		entries:  make(map[string]entry),
		notifier: notifier,
		now:      time.Now,
	}
}

func (m *Memory) GetSummary(_ context.Context, key string) (*ledger.Summary, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expires) {
		return nil, false, nil
	}
	s := e.summary
	return &s, true, nil
}

func (m *Memory) Generation(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen, nil
}

func (m *Memory) SetSummary(_ context.Context, key string, gen int64, summary *ledger.Summary, ttl time.Duration) error {
	if summary == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	m.entries[key] = entry{summary: *summary, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) InvalidateSummaries(ctx context.Context) error {
	m.Clear()
	if m.notifier == nil {
		return nil
	}
	return m.notifier.Notify(ctx)
}

// Clear drops every entry and starts a new generation.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.gen++
	m.entries = make(map[string]entry)
	m.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
