// Package history keeps summaries of past evaluation runs.
package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ricesearch/qac-eval/internal/evaluation"
)

// Store persists run summaries.
type Store interface {
	// Save records a finished run.
	Save(ctx context.Context, run *evaluation.RunSummary) error

	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]*evaluation.RunSummary, error)

	// Close releases resources.
	Close() error
}

// MemoryStore is an in-process Store, used when no Redis is configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []*evaluation.RunSummary
	ttl  time.Duration
}

// NewMemoryStore creates a memory store. A zero ttl keeps runs forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl}
}

// Save records a finished run.
func (m *MemoryStore) Save(ctx context.Context, run *evaluation.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)
	sort.SliceStable(m.runs, func(i, j int) bool {
		return m.runs[i].StartedAt.Before(m.runs[j].StartedAt)
	})

	if m.ttl > 0 {
		cutoff := time.Now().Add(-m.ttl)
		kept := m.runs[:0]
		for _, r := range m.runs {
			if !r.StartedAt.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		m.runs = kept
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*evaluation.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*evaluation.RunSummary, 0, n)
	for i := len(m.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
