package cache

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/pulse/internal/model"
)

// Entry is a hot-tier value. Insight.ID is empty when the set was served
// but not archived.
type Entry struct {
	Insight  model.ArchivedInsight `json:"insight"`
	StoredAt time.Time             `json:"storedAt"`
}

// Hot is the fast per-category tier consulted before the archive.
type Hot interface {
	Get(ctx context.Context, category model.Category) (Entry, bool, error)
	Put(ctx context.Context, category model.Category, e Entry) error
	Clear(ctx context.Context) error
}

// Memory is the in-process hot tier. Goroutine-safe.
type Memory struct {
	mu      sync.RWMutex
	entries map[model.Category]Entry
}

// NewMemory creates an empty memory tier.
func NewMemory() *Memory {
	return &Memory{entries: make(map[model.Category]Entry)}
}

func (m *Memory) Get(_ context.Context, category model.Category) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[category]
	return e, ok, nil
}

func (m *Memory) Put(_ context.Context, category model.Category, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[category] = e
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[model.Category]Entry)
	return nil
}

// Len returns the number of cached categories.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
