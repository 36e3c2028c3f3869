package library

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/slomo/internal/config"
	"github.com/zsiec/slomo/internal/errors"
	"github.com/zsiec/slomo/internal/logger"
)

// Index stores recordings by id.
type Index interface {
	// Put adds or replaces a recording.
	Put(ctx context.Context, rec *Recording) error

	// Get returns a NotFound AppError when id is unknown.
	Get(ctx context.Context, id string) (*Recording, error)

	// List returns all recordings, newest first.
	List(ctx context.Context) ([]*Recording, error)

	Delete(ctx context.Context, id string) error

	Close() error
}

// New builds the index selected by cfg. client is required for the redis
// backend and ignored otherwise.
func New(cfg *config.IndexConfig, client *redis.Client, log logger.Logger) (Index, error) {
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis index requires a redis client")
		}
		return NewRedisIndex(client, log, cfg.Prefix, cfg.TTL), nil
	case "memory", "":
		return NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

func notFound(id string) error {
	return errors.NewNotFoundError(fmt.Sprintf("recording %s", id))
}

// MemoryIndex keeps recordings in process memory.
type MemoryIndex struct {
	mu         sync.RWMutex
	recordings map[string]*Recording
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{recordings: make(map[string]*Recording)}
}

func (m *MemoryIndex) Put(ctx context.Context, rec *Recording) error {
	if rec == nil || rec.ID == "" {
		return errors.NewValidationError("recording id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.recordings[rec.ID] = &cp
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, id string) (*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recordings[id]
	if !ok {
		return nil, notFound(id)
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryIndex) List(ctx context.Context) ([]*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Recording, 0, len(m.recordings))
	for _, rec := range m.recordings {
		cp := *rec
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recordings[id]; !ok {
		return notFound(id)
	}
	delete(m.recordings, id)
	return nil
}

func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings = make(map[string]*Recording)
	return nil
}

func sortNewestFirst(recs []*Recording) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].StartedAt.Equal(recs[j].StartedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].StartedAt.After(recs[j].StartedAt)
	})
}
