package repository

import (
	"context"
	"sync"
	"time"

	"github.com/zhejian/shortlink/internal/model"
)

// MemoryStore is an in-process Store. It is used for local runs without a
// database and as the fast backend in service tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*model.Link
	byAlias map[string]int64
	now     func() time.Time
}

// NewMemoryStore creates an empty store whose ids start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[int64]*model.Link),
		byAlias: make(map[string]int64),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, link *model.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.CustomAlias != "" {
		if _, ok := s.byAlias[link.CustomAlias]; ok {
			return ErrAliasConflict
		}
	}

	s.nextID++
	link.ID = s.nextID
	link.CreatedAt = s.now().UTC()
	link.Clicks = 0

	stored := *link
	s.byID[stored.ID] = &stored
	if stored.CustomAlias != "" {
		s.byAlias[stored.CustomAlias] = stored.ID
	}
	return nil
}

func (s *MemoryStore) GetByAlias(_ context.Context, alias string) (*model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAlias[alias]
	if !ok {
		return nil, ErrNotFound
	}
	link := *s.byID[id]
	return &link, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	link := *stored
	return &link, nil
}

func (s *MemoryStore) IncrementClicks(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	stored.Clicks++
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
