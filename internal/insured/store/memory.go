package store

import (
	"context"
	"sort"
	"sync"

	"insured/internal/insured/models"
	"insured/pkg/platform/sentinel"
)

// InMemory keeps insured persons in a map guarded by a RWMutex, with a sorted
// identity index for stable paging.
type InMemory struct {
	mu      sync.RWMutex
	records map[int64]*models.InsuredPerson
	ids     []int64
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[int64]*models.InsuredPerson)}
}

func (s *InMemory) Exists(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *InMemory) FindByID(ctx context.Context, id int64) (*models.InsuredPerson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

// Insert stores p with version 1. The existence check and the write happen
// under one lock, so concurrent inserts of the same identity resolve to
// exactly one success.
func (s *InMemory) Insert(ctx context.Context, p *models.InsuredPerson) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[p.IdentificationNumber]; ok {
		return sentinel.ErrAlreadyExists
	}
	p.Version = 1
	s.records[p.IdentificationNumber] = p.Clone()

	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= p.IdentificationNumber })
	s.ids = append(s.ids, 0)
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = p.IdentificationNumber
	return nil
}

func (s *InMemory) Replace(ctx context.Context, id int64, p *models.InsuredPerson, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	next := p.Clone()
	next.IdentificationNumber = id
	next.Version = current.Version + 1
	s.records[id] = next
	p.Version = next.Version
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id int64, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	delete(s.records, id)
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	if i < len(s.ids) && s.ids[i] == id {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
	}
	return nil
}

func (s *InMemory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// ListPage returns up to limit records in identity order starting at offset.
func (s *InMemory) ListPage(ctx context.Context, offset, limit int) ([]*models.InsuredPerson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 || limit <= 0 || offset >= len(s.ids) {
		return []*models.InsuredPerson{}, nil
	}
	end := len(s.ids)
	if limit < end-offset {
		end = offset + limit
	}
	out := make([]*models.InsuredPerson, 0, end-offset)
	for _, id := range s.ids[offset:end] {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}
