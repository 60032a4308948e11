package profile

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is the in-process store used in demo mode.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*Profile
	farmers   map[string]*Farmer
	labourers map[string]*Labourer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*Profile),
		farmers:   make(map[string]*Farmer),
		labourers: make(map[string]*Labourer),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Upsert(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.ID] = &cp
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u Update) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	u.touch()
	u.apply(p)
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Farmer(_ context.Context, id string) (*Farmer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.farmers[id]
	if !ok {
		return nil, fmt.Errorf("%w: farmer %s", ErrNotFound, id)
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) UpsertFarmer(_ context.Context, f *Farmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.farmers[f.ID] = &cp
	return nil
}

func (s *MemoryStore) Labourer(_ context.Context, id string) (*Labourer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.labourers[id]
	if !ok {
		return nil, fmt.Errorf("%w: labourer %s", ErrNotFound, id)
	}
	cp := *l
	return &cp, nil
}

func (s *MemoryStore) UpsertLabourer(_ context.Context, l *Labourer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.labourers[l.ID] = &cp
	return nil
}
