package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farmhand/marketplace/internal/db"
)

const Namespace = "profiles"

// PersistentStore keeps profiles in badger under profiles/<id>,
// farmers/<id> and labourers/<id>.
type PersistentStore struct {
	dbStore *db.Store
}

func NewPersistentStore(dbStore *db.Store) *PersistentStore {
	return &PersistentStore{dbStore: dbStore}
}

func (s *PersistentStore) get(key string, dest any) error {
	if err := s.dbStore.GetJSON(Namespace, key, dest); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	return nil
}

func (s *PersistentStore) Get(_ context.Context, id string) (*Profile, error) {
	var p Profile
	if err := s.get("profiles/"+id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PersistentStore) Upsert(_ context.Context, p *Profile) error {
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	return s.dbStore.SetJSON(Namespace, "profiles/"+p.ID, &cp)
}

// Update is a read-modify-write; concurrent updates to one profile are
// last-writer-wins.
func (s *PersistentStore) Update(ctx context.Context, id string, u Update) (*Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.touch()
	u.apply(p)
	if err := s.dbStore.SetJSON(Namespace, "profiles/"+id, p); err != nil {
		return nil, fmt.Errorf("store profile: %w", err)
	}
	return p, nil
}

func (s *PersistentStore) Farmer(_ context.Context, id string) (*Farmer, error) {
	var f Farmer
	if err := s.get("farmers/"+id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PersistentStore) UpsertFarmer(_ context.Context, f *Farmer) error {
	return s.dbStore.SetJSON(Namespace, "farmers/"+f.ID, f)
}

func (s *PersistentStore) Labourer(_ context.Context, id string) (*Labourer, error) {
	var l Labourer
	if err := s.get("labourers/"+id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PersistentStore) UpsertLabourer(_ context.Context, l *Labourer) error {
	return s.dbStore.SetJSON(Namespace, "labourers/"+l.ID, l)
}
