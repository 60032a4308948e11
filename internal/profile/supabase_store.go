package profile

import (
	"context"
	"fmt"

	"github.com/farmhand/marketplace/internal/supabase"
)

// SupabaseStore reads and writes the profiles, farmers and labourers
// tables. Requests run as the user whose token is on the context.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

func (s *SupabaseStore) getRow(ctx context.Context, table, id string, dest any) error {
	err := s.client.From(table).Select("*").Eq("id", id).Single().ExecuteInto(ctx, dest)
	if supabase.IsNotFound(err) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, table, id)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", table, err)
	}
	return nil
}

func (s *SupabaseStore) upsertRow(ctx context.Context, table string, row any) error {
	if _, err := s.client.From(table).Upsert(row, "id").Execute(ctx); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (s *SupabaseStore) Get(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	if err := s.getRow(ctx, "profiles", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SupabaseStore) Upsert(ctx context.Context, p *Profile) error {
	return s.upsertRow(ctx, "profiles", p)
}

func (s *SupabaseStore) Update(ctx context.Context, id string, u Update) (*Profile, error) {
	u.touch()
	var p Profile
	err := s.client.From("profiles").Update(u).Eq("id", id).Single().ExecuteInto(ctx, &p)
	if supabase.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &p, nil
}

func (s *SupabaseStore) Farmer(ctx context.Context, id string) (*Farmer, error) {
	var f Farmer
	if err := s.getRow(ctx, "farmers", id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SupabaseStore) UpsertFarmer(ctx context.Context, f *Farmer) error {
	return s.upsertRow(ctx, "farmers", f)
}

func (s *SupabaseStore) Labourer(ctx context.Context, id string) (*Labourer, error) {
	var l Labourer
	if err := s.getRow(ctx, "labourers", id, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *SupabaseStore) UpsertLabourer(ctx context.Context, l *Labourer) error {
	return s.upsertRow(ctx, "labourers", l)
}
