package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmhand/marketplace/internal/db"
	"github.com/farmhand/marketplace/internal/supabase"
)

func newPersistent(t *testing.T) *PersistentStore {
	t.Helper()
	dbStore, err := db.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })
	return NewPersistentStore(dbStore)
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory":     NewMemoryStore(),
		"persistent": newPersistent(t),
	}
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Upsert(ctx, &Profile{ID: "u1", Email: "a@b.c", FullName: "Asha", Role: RoleFarmer}))

			p, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "Asha", p.FullName)
			assert.False(t, p.CreatedAt.IsZero())
			assert.Nil(t, p.UpdatedAt)

			name := "Asha Rao"
			p, err = s.Update(ctx, "u1", Update{FullName: &name})
			require.NoError(t, err)
			assert.Equal(t, "Asha Rao", p.FullName)
			assert.Equal(t, "a@b.c", p.Email)
			assert.NotNil(t, p.UpdatedAt)

			_, err = s.Update(ctx, "missing", Update{FullName: &name})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RoleRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Farmer(ctx, "f1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.UpsertFarmer(ctx, NewFarmer("f1")))
			f, err := s.Farmer(ctx, "f1")
			require.NoError(t, err)
			assert.False(t, f.Verified)
			assert.Zero(t, f.Rating)

			require.NoError(t, s.UpsertLabourer(ctx, NewLabourer("l1")))
			l, err := s.Labourer(ctx, "l1")
			require.NoError(t, err)
			assert.True(t, l.Availability)
			assert.Empty(t, l.Skills)
		})
	}
}

func TestUpdateLocation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, &Profile{ID: "u1", Role: RoleLabourer}))

	p, err := UpdateLocation(ctx, s, "u1", LocationData{Latitude: 16.5, Longitude: 80.6, City: "Vijayawada", State: "Andhra Pradesh"})
	require.NoError(t, err)
	assert.Equal(t, "Vijayawada, Andhra Pradesh", p.Location)
	require.NotNil(t, p.Latitude)
	assert.InDelta(t, 16.5, *p.Latitude, 1e-9)
	assert.InDelta(t, 80.6, *p.Longitude, 1e-9)
}

func TestLookup_FallsBackToDemo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	f := LookupFarmer(ctx, s, "f1")
	assert.Equal(t, "Demo Farmer", f.FullName)
	assert.Equal(t, 4.5, f.Rating)
	assert.Equal(t, 10, f.TotalJobsPosted)

	l := LookupLabourer(ctx, s, "l1")
	assert.Equal(t, "Demo Labourer", l.FullName)
	assert.Equal(t, 4.2, l.Rating)
	assert.Equal(t, []string{"Harvesting", "Plowing"}, l.Skills)
	assert.Equal(t, 5, l.ExperienceYears)

	require.NoError(t, s.Upsert(ctx, &Profile{ID: "f1", FullName: "Ravi", Role: RoleFarmer}))
	require.NoError(t, s.UpsertFarmer(ctx, &Farmer{ID: "f1", FarmerDetails: FarmerDetails{Rating: 3.9}}))
	f = LookupFarmer(ctx, s, "f1")
	assert.Equal(t, "Ravi", f.FullName)
	assert.Equal(t, 3.9, f.Rating)
}

func TestFarmerProfile_JSONIsFlat(t *testing.T) {
	fp := FarmerProfile{
		Profile:       Profile{ID: "f1", FullName: "Ravi", Role: RoleFarmer},
		FarmerDetails: FarmerDetails{Rating: 4.1, TotalJobsPosted: 3},
	}
	data, err := json.Marshal(fp)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "f1", got["id"])
	assert.Equal(t, "Ravi", got["full_name"])
	assert.Equal(t, 4.1, got["rating"])
}

func TestSupabaseStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case r.Method == http.MethodGet && q.Get("id") == "eq.u1":
			w.Write([]byte(`{"id":"u1","email":"a@b.c","full_name":"Asha","role":"farmer"}`))
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotAcceptable)
			w.Write([]byte(`{"code":"PGRST116","message":"no rows"}`))
		case r.Method == http.MethodPatch:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Guntur, Andhra Pradesh", body["location"])
			assert.NotEmpty(t, body["updated_at"])
			w.Write([]byte(`{"id":"u1","full_name":"Asha","role":"farmer","location":"Guntur, Andhra Pradesh"}`))
		case r.Method == http.MethodPost:
			assert.Equal(t, "id", q.Get("on_conflict"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	s := NewSupabaseStore(client)
	ctx := context.Background()

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, RoleFarmer, p.Role)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Farmer(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err = UpdateLocation(ctx, s, "u1", LocationData{City: "Guntur", State: "Andhra Pradesh"})
	require.NoError(t, err)
	assert.Equal(t, "Guntur, Andhra Pradesh", p.Location)

	require.NoError(t, s.UpsertLabourer(ctx, NewLabourer("l1")))
}
