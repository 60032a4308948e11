package job

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmhand/marketplace/internal/supabase"
)

func newSupabaseStore(t *testing.T, handler http.HandlerFunc) *SupabaseStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := supabase.New(supabase.Config{ProjectURL: srv.URL, AnonKey: "anon"})
	require.NoError(t, err)
	return NewSupabaseStore(client)
}

func TestSupabaseStore_ListJobsFlattensFarmer(t *testing.T) {
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/rest/v1/job_postings", r.URL.Path)
		assert.Equal(t, "*,farmer:farmers!inner(*,profile:profiles!inner(*))", q.Get("select"))
		assert.Equal(t, "eq.open", q.Get("status"))
		assert.Equal(t, "ilike.*guntur*", q.Get("location"))
		assert.Equal(t, "ov.{Harvesting}", q.Get("required_skills"))
		assert.Equal(t, "(title.ilike.*rice  paddy*,description.ilike.*rice  paddy*)", q.Get("or"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		assert.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))

		w.Write([]byte(`[{
			"id": "j1", "farmer_id": "f1", "title": "Harvest", "status": "open",
			"required_skills": ["Harvesting"], "pay_rate": 500,
			"farmer": {"id": "f1", "rating": 4.8, "verified": true,
				"profile": {"id": "f1", "full_name": "Ravi", "role": "farmer"}}
		}]`))
	})

	ctx := supabase.WithAccessToken(context.Background(), "user-jwt")
	jobs, err := store.ListJobs(ctx, Filter{
		Status:   StatusOpen,
		Location: "guntur",
		Skills:   []string{"Harvesting"},
		Search:   "rice, paddy",
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Harvest", jobs[0].Title)
	assert.Equal(t, "Ravi", jobs[0].Farmer.FullName)
	assert.Equal(t, 4.8, jobs[0].Farmer.Rating)
	assert.True(t, jobs[0].Farmer.Verified)
}

func TestSupabaseStore_CreateJobAndApply(t *testing.T) {
	inserts := 0
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			q := r.URL.Query()
			assert.Equal(t, "/rest/v1/job_applications", r.URL.Path)
			assert.Equal(t, "eq.j1", q.Get("job_id"))
			assert.Equal(t, "1", q.Get("limit"))
			if q.Get("labourer_id") == "eq.again" {
				w.Write([]byte(`[{"id":"a0"}]`))
				return
			}
			w.Write([]byte(`[]`))
			return
		}
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/rest/v1/job_postings":
			assert.Equal(t, "f1", body["farmer_id"])
			assert.Equal(t, "open", body["status"])
			assert.Equal(t, []any{}, body["required_skills"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"j1","farmer_id":"f1","title":"Weeding","status":"open"}`))
		case "/rest/v1/job_applications":
			if body["labourer_id"] == "dup" {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
				return
			}
			assert.Equal(t, "pending", body["status"])
			inserts++
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"a1","job_id":"j1","labourer_id":"l1","status":"pending"}`))
		}
	})

	ctx := context.Background()
	j, err := store.CreateJob(ctx, "f1", CreateJobData{Title: "Weeding", Description: "d", Location: "x", PayRate: 1, ContactNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, "j1", j.ID)

	a, err := store.ApplyForJob(ctx, "j1", "l1", ApplicationData{})
	require.NoError(t, err)
	assert.Equal(t, ApplicationPending, a.Status)

	_, err = store.ApplyForJob(ctx, "j1", "dup", ApplicationData{})
	assert.ErrorIs(t, err, ErrAlreadyApplied)

	// an existing row is found before any insert is attempted
	_, err = store.ApplyForJob(ctx, "j1", "again", ApplicationData{})
	assert.ErrorIs(t, err, ErrAlreadyApplied)
	assert.Equal(t, 1, inserts)
}

func TestSupabaseStore_UpdateApplicationStatusOnlyFromPending(t *testing.T) {
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "eq.pending", q.Get("status"))
		if q.Get("id") == "eq.a-decided" {
			w.WriteHeader(http.StatusNotAcceptable)
			w.Write([]byte(`{"code":"PGRST116","message":"no rows"}`))
			return
		}
		w.Write([]byte(`{"id":"a1","job_id":"j1","labourer_id":"l1","status":"accepted"}`))
	})

	ctx := context.Background()
	a, err := store.UpdateApplicationStatus(ctx, "a1", ApplicationAccepted)
	require.NoError(t, err)
	assert.Equal(t, ApplicationAccepted, a.Status)

	_, err = store.UpdateApplicationStatus(ctx, "a-decided", ApplicationRejected)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSupabaseStore_GetAndDeleteNotFound(t *testing.T) {
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotAcceptable)
			w.Write([]byte(`{"code":"PGRST116","message":"no rows"}`))
		case http.MethodDelete:
			assert.Equal(t, "eq.f1", r.URL.Query().Get("farmer_id"))
			w.Write([]byte(`[]`))
		}
	})

	ctx := context.Background()
	_, err := store.Get(ctx, "j404")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetApplication(ctx, "a404")
	assert.ErrorIs(t, err, ErrApplicationNotFound)

	assert.ErrorIs(t, store.DeleteJob(ctx, "j1", "f1"), ErrNotFound)
}

func TestSupabaseStore_MyApplicationsCarryJob(t *testing.T) {
	store := newSupabaseStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.l1", r.URL.Query().Get("labourer_id"))
		assert.Equal(t, "applied_at.desc", r.URL.Query().Get("order"))
		w.Write([]byte(`[{
			"id": "a1", "job_id": "j1", "labourer_id": "l1", "status": "accepted",
			"job": {"id": "j1", "farmer_id": "f1", "title": "Sowing", "status": "in_progress",
				"farmer": {"id": "f1", "rating": 4, "profile": {"id": "f1", "full_name": "Sita"}}}
		}]`))
	})

	apps, err := store.ListApplicationsByLabourer(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, ApplicationAccepted, apps[0].Status)
	require.NotNil(t, apps[0].Job)
	assert.Equal(t, "Sowing", apps[0].Job.Title)
	assert.Equal(t, "Sita", apps[0].Job.Farmer.FullName)
}
