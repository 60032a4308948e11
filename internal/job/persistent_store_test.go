package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farmhand/marketplace/internal/db"
	"github.com/farmhand/marketplace/internal/profile"
)

func newPersistentStore(t *testing.T) *PersistentStore {
	t.Helper()
	dbStore, err := db.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("create db store: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })
	return NewPersistentStore(dbStore, profile.NewMemoryStore())
}

// both in-process stores must behave the same
func forEachStore(t *testing.T, fn func(t *testing.T, store JobStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewStore(profile.NewMemoryStore())) })
	t.Run("persistent", func(t *testing.T) { fn(t, newPersistentStore(t)) })
}

func TestJobStore_CreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store JobStore) {
		ctx := context.Background()
		j, err := store.CreateJob(ctx, "farmer-1", sampleData())
		if err != nil {
			t.Fatalf("create job: %v", err)
		}

		got, err := store.Get(ctx, j.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if got.Title != "Paddy harvest" {
			t.Errorf("expected Paddy harvest, got %s", got.Title)
		}
		if got.Status != StatusOpen {
			t.Errorf("expected open, got %s", got.Status)
		}
	})
}

func TestJobStore_ListJobsFiltered(t *testing.T) {
	forEachStore(t, func(t *testing.T, store JobStore) {
		ctx := context.Background()
		a, _ := store.CreateJob(ctx, "farmer-1", sampleData())
		other := sampleData()
		other.Title = "Tractor driver"
		other.Location = "Warangal, Telangana"
		other.RequiredSkills = []string{"Equipment Operation"}
		b, _ := store.CreateJob(ctx, "farmer-2", other)
		store.UpdateJobStatus(ctx, b.ID, StatusInProgress)

		open, err := store.ListJobs(ctx, Filter{Status: StatusOpen})
		if err != nil {
			t.Fatalf("list jobs: %v", err)
		}
		if len(open) != 1 || open[0].ID != a.ID {
			t.Errorf("expected only %s open, got %+v", a.ID, open)
		}

		byLoc, _ := store.ListJobs(ctx, Filter{Location: "telangana"})
		if len(byLoc) != 1 || byLoc[0].ID != b.ID {
			t.Errorf("expected %s by location, got %d jobs", b.ID, len(byLoc))
		}

		mine, _ := store.ListJobsByFarmer(ctx, "farmer-1")
		if len(mine) != 1 || mine[0].ID != a.ID {
			t.Errorf("expected farmer-1 to own one job, got %d", len(mine))
		}
	})
}

func TestJobStore_ApplyRules(t *testing.T) {
	forEachStore(t, func(t *testing.T, store JobStore) {
		ctx := context.Background()
		j, _ := store.CreateJob(ctx, "farmer-1", sampleData())

		if _, err := store.ApplyForJob(ctx, "missing", "lab-1", ApplicationData{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		a, err := store.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{Message: "I can start Monday"})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if a.Status != ApplicationPending {
			t.Errorf("expected pending, got %s", a.Status)
		}

		if _, err := store.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{}); !errors.Is(err, ErrAlreadyApplied) {
			t.Errorf("expected ErrAlreadyApplied, got %v", err)
		}

		store.UpdateJobStatus(ctx, j.ID, StatusCompleted)
		if _, err := store.ApplyForJob(ctx, j.ID, "lab-2", ApplicationData{}); !errors.Is(err, ErrJobNotOpen) {
			t.Errorf("expected ErrJobNotOpen, got %v", err)
		}
	})
}

func TestJobStore_ApplicationListings(t *testing.T) {
	forEachStore(t, func(t *testing.T, store JobStore) {
		ctx := context.Background()
		j, _ := store.CreateJob(ctx, "farmer-1", sampleData())
		a1, _ := store.ApplyForJob(ctx, j.ID, "lab-1", ApplicationData{})
		store.ApplyForJob(ctx, j.ID, "lab-2", ApplicationData{})

		forJob, err := store.ListApplicationsForJob(ctx, j.ID)
		if err != nil {
			t.Fatalf("list applications: %v", err)
		}
		if len(forJob) != 2 {
			t.Fatalf("expected 2 applications, got %d", len(forJob))
		}
		if forJob[0].Labourer.FullName != "Demo Labourer" {
			t.Errorf("expected demo labourer, got %s", forJob[0].Labourer.FullName)
		}

		mine, _ := store.ListApplicationsByLabourer(ctx, "lab-1")
		if len(mine) != 1 || mine[0].ID != a1.ID {
			t.Fatalf("expected lab-1 application, got %+v", mine)
		}
		if mine[0].Job == nil || mine[0].Job.ID != j.ID {
			t.Errorf("expected application to carry its job")
		}

		updated, err := store.UpdateApplicationStatus(ctx, a1.ID, ApplicationAccepted)
		if err != nil {
			t.Fatalf("update application: %v", err)
		}
		if updated.Status != ApplicationAccepted {
			t.Errorf("expected accepted, got %s", updated.Status)
		}
		if _, err := store.UpdateApplicationStatus(ctx, a1.ID, ApplicationRejected); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected decided application to stay decided, got %v", err)
		}

		st, _ := store.Stats(ctx)
		if st.Open != 1 || st.Pending != 1 || st.Accepted != 1 {
			t.Errorf("unexpected stats %+v", st)
		}
	})
}

func TestPersistentStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	dbStore, err := db.NewStore(dir)
	if err != nil {
		t.Fatalf("create db store: %v", err)
	}
	store := NewPersistentStore(dbStore, profile.NewMemoryStore())
	j := New("farmer-1", sampleData())
	j.CreatedAt = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Add(j); err != nil {
		t.Fatalf("add: %v", err)
	}
	dbStore.Close()

	dbStore, err = db.NewStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer dbStore.Close()

	got, err := NewPersistentStore(dbStore, profile.NewMemoryStore()).Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !got.CreatedAt.Equal(j.CreatedAt) {
		t.Errorf("expected %v, got %v", j.CreatedAt, got.CreatedAt)
	}
}
