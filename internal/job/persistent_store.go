package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/farmhand/marketplace/internal/db"
	"github.com/farmhand/marketplace/internal/profile"
)

const Namespace = "marketplace"

// PersistentStore keeps jobs and applications in badger as JSON under
// jobs/<id> and applications/<id>, so demo data survives restarts.
type PersistentStore struct {
	dbStore  *db.Store
	profiles profile.Store

	// serialises read-check-write sequences such as ApplyForJob
	mu sync.Mutex
}

func NewPersistentStore(dbStore *db.Store, profiles profile.Store) *PersistentStore {
	return &PersistentStore{dbStore: dbStore, profiles: profiles}
}

func jobKey(id string) string { return "jobs/" + id }

func appKey(id string) string { return "applications/" + id }

func (s *PersistentStore) put(key string, v any) error {
	if err := s.dbStore.SetJSON(Namespace, key, v); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Add writes a prepared job as-is (seeding).
func (s *PersistentStore) Add(j *Job) error {
	return s.put(jobKey(j.ID), j)
}

// AddApplication writes a prepared application as-is (seeding).
func (s *PersistentStore) AddApplication(a *Application) error {
	if _, err := s.Get(context.Background(), a.JobID); err != nil {
		return err
	}
	return s.put(appKey(a.ID), a)
}

func (s *PersistentStore) CreateJob(_ context.Context, farmerID string, data CreateJobData) (*Job, error) {
	j := New(farmerID, data)
	if err := s.Add(j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *PersistentStore) Get(_ context.Context, id string) (*Job, error) {
	var j Job
	if err := s.dbStore.GetJSON(Namespace, jobKey(id), &j); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PersistentStore) jobs(keep func(*Job) bool) ([]*Job, error) {
	var all []*Job
	err := s.dbStore.Scan(Namespace, "jobs/", func(key string, value []byte) error {
		var j Job
		if err := json.Unmarshal(value, &j); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}
		if keep(&j) {
			all = append(all, &j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

func (s *PersistentStore) applications(keep func(*Application) bool) ([]*Application, error) {
	var all []*Application
	err := s.dbStore.Scan(Namespace, "applications/", func(key string, value []byte) error {
		var a Application
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}
		if keep(&a) {
			all = append(all, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].AppliedAt.After(all[j].AppliedAt)
	})
	return all, nil
}

func (s *PersistentStore) ListJobs(ctx context.Context, f Filter) ([]JobWithFarmer, error) {
	jobs, err := s.jobs(f.Matches)
	if err != nil {
		return nil, err
	}
	out := make([]JobWithFarmer, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobWithFarmer{Job: *j, Farmer: profile.LookupFarmer(ctx, s.profiles, j.FarmerID)})
	}
	return out, nil
}

func (s *PersistentStore) ListJobsByFarmer(_ context.Context, farmerID string) ([]*Job, error) {
	return s.jobs(func(j *Job) bool { return j.FarmerID == farmerID })
}

func (s *PersistentStore) UpdateJobStatus(ctx context.Context, id string, status Status) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	j.Status = status
	if err := s.put(jobKey(id), j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *PersistentStore) DeleteJob(ctx context.Context, id, farmerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.FarmerID != farmerID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	apps, err := s.applications(func(a *Application) bool { return a.JobID == id })
	if err != nil {
		return err
	}
	for _, a := range apps {
		if err := s.dbStore.Delete(Namespace, appKey(a.ID)); err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("delete application: %w", err)
		}
	}
	if err := s.dbStore.Delete(Namespace, jobKey(id)); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *PersistentStore) ApplyForJob(ctx context.Context, jobID, labourerID string, data ApplicationData) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusOpen {
		return nil, ErrJobNotOpen
	}
	existing, err := s.applications(func(a *Application) bool {
		return a.JobID == jobID && a.LabourerID == labourerID
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyApplied
	}

	a := NewApplication(jobID, labourerID, data)
	if err := s.put(appKey(a.ID), a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PersistentStore) GetApplication(_ context.Context, id string) (*Application, error) {
	var a Application
	if err := s.dbStore.GetJSON(Namespace, appKey(id), &a); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

func (s *PersistentStore) ListApplicationsForJob(ctx context.Context, jobID string) ([]ApplicationWithLabourer, error) {
	apps, err := s.applications(func(a *Application) bool { return a.JobID == jobID })
	if err != nil {
		return nil, err
	}
	out := make([]ApplicationWithLabourer, 0, len(apps))
	for _, a := range apps {
		out = append(out, ApplicationWithLabourer{Application: *a, Labourer: profile.LookupLabourer(ctx, s.profiles, a.LabourerID)})
	}
	return out, nil
}

func (s *PersistentStore) ListApplicationsByLabourer(ctx context.Context, labourerID string) ([]ApplicationWithJob, error) {
	apps, err := s.applications(func(a *Application) bool { return a.LabourerID == labourerID })
	if err != nil {
		return nil, err
	}
	out := make([]ApplicationWithJob, 0, len(apps))
	for _, a := range apps {
		item := ApplicationWithJob{Application: *a}
		if j, err := s.Get(ctx, a.JobID); err == nil {
			item.Job = &JobWithFarmer{Job: *j, Farmer: profile.LookupFarmer(ctx, s.profiles, j.FarmerID)}
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *PersistentStore) UpdateApplicationStatus(ctx context.Context, id string, status ApplicationStatus) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != ApplicationPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
	}
	a.Status = status
	if err := s.put(appKey(id), a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PersistentStore) Stats(_ context.Context) (Stats, error) {
	var st Stats
	jobs, err := s.jobs(func(*Job) bool { return true })
	if err != nil {
		return st, err
	}
	for _, j := range jobs {
		st.addJob(j.Status)
	}
	apps, err := s.applications(func(*Application) bool { return true })
	if err != nil {
		return st, err
	}
	for _, a := range apps {
		st.addApplication(a.Status)
	}
	return st, nil
}
