package job

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/farmhand/marketplace/internal/profile"
)

// Store is the in-process fallback used when no backend is configured.
// Listings are enriched from profiles, falling back to demo records.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	order    []string
	apps     map[string]*Application
	appOrder []string

	profiles profile.Store
}

func NewStore(profiles profile.Store) *Store {
	return &Store{
		jobs:     make(map[string]*Job),
		order:    make([]string, 0),
		apps:     make(map[string]*Application),
		appOrder: make([]string, 0),
		profiles: profiles,
	}
}

// Add inserts a prepared job as-is (seeding).
func (s *Store) Add(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		s.order = append(s.order, j.ID)
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

// AddApplication inserts a prepared application as-is (seeding).
func (s *Store) AddApplication(a *Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[a.JobID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, a.JobID)
	}
	if _, ok := s.apps[a.ID]; !ok {
		s.appOrder = append(s.appOrder, a.ID)
	}
	cp := *a
	s.apps[a.ID] = &cp
	return nil
}

func (s *Store) CreateJob(ctx context.Context, farmerID string, data CreateJobData) (*Job, error) {
	j := New(farmerID, data)
	if err := s.Add(j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *j
	return &cp, nil
}

// newestJobs returns copies of the jobs passing keep, newest first.
func (s *Store) newestJobs(keep func(*Job) bool) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for i := len(s.order) - 1; i >= 0; i-- {
		if j := s.jobs[s.order[i]]; keep(j) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func (s *Store) newestApplications(keep func(*Application) bool) []*Application {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Application
	for i := len(s.appOrder) - 1; i >= 0; i-- {
		if a := s.apps[s.appOrder[i]]; keep(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(x, y int) bool {
		return out[x].AppliedAt.After(out[y].AppliedAt)
	})
	return out
}

func (s *Store) ListJobs(ctx context.Context, f Filter) ([]JobWithFarmer, error) {
	jobs := s.newestJobs(f.Matches)
	out := make([]JobWithFarmer, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobWithFarmer{Job: *j, Farmer: profile.LookupFarmer(ctx, s.profiles, j.FarmerID)})
	}
	return out, nil
}

func (s *Store) ListJobsByFarmer(_ context.Context, farmerID string) ([]*Job, error) {
	return s.newestJobs(func(j *Job) bool { return j.FarmerID == farmerID }), nil
}

func (s *Store) UpdateJobStatus(_ context.Context, id string, status Status) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.Status = status
	cp := *j
	return &cp, nil
}

func (s *Store) DeleteJob(_ context.Context, id, farmerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.FarmerID != farmerID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.jobs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })

	// applications go with their job
	s.appOrder = slices.DeleteFunc(s.appOrder, func(appID string) bool {
		if s.apps[appID].JobID != id {
			return false
		}
		delete(s.apps, appID)
		return true
	})
	return nil
}

func (s *Store) ApplyForJob(_ context.Context, jobID, labourerID string, data ApplicationData) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if j.Status != StatusOpen {
		return nil, ErrJobNotOpen
	}
	for _, a := range s.apps {
		if a.JobID == jobID && a.LabourerID == labourerID {
			return nil, ErrAlreadyApplied
		}
	}

	a := NewApplication(jobID, labourerID, data)
	s.apps[a.ID] = a
	s.appOrder = append(s.appOrder, a.ID)
	cp := *a
	return &cp, nil
}

func (s *Store) GetApplication(_ context.Context, id string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListApplicationsForJob(ctx context.Context, jobID string) ([]ApplicationWithLabourer, error) {
	apps := s.newestApplications(func(a *Application) bool { return a.JobID == jobID })
	out := make([]ApplicationWithLabourer, 0, len(apps))
	for _, a := range apps {
		out = append(out, ApplicationWithLabourer{Application: *a, Labourer: profile.LookupLabourer(ctx, s.profiles, a.LabourerID)})
	}
	return out, nil
}

func (s *Store) ListApplicationsByLabourer(ctx context.Context, labourerID string) ([]ApplicationWithJob, error) {
	apps := s.newestApplications(func(a *Application) bool { return a.LabourerID == labourerID })
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

func (s *Store) UpdateApplicationStatus(_ context.Context, id string, status ApplicationStatus) (*Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	if a.Status != ApplicationPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

func (s *Store) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, j := range s.jobs {
		st.addJob(j.Status)
	}
	for _, a := range s.apps {
		st.addApplication(a.Status)
	}
	return st, nil
}
