package job

import (
	"context"
	"fmt"
	"strings"

	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/supabase"
)

const (
	jobsTable         = "job_postings"
	applicationsTable = "job_applications"

	selectJobWithFarmer = `*,
		farmer:farmers!inner(
			*,
			profile:profiles!inner(*)
		)`
	selectApplicationWithLabourer = `*,
		labourer:labourers!inner(
			*,
			profile:profiles!inner(*)
		)`
	selectApplicationWithJob = `*,
		job:job_postings!inner(
			*,
			farmer:farmers!inner(
				*,
				profile:profiles!inner(*)
			)
		)`
)

// SupabaseStore runs every operation as PostgREST calls; row-level
// security applies through the access token on the context.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

// Embedded rows come back nested (farmer.profile) and are flattened.
type farmerRow struct {
	profile.Farmer
	Profile profile.Profile `json:"profile"`
}

func (r farmerRow) flatten() profile.FarmerProfile {
	return profile.FarmerProfile{Profile: r.Profile, FarmerDetails: r.FarmerDetails}
}

type labourerRow struct {
	profile.Labourer
	Profile profile.Profile `json:"profile"`
}

func (r labourerRow) flatten() profile.LabourerProfile {
	return profile.LabourerProfile{Profile: r.Profile, LabourerDetails: r.LabourerDetails}
}

type jobRow struct {
	Job
	Farmer farmerRow `json:"farmer"`
}

func (r jobRow) flatten() JobWithFarmer {
	return JobWithFarmer{Job: r.Job, Farmer: r.Farmer.flatten()}
}

type jobInsert struct {
	FarmerID string `json:"farmer_id"`
	CreateJobData
	Status Status `json:"status"`
}

type applicationInsert struct {
	JobID      string `json:"job_id"`
	LabourerID string `json:"labourer_id"`
	ApplicationData
	Status ApplicationStatus `json:"status"`
}

func (s *SupabaseStore) CreateJob(ctx context.Context, farmerID string, data CreateJobData) (*Job, error) {
	if data.RequiredSkills == nil {
		data.RequiredSkills = []string{}
	}
	row := jobInsert{FarmerID: farmerID, CreateJobData: data, Status: StatusOpen}

	var j Job
	if err := s.client.From(jobsTable).Insert(row).Single().ExecuteInto(ctx, &j); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &j, nil
}

func (s *SupabaseStore) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	err := s.client.From(jobsTable).Eq("id", id).Single().ExecuteInto(ctx, &j)
	if supabase.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *SupabaseStore) ListJobs(ctx context.Context, f Filter) ([]JobWithFarmer, error) {
	q := s.client.From(jobsTable).
		Select(selectJobWithFarmer).
		Order("created_at", supabase.OrderDesc)

	if f.Status != "" {
		q = q.Eq("status", f.Status)
	}
	if f.Location != "" {
		q = q.ILike("location", "*"+f.Location+"*")
	}
	if len(f.Skills) > 0 {
		q = q.Overlaps("required_skills", f.Skills)
	}
	if term := orSafe(f.Search); term != "" {
		q = q.Or(fmt.Sprintf("title.ilike.*%s*,description.ilike.*%s*", term, term))
	}

	var rows []jobRow
	if err := q.ExecuteInto(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]JobWithFarmer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.flatten())
	}
	return out, nil
}

// orSafe drops the characters that delimit an or=(...) group.
func orSafe(term string) string {
	return strings.TrimSpace(strings.NewReplacer(",", " ", "(", "", ")", "").Replace(term))
}

func (s *SupabaseStore) ListJobsByFarmer(ctx context.Context, farmerID string) ([]*Job, error) {
	var jobs []*Job
	err := s.client.From(jobsTable).
		Eq("farmer_id", farmerID).
		Order("created_at", supabase.OrderDesc).
		ExecuteInto(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("list farmer jobs: %w", err)
	}
	return jobs, nil
}

func (s *SupabaseStore) UpdateJobStatus(ctx context.Context, id string, status Status) (*Job, error) {
	var j Job
	err := s.client.From(jobsTable).
		Update(map[string]Status{"status": status}).
		Eq("id", id).
		Single().
		ExecuteInto(ctx, &j)
	if supabase.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	return &j, nil
}

func (s *SupabaseStore) DeleteJob(ctx context.Context, id, farmerID string) error {
	var deleted []Job
	err := s.client.From(jobsTable).
		Delete().
		Eq("id", id).
		Eq("farmer_id", farmerID).
		ExecuteInto(ctx, &deleted)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if len(deleted) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SupabaseStore) ApplyForJob(ctx context.Context, jobID, labourerID string, data ApplicationData) (*Application, error) {
	var existing []struct {
		ID string `json:"id"`
	}
	err := s.client.From(applicationsTable).
		Select("id").
		Eq("job_id", jobID).
		Eq("labourer_id", labourerID).
		Limit(1).
		ExecuteInto(ctx, &existing)
	if err != nil {
		return nil, fmt.Errorf("check existing application: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyApplied
	}

	row := applicationInsert{
		JobID:           jobID,
		LabourerID:      labourerID,
		ApplicationData: data,
		Status:          ApplicationPending,
	}

	// a unique (job_id, labourer_id) constraint still catches racing inserts
	var a Application
	err = s.client.From(applicationsTable).Insert(row).Single().ExecuteInto(ctx, &a)
	if supabase.IsConflict(err) {
		return nil, ErrAlreadyApplied
	}
	if err != nil {
		return nil, fmt.Errorf("insert application: %w", err)
	}
	return &a, nil
}

func (s *SupabaseStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	var a Application
	err := s.client.From(applicationsTable).Eq("id", id).Single().ExecuteInto(ctx, &a)
	if supabase.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &a, nil
}

func (s *SupabaseStore) ListApplicationsForJob(ctx context.Context, jobID string) ([]ApplicationWithLabourer, error) {
	var rows []struct {
		Application
		Labourer labourerRow `json:"labourer"`
	}
	err := s.client.From(applicationsTable).
		Select(selectApplicationWithLabourer).
		Eq("job_id", jobID).
		Order("applied_at", supabase.OrderDesc).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list job applications: %w", err)
	}

	out := make([]ApplicationWithLabourer, 0, len(rows))
	for _, r := range rows {
		out = append(out, ApplicationWithLabourer{Application: r.Application, Labourer: r.Labourer.flatten()})
	}
	return out, nil
}

func (s *SupabaseStore) ListApplicationsByLabourer(ctx context.Context, labourerID string) ([]ApplicationWithJob, error) {
	var rows []struct {
		Application
		Job jobRow `json:"job"`
	}
	err := s.client.From(applicationsTable).
		Select(selectApplicationWithJob).
		Eq("labourer_id", labourerID).
		Order("applied_at", supabase.OrderDesc).
		ExecuteInto(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list my applications: %w", err)
	}

	out := make([]ApplicationWithJob, 0, len(rows))
	for _, r := range rows {
		j := r.Job.flatten()
		out = append(out, ApplicationWithJob{Application: r.Application, Job: &j})
	}
	return out, nil
}

func (s *SupabaseStore) UpdateApplicationStatus(ctx context.Context, id string, status ApplicationStatus) (*Application, error) {
	var a Application
	err := s.client.From(applicationsTable).
		Update(map[string]ApplicationStatus{"status": status}).
		Eq("id", id).
		Eq("status", ApplicationPending).
		Single().
		ExecuteInto(ctx, &a)
	if supabase.IsNotFound(err) {
		// no pending row matched: gone, or decided by a concurrent request
		return nil, fmt.Errorf("%w: application %s is no longer pending", ErrInvalidTransition, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update application status: %w", err)
	}
	return &a, nil
}

func (s *SupabaseStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	var jobs []struct {
		Status Status `json:"status"`
	}
	if err := s.client.From(jobsTable).Select("status").ExecuteInto(ctx, &jobs); err != nil {
		return st, fmt.Errorf("job stats: %w", err)
	}
	for _, j := range jobs {
		st.addJob(j.Status)
	}

	var apps []struct {
		Status ApplicationStatus `json:"status"`
	}
	if err := s.client.From(applicationsTable).Select("status").ExecuteInto(ctx, &apps); err != nil {
		return st, fmt.Errorf("application stats: %w", err)
	}
	for _, a := range apps {
		st.addApplication(a.Status)
	}
	return st, nil
}
