package job

import "context"

// JobStore is implemented by the in-memory, badger and Supabase stores.
// Listings are newest first.
type JobStore interface {
	CreateJob(ctx context.Context, farmerID string, data CreateJobData) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, f Filter) ([]JobWithFarmer, error)
	ListJobsByFarmer(ctx context.Context, farmerID string) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id string, status Status) (*Job, error)
	// DeleteJob removes the job only when it belongs to farmerID.
	DeleteJob(ctx context.Context, id, farmerID string) error

	ApplyForJob(ctx context.Context, jobID, labourerID string, data ApplicationData) (*Application, error)
	GetApplication(ctx context.Context, id string) (*Application, error)
	ListApplicationsForJob(ctx context.Context, jobID string) ([]ApplicationWithLabourer, error)
	ListApplicationsByLabourer(ctx context.Context, labourerID string) ([]ApplicationWithJob, error)
	// UpdateApplicationStatus only moves a pending application; the check
	// and the write are one step, so a decided application yields
	// ErrInvalidTransition.
	UpdateApplicationStatus(ctx context.Context, id string, status ApplicationStatus) (*Application, error)

	Stats(ctx context.Context) (Stats, error)
}
