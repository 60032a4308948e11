package job

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farmhand/marketplace/internal/validate"
)

type EventType string

const (
	EventApplicationReceived EventType = "application_received"
	EventApplicationUpdated  EventType = "application_updated"
	EventJobUpdated          EventType = "job_updated"
)

// Event is pushed to the users affected by a change.
type Event struct {
	Type          EventType `json:"type"`
	JobID         string    `json:"job_id"`
	JobTitle      string    `json:"job_title,omitempty"`
	ApplicationID string    `json:"application_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	At            time.Time `json:"at"`
}

// Notifier delivers events to connected users. Delivery is best effort.
type Notifier interface {
	Notify(userID string, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Event) {}

// Service applies the marketplace rules on top of a JobStore: form
// validation, ownership of farmer-side actions, and notifications.
type Service struct {
	store    JobStore
	notifier Notifier
	log      logrus.FieldLogger
}

func NewService(store JobStore, notifier Notifier, log logrus.FieldLogger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{store: store, notifier: notifier, log: log.WithField("component", "jobs")}
}

func (s *Service) CreateJob(ctx context.Context, farmerID string, data CreateJobData) (*Job, error) {
	if err := validate.Struct(data); err != nil {
		return nil, err
	}
	j, err := s.store.CreateJob(ctx, farmerID, data)
	if err != nil {
		s.log.WithError(err).WithField("farmer_id", farmerID).Error("create job")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": j.ID, "farmer_id": farmerID}).Info("job posted")
	return j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context, f Filter) ([]JobWithFarmer, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	jobs, err := s.store.ListJobs(ctx, f)
	if err != nil {
		s.log.WithError(err).Error("get jobs")
		return nil, err
	}
	return jobs, nil
}

// OpenJobs lists jobs accepting applications.
func (s *Service) OpenJobs(ctx context.Context, f Filter) ([]JobWithFarmer, error) {
	f.Status = StatusOpen
	return s.ListJobs(ctx, f)
}

func (s *Service) JobsByFarmer(ctx context.Context, farmerID string) ([]*Job, error) {
	jobs, err := s.store.ListJobsByFarmer(ctx, farmerID)
	if err != nil {
		s.log.WithError(err).WithField("farmer_id", farmerID).Error("get my jobs")
		return nil, err
	}
	return jobs, nil
}

// owned loads a job and checks it belongs to farmerID.
func (s *Service) owned(ctx context.Context, farmerID, jobID string) (*Job, error) {
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.FarmerID != farmerID {
		return nil, ErrNotOwner
	}
	return j, nil
}

// UpdateJobStatus sets any status on a job the farmer owns and tells the
// applicants.
func (s *Service) UpdateJobStatus(ctx context.Context, farmerID, jobID string, status Status) (*Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := s.owned(ctx, farmerID, jobID); err != nil {
		return nil, err
	}

	j, err := s.store.UpdateJobStatus(ctx, jobID, status)
	if err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("update job status")
		return nil, err
	}

	apps, err := s.store.ListApplicationsForJob(ctx, jobID)
	if err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Warn("list applicants for notification")
		return j, nil
	}
	ev := Event{Type: EventJobUpdated, JobID: j.ID, JobTitle: j.Title, Status: string(status), At: time.Now().UTC()}
	for _, a := range apps {
		s.notifier.Notify(a.LabourerID, ev)
	}
	return j, nil
}

func (s *Service) DeleteJob(ctx context.Context, farmerID, jobID string) error {
	if _, err := s.owned(ctx, farmerID, jobID); err != nil {
		return err
	}
	if err := s.store.DeleteJob(ctx, jobID, farmerID); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("delete job")
		return err
	}
	return nil
}

// ApplyForJob records a pending application from labourerID. The job must
// exist and be open, and a labourer applies at most once per job.
func (s *Service) ApplyForJob(ctx context.Context, jobID, labourerID string, data ApplicationData) (*Application, error) {
	if err := validate.Struct(data); err != nil {
		return nil, err
	}
	j, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusOpen {
		return nil, ErrJobNotOpen
	}

	a, err := s.store.ApplyForJob(ctx, jobID, labourerID, data)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"job_id": jobID, "labourer_id": labourerID}).Error("apply for job")
		return nil, err
	}

	s.notifier.Notify(j.FarmerID, Event{
		Type:          EventApplicationReceived,
		JobID:         j.ID,
		JobTitle:      j.Title,
		ApplicationID: a.ID,
		Status:        string(a.Status),
		At:            a.AppliedAt,
	})
	return a, nil
}

// ApplicationsForJob lists the applications on a job the farmer owns.
func (s *Service) ApplicationsForJob(ctx context.Context, farmerID, jobID string) ([]ApplicationWithLabourer, error) {
	if _, err := s.owned(ctx, farmerID, jobID); err != nil {
		return nil, err
	}
	apps, err := s.store.ListApplicationsForJob(ctx, jobID)
	if err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("get job applications")
		return nil, err
	}
	return apps, nil
}

func (s *Service) ApplicationsByLabourer(ctx context.Context, labourerID string) ([]ApplicationWithJob, error) {
	apps, err := s.store.ListApplicationsByLabourer(ctx, labourerID)
	if err != nil {
		s.log.WithError(err).WithField("labourer_id", labourerID).Error("get my applications")
		return nil, err
	}
	return apps, nil
}

// UpdateApplicationStatus accepts or rejects a pending application on a
// job the farmer owns.
func (s *Service) UpdateApplicationStatus(ctx context.Context, farmerID, applicationID string, status ApplicationStatus) (*Application, error) {
	if status != ApplicationAccepted && status != ApplicationRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	a, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	j, err := s.owned(ctx, farmerID, a.JobID)
	if err != nil {
		return nil, err
	}
	if a.Status != ApplicationPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, status)
	}

	a, err = s.store.UpdateApplicationStatus(ctx, applicationID, status)
	if err != nil {
		s.log.WithError(err).WithField("application_id", applicationID).Error("update application status")
		return nil, err
	}

	s.notifier.Notify(a.LabourerID, Event{
		Type:          EventApplicationUpdated,
		JobID:         j.ID,
		JobTitle:      j.Title,
		ApplicationID: a.ID,
		Status:        string(a.Status),
		At:            time.Now().UTC(),
	})
	return a, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}
