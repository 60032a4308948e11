package job

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/farmhand/marketplace/internal/profile"
)

var (
	ErrNotFound            = errors.New("job not found")
	ErrApplicationNotFound = errors.New("application not found")
	ErrNotOwner            = errors.New("job belongs to another farmer")
	ErrJobNotOpen          = errors.New("job is not open for applications")
	ErrAlreadyApplied      = errors.New("already applied for this job")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Job is a posting by one farmer.
type Job struct {
	ID             string    `json:"id"`
	FarmerID       string    `json:"farmer_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	RequiredSkills []string  `json:"required_skills"`
	Location       string    `json:"location"`
	PayRate        float64   `json:"pay_rate"`
	ContactNumber  string    `json:"contact_number"`
	Status         Status    `json:"status"`
	StartDate      string    `json:"start_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateJobData is the job posting form.
type CreateJobData struct {
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	RequiredSkills []string `json:"required_skills"`
	Location       string   `json:"location" validate:"required"`
	PayRate        float64  `json:"pay_rate" validate:"required,gt=0"`
	ContactNumber  string   `json:"contact_number" validate:"required"`
	StartDate      string   `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func New(farmerID string, data CreateJobData) *Job {
	skills := data.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	return &Job{
		ID:             uuid.NewString(),
		FarmerID:       farmerID,
		Title:          data.Title,
		Description:    data.Description,
		RequiredSkills: skills,
		Location:       data.Location,
		PayRate:        data.PayRate,
		ContactNumber:  data.ContactNumber,
		Status:         StatusOpen,
		StartDate:      data.StartDate,
		CreatedAt:      time.Now().UTC(),
	}
}

type Application struct {
	ID           string            `json:"id"`
	JobID        string            `json:"job_id"`
	LabourerID   string            `json:"labourer_id"`
	Message      string            `json:"message,omitempty"`
	ProposedRate *float64          `json:"proposed_rate,omitempty"`
	Status       ApplicationStatus `json:"status"`
	AppliedAt    time.Time         `json:"applied_at"`
}

// ApplicationData is the job application form.
type ApplicationData struct {
	Message      string   `json:"message,omitempty"`
	ProposedRate *float64 `json:"proposed_rate,omitempty" validate:"omitempty,gt=0"`
}

func NewApplication(jobID, labourerID string, data ApplicationData) *Application {
	return &Application{
		ID:           uuid.NewString(),
		JobID:        jobID,
		LabourerID:   labourerID,
		Message:      data.Message,
		ProposedRate: data.ProposedRate,
		Status:       ApplicationPending,
		AppliedAt:    time.Now().UTC(),
	}
}

type JobWithFarmer struct {
	Job
	Farmer profile.FarmerProfile `json:"farmer"`
}

type ApplicationWithLabourer struct {
	Application
	Labourer profile.LabourerProfile `json:"labourer"`
}

// ApplicationWithJob is an application as seen by the labourer who sent
// it. Job is nil when the posting has since been deleted.
type ApplicationWithJob struct {
	Application
	Job *JobWithFarmer `json:"job"`
}

// Filter narrows a job listing. Zero fields match everything.
type Filter struct {
	Status   Status   `json:"status,omitempty"`
	Location string   `json:"location,omitempty"`
	Skills   []string `json:"skills,omitempty"`
	Search   string   `json:"search,omitempty"`
}

// Matches applies the listing predicate: exact status, case-insensitive
// substring on location, any shared skill, and case-insensitive substring
// on title or description.
func (f Filter) Matches(j *Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Location != "" && !containsFold(j.Location, f.Location) {
		return false
	}
	if len(f.Skills) > 0 && !overlaps(j.RequiredSkills, f.Skills) {
		return false
	}
	if f.Search != "" && !containsFold(j.Title, f.Search) && !containsFold(j.Description, f.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func overlaps(have, want []string) bool {
	for _, s := range have {
		if slices.Contains(want, s) {
			return true
		}
	}
	return false
}

// Stats counts postings and applications by status.
type Stats struct {
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Pending    int `json:"pending_applications"`
	Accepted   int `json:"accepted_applications"`
	Rejected   int `json:"rejected_applications"`
}

func (s *Stats) addJob(st Status) {
	switch st {
	case StatusOpen:
		s.Open++
	case StatusInProgress:
		s.InProgress++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	}
}

func (s *Stats) addApplication(st ApplicationStatus) {
	switch st {
	case ApplicationPending:
		s.Pending++
	case ApplicationAccepted:
		s.Accepted++
	case ApplicationRejected:
		s.Rejected++
	}
}
