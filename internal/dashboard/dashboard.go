// Package dashboard assembles the signed-in user's home screen.
package dashboard

import (
	"context"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/farmhand/marketplace/internal/advisory"
	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/profile"
)

const recentActivityLimit = 5

type Viewer struct {
	ID   string
	Role profile.Role
}

// View holds the listing filters the user has set.
type View struct {
	Search   string   `json:"search,omitempty"`
	Location string   `json:"location,omitempty"`
	Skills   []string `json:"skills,omitempty"`
}

// ReceivedApplication is an application on one of the farmer's jobs.
type ReceivedApplication struct {
	job.ApplicationWithLabourer
	Job *job.Job `json:"job"`
}

// Activity is one entry in the recent activity feed.
type Activity struct {
	ApplicationID string                `json:"application_id"`
	JobID         string                `json:"job_id"`
	JobTitle      string                `json:"job_title"`
	Status        job.ApplicationStatus `json:"status"`
	AppliedAt     time.Time             `json:"applied_at"`
	// Counterpart is the labourer's name for farmers, the farmer's for
	// labourers.
	Counterpart string `json:"counterpart,omitempty"`
}

type Overview struct {
	JobsPosted           int `json:"jobs_posted,omitempty"`
	ActiveJobs           int `json:"active_jobs,omitempty"`
	PendingApplications  int `json:"pending_applications"`
	AcceptedApplications int `json:"accepted_applications"`
	ApplicationsSent     int `json:"applications_sent,omitempty"`
	OpenJobsAvailable    int `json:"open_jobs_available,omitempty"`
	PriceAlerts          int `json:"price_alerts"`
	ToolsAvailable       int `json:"tools_available"`
}

type Dashboard struct {
	Role           profile.Role                  `json:"role"`
	View           View                          `json:"view"`
	OpenJobs       []job.JobWithFarmer           `json:"open_jobs"`
	Jobs           []job.JobWithFarmer           `json:"jobs"`
	MyJobs         []*job.Job                    `json:"my_jobs,omitempty"`
	Applications   []ReceivedApplication         `json:"applications,omitempty"`
	MyApplications []job.ApplicationWithJob      `json:"my_applications,omitempty"`
	CropPrices     []advisory.PredictionWithCrop `json:"crop_prices"`
	Tools          []advisory.ToolWithUsage      `json:"tools"`
	RecentActivity []Activity                    `json:"recent_activity"`
	Overview       Overview                      `json:"overview"`
}

// FilteredJobs applies the view's search, location and skills to the open
// job listing.
func (d *Dashboard) FilteredJobs(v View) []job.JobWithFarmer {
	f := job.Filter{Location: v.Location, Skills: v.Skills, Search: v.Search}
	out := []job.JobWithFarmer{}
	for _, j := range d.OpenJobs {
		if f.Matches(&j.Job) {
			out = append(out, j)
		}
	}
	return out
}

type Loader struct {
	jobs   *job.Service
	source advisory.Source
	log    logrus.FieldLogger
}

func NewLoader(jobs *job.Service, source advisory.Source, log logrus.FieldLogger) *Loader {
	return &Loader{jobs: jobs, source: source, log: log.WithField("component", "dashboard")}
}

// Load fetches every section concurrently. A failing section is logged and
// left empty so the rest of the dashboard still renders. OpenJobs holds
// every open job; Jobs is that listing narrowed by the view. A viewer
// without a role is shown the farmer dashboard.
func (l *Loader) Load(ctx context.Context, viewer Viewer, view View) *Dashboard {
	if viewer.Role == "" {
		viewer.Role = profile.RoleFarmer
	}
	d := &Dashboard{Role: viewer.Role, View: view}
	log := l.log.WithFields(logrus.Fields{"user_id": viewer.ID, "role": viewer.Role})

	var g errgroup.Group
	g.Go(func() error {
		jobs, err := l.jobs.OpenJobs(ctx, job.Filter{})
		if err != nil {
			log.WithError(err).Warn("load jobs")
			return nil
		}
		d.OpenJobs = jobs
		return nil
	})
	g.Go(func() error {
		if viewer.Role == profile.RoleFarmer {
			l.loadFarmerData(ctx, log, viewer.ID, d)
		} else {
			l.loadLabourerData(ctx, log, viewer.ID, d)
		}
		return nil
	})
	g.Go(func() error {
		prices, err := l.source.PricePredictions(ctx, advisory.PredictionFilter{})
		if err != nil {
			log.WithError(err).Warn("load crop prices")
			return nil
		}
		d.CropPrices = prices
		return nil
	})
	g.Go(func() error {
		tools, err := l.source.ListTools(ctx, "")
		if err != nil {
			log.WithError(err).Warn("load smart tools")
			return nil
		}
		d.Tools = tools
		return nil
	})
	g.Wait()

	d.Jobs = d.FilteredJobs(view)
	d.RecentActivity = recentActivity(viewer.Role, d)
	d.Overview = overview(viewer.Role, d)
	return d
}

// loadFarmerData lists the farmer's jobs and then each job's applications
// one job at a time.
func (l *Loader) loadFarmerData(ctx context.Context, log logrus.FieldLogger, farmerID string, d *Dashboard) {
	mine, err := l.jobs.JobsByFarmer(ctx, farmerID)
	if err != nil {
		log.WithError(err).Warn("load my jobs")
		return
	}
	d.MyJobs = mine

	for _, j := range mine {
		apps, err := l.jobs.ApplicationsForJob(ctx, farmerID, j.ID)
		if err != nil {
			log.WithError(err).WithField("job_id", j.ID).Warn("load job applications")
			return
		}
		for _, a := range apps {
			d.Applications = append(d.Applications, ReceivedApplication{ApplicationWithLabourer: a, Job: j})
		}
	}
}

func (l *Loader) loadLabourerData(ctx context.Context, log logrus.FieldLogger, labourerID string, d *Dashboard) {
	apps, err := l.jobs.ApplicationsByLabourer(ctx, labourerID)
	if err != nil {
		log.WithError(err).Warn("load my applications")
		return
	}
	d.MyApplications = apps
}

func newestFirst(a, b Activity) int {
	return b.AppliedAt.Compare(a.AppliedAt)
}

// recentActivity is the farmer's pending applications or the labourer's
// own applications, newest first, at most five.
func recentActivity(role profile.Role, d *Dashboard) []Activity {
	var out []Activity
	if role == profile.RoleFarmer {
		for _, a := range d.Applications {
			if a.Status != job.ApplicationPending {
				continue
			}
			out = append(out, Activity{
				ApplicationID: a.ID,
				JobID:         a.JobID,
				JobTitle:      a.Job.Title,
				Status:        a.Status,
				AppliedAt:     a.AppliedAt,
				Counterpart:   a.Labourer.FullName,
			})
		}
	} else {
		for _, a := range d.MyApplications {
			act := Activity{
				ApplicationID: a.ID,
				JobID:         a.JobID,
				Status:        a.Status,
				AppliedAt:     a.AppliedAt,
			}
			if a.Job != nil {
				act.JobTitle = a.Job.Title
				act.Counterpart = a.Job.Farmer.FullName
			}
			out = append(out, act)
		}
	}

	slices.SortStableFunc(out, newestFirst)
	if len(out) > recentActivityLimit {
		out = out[:recentActivityLimit]
	}
	return out
}

func overview(role profile.Role, d *Dashboard) Overview {
	o := Overview{PriceAlerts: len(d.CropPrices), ToolsAvailable: len(d.Tools)}
	if role == profile.RoleFarmer {
		o.JobsPosted = len(d.MyJobs)
		for _, j := range d.MyJobs {
			if j.Status == job.StatusOpen || j.Status == job.StatusInProgress {
				o.ActiveJobs++
			}
		}
		for _, a := range d.Applications {
			countApplication(&o, a.Status)
		}
		return o
	}

	o.ApplicationsSent = len(d.MyApplications)
	o.OpenJobsAvailable = len(d.OpenJobs)
	for _, a := range d.MyApplications {
		countApplication(&o, a.Status)
	}
	return o
}

func countApplication(o *Overview, st job.ApplicationStatus) {
	switch st {
	case job.ApplicationPending:
		o.PendingApplications++
	case job.ApplicationAccepted:
		o.AcceptedApplications++
	}
}
