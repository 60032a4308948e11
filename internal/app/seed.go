package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/profile"
)

// ErrSeedUnsupported is returned when the job store cannot take prepared
// records, which is the case for Supabase.
var ErrSeedUnsupported = errors.New("seeding is only supported for the demo backends")

// seeder is implemented by the demo job stores.
type seeder interface {
	Add(j *job.Job) error
	AddApplication(a *job.Application) error
}

type seedFarmer struct {
	profile profile.Profile
	details profile.FarmerDetails
}

type seedLabourer struct {
	profile profile.Profile
	details profile.LabourerDetails
}

func ptr[T any](v T) *T { return &v }

var (
	seedFarmers = []seedFarmer{
		{
			profile: profile.Profile{
				ID: "seed-farmer-ravi", Email: "ravi@farmhand.test", FullName: "Ravi Kumar",
				Role: profile.RoleFarmer, Phone: "+91 98480 11111", Location: "Guntur, Andhra Pradesh",
				Latitude: ptr(16.3067), Longitude: ptr(80.4365),
			},
			details: profile.FarmerDetails{
				FarmSize: ptr(12.5), FarmLocation: "Guntur", PrimaryCrops: []string{"Rice", "Cotton"},
				ExperienceYears: 18, Verified: true, Rating: 4.6, TotalJobsPosted: 2,
			},
		},
		{
			profile: profile.Profile{
				ID: "seed-farmer-lakshmi", Email: "lakshmi@farmhand.test", FullName: "Lakshmi Devi",
				Role: profile.RoleFarmer, Phone: "+91 98480 22222", Location: "Vijayawada, Andhra Pradesh",
				Latitude: ptr(16.5062), Longitude: ptr(80.6480),
			},
			details: profile.FarmerDetails{
				FarmSize: ptr(6.0), FarmLocation: "Krishna", PrimaryCrops: []string{"Chilli", "Turmeric"},
				ExperienceYears: 9, Rating: 4.3, TotalJobsPosted: 1,
			},
		},
	}

	seedLabourers = []seedLabourer{
		{
			profile: profile.Profile{
				ID: "seed-labourer-suresh", Email: "suresh@farmhand.test", FullName: "Suresh Babu",
				Role: profile.RoleLabourer, Phone: "+91 98480 33333", Location: "Tenali, Andhra Pradesh",
			},
			details: profile.LabourerDetails{
				Skills: []string{"Harvesting", "Plowing", "Tractor Driving"}, ExperienceYears: 7,
				HourlyRate: ptr(80.0), Availability: true, Rating: 4.4, TotalJobsCompleted: 31,
			},
		},
		{
			profile: profile.Profile{
				ID: "seed-labourer-anitha", Email: "anitha@farmhand.test", FullName: "Anitha Rani",
				Role: profile.RoleLabourer, Phone: "+91 98480 44444", Location: "Mangalagiri, Andhra Pradesh",
			},
			details: profile.LabourerDetails{
				Skills: []string{"Transplanting", "Weeding", "Harvesting"}, ExperienceYears: 4,
				HourlyRate: ptr(65.0), Availability: true, Rating: 4.1, TotalJobsCompleted: 12,
			},
		},
	}
)

func seedJobs(now time.Time) []*job.Job {
	day := 24 * time.Hour
	start := now.Add(7 * day).Format("2006-01-02")
	return []*job.Job{
		{
			ID: "seed-job-paddy-harvest", FarmerID: "seed-farmer-ravi",
			Title:          "Paddy harvest crew",
			Description:    "Harvesting and bundling paddy across 10 acres. Meals provided.",
			RequiredSkills: []string{"Harvesting"}, Location: "Guntur, Andhra Pradesh",
			PayRate: 600, ContactNumber: "+91 98480 11111", Status: job.StatusOpen,
			StartDate: start, CreatedAt: now.Add(-3 * day),
		},
		{
			ID: "seed-job-cotton-plowing", FarmerID: "seed-farmer-ravi",
			Title:          "Tractor plowing before cotton sowing",
			Description:    "Two days of plowing with the farm tractor.",
			RequiredSkills: []string{"Plowing", "Tractor Driving"}, Location: "Guntur, Andhra Pradesh",
			PayRate: 800, ContactNumber: "+91 98480 11111", Status: job.StatusInProgress,
			CreatedAt: now.Add(-10 * day),
		},
		{
			ID: "seed-job-chilli-transplant", FarmerID: "seed-farmer-lakshmi",
			Title:          "Chilli seedling transplanting",
			Description:    "Transplanting chilli seedlings, morning shifts.",
			RequiredSkills: []string{"Transplanting", "Weeding"}, Location: "Vijayawada, Andhra Pradesh",
			PayRate: 500, ContactNumber: "+91 98480 22222", Status: job.StatusOpen,
			StartDate: start, CreatedAt: now.Add(-1 * day),
		},
	}
}

func seedApplications(now time.Time) []*job.Application {
	return []*job.Application{
		{
			ID: "seed-app-suresh-paddy", JobID: "seed-job-paddy-harvest", LabourerID: "seed-labourer-suresh",
			Message: "Available for the full week.", Status: job.ApplicationPending,
			AppliedAt: now.Add(-2 * 24 * time.Hour),
		},
		{
			ID: "seed-app-suresh-plowing", JobID: "seed-job-cotton-plowing", LabourerID: "seed-labourer-suresh",
			ProposedRate: ptr(850.0), Status: job.ApplicationAccepted,
			AppliedAt: now.Add(-9 * 24 * time.Hour),
		},
		{
			ID: "seed-app-anitha-chilli", JobID: "seed-job-chilli-transplant", LabourerID: "seed-labourer-anitha",
			Message: "I have transplanted chilli for three seasons.", Status: job.ApplicationPending,
			AppliedAt: now.Add(-12 * time.Hour),
		},
	}
}

// SeedCounts reports what Seed wrote.
type SeedCounts struct {
	Profiles     int `json:"profiles"`
	Jobs         int `json:"jobs"`
	Applications int `json:"applications"`
}

// Seed loads a fixed set of demo farmers, labourers, jobs and applications.
// Records use stable ids, so seeding twice overwrites rather than
// duplicates.
func (a *App) Seed(ctx context.Context) (SeedCounts, error) {
	var counts SeedCounts

	s, ok := a.JobStore.(seeder)
	if !ok {
		return counts, ErrSeedUnsupported
	}

	now := time.Now().UTC()
	for _, f := range seedFarmers {
		p := f.profile
		p.CreatedAt = now
		if err := a.Profiles.Upsert(ctx, &p); err != nil {
			return counts, err
		}
		if err := a.Profiles.UpsertFarmer(ctx, &profile.Farmer{ID: p.ID, FarmerDetails: f.details, CreatedAt: now}); err != nil {
			return counts, err
		}
		counts.Profiles++
	}
	for _, l := range seedLabourers {
		p := l.profile
		p.CreatedAt = now
		if err := a.Profiles.Upsert(ctx, &p); err != nil {
			return counts, err
		}
		if err := a.Profiles.UpsertLabourer(ctx, &profile.Labourer{ID: p.ID, LabourerDetails: l.details, CreatedAt: now}); err != nil {
			return counts, err
		}
		counts.Profiles++
	}

	for _, j := range seedJobs(now) {
		if err := s.Add(j); err != nil {
			return counts, err
		}
		counts.Jobs++
	}
	for _, app := range seedApplications(now) {
		if err := s.AddApplication(app); err != nil {
			return counts, err
		}
		counts.Applications++
	}

	a.Log.WithFields(logrus.Fields{
		"profiles":     counts.Profiles,
		"jobs":         counts.Jobs,
		"applications": counts.Applications,
	}).Info("Seeded demo data")
	return counts, nil
}
