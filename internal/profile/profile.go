// Package profile holds user profiles and the farmer/labourer records
// that hang off them.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("profile not found")

type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleLabourer Role = "labourer"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleLabourer
}

type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Phone     string     `json:"phone,omitempty"`
	Role      Role       `json:"role"`
	Location  string     `json:"location,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// FarmerDetails are the farmer-specific columns, shared by Farmer and the
// flattened FarmerProfile.
type FarmerDetails struct {
	FarmSize        *float64 `json:"farm_size,omitempty"`
	FarmLocation    string   `json:"farm_location,omitempty"`
	PrimaryCrops    []string `json:"primary_crops,omitempty"`
	ExperienceYears int      `json:"experience_years"`
	Verified        bool     `json:"verified"`
	Rating          float64  `json:"rating"`
	TotalJobsPosted int      `json:"total_jobs_posted"`
}

type Farmer struct {
	ID string `json:"id"`
	FarmerDetails
	CreatedAt time.Time `json:"created_at"`
}

type LabourerDetails struct {
	Skills             []string `json:"skills"`
	ExperienceYears    int      `json:"experience_years"`
	HourlyRate         *float64 `json:"hourly_rate,omitempty"`
	Availability       bool     `json:"availability"`
	Rating             float64  `json:"rating"`
	TotalJobsCompleted int      `json:"total_jobs_completed"`
}

type Labourer struct {
	ID string `json:"id"`
	LabourerDetails
	CreatedAt time.Time `json:"created_at"`
}

// FarmerProfile is a profile merged with its farmer record, the shape
// attached to job listings.
type FarmerProfile struct {
	Profile
	FarmerDetails
}

type LabourerProfile struct {
	Profile
	LabourerDetails
}

// NewFarmer returns the record created for a freshly signed-up farmer.
func NewFarmer(id string) *Farmer {
	return &Farmer{ID: id, CreatedAt: time.Now().UTC()}
}

// NewLabourer returns the record created for a freshly signed-up labourer.
func NewLabourer(id string) *Labourer {
	return &Labourer{
		ID: id,
		LabourerDetails: LabourerDetails{
			Skills:       []string{},
			Availability: true,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// DemoFarmer is attached to jobs whose owner has no stored profile.
func DemoFarmer(id string) FarmerProfile {
	return FarmerProfile{
		Profile: Profile{ID: id, FullName: "Demo Farmer", Role: RoleFarmer},
		FarmerDetails: FarmerDetails{
			Rating:          4.5,
			TotalJobsPosted: 10,
		},
	}
}

// DemoLabourer is attached to applications whose applicant has no stored
// profile.
func DemoLabourer(id string) LabourerProfile {
	return LabourerProfile{
		Profile: Profile{ID: id, FullName: "Demo Labourer", Role: RoleLabourer},
		LabourerDetails: LabourerDetails{
			Skills:          []string{"Harvesting", "Plowing"},
			ExperienceYears: 5,
			Availability:    true,
			Rating:          4.2,
		},
	}
}

// Update is a partial profile update; nil fields are left alone.
type Update struct {
	FullName  *string    `json:"full_name,omitempty" validate:"omitempty,min=1"`
	Phone     *string    `json:"phone,omitempty"`
	Location  *string    `json:"location,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64   `json:"longitude,omitempty" validate:"omitempty,longitude"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (u Update) apply(p *Profile) {
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Location != nil {
		p.Location = *u.Location
	}
	if u.Latitude != nil {
		p.Latitude = u.Latitude
	}
	if u.Longitude != nil {
		p.Longitude = u.Longitude
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	p.UpdatedAt = u.UpdatedAt
}

func (u *Update) touch() {
	if u.UpdatedAt == nil {
		now := time.Now().UTC()
		u.UpdatedAt = &now
	}
}

// LocationData is a resolved position, typically from reverse geocoding.
type LocationData struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city" validate:"required"`
	State     string  `json:"state" validate:"required"`
	Pincode   string  `json:"pincode,omitempty"`
}

// Store persists profiles and role records.
type Store interface {
	Get(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	Update(ctx context.Context, id string, u Update) (*Profile, error)

	Farmer(ctx context.Context, id string) (*Farmer, error)
	UpsertFarmer(ctx context.Context, f *Farmer) error
	Labourer(ctx context.Context, id string) (*Labourer, error)
	UpsertLabourer(ctx context.Context, l *Labourer) error
}

// UpdateLocation stores loc on the profile as "City, State" plus
// coordinates.
func UpdateLocation(ctx context.Context, s Store, id string, loc LocationData) (*Profile, error) {
	location := fmt.Sprintf("%s, %s", loc.City, loc.State)
	lat, lng := loc.Latitude, loc.Longitude
	return s.Update(ctx, id, Update{
		Location:  &location,
		Latitude:  &lat,
		Longitude: &lng,
	})
}

// LookupFarmer merges the stored profile and farmer record for id. When
// either is missing the demo farmer is returned.
func LookupFarmer(ctx context.Context, s Store, id string) FarmerProfile {
	p, err := s.Get(ctx, id)
	if err != nil {
		return DemoFarmer(id)
	}
	f, err := s.Farmer(ctx, id)
	if err != nil {
		return DemoFarmer(id)
	}
	return FarmerProfile{Profile: *p, FarmerDetails: f.FarmerDetails}
}

// LookupLabourer is LookupFarmer for labourers.
func LookupLabourer(ctx context.Context, s Store, id string) LabourerProfile {
	p, err := s.Get(ctx, id)
	if err != nil {
		return DemoLabourer(id)
	}
	l, err := s.Labourer(ctx, id)
	if err != nil {
		return DemoLabourer(id)
	}
	return LabourerProfile{Profile: *p, LabourerDetails: l.LabourerDetails}
}
