package advisory

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/profile"
)

const (
	earthRadiusKm    = 6371
	DefaultRadiusKm  = 50
	nearbyJitterDeg  = 0.5
	openCageEndpoint = "https://api.opencagedata.com/geocode/v1/json"
)

// CalculateDistance is the haversine distance in km, rounded to 2 dp.
func CalculateDistance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLng := deg2rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return round(earthRadiusKm*c, 2)
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}

type Address struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// FallbackAddress is returned whenever reverse geocoding is unavailable.
var FallbackAddress = Address{
	Address: "Agricultural Area, Rural Location",
	City:    "Vijayawada",
	State:   "Andhra Pradesh",
	Pincode: "520001",
}

// Geocoder resolves coordinates through OpenCage. Without an API key, or
// on any failure, it answers with FallbackAddress.
type Geocoder struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewGeocoder(apiKey string, log logrus.FieldLogger) *Geocoder {
	return &Geocoder{
		apiKey:     apiKey,
		endpoint:   openCageEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.WithField("component", "geocoder"),
	}
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lng float64) Address {
	if g.apiKey == "" {
		return FallbackAddress
	}
	addr, err := g.lookup(ctx, lat, lng)
	if err != nil {
		g.log.WithError(err).WithFields(logrus.Fields{"lat": lat, "lng": lng}).Warn("reverse geocoding")
		return FallbackAddress
	}
	return addr
}

func (g *Geocoder) lookup(ctx context.Context, lat, lng float64) (Address, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Address{}, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Address{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("geocoding failed: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Address{}, err
	}

	first := gjson.GetBytes(body, "results.0")
	if !first.Exists() {
		return Address{}, fmt.Errorf("no results found")
	}
	comp := first.Get("components")
	return Address{
		Address: first.Get("formatted").String(),
		City:    orUnknown(comp.Get("city").String(), comp.Get("town").String(), comp.Get("village").String()),
		State:   orUnknown(comp.Get("state").String()),
		Pincode: orUnknown(comp.Get("postcode").String()),
	}, nil
}

func orUnknown(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return "Unknown"
}

// Locate resolves coordinates into the profile location record.
func (g *Geocoder) Locate(ctx context.Context, lat, lng float64) profile.LocationData {
	addr := g.ReverseGeocode(ctx, lat, lng)
	return profile.LocationData{
		Latitude:  lat,
		Longitude: lng,
		Address:   addr.Address,
		City:      addr.City,
		State:     addr.State,
		Pincode:   addr.Pincode,
	}
}

// JobLister is the part of the job store nearby search needs.
type JobLister interface {
	ListJobs(ctx context.Context, f job.Filter) ([]job.JobWithFarmer, error)
}

type NearbyJob struct {
	job.JobWithFarmer
	Distance float64 `json:"distance"`
}

// FindNearbyJobs lists open jobs within radiusKm, nearest first. Postings
// carry no coordinates, so each job is placed at a random point within
// ±0.25° of the user.
func FindNearbyJobs(ctx context.Context, jobs JobLister, rnd Rand, lat, lng, radiusKm float64) ([]NearbyJob, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if rnd == nil {
		rnd = DefaultRand
	}

	open, err := jobs.ListJobs(ctx, job.Filter{Status: job.StatusOpen})
	if err != nil {
		return nil, fmt.Errorf("find nearby jobs: %w", err)
	}

	out := make([]NearbyJob, 0, len(open))
	for _, j := range open {
		jobLat := lat + (rnd.Float64()-0.5)*nearbyJitterDeg
		jobLng := lng + (rnd.Float64()-0.5)*nearbyJitterDeg
		d := CalculateDistance(lat, lng, jobLat, jobLng)
		if d <= radiusKm {
			out = append(out, NearbyJob{JobWithFarmer: j, Distance: d})
		}
	}
	slices.SortStableFunc(out, func(a, b NearbyJob) int { return cmp.Compare(a.Distance, b.Distance) })
	return out, nil
}
