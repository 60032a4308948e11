package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/farmhand/marketplace/internal/advisory"
	"github.com/farmhand/marketplace/internal/auth"
	"github.com/farmhand/marketplace/internal/config"
	"github.com/farmhand/marketplace/internal/dashboard"
	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/metrics"
	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/storage"
	"github.com/farmhand/marketplace/internal/ws"
)

// Deps are the services behind the HTTP API. Avatars may be nil, which
// disables avatar upload.
type Deps struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	Auth      auth.Gateway
	Profiles  profile.Store
	Jobs      *job.Service
	Advisory  advisory.Source
	Prices    *advisory.PriceFeed
	Geocoder  *advisory.Geocoder
	Dashboard *dashboard.Loader
	Hub       *ws.Hub
	Avatars   *storage.Avatars
	Rand      advisory.Rand
}

func NewRouter(d Deps) http.Handler {
	h := NewHandlers(d)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: h.log, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(h.Authenticate)
	if d.Config.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst, h.log).Handler)
	}

	// Health & Info
	r.Get("/health", h.Health)
	r.Get("/info", h.Info)
	r.Get("/stats", h.Stats)
	r.Handle("/metrics", metrics.Handler())

	if d.Avatars != nil {
		r.Get("/avatars/*", storage.NewHandlers(d.Avatars).Download)
	}

	// Notifications stay outside the request timeout.
	r.With(h.RequireAuth).Get("/ws/notifications", h.Notifications)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout(d.Config)))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.SignUp)
			r.Post("/signin", h.SignIn)
			r.With(h.RequireAuth).Post("/signout", h.SignOut)
			r.With(h.RequireAuth).Get("/me", h.Me)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Patch("/me", h.UpdateProfile)
			r.Put("/me/location", h.UpdateLocation)
			r.Put("/me/avatar", h.UploadAvatar)
			r.Get("/{id}", h.GetProfile)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.With(h.RequireAuth).Get("/nearby", h.NearbyJobs)
			r.With(h.RequireRole(profile.RoleFarmer)).Post("/", h.CreateJob)
			r.With(h.RequireRole(profile.RoleFarmer)).Get("/mine", h.MyJobs)
			r.Get("/{id}", h.GetJob)
			r.With(h.RequireRole(profile.RoleFarmer)).Patch("/{id}/status", h.UpdateJobStatus)
			r.With(h.RequireRole(profile.RoleFarmer)).Delete("/{id}", h.DeleteJob)
			r.With(h.RequireRole(profile.RoleFarmer)).Get("/{id}/applications", h.JobApplications)
			r.With(h.RequireRole(profile.RoleLabourer)).Post("/{id}/applications", h.Apply)
		})

		r.Route("/applications", func(r chi.Router) {
			r.With(h.RequireRole(profile.RoleLabourer)).Get("/mine", h.MyApplications)
			r.With(h.RequireRole(profile.RoleFarmer)).Patch("/{id}", h.UpdateApplicationStatus)
		})

		r.With(h.RequireAuth).Get("/dashboard", h.LoadDashboard)

		r.Route("/crops", func(r chi.Router) {
			r.Get("/", h.ListCrops)
			r.Get("/{id}", h.GetCrop)
		})
		r.Route("/prices", func(r chi.Router) {
			r.Get("/predictions", h.PricePredictions)
			r.Get("/latest", h.LatestPrices)
			r.Get("/change", h.PriceChange)
		})
		r.Route("/tools", func(r chi.Router) {
			r.Get("/", h.ListTools)
			r.Get("/categories", h.ToolCategories)
			r.Get("/recommended", h.RecommendedTools)
			r.With(h.RequireRole(profile.RoleFarmer)).Post("/usage", h.RecordToolUsage)
			r.With(h.RequireRole(profile.RoleFarmer)).Get("/usage/mine", h.MyToolUsage)
			r.Get("/{id}", h.GetTool)
		})
		r.Route("/market", func(r chi.Router) {
			r.Get("/prices", h.MarketPrices)
			r.Get("/weather", h.Weather)
			r.Get("/trends", h.MarketTrends)
			r.Get("/sync", h.PriceSyncStatus)
		})
		r.Get("/location/reverse", h.ReverseGeocode)
	})

	return r
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.RequestTimeout > 0 {
		return cfg.RequestTimeout
	}
	return 30 * time.Second
}
