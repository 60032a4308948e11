// Package app assembles the marketplace services for the configured
// backend: Supabase when it is configured, otherwise the in-memory or
// badger demo stores.
package app

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farmhand/marketplace/internal/advisory"
	"github.com/farmhand/marketplace/internal/api"
	"github.com/farmhand/marketplace/internal/auth"
	"github.com/farmhand/marketplace/internal/config"
	"github.com/farmhand/marketplace/internal/dashboard"
	"github.com/farmhand/marketplace/internal/db"
	"github.com/farmhand/marketplace/internal/job"
	"github.com/farmhand/marketplace/internal/profile"
	"github.com/farmhand/marketplace/internal/storage"
	"github.com/farmhand/marketplace/internal/supabase"
	"github.com/farmhand/marketplace/internal/ws"
)

const demoTokenTTL = 7 * 24 * time.Hour

type App struct {
	Config *config.Config
	Log    *logrus.Logger

	Profiles  profile.Store
	JobStore  job.JobStore
	Jobs      *job.Service
	Auth      auth.Gateway
	Advisory  advisory.Source
	Prices    *advisory.PriceFeed
	Geocoder  *advisory.Geocoder
	Dashboard *dashboard.Loader
	Hub       *ws.Hub
	Avatars   *storage.Avatars

	db *db.Store
}

// New wires every service for cfg. Close must be called to release the
// badger store.
func New(cfg *config.Config, log *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log}

	cat, err := advisory.LoadCatalogue()
	if err != nil {
		return nil, err
	}

	if cfg.SupabaseConfigured() {
		client, err := supabase.New(supabase.Config{
			ProjectURL: cfg.SupabaseURL,
			AnonKey:    cfg.SupabaseAnonKey,
		})
		if err != nil {
			return nil, fmt.Errorf("supabase client: %w", err)
		}
		a.Profiles = profile.NewSupabaseStore(client)
		a.JobStore = job.NewSupabaseStore(client)
		a.Auth = auth.NewSupabaseGateway(client, a.Profiles, cfg.SupabaseJWTSecret, log)
		a.Advisory = advisory.NewSupabaseSource(client)
		log.WithField("url", cfg.SupabaseURL).Info("Using Supabase backend")
	} else {
		if err := a.openDemoStores(); err != nil {
			return nil, err
		}
		tokens := auth.NewTokens(cfg.DemoTokenSecret, demoTokenTTL)
		a.Auth = auth.NewMockGateway(a.Profiles, tokens, log)
		a.Advisory = advisory.NewMockSource(cat, advisory.DefaultRand)
		log.WithField("backend", cfg.StoreBackend).Warn("Supabase not configured, running in demo mode")
	}

	a.Hub = ws.NewHub(log)
	a.Jobs = job.NewService(a.JobStore, a.Hub, log)
	a.Prices = advisory.NewPriceFeed(cat, log)
	a.Geocoder = advisory.NewGeocoder(cfg.OpenCageAPIKey, log)
	a.Dashboard = dashboard.NewLoader(a.Jobs, a.Advisory, log)

	files, err := storage.NewStore(filepath.Join(cfg.DataDir, "files"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Avatars = storage.NewAvatars(files, "/avatars", log)

	return a, nil
}

func (a *App) openDemoStores() error {
	switch a.Config.StoreBackend {
	case config.BackendBadger:
		store, err := db.NewStore(a.Config.DataDir)
		if err != nil {
			return err
		}
		a.db = store
		a.Profiles = profile.NewPersistentStore(store)
		a.JobStore = job.NewPersistentStore(store, a.Profiles)
	default:
		a.Profiles = profile.NewMemoryStore()
		a.JobStore = job.NewStore(a.Profiles)
	}
	return nil
}

// Router is the HTTP API over the wired services.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Config:    a.Config,
		Log:       a.Log,
		Auth:      a.Auth,
		Profiles:  a.Profiles,
		Jobs:      a.Jobs,
		Advisory:  a.Advisory,
		Prices:    a.Prices,
		Geocoder:  a.Geocoder,
		Dashboard: a.Dashboard,
		Hub:       a.Hub,
		Avatars:   a.Avatars,
		Rand:      advisory.DefaultRand,
	})
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
