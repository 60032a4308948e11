package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/farmhand/marketplace/internal/app"
	"github.com/farmhand/marketplace/internal/config"
	"github.com/farmhand/marketplace/internal/logging"
)

var (
	// Global flags
	envFile  string
	backend  string
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "farmhand",
	Short: "Farmhand - job marketplace for farmers and agricultural labourers",
	Long: `Farmhand connects farmers posting agricultural jobs with labourers
looking for work, alongside crop price advisories and farming tools.

Backends:
  - Supabase, when SUPABASE_URL and SUPABASE_ANON_KEY are set
  - In-memory demo store (STORE_BACKEND=memory, the default)
  - Badger demo store that survives restarts (STORE_BACKEND=badger)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Demo store backend: memory or badger (overrides STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if envFile != "" {
		c, err := config.LoadFile(envFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = config.Load()
	}

	if backend != "" {
		cfg.StoreBackend = backend
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// newApp loads config and wires the services. Callers close the app.
func newApp() (*app.App, *logrus.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	a, err := app.New(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}
