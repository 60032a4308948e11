package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/farmhand/marketplace/internal/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo farmers, labourers, jobs and applications",
	Long: `Load a fixed set of demo records into the badger store. Seeding is
repeatable; records are overwritten, not duplicated. For the in-memory
backend use "serve --seed" instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, log, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Config.StoreBackend != config.BackendBadger || a.Config.SupabaseConfigured() {
			log.WithField("mode", a.Config.Mode()).Warn("Seeded data will not outlive this process")
		}

		counts, err := a.Seed(cmd.Context())
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"profiles":     counts.Profiles,
			"jobs":         counts.Jobs,
			"applications": counts.Applications,
			"data_dir":     a.Config.DataDir,
		}).Info("Seed complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
