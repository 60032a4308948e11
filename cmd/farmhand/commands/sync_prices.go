package commands

import (
	"github.com/spf13/cobra"
)

var syncPricesCmd = &cobra.Command{
	Use:   "sync-prices",
	Short: "Run one market price sync and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, log, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SyncPrices(cmd.Context()); err != nil {
			return err
		}
		status := a.Prices.Status()
		log.WithField("records", status.Records).Info("Price sync complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncPricesCmd)
}
