package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/farmhand/marketplace/internal/metrics"
)

const syncTimeout = 2 * time.Minute

// SyncPrices runs one market price sync and records the outcome.
func (a *App) SyncPrices(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	err := a.Prices.SyncPriceData(ctx)
	metrics.RecordPriceSync(err == nil)
	return err
}

// StartPriceSync schedules SyncPrices on PRICE_SYNC_SCHEDULE. An empty
// schedule disables it and returns a nil scheduler. The caller stops the
// returned cron.
func (a *App) StartPriceSync(ctx context.Context) (*cron.Cron, error) {
	spec := a.Config.PriceSyncSchedule
	if spec == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := a.SyncPrices(ctx); err != nil {
			a.Log.WithError(err).Warn("Scheduled price sync failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_SYNC_SCHEDULE %q: %w", spec, err)
	}
	c.Start()
	a.Log.WithField("schedule", spec).Info("Price sync scheduled")
	return c, nil
}
