package cmd

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Refresh runs a single forced aggregation pass, updating the cache and the
// price history, then exits.
func Refresh(dbPath string, debug bool) error {

	ctx := context.Background()
	app, err := bootstrap(ctx, dbPath, debug)
	if err != nil {
		return err
	}
	defer app.Close()

	numStations, err := app.service.Refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to refresh fuel prices")
	}

	app.logger.Info("refreshed fuel prices",
		zap.Int("stations", numStations),
		zap.Stringp("last_updated", app.service.GetLastUpdated()))
	return nil
}
