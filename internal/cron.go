package internal

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const CRON_SCHEDULE_REFRESH = "@every 15m"

type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

func StartCron(schedule string, refresher Refresher, logger *zap.Logger) (*cron.Cron, error) {

	c := cron.New()

	logger.Info("starting CRON job to refresh fuel prices", zap.String("schedule", schedule))

	if _, err := c.AddFunc(schedule, func() {
		numStations, err := refresher.Refresh(context.Background())
		if err != nil {
			logger.Error("error refreshing fuel prices", zap.Error(err))
			return
		}
		logger.Info("refreshed fuel prices", zap.Int("stations", numStations))
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
