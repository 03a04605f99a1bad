package pipeline

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// StartScheduler runs the full pipeline on the configured interval until the
// context is cancelled. The first run fires immediately.
func (d *Definitions) StartScheduler(ctx context.Context) error {
	interval := d.res.Config.RunInterval()
	scheduler := gocron.NewScheduler(time.UTC)

	d.res.Log.Info("starting pipeline scheduler", zap.Duration("interval", interval))

	_, err := scheduler.Every(interval).StartImmediately().Do(func() {
		d.res.Log.Info("scheduled pipeline run starting")
		if err := d.Run(ctx, nil); err != nil {
			d.res.Log.Error("scheduled pipeline run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	scheduler.StartAsync()

	<-ctx.Done()

	scheduler.Stop()
	d.res.Log.Info("pipeline scheduler stopped")
	return nil
}
