package panelengine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Intervals for the background jobs started by Start.
const (
	PublishInterval     = time.Minute
	MaintenanceInterval = time.Hour
	CleanupInterval     = 24 * time.Hour

	// StaleWizardAge is how long an untouched onboarding session lives.
	StaleWizardAge = 30 * 24 * time.Hour
	// SecurityRetention is how long security events and access logs are kept.
	SecurityRetention = 90 * 24 * time.Hour
)

// MaintenanceResult counts what one maintenance run changed.
type MaintenanceResult struct {
	Overdue        int   `json:"overdue"`
	ExpiredWizards int   `json:"expiredWizards"`
	PurgedLogs     int64 `json:"purgedLogs"`
	Published      int   `json:"published"`
}

// RunMaintenance marks overdue invoices, expires stale wizard sessions,
// purges old security logs and publishes due posts. Every job runs even when
// an earlier one fails.
func (a *App) RunMaintenance(ctx context.Context) (MaintenanceResult, error) {
	var (
		res  MaintenanceResult
		errs []error
		err  error
	)
	now := a.now()
	if res.Overdue, err = a.Billing.MarkOverdue(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if res.ExpiredWizards, err = a.Wizard.ExpireStale(ctx, now.Add(-StaleWizardAge)); err != nil {
		errs = append(errs, err)
	}
	if res.PurgedLogs, err = a.Security.Cleanup(ctx, now.Add(-SecurityRetention)); err != nil {
		errs = append(errs, err)
	}
	if res.Published, err = a.Blog.PublishDue(ctx, now); err != nil {
		errs = append(errs, err)
	}
	if res.Published > 0 {
		a.Cache.Invalidate()
	}
	return res, errors.Join(errs...)
}

func (a *App) startMaintenance(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-ticker.C:
				res, err := a.RunMaintenance(context.Background())
				if err != nil {
					a.Logger.Error("maintenance", zap.Error(err))
				}
				if res != (MaintenanceResult{}) {
					a.Logger.Info("maintenance",
						zap.Int("overdue", res.Overdue),
						zap.Int("expired_wizards", res.ExpiredWizards),
						zap.Int64("purged_logs", res.PurgedLogs),
						zap.Int("published", res.Published),
					)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (a *App) startSchedulers() {
	a.stops = append(a.stops,
		a.Blog.StartPublisher(PublishInterval, a.Logger.Named("publisher"), func(int) { a.Cache.Invalidate() }),
		a.startMaintenance(MaintenanceInterval),
	)
	if a.Analytics != nil {
		a.stops = append(a.stops, a.Analytics.StartCleanupScheduler(a.Config.RetentionDays, CleanupInterval, a.Logger.Named("analytics")))
	}
}
