// Package cron runs the background revalidation worker: a control loop
// that re-checks every stored plan on a configurable schedule, guarded by
// an advisory lock so only one instance sweeps at a time.
package cron

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/alerting"
	"github.com/watthive/eflengine/internal/metrics"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/storage"
)

const (
	settingKey       = "revalidate_interval_seconds"
	jobName          = "revalidate_plans"
	lockKey    int64 = 42
)

// Deps carries the worker's collaborators.
type Deps struct {
	Store   storage.Storage
	Plans   *plans.Service
	Alerter *alerting.Alerter
	Logger  *zap.Logger

	// IntervalSetting is seconds between sweeps or a standard cron
	// expression. The settings table overrides it at runtime.
	IntervalSetting string
	// MinQuarantinedToAlert suppresses sweep alerts below this count.
	MinQuarantinedToAlert int
}

// Run executes the control loop until the context is canceled. The loop
// wakes every ten seconds to pick up interval changes from the settings
// table and to check whether the next sweep is due.
func Run(ctx context.Context, deps Deps) error {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	minAlert := deps.MinQuarantinedToAlert
	if minAlert <= 0 {
		minAlert = 1
	}

	intervalSetting := deps.IntervalSetting
	if intervalSetting == "" {
		intervalSetting = "3600"
	}
	if val, err := deps.Store.GetSetting(ctx, settingKey); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	// First sweep runs immediately.
	nextRun := time.Now()

	log.Info("revalidation worker starting", zap.String("interval", intervalSetting))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := deps.Store.GetSetting(ctx, settingKey); err == nil && val != "" && val != intervalSetting {
				log.Info("revalidation interval updated",
					zap.String("from", intervalSetting), zap.String("to", val))
				intervalSetting = val
				nextRun = nextRunAfter(intervalSetting, time.Now())
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			gotLock, err := deps.Store.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Warn("advisory lock acquire failed", zap.Error(err))
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = nextRunAfter(intervalSetting, time.Now())
				continue
			}
			if !gotLock {
				log.Info("advisory lock held elsewhere, skipping sweep")
				nextRun = nextRunAfter(intervalSetting, time.Now())
				continue
			}

			var sweep SweepResult
			var runErr error
			func() {
				defer func() {
					if _, err := deps.Store.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Warn("advisory lock release failed", zap.Error(err))
					}
				}()
				sweep, runErr = Sweep(ctx, deps.Plans, deps.Store, log)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)

			errMsg := ""
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := deps.Store.UpdateScheduledJob(ctx, jobName, started, sweep.Duration, runErr == nil, errMsg); err != nil {
				log.Warn("scheduled job update failed", zap.Error(err))
			}

			if deps.Alerter.Enabled() && len(sweep.Quarantined) >= minAlert {
				if err := deps.Alerter.SweepAlert(ctx, alerting.SweepSummary{
					JobName:     jobName,
					TotalPlans:  sweep.Total,
					Errors:      sweep.Errors,
					Quarantined: sweep.Quarantined,
					Duration:    sweep.Duration,
					Timestamp:   started,
				}); err != nil {
					log.Warn("sweep alert failed", zap.Error(err))
				}
			}

			log.Info("revalidation sweep finished",
				zap.Int("plans", sweep.Total),
				zap.Int("quarantined", len(sweep.Quarantined)),
				zap.Int("errors", sweep.Errors),
				zap.Duration("duration", sweep.Duration),
				zap.Error(runErr))

			nextRun = nextRunAfter(intervalSetting, time.Now())
		}
	}
}

// nextRunAfter interprets the interval setting as integer seconds first,
// then as a standard cron expression. Unparseable settings fall back to an
// hourly sweep.
func nextRunAfter(setting string, from time.Time) time.Time {
	if v, err := strconv.Atoi(setting); err == nil && v > 0 {
		return from.Add(time.Duration(v) * time.Second)
	}
	if sched, err := cron.ParseStandard(setting); err == nil {
		return sched.Next(from)
	}
	return from.Add(time.Hour)
}
