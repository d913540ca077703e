package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/alerting"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/storage"
	"github.com/watthive/eflengine/internal/validate"
)

// SweepResult summarizes one revalidation pass over every stored plan.
type SweepResult struct {
	Total       int
	Errors      int
	Quarantined []alerting.PlanIssue
	Duration    time.Duration
}

// Sweep revalidates every stored plan once. Individual plan failures are
// logged and counted rather than aborting the pass; the first one is
// returned so the caller can record the sweep as failed.
func Sweep(ctx context.Context, svc *plans.Service, store storage.Storage, log *zap.Logger) (SweepResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	started := time.Now()

	recs, err := store.ListPlans(ctx)
	if err != nil {
		return SweepResult{Duration: time.Since(started)}, err
	}

	out := SweepResult{Total: len(recs)}
	var runErr error
	for i := range recs {
		if ctx.Err() != nil {
			out.Duration = time.Since(started)
			return out, ctx.Err()
		}
		res, err := svc.Revalidate(ctx, recs[i].ID)
		if err != nil {
			log.Warn("revalidate failed", zap.String("plan_id", recs[i].ID), zap.Error(err))
			out.Errors++
			if runErr == nil {
				runErr = err
			}
			continue
		}
		if res.Quarantined {
			out.Quarantined = append(out.Quarantined, alerting.PlanIssue{
				PlanID:     res.PlanID,
				ReasonCode: res.QuarantineCode,
				Detail:     issueDetail(res),
			})
		}
	}
	out.Duration = time.Since(started)
	return out, runErr
}

func issueDetail(res *plans.IngestResult) string {
	if res.Validation != nil && res.Validation.Status == validate.StatusFail {
		return res.Validation.QueueReason
	}
	return res.Classification.Reason
}
