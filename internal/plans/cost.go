package plans

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/billing"
	"github.com/watthive/eflengine/internal/classify"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/metrics"
	"github.com/watthive/eflengine/internal/rates"
)

// CostRequest is one bill computation: a month's usage, optionally an
// hourly series for time-of-use pricing, and the zone the series' clock
// math runs in.
type CostRequest struct {
	UsageKWh float64                    `json:"usage_kwh"`
	Hourly   []rates.UsageIntervalPoint `json:"hourly,omitempty"`
	Timezone string                     `json:"timezone,omitempty"`
}

func costKeyPrefix(planID string) string {
	return "cost:" + planID + ":"
}

func costKey(planID string, usageKWh float64) string {
	return fmt.Sprintf("%s%.3f", costKeyPrefix(planID), usageKWh)
}

// CostForPlan computes a bill for a stored plan. Requests without an hourly
// series are served from cache when possible; cached breakdowns whose
// components no longer sum to their own total are treated as corrupt,
// dropped, and the plan is pulled into quarantine while a fresh result is
// computed.
func (s *Service) CostForPlan(ctx context.Context, planID string, req CostRequest) (*billing.PlanCostResult, error) {
	rec, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", planID, err)
	}
	if rec == nil {
		return nil, ErrPlanNotFound
	}
	if rec.Status != string(classify.StatusComputable) {
		return nil, &NotComputableError{PlanID: planID, ReasonCode: rec.ReasonCode}
	}

	cacheable := s.cache != nil && len(req.Hourly) == 0
	key := costKey(planID, req.UsageKWh)
	if cacheable {
		if cached, ok := s.cachedCost(ctx, planID, key); ok {
			return cached, nil
		}
		metrics.CostCacheMissesTotal.Inc()
	}

	doc, err := efl.ParseDocument(rec.Document)
	if err != nil {
		return nil, fmt.Errorf("stored document for plan %s: %w", planID, err)
	}

	opts := billing.ComputeOptions{Hourly: req.Hourly}
	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			return nil, fmt.Errorf("%w: timezone %q", ErrInvalidRequest, req.Timezone)
		}
		opts.Location = loc
	}

	res, err := billing.Compute(doc.RateStructure, req.UsageKWh, opts)
	if err != nil {
		return nil, err
	}

	source := "computed"
	if res.Estimated {
		source = "estimated"
	}
	metrics.CostComputationsTotal.WithLabelValues(source).Inc()

	if cacheable {
		if payload, err := json.Marshal(res); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cfg.CostCacheTTL); err != nil {
				s.log.Warn("cost cache write failed",
					zap.String("plan_id", planID), zap.Error(err))
			}
		}
	}
	return res, nil
}

// cachedCost returns a cached breakdown after checking its internal
// consistency. A breakdown that fails its own bucket sum is stale or
// corrupt persisted data; serving it would misprice the plan, so the entry
// is dropped and the plan lands in quarantine for review.
func (s *Service) cachedCost(ctx context.Context, planID, key string) (*billing.PlanCostResult, bool) {
	payload, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var cached billing.PlanCostResult
	if err := json.Unmarshal(payload, &cached); err != nil {
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	if err := billing.VerifyBucketSum(&cached, billing.BucketTotals(&cached)); err != nil {
		s.log.Warn("cached cost breakdown failed bucket sum check",
			zap.String("plan_id", planID), zap.Error(err))
		_ = s.cache.Delete(ctx, key)
		if qerr := s.openQuarantine(ctx, planID,
			string(classify.ReasonUsageBucketSumMismatch), err.Error()); qerr != nil {
			s.log.Warn("quarantine write failed",
				zap.String("plan_id", planID), zap.Error(qerr))
		}
		return nil, false
	}
	metrics.CostCacheHitsTotal.Inc()
	metrics.CostComputationsTotal.WithLabelValues("cache").Inc()
	return &cached, true
}

// CompareRequest names the plans to rank and the usage to rank them at.
type CompareRequest struct {
	PlanIDs  []string `json:"plan_ids"`
	UsageKWh float64  `json:"usage_kwh"`
}

// ComparePlans ranks stored plans by total cost at the given usage. Plans
// that are missing or not computable are skipped rather than failing the
// whole comparison; their IDs come back in the result.
func (s *Service) ComparePlans(ctx context.Context, req CompareRequest) (*billing.PlanComparisonResult, error) {
	if len(req.PlanIDs) == 0 {
		return nil, fmt.Errorf("%w: no plan ids to compare", ErrInvalidRequest)
	}

	var candidates []billing.CandidatePlan
	var skipped []string
	for _, planID := range req.PlanIDs {
		model, err := s.computableModel(ctx, planID)
		if err != nil {
			return nil, err
		}
		if model == nil {
			skipped = append(skipped, planID)
			continue
		}
		candidates = append(candidates, billing.CandidatePlan{PlanID: planID, Model: model})
	}

	out := billing.Compare(candidates, req.UsageKWh, billing.ComputeOptions{})
	out.Skipped = append(skipped, out.Skipped...)
	return out, nil
}

// computableModel loads a plan's rate model if the plan exists and is
// classified computable, nil otherwise. Storage errors still propagate.
func (s *Service) computableModel(ctx context.Context, planID string) (*rates.RateStructure, error) {
	rec, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", planID, err)
	}
	if rec == nil || rec.Status != string(classify.StatusComputable) {
		return nil, nil
	}
	doc, err := efl.ParseDocument(rec.Document)
	if err != nil {
		s.log.Warn("stored document no longer parses",
			zap.String("plan_id", planID), zap.Error(err))
		return nil, nil
	}
	return doc.RateStructure, nil
}
