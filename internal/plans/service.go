// Package plans coordinates the plan lifecycle: parse a disclosure
// document, validate it against its own average-price table, classify its
// computability, and persist the verdicts. The domain packages under efl,
// validate, classify, and billing stay side-effect free; everything that
// touches storage, caches, or notifications happens here.
package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/cache"
	"github.com/watthive/eflengine/internal/classify"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/efltext"
	"github.com/watthive/eflengine/internal/metrics"
	"github.com/watthive/eflengine/internal/storage"
	"github.com/watthive/eflengine/internal/validate"
)

// ErrPlanNotFound reports a plan ID with no stored record.
var ErrPlanNotFound = errors.New("plan not found")

// ErrInvalidDocument reports an ingest payload that failed envelope or
// model validation. Caller input, not system state.
var ErrInvalidDocument = errors.New("invalid plan document")

// ErrInvalidRequest reports a malformed cost or comparison request.
var ErrInvalidRequest = errors.New("invalid request")

// NotComputableError is returned when a cost is requested for a plan whose
// stored classification is NOT_COMPUTABLE. The reason code travels with the
// error so callers can surface it verbatim.
type NotComputableError struct {
	PlanID     string
	ReasonCode string
	Reason     string
}

func (e *NotComputableError) Error() string {
	return fmt.Sprintf("plan %s is not computable: %s", e.PlanID, e.ReasonCode)
}

// Notifier is told when a plan newly enters quarantine. Failures are logged
// and never fail the ingest that triggered them.
type Notifier interface {
	NotifyQuarantine(ctx context.Context, rec storage.QuarantineRecord) error
}

// Config controls validation tolerance and cost-cache lifetime.
type Config struct {
	// ToleranceCents is the validation band in cents per kWh. Zero uses
	// the validator's default.
	ToleranceCents float64
	// CostCacheTTL bounds how long a computed bill may be served from
	// cache. Zero uses a one-hour default.
	CostCacheTTL time.Duration
}

// Deps are the service's collaborators. Store is required; the rest may be
// nil and the corresponding behavior is skipped.
type Deps struct {
	Store     storage.Storage
	Extractor efltext.Extractor
	Cache     cache.Cache
	Notifier  Notifier
	Logger    *zap.Logger
}

// Service runs the ingest pipeline and answers plan queries.
type Service struct {
	cfg       Config
	store     storage.Storage
	extractor efltext.Extractor
	cache     cache.Cache
	notifier  Notifier
	validator *validate.Validator
	log       *zap.Logger
}

const defaultCostCacheTTL = time.Hour

// NewService wires a Service from its dependencies.
func NewService(cfg Config, deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.CostCacheTTL <= 0 {
		cfg.CostCacheTTL = defaultCostCacheTTL
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		extractor: deps.Extractor,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		validator: validate.New(cfg.ToleranceCents),
		log:       deps.Logger,
	}
}

// IngestResult is the outcome of one trip through the pipeline.
type IngestResult struct {
	PlanID         string                       `json:"plan_id"`
	Classification classify.ComputabilityStatus `json:"classification"`
	Validation     *validate.SolveResult        `json:"validation,omitempty"`
	Quarantined    bool                         `json:"quarantined"`
	// QuarantineCode is the reason code the quarantine entry carries, set
	// only when Quarantined is true.
	QuarantineCode string `json:"quarantine_code,omitempty"`
}

// IngestDocument parses a structured plan document and runs it through
// validate, solve, classify, and persist.
func (s *Service) IngestDocument(ctx context.Context, raw []byte) (*IngestResult, error) {
	doc, err := efl.ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return s.process(ctx, doc, raw)
}

// EFLIngestResult is the outcome of ingesting a raw disclosure file with no
// structured envelope around it.
type EFLIngestResult struct {
	PlanID         string                       `json:"plan_id"`
	TextMethod     string                       `json:"text_method,omitempty"`
	Extraction     efl.Extraction               `json:"extraction"`
	Classification classify.ComputabilityStatus `json:"classification"`
}

// IngestEFLBytes extracts text from a raw disclosure file, pulls the
// deterministic fields out of it, and stores the plan as a text-only
// envelope. No rate model is guessed from the text, so the stored plan
// classifies NOT_COMPUTABLE until a structured template arrives for it.
func (s *Service) IngestEFLBytes(ctx context.Context, doc []byte, name string) (*EFLIngestResult, error) {
	if s.extractor == nil {
		return nil, errors.New("no text extractor configured")
	}
	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return s.ingestEFLText(ctx, text.Text, text.Method, name)
}

// IngestEFLText is the same pipeline for disclosure text that needs no
// extraction, like a .txt drop or a pasted label.
func (s *Service) IngestEFLText(ctx context.Context, text, name string) (*EFLIngestResult, error) {
	return s.ingestEFLText(ctx, efl.NormalizeText(text), "text", name)
}

func (s *Service) ingestEFLText(ctx context.Context, text, method, name string) (*EFLIngestResult, error) {
	fields := efl.Extract(text)

	product := strings.TrimSpace(name)
	if product == "" {
		product = "UNKNOWN"
	}
	// The plan ID is derived from the normalized text, so re-ingesting the
	// same disclosure updates one plan instead of minting duplicates.
	envelope := efl.PlanDocument{
		PlanID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(text)).String(),
		RepName:     "UNKNOWN",
		ProductName: product,
		EFLText:     text,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode plan envelope: %w", err)
	}

	ing, err := s.process(ctx, &envelope, raw)
	if err != nil {
		return nil, err
	}
	return &EFLIngestResult{
		PlanID:         ing.PlanID,
		TextMethod:     method,
		Extraction:     fields,
		Classification: ing.Classification,
	}, nil
}

// Revalidate reruns the pipeline against a plan's stored document.
func (s *Service) Revalidate(ctx context.Context, planID string) (*IngestResult, error) {
	rec, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", planID, err)
	}
	if rec == nil {
		return nil, ErrPlanNotFound
	}
	doc, err := efl.ParseDocument(rec.Document)
	if err != nil {
		return nil, fmt.Errorf("stored document for plan %s: %w", planID, err)
	}
	if doc.EFLText == "" {
		doc.EFLText = rec.EFLText
	}
	return s.process(ctx, doc, rec.Document)
}

// GetPlan returns one stored plan record.
func (s *Service) GetPlan(ctx context.Context, planID string) (*storage.PlanRecord, error) {
	rec, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrPlanNotFound
	}
	return rec, nil
}

// ListPlans returns every stored plan.
func (s *Service) ListPlans(ctx context.Context) ([]storage.PlanRecord, error) {
	return s.store.ListPlans(ctx)
}

// ValidationHistory returns a plan's validation records, newest first.
func (s *Service) ValidationHistory(ctx context.Context, planID string, limit int) ([]storage.ValidationRecord, error) {
	rec, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrPlanNotFound
	}
	return s.store.ListValidations(ctx, planID, limit)
}

// Quarantine lists quarantined plans, open ones only unless asked otherwise.
func (s *Service) Quarantine(ctx context.Context, includeResolved bool) ([]storage.QuarantineRecord, error) {
	return s.store.ListQuarantine(ctx, includeResolved)
}

// process is the shared back half of every ingest path: validate and solve,
// classify, persist the plan and its validation record, sync quarantine,
// and drop any cached costs for the plan.
func (s *Service) process(ctx context.Context, doc *efl.PlanDocument, raw []byte) (*IngestResult, error) {
	solved := s.validator.Solve(validate.Input{
		Text:     doc.EFLText,
		TDSPName: doc.TDSPName,
		Model:    doc.RateStructure,
		Rules:    doc.PlanRules,
	}, nil)

	clsCtx := classify.Context{HasUsageBuckets: true}
	if doc.EFLText != "" {
		if _, ok := efl.DetectTOULanguage(doc.EFLText); ok {
			clsCtx.TOULanguageInText = true
		}
		if _, ok := efl.DetectIndexedPricing(doc.EFLText); ok {
			clsCtx.IndexedPricing = true
		}
	}
	status := classify.Classify(doc.RateStructure, clsCtx)

	now := time.Now()
	rec := storage.PlanRecord{
		ID:          doc.PlanID,
		RepName:     doc.RepName,
		ProductName: doc.ProductName,
		TDSPName:    doc.TDSPName,
		Document:    raw,
		EFLText:     doc.EFLText,
		Status:      string(status.Status),
		ReasonCode:  string(status.ReasonCode),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	existing, err := s.store.GetPlan(ctx, doc.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", doc.PlanID, err)
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := s.store.UpsertPlan(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist plan %s: %w", doc.PlanID, err)
	}

	detail, _ := json.Marshal(solved)
	if err := s.store.SaveValidation(ctx, storage.ValidationRecord{
		PlanID:               doc.PlanID,
		Status:               string(solved.Status),
		SolveMode:            string(solved.SolveMode),
		QueueReason:          solved.QueueReason,
		ToleranceCentsPerKWh: solved.ToleranceCentsPerKWh,
		Detail:               detail,
		CheckedAt:            now,
	}); err != nil {
		return nil, fmt.Errorf("persist validation for plan %s: %w", doc.PlanID, err)
	}

	code, reason := quarantineReason(status, solved)
	quarantined, err := s.syncQuarantine(ctx, doc.PlanID, code, reason)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.DeletePrefix(ctx, costKeyPrefix(doc.PlanID)); err != nil {
			s.log.Warn("cost cache invalidation failed",
				zap.String("plan_id", doc.PlanID), zap.Error(err))
		}
	}

	metrics.PlansIngestedTotal.WithLabelValues(string(status.Status)).Inc()
	metrics.ValidationsTotal.WithLabelValues(string(solved.Status)).Inc()

	s.log.Info("plan processed",
		zap.String("plan_id", doc.PlanID),
		zap.String("status", string(status.Status)),
		zap.String("reason_code", string(status.ReasonCode)),
		zap.String("validation", string(solved.Status)),
		zap.Bool("quarantined", quarantined))

	res := &IngestResult{
		PlanID:         doc.PlanID,
		Classification: status,
		Validation:     solved,
		Quarantined:    quarantined,
	}
	if quarantined {
		res.QuarantineCode = code
	}
	return res, nil
}

// quarantineReason picks the code a quarantine entry should carry. A failed
// validation wins over the classification because it names the freshest
// evidence; either way the routing policy decides whether the code
// quarantines at all.
func quarantineReason(status classify.ComputabilityStatus, solved *validate.SolveResult) (string, string) {
	if solved != nil && solved.Status == validate.StatusFail && classify.ShouldQuarantine(solved.QueueReason) {
		return string(classify.ParseReasonCode(solved.QueueReason)), "validation failed: " + solved.QueueReason
	}
	if status.Status == classify.StatusNotComputable && classify.ShouldQuarantine(string(status.ReasonCode)) {
		reason := status.Reason
		if reason == "" {
			reason = string(status.ReasonCode)
		}
		return string(status.ReasonCode), reason
	}
	return "", ""
}

// syncQuarantine reconciles the plan's quarantine row with the latest
// verdicts: open or refresh an entry when a quarantining code is present,
// resolve the open entry when the plan comes back clean.
func (s *Service) syncQuarantine(ctx context.Context, planID, code, reason string) (bool, error) {
	if code == "" {
		existing, err := s.store.GetQuarantine(ctx, planID)
		if err != nil {
			return false, fmt.Errorf("load quarantine for plan %s: %w", planID, err)
		}
		if existing != nil && !existing.Resolved {
			if err := s.store.ResolveQuarantine(ctx, planID); err != nil {
				return false, fmt.Errorf("resolve quarantine for plan %s: %w", planID, err)
			}
			s.log.Info("quarantine resolved", zap.String("plan_id", planID))
		}
		s.refreshQuarantineGauge(ctx)
		return false, nil
	}
	if err := s.openQuarantine(ctx, planID, code, reason); err != nil {
		return false, err
	}
	return true, nil
}

// openQuarantine writes or refreshes a quarantine entry. First-seen time
// and the seen counter survive across refreshes; notifications only fire
// when the entry is new or was previously resolved.
func (s *Service) openQuarantine(ctx context.Context, planID, code, reason string) error {
	existing, err := s.store.GetQuarantine(ctx, planID)
	if err != nil {
		return fmt.Errorf("load quarantine for plan %s: %w", planID, err)
	}
	now := time.Now()
	rec := storage.QuarantineRecord{
		PlanID:      planID,
		ReasonCode:  code,
		Reason:      reason,
		FirstSeenAt: now,
		LastSeenAt:  now,
		TimesSeen:   1,
	}
	newEntry := existing == nil || existing.Resolved
	if existing != nil {
		rec.FirstSeenAt = existing.FirstSeenAt
		rec.TimesSeen = existing.TimesSeen + 1
	}
	if err := s.store.UpsertQuarantine(ctx, rec); err != nil {
		return fmt.Errorf("persist quarantine for plan %s: %w", planID, err)
	}
	if newEntry && s.notifier != nil {
		if err := s.notifier.NotifyQuarantine(ctx, rec); err != nil {
			s.log.Warn("quarantine notification failed",
				zap.String("plan_id", planID), zap.Error(err))
		}
	}
	s.refreshQuarantineGauge(ctx)
	return nil
}

func (s *Service) refreshQuarantineGauge(ctx context.Context) {
	if n, err := s.store.CountOpenQuarantine(ctx); err == nil {
		metrics.QuarantineOpen.Set(float64(n))
	}
}
