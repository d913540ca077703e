package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/auth"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/efltext"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/storage"
)

const maxDocumentBytes = 16 << 20

// PlanSummary is a plan record without its stored document.
type PlanSummary struct {
	ID          string    `json:"id"`
	RepName     string    `json:"rep_name"`
	ProductName string    `json:"product_name"`
	TDSPName    string    `json:"tdsp_name,omitempty"`
	Status      string    `json:"status"`
	ReasonCode  string    `json:"reason_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func summarize(rec *storage.PlanRecord) PlanSummary {
	return PlanSummary{
		ID:          rec.ID,
		RepName:     rec.RepName,
		ProductName: rec.ProductName,
		TDSPName:    rec.TDSPName,
		Status:      rec.Status,
		ReasonCode:  rec.ReasonCode,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// EFLFieldsResponse is the deterministic-extraction debug payload: every
// clause the matchers recognized, plus the language detector verdicts.
type EFLFieldsResponse struct {
	Extraction     efl.Extraction `json:"extraction"`
	TOULanguage    string         `json:"tou_language,omitempty"`
	IndexedPricing string         `json:"indexed_pricing,omitempty"`
}

type V2Handler struct {
	svc       *plans.Service
	extractor efltext.Extractor
	authSvc   *auth.Service
	log       *zap.Logger
}

func RegisterV2Routes(mux *http.ServeMux, deps Deps) {
	h := &V2Handler{
		svc:       deps.Plans,
		extractor: deps.Extractor,
		authSvc:   deps.Auth,
		log:       deps.Logger,
	}

	withAuth := func(handler http.Handler) http.Handler {
		if deps.Auth == nil {
			return handler
		}
		return deps.Auth.Middleware(handler)
	}

	mux.Handle("/api/v2/plans", withAuth(withMetrics("/api/v2/plans", h.HandlePlans)))
	mux.Handle("/api/v2/plans/", withAuth(withMetrics("/api/v2/plans/{id}", h.HandlePlan)))
	mux.Handle("/api/v2/compare", withAuth(withMetrics("/api/v2/compare", h.HandleCompare)))
	mux.Handle("/api/v2/efl", withAuth(withMetrics("/api/v2/efl", h.HandleEFLIngest)))
	mux.Handle("/api/v2/efl/fields", withAuth(withMetrics("/api/v2/efl/fields", h.HandleEFLFields)))
	mux.Handle("/api/v2/quarantine", withAuth(withMetrics("/api/v2/quarantine", h.HandleQuarantine)))
}

func (h *V2Handler) allowed(r *http.Request, obj, act string) bool {
	if h.authSvc == nil {
		return true
	}
	ok, err := h.authSvc.Enforce(getUserID(r), obj, act)
	return err == nil && ok
}

func getUserID(r *http.Request) string {
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return ""
	}
	return token.UserID
}

// serviceError maps plans.Service failures onto status codes, surfacing
// reason codes verbatim so operators can route manual review.
func (h *V2Handler) serviceError(w http.ResponseWriter, err error) {
	var nce *plans.NotComputableError
	switch {
	case errors.Is(err, plans.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "plan not found")
	case errors.As(err, &nce):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":       "plan is not computable",
			"reason_code": nce.ReasonCode,
			"reason":      nce.Reason,
		})
	case errors.Is(err, plans.ErrInvalidDocument), errors.Is(err, plans.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// HandlePlans lists plans or ingests a new plan document.
// @Summary List plans or ingest a plan document
// @Description GET lists stored plans; POST ingests a structured plan document and returns its validation and classification
// @Tags plans
// @Accept json
// @Produce json
// @Success 200 {array} PlanSummary
// @Router /api/v2/plans [get]
// @Router /api/v2/plans [post]
func (h *V2Handler) HandlePlans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.allowed(r, "plans", "read") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		recs, err := h.svc.ListPlans(r.Context())
		if err != nil {
			h.serviceError(w, err)
			return
		}
		out := make([]PlanSummary, 0, len(recs))
		for i := range recs {
			out = append(out, summarize(&recs[i]))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		if !h.allowed(r, "plans", "write") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		res, err := h.svc.IngestDocument(r.Context(), body)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// HandlePlan serves one plan and its sub-resources: the stored document,
// revalidation, cost computation, and validation history.
// @Summary Plan detail and sub-resources
// @Description GET the plan, its document, or its validations; POST revalidate or cost
// @Tags plans
// @Produce json
// @Param id path string true "Plan ID"
// @Router /api/v2/plans/{id} [get]
// @Router /api/v2/plans/{id}/cost [post]
// @Router /api/v2/plans/{id}/revalidate [post]
// @Router /api/v2/plans/{id}/validations [get]
func (h *V2Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v2/plans/")
	parts := strings.Split(path, "/")
	planID := parts[0]
	if planID == "" {
		http.NotFound(w, r)
		return
	}
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !h.allowed(r, "plans", "read") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		rec, err := h.svc.GetPlan(r.Context(), planID)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summarize(rec))

	case "document":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !h.allowed(r, "plans", "read") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		rec, err := h.svc.GetPlan(r.Context(), planID)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rec.Document)

	case "revalidate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !h.allowed(r, "plans", "write") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		res, err := h.svc.Revalidate(r.Context(), planID)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case "cost":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !h.allowed(r, "costs", "read") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		var req plans.CostRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := h.svc.CostForPlan(r.Context(), planID, req)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)

	case "validations":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if !h.allowed(r, "plans", "read") {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = v
		}
		recs, err := h.svc.ValidationHistory(r.Context(), planID, limit)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recs)

	default:
		http.NotFound(w, r)
	}
}

// HandleCompare ranks stored plans by total cost at one usage level.
// @Summary Compare plans
// @Tags costs
// @Accept json
// @Produce json
// @Router /api/v2/compare [post]
func (h *V2Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allowed(r, "costs", "read") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req plans.CompareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.ComparePlans(r.Context(), req)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEFLIngest ingests a raw disclosure file. PDF bodies go through the
// text extractor; text/plain bodies are taken as already-extracted text.
// @Summary Ingest a raw disclosure file
// @Tags plans
// @Accept octet-stream
// @Produce json
// @Param name query string false "Product name"
// @Router /api/v2/efl [post]
func (h *V2Handler) HandleEFLIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allowed(r, "plans", "write") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}
	name := r.URL.Query().Get("name")

	var res *plans.EFLIngestResult
	if isTextBody(r, body) {
		res, err = h.svc.IngestEFLText(r.Context(), string(body), name)
	} else {
		res, err = h.svc.IngestEFLBytes(r.Context(), body, name)
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEFLFields runs the deterministic clause matchers over a disclosure
// without storing anything. Debugging aid for template authors.
// @Summary Extract deterministic fields from a disclosure
// @Tags plans
// @Accept octet-stream
// @Produce json
// @Router /api/v2/efl/fields [post]
func (h *V2Handler) HandleEFLFields(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allowed(r, "plans", "read") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	var text string
	if isTextBody(r, body) {
		text = efl.NormalizeText(string(body))
	} else {
		if h.extractor == nil {
			writeError(w, http.StatusBadRequest, "no text extractor configured for binary input")
			return
		}
		extracted, err := h.extractor.Extract(r.Context(), body)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "extract text: "+err.Error())
			return
		}
		text = extracted.Text
	}

	resp := EFLFieldsResponse{Extraction: efl.Extract(text)}
	if phrase, ok := efl.DetectTOULanguage(text); ok {
		resp.TOULanguage = phrase
	}
	if phrase, ok := efl.DetectIndexedPricing(text); ok {
		resp.IndexedPricing = phrase
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleQuarantine lists quarantined plans.
// @Summary List quarantined plans
// @Tags plans
// @Produce json
// @Param include_resolved query bool false "Include resolved entries"
// @Router /api/v2/quarantine [get]
func (h *V2Handler) HandleQuarantine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.allowed(r, "plans", "read") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	includeResolved := r.URL.Query().Get("include_resolved") == "true"
	recs, err := h.svc.Quarantine(r.Context(), includeResolved)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// isTextBody treats explicit text content types, and bodies that do not
// start with a PDF magic header, as plain disclosure text.
func isTextBody(r *http.Request, body []byte) bool {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json") {
		return true
	}
	if strings.HasPrefix(ct, "application/pdf") {
		return false
	}
	return !strings.HasPrefix(string(body), "%PDF")
}
