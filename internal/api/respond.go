package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/watthive/eflengine/internal/metrics"
)

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxDocumentBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics counts requests, observes latency, and records error
// responses under a fixed path label so path parameters do not explode the
// cardinality.
func withMetrics(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		metrics.RequestsTotal.WithLabelValues(path).Inc()

		next(rec, r)

		metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
		if rec.status >= 400 {
			metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		}
	}
}
