package api

import (
	"net/http"

	"github.com/watthive/eflengine/internal/auth"
	"github.com/watthive/eflengine/internal/notification"
	"github.com/watthive/eflengine/internal/storage"
)

// registerSettingsRoutes exposes the email settings used for quarantine
// notifications. Not registered at all when no notification service is
// configured.
func registerSettingsRoutes(mux *http.ServeMux, authSvc *auth.Service, notifSvc *notification.Service) {
	if notifSvc == nil {
		return
	}

	allowed := func(r *http.Request, act string) bool {
		if authSvc == nil {
			return true
		}
		ok, err := authSvc.Enforce(getUserID(r), "settings", act)
		return err == nil && ok
	}

	mux.Handle("/api/v2/settings/email", guard(authSvc, withMetrics("/api/v2/settings/email", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if !allowed(r, "read") {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			cfg, err := notifSvc.GetConfig(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if cfg == nil {
				cfg = &storage.EmailConfig{}
			}
			writeJSON(w, http.StatusOK, cfg)

		case http.MethodPut:
			if !allowed(r, "write") {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			var req storage.EmailConfig
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := notifSvc.SaveConfig(r.Context(), req); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			w.WriteHeader(http.StatusOK)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})))

	// Single-action route, so the permission check can sit in front as
	// middleware instead of inside the handler.
	testHandler := withMetrics("/api/v2/settings/email/test", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Config storage.EmailConfig `json:"config"`
			To     string              `json:"to"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := notifSvc.TestConfig(r.Context(), req.Config, req.To); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if authSvc != nil {
		mux.Handle("/api/v2/settings/email/test",
			authSvc.Middleware(authSvc.RequirePermission("settings", "write", testHandler)))
	} else {
		mux.Handle("/api/v2/settings/email/test", testHandler)
	}
}

// guard wraps a handler in token resolution when auth is enabled.
func guard(authSvc *auth.Service, handler http.Handler) http.Handler {
	if authSvc == nil {
		return handler
	}
	return authSvc.Middleware(handler)
}
