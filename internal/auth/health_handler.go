// health_handler.go -- Health check handler for GET /health.
package auth

import (
	"encoding/json"
	"net/http"
)

// CheckHealth handles GET /health -- pings the handshake store and, when
// enabled, the audit database. Returns 200 if both are healthy, 503 if either is down.
func (cr *CallbackRouter) CheckHealth(w http.ResponseWriter, r *Request) {
	storeStatus := "ok"
	auditStatus := "disabled"

	if err := cr.HS.CheckHealth(r.Context()); err != nil {
		logError(r.Request, "store health check failed", "error", err)
		storeStatus = "error"
	}
	if cr.Audit != nil {
		auditStatus = "ok"
		if err := cr.Audit.CheckHealth(r.Context()); err != nil {
			logError(r.Request, "audit database health check failed", "error", err)
			auditStatus = "error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if storeStatus == "error" || auditStatus == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(struct {
		Store string `json:"store"`
		Audit string `json:"audit"`
	}{storeStatus, auditStatus})
}
