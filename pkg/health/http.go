package health

import (
	"encoding/json"
	"net/http"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// HealthResponse is the JSON body of the probe endpoints.
type HealthResponse struct {
	Status  string                 `json:"status"` // healthy | unhealthy
	Checks  map[string]CheckStatus `json:"checks,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// CheckStatus is one check's entry in HealthResponse.
type CheckStatus struct {
	Status  string `json:"status"` // ok | error
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Handler serves a probe: 200 when healthy, 503 otherwise.
func (h *HealthChecker) Handler(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := h.Run(r.Context(), probe)
		h.writeHealthResponse(w, status, err)
	}
}

// LivenessHandler returns an HTTP handler for liveness checks.
func (h *HealthChecker) LivenessHandler() http.HandlerFunc { return h.Handler(Liveness) }

// ReadinessHandler returns an HTTP handler for readiness checks.
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc { return h.Handler(Readiness) }

// NewResponse converts a HealthStatus into its JSON form.
func NewResponse(status *HealthStatus, err error) HealthResponse {
	response := HealthResponse{Status: "healthy", Checks: make(map[string]CheckStatus, len(status.Checks))}
	if !status.Healthy {
		response.Status = "unhealthy"
		if err != nil {
			response.Message = err.Error()
		}
	}
	for _, r := range status.Checks {
		cs := CheckStatus{Status: "ok", Latency: r.Latency.String()}
		if !r.Healthy {
			cs.Status = "error"
			cs.Error = r.Error
		}
		response.Checks[r.Name] = cs
	}
	return response
}

func (h *HealthChecker) writeHealthResponse(w http.ResponseWriter, status *HealthStatus, err error) {
	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if encErr := json.NewEncoder(w).Encode(NewResponse(status, err)); encErr != nil {
		h.logger.Error("Failed to encode health response", logger.ErrorField(encErr))
	}
}
