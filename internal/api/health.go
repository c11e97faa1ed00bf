package api

import (
	"context"
	"net/http"

	"mediastream/internal/observability/metrics"
)

// Pinger reports whether a backing component is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components []componentStatus `json:"components"`
}

func (h *Handler) componentHealth(ctx context.Context) ([]componentStatus, string, int) {
	overallStatus := "ok"
	statusCode := http.StatusOK
	recordComponent := func(component string, err error) componentStatus {
		status := "ok"
		message := ""
		if err != nil {
			status = "degraded"
			message = err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		return componentStatus{Component: component, Status: status, Error: message}
	}

	components := make([]componentStatus, 0, 2)
	if h.Store != nil {
		err := h.Store.Ping(ctx)
		components = append(components, recordComponent("datastore", err))
		if err != nil {
			metrics.SetDatastoreHealth("degraded")
		} else {
			metrics.SetDatastoreHealth("ok")
		}
	}
	if h.RateLimiter != nil {
		components = append(components, recordComponent("rate_limiter", h.RateLimiter.Ping(ctx)))
	}

	return components, overallStatus, statusCode
}

// Health reports the reachability of the datastore and, when configured, the
// rate limiter backend.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		WriteError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	components, overall, statusCode := h.componentHealth(r.Context())
	writeJSON(w, statusCode, healthResponse{Status: overall, Components: components})
}
