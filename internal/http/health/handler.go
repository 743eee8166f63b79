package health

import (
	"encoding/json"
	"net/http"

	"github.com/tapeshchavle/cicd/internal/platform/logging"
)

const (
	// ServiceName identifies this service in health responses and telemetry.
	ServiceName = "cicd-demo"
	// StatusUp is reported whenever the process can serve requests.
	StatusUp = "UP"
)

// Response is the payload for the health endpoint.
type Response struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Handler is a plain HTTP handler for the health check endpoint. It ignores
// the request body and query string.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(Response{Status: StatusUp, Service: ServiceName}); err != nil {
		logging.LogError(r.Context(), "failed to write health response", err)
	}
}
