// Package routes lists every endpoint served under /api.
package routes

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/tapeshchavle/cicd/internal/http/api/hello"
	"github.com/tapeshchavle/cicd/internal/http/health"
)

// HealthPath is the liveness endpoint relative to the /api router.
const HealthPath = "/health"

// Register wires the /api endpoints. router must be the chi router api was
// built on so plain handlers share its middleware and error handlers.
func Register(router chi.Router, api huma.API) {
	router.Get(HealthPath, health.Handler)
	hello.Register(api)
}
