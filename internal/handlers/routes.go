// internal/handlers/routes.go
package handlers

import "net/http"

// Router is a handler owning a group of API routes.
type Router interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Mount registers the health probes and every router on mux.
// ServeMux panics on conflicting patterns, so a broken table fails here.
func Mount(mux *http.ServeMux, health *HealthHandler, routers ...Router) {
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Readiness)
	mux.HandleFunc("GET /api/v1/health", health.Health)

	for _, r := range routers {
		r.RegisterRoutes(mux)
	}
}
