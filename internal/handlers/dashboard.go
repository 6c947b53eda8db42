// internal/handlers/dashboard.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/resell-stock/internal/core/ports"
)

// DashboardHandler serves the headline figures and the global search.
type DashboardHandler struct {
	responder
	dashboard ports.DashboardService
	search    ports.SearchService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard ports.DashboardService, search ports.SearchService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		responder: newResponder(logger, "dashboard"),
		dashboard: dashboard,
		search:    search,
	}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.dashboard.Get(r.Context())
	if err != nil {
		h.respondServiceError(w, r, "load dashboard", err)
		return
	}

	h.respondJSON(w, http.StatusOK, dashboard)
}

// Search handles GET /api/v1/search?q=. Queries under two characters
// return an empty list.
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	results, err := h.search.Search(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, "search", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": results,
		"count":   len(results),
	})
}

// RegisterRoutes mounts the dashboard routes on mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/dashboard", h.GetDashboard)
	mux.HandleFunc("GET /api/v1/search", h.Search)
}
