// internal/handlers/counts.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// CountHandler drives the physical count session.
type CountHandler struct {
	responder
	service ports.CountService
}

// NewCountHandler creates a new count handler
func NewCountHandler(service ports.CountService, logger *slog.Logger) *CountHandler {
	return &CountHandler{
		responder: newResponder(logger, "counts"),
		service:   service,
	}
}

// countView is a session listing with its stats.
type countView struct {
	StartedAt time.Time          `json:"started_at"`
	Filter    domain.CountFilter `json:"filter"`
	Rows      []domain.CountRow  `json:"rows"`
	Stats     domain.CountStats  `json:"stats"`
}

func newCountView(s *domain.CountSession, f domain.CountFilter) countView {
	rows := s.Filter(f)
	if rows == nil {
		rows = []domain.CountRow{}
	}
	return countView{
		StartedAt: s.StartedAt,
		Filter:    f,
		Rows:      rows,
		Stats:     s.Stats(),
	}
}

// parseCountFilter reads the filter query parameter; empty means all rows.
func (h responder) parseCountFilter(w http.ResponseWriter, r *http.Request) (domain.CountFilter, bool) {
	filter := domain.CountFilter(r.URL.Query().Get("filter"))
	switch filter {
	case "":
		return domain.CountFilterAll, true
	case domain.CountFilterAll, domain.CountFilterVariances, domain.CountFilterUncounted:
		return filter, true
	}
	h.respondError(w, http.StatusBadRequest, "filter must be one of [all variances uncounted]")
	return "", false
}

// StartRequest is the body of POST /api/v1/counts.
type StartRequest struct {
	Overwrite bool `json:"overwrite"`
}

// StartCount handles POST /api/v1/counts. An active session answers 409
// unless overwrite is set.
func (h *CountHandler) StartCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StartRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Start(ctx, req.Overwrite)
	if err != nil {
		h.respondServiceError(w, r, "start count", err)
		return
	}

	h.logger.InfoContext(ctx, "count session started",
		slog.Int("rows", len(session.Rows)),
		slog.Bool("overwrite", req.Overwrite))

	h.respondJSON(w, http.StatusCreated, newCountView(session, domain.CountFilterAll))
}

// CurrentCount handles GET /api/v1/counts/current?filter=variances
func (h *CountHandler) CurrentCount(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseCountFilter(w, r)
	if !ok {
		return
	}

	session, err := h.service.Current(r.Context())
	if err != nil {
		h.respondServiceError(w, r, "retrieve count session", err)
		return
	}

	h.respondJSON(w, http.StatusOK, newCountView(session, filter))
}

// RecordRequest carries the raw counted value; an empty string clears it.
type RecordRequest struct {
	Value string `json:"value"`
}

// RecordCount handles PUT /api/v1/counts/current/rows/{id}
func (h *CountHandler) RecordCount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req RecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	row, err := h.service.RecordCount(r.Context(), id, req.Value)
	if err != nil {
		h.respondServiceError(w, r, "record count", err)
		return
	}

	h.respondJSON(w, http.StatusOK, row)
}

// ScanRequest is the body of POST /api/v1/counts/current/scan.
type ScanRequest struct {
	EAN string `json:"ean" validate:"required"`
}

// Scan handles POST /api/v1/counts/current/scan. An unknown EAN is reported
// with found=false and status 200.
func (h *CountHandler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ScanRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.ScanIncrement(ctx, req.EAN)
	if err != nil {
		h.respondServiceError(w, r, "scan item", err)
		return
	}

	if !result.Found {
		h.logger.WarnContext(ctx, "scanned EAN not in count", slog.String("ean", result.EAN))
	}

	h.respondJSON(w, http.StatusOK, result)
}

// ValidateCount handles POST /api/v1/counts/current/validate
func (h *CountHandler) ValidateCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Validate(ctx)
	if err != nil {
		h.respondServiceError(w, r, "validate count", err)
		return
	}

	h.logger.InfoContext(ctx, "count validated",
		slog.Int("counted", result.Counted),
		slog.Int("adjusted", result.Adjusted))

	h.respondJSON(w, http.StatusOK, result)
}

// CancelCount handles DELETE /api/v1/counts/current
func (h *CountHandler) CancelCount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Cancel(r.Context()); err != nil {
		h.respondServiceError(w, r, "cancel count", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes mounts the count routes on mux.
func (h *CountHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/counts", h.StartCount)
	mux.HandleFunc("GET /api/v1/counts/current", h.CurrentCount)
	mux.HandleFunc("DELETE /api/v1/counts/current", h.CancelCount)
	mux.HandleFunc("PUT /api/v1/counts/current/rows/{id}", h.RecordCount)
	mux.HandleFunc("POST /api/v1/counts/current/scan", h.Scan)
	mux.HandleFunc("POST /api/v1/counts/current/validate", h.ValidateCount)
}
