// internal/handlers/purchases.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// PurchaseHandler handles purchase lines and their promotion to stock.
type PurchaseHandler struct {
	responder
	service ports.PurchaseService
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(service ports.PurchaseService, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		responder: newResponder(logger, "purchases"),
		service:   service,
	}
}

// ListPurchases handles GET /api/v1/purchases?q=&supplier_id=&received=
func (h *PurchaseHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ports.PurchaseFilter{Search: query.Get("q")}

	if s := query.Get("supplier_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid supplier_id")
			return
		}
		filter.SupplierID = &id
	}
	if s := query.Get("received"); s != "" {
		received, err := strconv.ParseBool(s)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid received flag")
			return
		}
		filter.Received = &received
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, "list purchases", err)
		return
	}

	h.respondJSON(w, http.StatusOK, list)
}

// CreatePurchase handles POST /api/v1/purchases
func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p domain.Purchase
	if !h.decode(w, r, &p) {
		return
	}

	if err := h.service.Create(ctx, &p); err != nil {
		h.respondServiceError(w, r, "create purchase", err)
		return
	}

	h.logger.InfoContext(ctx, "purchase created",
		slog.String("purchase_id", p.ID.String()),
		slog.String("ean", p.EAN))

	h.respondJSON(w, http.StatusCreated, p)
}

// GetPurchase handles GET /api/v1/purchases/{id}
func (h *PurchaseHandler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "retrieve purchase", err)
		return
	}

	h.respondJSON(w, http.StatusOK, p)
}

// UpdatePurchase handles PUT /api/v1/purchases/{id}
func (h *PurchaseHandler) UpdatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var p domain.Purchase
	if !h.decode(w, r, &p) {
		return
	}

	if err := h.service.Update(ctx, id, &p); err != nil {
		h.respondServiceError(w, r, "update purchase", err)
		return
	}

	h.respondJSON(w, http.StatusOK, p)
}

// DeletePurchase handles DELETE /api/v1/purchases/{id}
func (h *PurchaseHandler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, "delete purchase", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReceivedRequest is the body of PUT /api/v1/purchases/{id}/received.
type ReceivedRequest struct {
	Received *bool `json:"received" validate:"required"`
}

// SetReceived handles PUT /api/v1/purchases/{id}/received. Marking a
// purchase received promotes it to stock and returns the created item.
func (h *PurchaseHandler) SetReceived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ReceivedRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.SetReceived(ctx, id, *req.Received)
	if err != nil {
		h.respondServiceError(w, r, "update reception", err)
		return
	}

	resp := map[string]any{"purchase_id": id, "received": *req.Received}
	if item != nil {
		resp["item"] = item
		h.logger.InfoContext(ctx, "purchase promoted to stock",
			slog.String("purchase_id", id.String()),
			slog.String("item_id", item.ID.String()))
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// RegisterRoutes mounts the purchase routes on mux.
func (h *PurchaseHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/purchases", h.ListPurchases)
	mux.HandleFunc("POST /api/v1/purchases", h.CreatePurchase)
	mux.HandleFunc("GET /api/v1/purchases/{id}", h.GetPurchase)
	mux.HandleFunc("PUT /api/v1/purchases/{id}", h.UpdatePurchase)
	mux.HandleFunc("DELETE /api/v1/purchases/{id}", h.DeletePurchase)
	mux.HandleFunc("PUT /api/v1/purchases/{id}/received", h.SetReceived)
}
