// internal/handlers/stock.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

const dateLayout = "2006-01-02"

// StockHandler serves the stock engine.
type StockHandler struct {
	responder
	service ports.StockService
}

// NewStockHandler creates a new stock handler
func NewStockHandler(service ports.StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		responder: newResponder(logger, "stock"),
		service:   service,
	}
}

// stockQuery is the query string of GET /api/v1/stock.
type stockQuery struct {
	View     string `validate:"omitempty,oneof=all new used warehouse scrap"`
	Search   string
	Channel  string `validate:"omitempty,oneof=fba fbm vinted leboncoin"`
	Category string
	Bucket   string `validate:"omitempty,oneof=warehouse fba fbm"`
	DateFrom string `validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `validate:"omitempty,datetime=2006-01-02"`
	Supplier string
	Status   string `validate:"omitempty,oneof=received to_inspect to_label to_ship shipped done"`
	Sort     string `validate:"omitempty,oneof=date-desc date-asc qty-desc qty-asc price-desc price-asc name-asc margin-desc margin-asc roi-desc age-desc risk-desc"`
}

func (q stockQuery) filter() ports.StockFilter {
	f := ports.StockFilter{
		View:     ports.StockView(q.View),
		Search:   q.Search,
		Channel:  ports.Channel(q.Channel),
		Category: q.Category,
		Bucket:   domain.Bucket(q.Bucket),
		Supplier: q.Supplier,
		Status:   domain.WorkflowStatus(q.Status),
		Sort:     ports.SortKey(q.Sort),
	}
	if t, err := time.Parse(dateLayout, q.DateFrom); err == nil {
		f.DateFrom = &t
	}
	if t, err := time.Parse(dateLayout, q.DateTo); err == nil {
		f.DateTo = &t
	}
	return f
}

// parseStockFilter reads and validates the stock filters of r.
func (h responder) parseStockFilter(w http.ResponseWriter, r *http.Request) (ports.StockFilter, bool) {
	v := r.URL.Query()
	q := stockQuery{
		View:     v.Get("view"),
		Search:   v.Get("q"),
		Channel:  v.Get("channel"),
		Category: v.Get("category"),
		Bucket:   v.Get("bucket"),
		DateFrom: v.Get("date_from"),
		DateTo:   v.Get("date_to"),
		Supplier: v.Get("supplier"),
		Status:   v.Get("status"),
		Sort:     v.Get("sort"),
	}
	if err := h.validate.Struct(q); err != nil {
		h.respondError(w, http.StatusBadRequest, validationMessage(err))
		return ports.StockFilter{}, false
	}
	return q.filter(), true
}

// ListStock handles GET /api/v1/stock
func (h *StockHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseStockFilter(w, r)
	if !ok {
		return
	}

	result, err := h.service.VisibleStock(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, "list stock", err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// CreateItem handles POST /api/v1/stock. Creating a used or scrap item
// deducts the same EAN from new stock; the response reports the effect.
func (h *StockHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var item domain.Item
	if !h.decode(w, r, &item) {
		return
	}

	result, err := h.service.CreateItem(ctx, &item)
	if err != nil {
		h.respondServiceError(w, r, "create item", err)
		return
	}

	h.logger.InfoContext(ctx, "item created",
		slog.String("item_id", result.Item.ID.String()),
		slog.String("ean", result.Item.EAN),
		slog.Int("deducted", result.Deducted))

	h.respondJSON(w, http.StatusCreated, result)
}

// GetItem handles GET /api/v1/stock/{id}
func (h *StockHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "retrieve item", err)
		return
	}

	h.respondJSON(w, http.StatusOK, item)
}

// UpdateItem handles PUT /api/v1/stock/{id}
func (h *StockHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var item domain.Item
	if !h.decode(w, r, &item) {
		return
	}

	if err := h.service.UpdateItem(ctx, id, &item); err != nil {
		h.respondServiceError(w, r, "update item", err)
		return
	}

	updated, err := h.service.GetItem(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to retrieve updated item",
			slog.String("item_id", id.String()),
			slog.String("error", err.Error()))
		h.respondJSON(w, http.StatusOK, map[string]string{"message": "Item updated successfully"})
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteItem handles DELETE /api/v1/stock/{id}
func (h *StockHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteItem(ctx, id); err != nil {
		h.respondServiceError(w, r, "delete item", err)
		return
	}

	h.logger.InfoContext(ctx, "item deleted", slog.String("item_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// SaleRequest is the body of POST /api/v1/stock/{id}/sell.
type SaleRequest struct {
	Qty     int             `json:"qty" validate:"gt=0"`
	Price   decimal.Decimal `json:"price"`
	Channel string          `json:"channel" validate:"required"`
	Date    string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Sell handles POST /api/v1/stock/{id}/sell
func (h *StockHandler) Sell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req SaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	sale := ports.SaleRequest{Qty: req.Qty, Price: req.Price, Channel: req.Channel}
	if req.Date != "" {
		sale.Date, _ = time.Parse(dateLayout, req.Date)
	}

	item, err := h.service.Sell(ctx, id, sale)
	if err != nil {
		h.respondServiceError(w, r, "record sale", err)
		return
	}

	h.logger.InfoContext(ctx, "sale recorded",
		slog.String("item_id", id.String()),
		slog.Int("qty", req.Qty),
		slog.String("channel", req.Channel))

	h.respondJSON(w, http.StatusOK, item)
}

// TransferRequest is the body of POST /api/v1/stock/{id}/transfer.
type TransferRequest struct {
	From string `json:"from" validate:"required,oneof=warehouse fba fbm"`
	To   string `json:"to" validate:"required,oneof=warehouse fba fbm,nefield=From"`
	Qty  int    `json:"qty" validate:"gt=0"`
}

// Transfer handles POST /api/v1/stock/{id}/transfer
func (h *StockHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.Transfer(r.Context(), id, ports.TransferRequest{
		From: domain.Bucket(req.From),
		To:   domain.Bucket(req.To),
		Qty:  req.Qty,
	})
	if err != nil {
		h.respondServiceError(w, r, "transfer stock", err)
		return
	}

	h.respondJSON(w, http.StatusOK, item)
}

// StatusRequest is the body of PUT /api/v1/stock/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=received to_inspect to_label to_ship shipped done"`
}

// ChangeStatus handles PUT /api/v1/stock/{id}/status
func (h *StockHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.ChangeStatus(r.Context(), id, domain.WorkflowStatus(req.Status))
	if err != nil {
		h.respondServiceError(w, r, "change status", err)
		return
	}

	h.respondJSON(w, http.StatusOK, item)
}

// LocationRequest is the body of PUT /api/v1/stock/{id}/location.
type LocationRequest struct {
	Location string `json:"location"`
}

// ChangeLocation handles PUT /api/v1/stock/{id}/location. An empty
// location clears it.
func (h *StockHandler) ChangeLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req LocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.ChangeLocation(r.Context(), id, req.Location)
	if err != nil {
		h.respondServiceError(w, r, "change location", err)
		return
	}

	h.respondJSON(w, http.StatusOK, item)
}

// ThresholdRequest sets a low-stock threshold; zero disables alerts.
type ThresholdRequest struct {
	Threshold int `json:"threshold" validate:"gte=0"`
}

// SetThreshold handles PUT /api/v1/stock/{id}/threshold
func (h *StockHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ThresholdRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.SetThreshold(r.Context(), id, req.Threshold)
	if err != nil {
		h.respondServiceError(w, r, "set threshold", err)
		return
	}

	h.respondJSON(w, http.StatusOK, item)
}

// BulkThreshold handles PUT /api/v1/stock/thresholds
func (h *StockHandler) BulkThreshold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ThresholdRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.service.BulkThreshold(ctx, req.Threshold)
	if err != nil {
		h.respondServiceError(w, r, "set thresholds", err)
		return
	}

	h.logger.InfoContext(ctx, "thresholds updated",
		slog.Int("threshold", req.Threshold),
		slog.Int("updated", updated))

	h.respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// Alerts handles GET /api/v1/stock/alerts
func (h *StockHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Alerts(r.Context())
	if err != nil {
		h.respondServiceError(w, r, "compute alerts", err)
		return
	}

	h.respondJSON(w, http.StatusOK, report)
}

// Listing handles GET /api/v1/stock/{id}/listing?platform=vinted
func (h *StockHandler) Listing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	platform := r.URL.Query().Get("platform")
	if platform == "" {
		h.respondError(w, http.StatusBadRequest, "platform is required")
		return
	}

	text, err := h.service.ListingText(r.Context(), id, platform)
	if err != nil {
		h.respondServiceError(w, r, "render listing", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"platform": platform, "text": text})
}

// Movements handles GET /api/v1/movements and GET /api/v1/stock/{id}/movements
func (h *StockHandler) Movements(w http.ResponseWriter, r *http.Request) {
	var itemID *uuid.UUID
	if r.PathValue("id") != "" {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		itemID = &id
	}

	movements, err := h.service.Movements(r.Context(), itemID)
	if err != nil {
		h.respondServiceError(w, r, "list movements", err)
		return
	}

	h.respondJSON(w, http.StatusOK, movements)
}

// PurchaseHistory handles GET /api/v1/history/{ean}
func (h *StockHandler) PurchaseHistory(w http.ResponseWriter, r *http.Request) {
	ean := r.PathValue("ean")
	if ean == "" {
		h.respondError(w, http.StatusBadRequest, "ean is required")
		return
	}

	history, err := h.service.PurchaseHistory(r.Context(), ean)
	if err != nil {
		h.respondServiceError(w, r, "load purchase history", err)
		return
	}

	h.respondJSON(w, http.StatusOK, history)
}

// RegisterRoutes mounts the stock routes on mux.
func (h *StockHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/stock", h.ListStock)
	mux.HandleFunc("POST /api/v1/stock", h.CreateItem)
	mux.HandleFunc("GET /api/v1/stock/alerts", h.Alerts)
	mux.HandleFunc("PUT /api/v1/stock/thresholds", h.BulkThreshold)
	mux.HandleFunc("GET /api/v1/stock/{id}", h.GetItem)
	mux.HandleFunc("PUT /api/v1/stock/{id}", h.UpdateItem)
	mux.HandleFunc("DELETE /api/v1/stock/{id}", h.DeleteItem)
	mux.HandleFunc("POST /api/v1/stock/{id}/sell", h.Sell)
	mux.HandleFunc("POST /api/v1/stock/{id}/transfer", h.Transfer)
	mux.HandleFunc("PUT /api/v1/stock/{id}/status", h.ChangeStatus)
	mux.HandleFunc("PUT /api/v1/stock/{id}/location", h.ChangeLocation)
	mux.HandleFunc("PUT /api/v1/stock/{id}/threshold", h.SetThreshold)
	mux.HandleFunc("GET /api/v1/stock/{id}/listing", h.Listing)
	mux.HandleFunc("GET /api/v1/stock/{id}/movements", h.Movements)
	mux.HandleFunc("GET /api/v1/movements", h.Movements)
	mux.HandleFunc("GET /api/v1/history/{ean}", h.PurchaseHistory)
}
