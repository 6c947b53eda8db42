// internal/handlers/suppliers.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/workers"
)

// SupplierHandler handles suppliers and their invoices.
type SupplierHandler struct {
	responder
	suppliers ports.SupplierService
	invoices  ports.InvoiceService
	uploads   uploader
}

// NewSupplierHandler creates a new supplier handler. storage and queue may
// be nil, in which case invoice PDF intake answers 500.
func NewSupplierHandler(suppliers ports.SupplierService, invoices ports.InvoiceService, storage ports.ObjectStorage, queue TaskEnqueuer, uploadPrefix string, maxPDFSizeMB int, logger *slog.Logger) *SupplierHandler {
	return &SupplierHandler{
		responder: newResponder(logger, "suppliers"),
		suppliers: suppliers,
		invoices:  invoices,
		uploads: uploader{
			storage: storage,
			queue:   queue,
			prefix:  uploadPrefix,
			maxSize: int64(maxPDFSizeMB) << 20,
		},
	}
}

// ListSuppliers handles GET /api/v1/suppliers
func (h *SupplierHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	list, err := h.suppliers.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, "list suppliers", err)
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

// CreateSupplier handles POST /api/v1/suppliers
func (h *SupplierHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var s domain.Supplier
	if !h.decode(w, r, &s) {
		return
	}

	if err := h.suppliers.Create(r.Context(), &s); err != nil {
		h.respondServiceError(w, r, "create supplier", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, s)
}

// GetSupplier handles GET /api/v1/suppliers/{id}
func (h *SupplierHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	s, err := h.suppliers.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "retrieve supplier", err)
		return
	}
	h.respondJSON(w, http.StatusOK, s)
}

// UpdateSupplier handles PUT /api/v1/suppliers/{id}
func (h *SupplierHandler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var s domain.Supplier
	if !h.decode(w, r, &s) {
		return
	}

	if err := h.suppliers.Update(r.Context(), id, &s); err != nil {
		h.respondServiceError(w, r, "update supplier", err)
		return
	}
	h.respondJSON(w, http.StatusOK, s)
}

// DeleteSupplier handles DELETE /api/v1/suppliers/{id}
func (h *SupplierHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.suppliers.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, "delete supplier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListInvoices handles GET /api/v1/invoices?supplier_id=&unpaid=true
func (h *SupplierHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var q ports.InvoiceQuery

	if s := query.Get("supplier_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid supplier_id")
			return
		}
		q.SupplierID = &id
	}
	if s := query.Get("unpaid"); s != "" {
		unpaid, err := strconv.ParseBool(s)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid unpaid flag")
			return
		}
		q.UnpaidOnly = unpaid
	}

	list, err := h.invoices.List(r.Context(), q)
	if err != nil {
		h.respondServiceError(w, r, "list invoices", err)
		return
	}
	h.respondJSON(w, http.StatusOK, list)
}

// CreateInvoice handles POST /api/v1/invoices
func (h *SupplierHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var inv domain.Invoice
	if !h.decode(w, r, &inv) {
		return
	}

	if err := h.invoices.Create(ctx, &inv); err != nil {
		h.respondServiceError(w, r, "create invoice", err)
		return
	}

	h.logger.InfoContext(ctx, "invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("number", inv.Number))

	h.respondJSON(w, http.StatusCreated, inv)
}

// GetInvoice handles GET /api/v1/invoices/{id}
func (h *SupplierHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "retrieve invoice", err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

// UpdateInvoice handles PUT /api/v1/invoices/{id}
func (h *SupplierHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var inv domain.Invoice
	if !h.decode(w, r, &inv) {
		return
	}

	if err := h.invoices.Update(r.Context(), id, &inv); err != nil {
		h.respondServiceError(w, r, "update invoice", err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

// DeleteInvoice handles DELETE /api/v1/invoices/{id}
func (h *SupplierHandler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.invoices.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkInvoicePaid handles POST /api/v1/invoices/{id}/paid
func (h *SupplierHandler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	inv, err := h.invoices.MarkPaid(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, "mark invoice paid", err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

// UploadInvoicePDF handles POST /api/v1/invoices/pdf. The PDF is stored and
// a worker creates the invoice from its text layer.
func (h *SupplierHandler) UploadInvoicePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	up, err := h.uploads.store(w, r, ".pdf")
	if err != nil {
		h.respondUploadError(w, r, err)
		return
	}

	payload := workers.InvoicePDFPayload{Job: workers.JobFor(ctx), Key: up.Key}
	if s := r.FormValue("supplier_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			_ = h.uploads.storage.Delete(ctx, up.Key)
			h.respondError(w, http.StatusBadRequest, "Invalid supplier_id")
			return
		}
		payload.SupplierID = &id
	}

	task, err := workers.NewInvoicePDFTask(payload)
	if err != nil {
		h.respondServiceError(w, r, "create task", err)
		return
	}
	info, err := h.uploads.enqueue(ctx, h.logger, task, up)
	if err != nil {
		h.respondServiceError(w, r, "queue invoice intake", err)
		return
	}

	h.logger.InfoContext(ctx, "invoice pdf queued",
		slog.String("job_id", payload.JobID),
		slog.String("task_id", info.ID),
		slog.String("filename", up.Filename),
		slog.Int64("size", up.Size))

	h.respondJSON(w, http.StatusAccepted, accepted(payload.Job, info, up.Key))
}

// RegisterRoutes mounts the supplier and invoice routes on mux.
func (h *SupplierHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/suppliers", h.ListSuppliers)
	mux.HandleFunc("POST /api/v1/suppliers", h.CreateSupplier)
	mux.HandleFunc("GET /api/v1/suppliers/{id}", h.GetSupplier)
	mux.HandleFunc("PUT /api/v1/suppliers/{id}", h.UpdateSupplier)
	mux.HandleFunc("DELETE /api/v1/suppliers/{id}", h.DeleteSupplier)

	mux.HandleFunc("GET /api/v1/invoices", h.ListInvoices)
	mux.HandleFunc("POST /api/v1/invoices", h.CreateInvoice)
	mux.HandleFunc("POST /api/v1/invoices/pdf", h.UploadInvoicePDF)
	mux.HandleFunc("GET /api/v1/invoices/{id}", h.GetInvoice)
	mux.HandleFunc("PUT /api/v1/invoices/{id}", h.UpdateInvoice)
	mux.HandleFunc("DELETE /api/v1/invoices/{id}", h.DeleteInvoice)
	mux.HandleFunc("POST /api/v1/invoices/{id}/paid", h.MarkInvoicePaid)
}
