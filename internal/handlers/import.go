// internal/handlers/import.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
	"github.com/ammerola/resell-stock/internal/workers"
)

// TaskInspector is the part of *asynq.Inspector the job status route uses.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

var catalogExts = []string{".csv", ".xlsx"}

// ImportHandler handles wholesaler catalog imports and background job status.
type ImportHandler struct {
	responder
	catalog   ports.CatalogService
	uploads   uploader
	inspector TaskInspector
}

// NewImportHandler creates a new import handler
func NewImportHandler(catalog ports.CatalogService, storage ports.ObjectStorage, queue TaskEnqueuer, inspector TaskInspector, uploadPrefix string, maxSizeMB int, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		responder: newResponder(logger, "import"),
		catalog:   catalog,
		uploads: uploader{
			storage: storage,
			queue:   queue,
			prefix:  uploadPrefix,
			maxSize: int64(maxSizeMB) << 20,
		},
		inspector: inspector,
	}
}

// PreviewCatalog handles POST /api/v1/import/catalog/preview. The file is
// parsed in the request and nothing is written.
func (h *ImportHandler) PreviewCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, err := h.uploads.formFile(w, r, catalogExts...)
	if err != nil {
		h.respondUploadError(w, r, err)
		return
	}
	defer file.Close()

	preview, err := h.catalog.Parse(header.Filename, file)
	if err != nil {
		h.respondServiceError(w, r, "parse catalog", err)
		return
	}

	h.logger.InfoContext(ctx, "catalog parsed",
		slog.String("filename", header.Filename),
		slog.Int("rows", len(preview.Rows)))

	h.respondJSON(w, http.StatusOK, preview)
}

// ConfirmRequest carries previewed rows back for insertion.
type ConfirmRequest struct {
	Rows   []ports.CatalogRow `json:"rows" validate:"required,min=1"`
	Bucket string             `json:"bucket" validate:"required,oneof=warehouse fba fbm"`
}

// ConfirmCatalog handles POST /api/v1/import/catalog/confirm
func (h *ImportHandler) ConfirmCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfirmRequest
	if !h.decodeLimit(w, r, &req, h.uploads.maxSize) {
		return
	}

	inserted, err := h.catalog.Confirm(ctx, req.Rows, domain.Bucket(req.Bucket))
	if err != nil {
		if inserted > 0 {
			h.logger.WarnContext(ctx, "catalog partially imported",
				slog.Int("inserted", inserted),
				slog.Int("rows", len(req.Rows)),
				slog.String("error", err.Error()))
		}
		h.respondServiceError(w, r, "import catalog", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]int{"inserted": inserted})
}

// ImportCatalog handles POST /api/v1/import/catalog. The file is stored and
// a worker parses and inserts it into the bucket named by the "bucket"
// form field (warehouse by default).
func (h *ImportHandler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	up, err := h.uploads.store(w, r, catalogExts...)
	if err != nil {
		h.respondUploadError(w, r, err)
		return
	}

	bucket := domain.BucketWarehouse
	if s := r.FormValue("bucket"); s != "" {
		if bucket, err = domain.ParseBucket(s); err != nil {
			_ = h.uploads.storage.Delete(ctx, up.Key)
			h.respondServiceError(w, r, "import catalog", err)
			return
		}
	}

	payload := workers.CatalogImportPayload{
		Job:      workers.JobFor(ctx),
		Key:      up.Key,
		Filename: up.Filename,
		Bucket:   bucket,
	}
	task, err := workers.NewCatalogImportTask(payload)
	if err != nil {
		h.respondServiceError(w, r, "create task", err)
		return
	}
	info, err := h.uploads.enqueue(ctx, h.logger, task, up)
	if err != nil {
		h.respondServiceError(w, r, "queue catalog import", err)
		return
	}

	h.logger.InfoContext(ctx, "catalog import queued",
		slog.String("job_id", payload.JobID),
		slog.String("task_id", info.ID),
		slog.String("filename", up.Filename),
		slog.Int64("size", up.Size))

	h.respondJSON(w, http.StatusAccepted, accepted(payload.Job, info, up.Key))
}

// jobStatus is the public view of a background task.
type jobStatus struct {
	TaskID    string `json:"task_id"`
	JobID     string `json:"job_id,omitempty"`
	Queue     string `json:"queue"`
	Type      string `json:"type"`
	State     string `json:"state"`
	Retried   int    `json:"retried"`
	MaxRetry  int    `json:"max_retry"`
	LastError string `json:"last_error,omitempty"`
}

// JobStatus handles GET /api/v1/jobs/{queue}/{id}. A task enqueued for
// another tenant is reported as not found.
func (h *ImportHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inspector == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Job inspection is not configured")
		return
	}

	info, err := h.inspector.GetTaskInfo(r.PathValue("queue"), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			h.respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.respondServiceError(w, r, "get job status", err)
		return
	}

	var job workers.Job
	_ = json.Unmarshal(info.Payload, &job)
	if id, scoped := tenant.Filter(ctx); scoped && job.Owner != id {
		h.respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, jobStatus{
		TaskID:    info.ID,
		JobID:     job.JobID,
		Queue:     info.Queue,
		Type:      info.Type,
		State:     info.State.String(),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	})
}

// RegisterRoutes mounts the import routes on mux.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/import/catalog", h.ImportCatalog)
	mux.HandleFunc("POST /api/v1/import/catalog/preview", h.PreviewCatalog)
	mux.HandleFunc("POST /api/v1/import/catalog/confirm", h.ConfirmCatalog)
	mux.HandleFunc("GET /api/v1/jobs/{queue}/{id}", h.JobStatus)
}
