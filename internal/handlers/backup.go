// internal/handlers/backup.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
	"github.com/ammerola/resell-stock/internal/workers"
)

// maxBackupBody bounds a backup document posted for restore.
const maxBackupBody = 64 << 20

// BackupHandler exports, archives and restores a tenant's records.
type BackupHandler struct {
	responder
	service ports.BackupService
	storage ports.ObjectStorage
	queue   TaskEnqueuer
}

// NewBackupHandler creates a new backup handler. storage and queue may be
// nil; the archive routes then answer 503.
func NewBackupHandler(service ports.BackupService, storage ports.ObjectStorage, queue TaskEnqueuer, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		responder: newResponder(logger, "backup"),
		service:   service,
		storage:   storage,
		queue:     queue,
	}
}

// ExportBackup handles GET /api/v1/backup. The document is sent as a
// download.
func (h *BackupHandler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	b, err := h.service.Export(ctx)
	if err != nil {
		h.respondServiceError(w, r, "export backup", err)
		return
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		h.respondServiceError(w, r, "encode backup", err)
		return
	}

	filename := fmt.Sprintf("backup_%s.json", b.Date.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write backup response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "backup exported",
		slog.Int("items", len(b.Items)),
		slog.Int("bytes", len(data)))
}

// RestoreBackup handles POST /api/v1/backup/restore with a backup document
// as body. A document without a supported version answers 400 and
// nothing is deleted.
func (h *BackupHandler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var b domain.Backup
	if !h.decodeLimit(w, r, &b, maxBackupBody) {
		return
	}

	report, err := h.service.Restore(ctx, &b)
	if err != nil {
		h.respondServiceError(w, r, "restore backup", err)
		return
	}

	h.logger.InfoContext(ctx, "backup restored",
		slog.Int("suppliers", report.Suppliers),
		slog.Int("purchases", report.Purchases),
		slog.Int("items", report.Items),
		slog.Int("invoices", report.Invoices))

	h.respondJSON(w, http.StatusOK, report)
}

func archivePrefix(r *http.Request) string {
	return "backups/" + tenant.Key(r.Context()) + "/"
}

// ListArchives handles GET /api/v1/backup/archives, newest first.
func (h *BackupHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Object storage is not configured")
		return
	}

	keys, err := h.storage.List(r.Context(), archivePrefix(r))
	if err != nil {
		h.respondServiceError(w, r, "list archives", err)
		return
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if keys == nil {
		keys = []string{}
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"archives": keys, "count": len(keys)})
}

// CreateArchive handles POST /api/v1/backup/archives. A worker exports the
// tenant to object storage.
func (h *BackupHandler) CreateArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.queue == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Background processing is not configured")
		return
	}

	job := workers.JobFor(ctx)
	task, err := workers.NewBackupCreateTask(job)
	if err != nil {
		h.respondServiceError(w, r, "create task", err)
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		h.respondServiceError(w, r, "queue backup", err)
		return
	}

	h.logger.InfoContext(ctx, "backup queued",
		slog.String("job_id", job.JobID),
		slog.String("task_id", info.ID))

	h.respondJSON(w, http.StatusAccepted, accepted(job, info, ""))
}

// RestoreArchiveRequest names an archive of the caller.
type RestoreArchiveRequest struct {
	Key string `json:"key" validate:"required"`
}

// RestoreArchive handles POST /api/v1/backup/archives/restore. Only
// archives under the caller's own prefix can be restored.
func (h *BackupHandler) RestoreArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.queue == nil || h.storage == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Background processing is not configured")
		return
	}

	var req RestoreArchiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !strings.HasPrefix(req.Key, archivePrefix(r)) || strings.Contains(req.Key, "..") {
		h.respondError(w, http.StatusNotFound, "Archive not found")
		return
	}

	exists, err := h.storage.Exists(ctx, req.Key)
	if err != nil {
		h.respondServiceError(w, r, "check archive", err)
		return
	}
	if !exists {
		h.respondError(w, http.StatusNotFound, "Archive not found")
		return
	}

	payload := workers.BackupPayload{Job: workers.JobFor(ctx), Key: req.Key}
	task, err := workers.NewBackupRestoreTask(payload)
	if err != nil {
		h.respondServiceError(w, r, "create task", err)
		return
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		h.respondServiceError(w, r, "queue restore", err)
		return
	}

	h.logger.InfoContext(ctx, "restore queued",
		slog.String("job_id", payload.JobID),
		slog.String("key", req.Key))

	h.respondJSON(w, http.StatusAccepted, accepted(payload.Job, info, req.Key))
}

// RegisterRoutes mounts the backup routes on mux.
func (h *BackupHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/backup", h.ExportBackup)
	mux.HandleFunc("POST /api/v1/backup/restore", h.RestoreBackup)
	mux.HandleFunc("GET /api/v1/backup/archives", h.ListArchives)
	mux.HandleFunc("POST /api/v1/backup/archives", h.CreateArchive)
	mux.HandleFunc("POST /api/v1/backup/archives/restore", h.RestoreArchive)
}
