// internal/handlers/uploads.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
	"github.com/ammerola/resell-stock/internal/workers"
)

// TaskEnqueuer is the part of *asynq.Client the handlers use.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var errUploadRejected = errors.New("upload rejected")

// uploader stores multipart files in object storage for a worker to pick up.
type uploader struct {
	storage ports.ObjectStorage
	queue   TaskEnqueuer
	prefix  string
	maxSize int64
}

type storedUpload struct {
	Key      string
	Filename string
	Size     int64
}

// formFile opens the "file" part of a multipart request, checking its size
// and extension. The caller closes the file.
func (u uploader) formFile(w http.ResponseWriter, r *http.Request, exts ...string) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, u.maxSize+1<<20)
	if err := r.ParseMultipartForm(u.maxSize); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to parse form data", errUploadRejected)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: file is required", errUploadRejected)
	}
	if header.Size > u.maxSize {
		file.Close()
		return nil, nil, fmt.Errorf("%w: file exceeds %d MB", errUploadRejected, u.maxSize>>20)
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if len(exts) > 0 && !slices.Contains(exts, ext) {
		file.Close()
		return nil, nil, fmt.Errorf("%w: only %s files are allowed", errUploadRejected, strings.Join(exts, ", "))
	}
	return file, header, nil
}

// store copies the uploaded file to object storage under the caller's
// upload prefix.
func (u uploader) store(w http.ResponseWriter, r *http.Request, exts ...string) (*storedUpload, error) {
	if u.storage == nil || u.queue == nil {
		return nil, errors.New("background processing is not configured")
	}

	file, header, err := u.formFile(w, r, exts...)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ctx := r.Context()
	key := workers.UploadKey(u.prefix, tenant.Owner(ctx), header.Filename, time.Now())
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := u.storage.Upload(ctx, key, file, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return &storedUpload{Key: key, Filename: header.Filename, Size: header.Size}, nil
}

// enqueue submits task; on failure the stored upload is removed so the
// cleanup task does not have to.
func (u uploader) enqueue(ctx context.Context, logger *slog.Logger, task *asynq.Task, up *storedUpload) (*asynq.TaskInfo, error) {
	info, err := u.queue.EnqueueContext(ctx, task)
	if err != nil && up != nil {
		if delErr := u.storage.Delete(ctx, up.Key); delErr != nil {
			logger.WarnContext(ctx, "failed to remove orphaned upload",
				slog.String("key", up.Key),
				slog.String("error", delErr.Error()))
		}
	}
	return info, err
}

// respondUploadError maps an upload failure to a status code.
func (h responder) respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUploadRejected) {
		h.respondError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), errUploadRejected.Error()+": "))
		return
	}
	h.logger.ErrorContext(r.Context(), "upload failed", slog.String("error", err.Error()))
	h.respondError(w, http.StatusInternalServerError, "Failed to process upload")
}

// jobAccepted is the 202 body of an enqueued task.
type jobAccepted struct {
	JobID  string `json:"job_id"`
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	Key    string `json:"key,omitempty"`
	Status string `json:"status"`
}

func accepted(job workers.Job, info *asynq.TaskInfo, key string) jobAccepted {
	return jobAccepted{
		JobID:  job.JobID,
		TaskID: info.ID,
		Queue:  info.Queue,
		Key:    key,
		Status: "queued",
	}
}
