// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

const (
	TypeCatalogImport    = "catalog:import"
	TypeBackupCreate     = "backup:create"
	TypeBackupRestore    = "backup:restore"
	TypeInvoicePDFIntake = "invoice:pdf_intake"
	TypeAlertsDigest     = "alerts:digest"
	TypeCleanupUploads   = "cleanup:uploads"
)

// Job is the part every payload shares: who the job runs for.
type Job struct {
	JobID string `json:"job_id"`
	Owner string `json:"owner"`
	Admin bool   `json:"admin,omitempty"`
}

// Context returns ctx acting as the job's tenant.
func (j Job) Context(ctx context.Context) context.Context {
	return tenant.WithTenant(ctx, tenant.Tenant{UserID: j.Owner, Admin: j.Admin})
}

// JobFor captures the tenant of ctx for a job enqueued on its behalf.
func JobFor(ctx context.Context) Job {
	j := Job{JobID: uuid.NewString()}
	if t, ok := tenant.FromContext(ctx); ok {
		j.Owner = t.UserID
		j.Admin = t.Admin
	}
	return j
}

// CatalogImportPayload points at an uploaded catalog file.
type CatalogImportPayload struct {
	Job
	Key      string        `json:"key"`
	Filename string        `json:"filename"`
	Bucket   domain.Bucket `json:"bucket"`
}

// BackupPayload carries the archive to restore; empty for backup:create.
type BackupPayload struct {
	Job
	Key string `json:"key,omitempty"`
}

// InvoicePDFPayload points at an uploaded supplier invoice.
type InvoicePDFPayload struct {
	Job
	Key        string     `json:"key"`
	SupplierID *uuid.UUID `json:"supplier_id,omitempty"`
}

// DigestPayload names the tenant whose alerts are mailed.
type DigestPayload struct {
	Job
}

func newTask(typ string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, b, opts...), nil
}

func decode(t *asynq.Task, dest any) error {
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	return nil
}

func NewCatalogImportTask(p CatalogImportPayload) (*asynq.Task, error) {
	return newTask(TypeCatalogImport, p, asynq.Queue("default"), asynq.Timeout(10*time.Minute))
}

func NewBackupCreateTask(j Job) (*asynq.Task, error) {
	return newTask(TypeBackupCreate, BackupPayload{Job: j}, asynq.Queue("low"))
}

func NewBackupRestoreTask(p BackupPayload) (*asynq.Task, error) {
	// a partially applied restore must not be replayed
	return newTask(TypeBackupRestore, p, asynq.Queue("critical"), asynq.MaxRetry(0))
}

func NewInvoicePDFTask(p InvoicePDFPayload) (*asynq.Task, error) {
	return newTask(TypeInvoicePDFIntake, p, asynq.Queue("default"))
}

func NewDigestTask(owner string) (*asynq.Task, error) {
	return newTask(TypeAlertsDigest, DigestPayload{Job: Job{JobID: uuid.NewString(), Owner: owner}}, asynq.Queue("low"))
}

func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupUploads, nil, asynq.Queue("low"))
}

// UploadKey builds the storage key of a file uploaded for a worker. The
// timestamp segment lets the cleanup task age keys without object metadata.
func UploadKey(prefix, owner, filename string, now time.Time) string {
	if owner == "" {
		owner = tenant.AllTenants
	}
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(prefix, owner, now.UTC().Format(uploadStamp)+"-"+uuid.NewString()+ext)
}

const uploadStamp = "20060102T150405Z"

// uploadTime parses the timestamp of a key built by UploadKey.
func uploadTime(key string) (time.Time, bool) {
	base := path.Base(key)
	if len(base) < len(uploadStamp) {
		return time.Time{}, false
	}
	ts, err := time.Parse(uploadStamp, base[:len(uploadStamp)])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
