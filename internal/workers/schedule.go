// internal/workers/schedule.go
package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/internal/pkg/logger"
)

// Registrar is the part of *asynq.Scheduler used to declare periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterPeriodicTasks declares the cleanup task and one digest task per
// configured tenant. An empty cron spec disables the matching task.
func RegisterPeriodicTasks(r Registrar, cfg *config.Config) (int, error) {
	var n int
	if cfg.Asynq.CleanupCron != "" {
		if _, err := r.Register(cfg.Asynq.CleanupCron, NewCleanupTask()); err != nil {
			return n, fmt.Errorf("failed to schedule cleanup: %w", err)
		}
		n++
	}

	if cfg.Asynq.DigestCron == "" || !cfg.Mail.Enabled() {
		return n, nil
	}
	for _, owner := range cfg.Mail.Tenants {
		task, err := NewDigestTask(owner)
		if err != nil {
			return n, err
		}
		if _, err := r.Register(cfg.Asynq.DigestCron, task); err != nil {
			return n, fmt.Errorf("failed to schedule digest for %s: %w", owner, err)
		}
		n++
	}
	return n, nil
}

// NewServeMux routes every task type to its processor.
func NewServeMux(
	catalog *CatalogProcessor,
	backup *BackupProcessor,
	pdf *PDFProcessor,
	digest *DigestProcessor,
	cleanup *CleanupProcessor,
) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(JobContext)
	mux.HandleFunc(TypeCatalogImport, catalog.ProcessImport)
	mux.HandleFunc(TypeBackupCreate, backup.CreateBackup)
	mux.HandleFunc(TypeBackupRestore, backup.RestoreBackup)
	mux.HandleFunc(TypeInvoicePDFIntake, pdf.ProcessPDF)
	mux.HandleFunc(TypeAlertsDigest, digest.ProcessDigest)
	mux.HandleFunc(TypeCleanupUploads, cleanup.CleanupUploads)
	return mux
}

// JobContext tags the task context so every record a processor logs names
// the task it belongs to.
func JobContext(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		queue, _ := asynq.GetQueueName(ctx)
		retry, _ := asynq.GetRetryCount(ctx)
		return next.ProcessTask(logger.WithJob(ctx, logger.Job{
			ID:    id,
			Type:  t.Type(),
			Queue: queue,
			Retry: retry,
		}), t)
	})
}
