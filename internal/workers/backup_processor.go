// internal/workers/backup_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// BackupProcessor archives and restores tenant backups.
type BackupProcessor struct {
	backups ports.BackupService
	logger  *slog.Logger
}

func NewBackupProcessor(backups ports.BackupService, logger *slog.Logger) *BackupProcessor {
	return &BackupProcessor{
		backups: backups,
		logger:  logger.With(slog.String("processor", "backup")),
	}
}

// CreateBackup uploads a fresh backup of the job's tenant.
func (p *BackupProcessor) CreateBackup(ctx context.Context, t *asynq.Task) error {
	var payload BackupPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	ctx = payload.Context(ctx)

	key, err := p.backups.Archive(ctx)
	if err != nil {
		return fmt.Errorf("failed to archive backup: %w", err)
	}

	p.logger.InfoContext(ctx, "backup archived",
		slog.String("job_id", payload.JobID),
		slog.String("key", key))
	return nil
}

// RestoreBackup replaces the job tenant's records with an archived backup.
func (p *BackupProcessor) RestoreBackup(ctx context.Context, t *asynq.Task) error {
	var payload BackupPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	ctx = payload.Context(ctx)

	report, err := p.backups.RestoreArchive(ctx, payload.Key)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidBackup) {
			return fmt.Errorf("failed to restore %s: %w: %w", payload.Key, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to restore %s: %w", payload.Key, err)
	}

	p.logger.InfoContext(ctx, "backup restored",
		slog.String("job_id", payload.JobID),
		slog.String("key", payload.Key),
		slog.Int("suppliers", report.Suppliers),
		slog.Int("purchases", report.Purchases),
		slog.Int("items", report.Items),
		slog.Int("invoices", report.Invoices))
	return nil
}
