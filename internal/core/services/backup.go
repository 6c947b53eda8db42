// internal/core/services/backup.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// restoreChunkSize bounds each batch insert of a restore.
const restoreChunkSize = 50

// BackupService exports a tenant's records to a JSON document and restores
// them. Movements are not part of a backup.
type BackupService struct {
	items     ports.ItemRepository
	purchases ports.PurchaseRepository
	suppliers ports.SupplierRepository
	invoices  ports.InvoiceRepository
	storage   ports.ObjectStorage
	views     *ViewCache
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.BackupService = (*BackupService)(nil)

// NewBackupService creates a new backup service
func NewBackupService(
	items ports.ItemRepository,
	purchases ports.PurchaseRepository,
	suppliers ports.SupplierRepository,
	invoices ports.InvoiceRepository,
	storage ports.ObjectStorage,
	views *ViewCache,
	logger *slog.Logger,
) *BackupService {
	return &BackupService{
		items:     items,
		purchases: purchases,
		suppliers: suppliers,
		invoices:  invoices,
		storage:   storage,
		views:     views,
		logger:    logger.With(slog.String("service", "backup")),
		now:       time.Now,
	}
}

// Export builds the backup document. Unlike the workspace loader, a failed
// read aborts the export rather than producing a partial backup.
func (s *BackupService) Export(ctx context.Context) (*domain.Backup, error) {
	suppliers, err := s.suppliers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export suppliers: %w", err)
	}
	purchases, err := s.purchases.List(ctx, ports.PurchaseQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to export purchases: %w", err)
	}
	items, err := s.items.List(ctx, ports.ItemQuery{IncludeSold: true})
	if err != nil {
		return nil, fmt.Errorf("failed to export items: %w", err)
	}
	invoices, err := s.invoices.List(ctx, ports.InvoiceQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to export invoices: %w", err)
	}

	return domain.NewBackup(suppliers, purchases, items, invoices, s.now()), nil
}

// ArchiveKey is the object storage key of a backup taken at t.
func ArchiveKey(scope string, t time.Time) string {
	return fmt.Sprintf("backups/%s/%s.json", scope, t.UTC().Format("20060102T150405Z"))
}

// Archive exports the tenant and uploads the document to object storage.
// It returns the object key.
func (s *BackupService) Archive(ctx context.Context) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("object storage is not configured")
	}
	b, err := s.Export(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal backup: %w", err)
	}

	key := ArchiveKey(tenant.Key(ctx), b.Date)
	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	s.logger.InfoContext(ctx, "backup archived",
		slog.String("key", key),
		slog.Int("items", len(b.Items)),
		slog.Int("purchases", len(b.Purchases)),
		slog.Int("bytes", len(data)))

	return key, nil
}

// Restore replaces the tenant's records with the content of b. The document
// is checked before anything is deleted; after that the writes are
// sequential and a failure leaves the partial state in place.
func (s *BackupService) Restore(ctx context.Context, b *domain.Backup) (*ports.RestoreReport, error) {
	if err := b.Check(); err != nil {
		return nil, err
	}
	owner, ok := tenant.Filter(ctx)
	if !ok {
		return nil, domain.Invalid("", "restore must run as a single user")
	}

	b.Rebase(owner)

	if err := s.invoices.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear invoices: %w", err)
	}
	if err := s.items.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear items: %w", err)
	}
	if err := s.purchases.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear purchases: %w", err)
	}
	if err := s.suppliers.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear suppliers: %w", err)
	}
	defer s.views.Invalidate(ctx)

	report := &ports.RestoreReport{}
	var err error
	if report.Suppliers, err = insertChunks(ctx, b.Suppliers, s.suppliers.SaveBatch); err != nil {
		return report, fmt.Errorf("failed to restore suppliers: %w", err)
	}
	if report.Purchases, err = insertChunks(ctx, b.Purchases, s.purchases.SaveBatch); err != nil {
		return report, fmt.Errorf("failed to restore purchases: %w", err)
	}
	if report.Items, err = insertChunks(ctx, b.Items, s.items.SaveBatch); err != nil {
		return report, fmt.Errorf("failed to restore items: %w", err)
	}
	if report.Invoices, err = insertChunks(ctx, b.Invoices, s.invoices.SaveBatch); err != nil {
		return report, fmt.Errorf("failed to restore invoices: %w", err)
	}

	s.logger.InfoContext(ctx, "backup restored",
		slog.Int("suppliers", report.Suppliers),
		slog.Int("purchases", report.Purchases),
		slog.Int("items", report.Items),
		slog.Int("invoices", report.Invoices))

	return report, nil
}

// RestoreArchive restores a document previously written by Archive.
func (s *BackupService) RestoreArchive(ctx context.Context, key string) (*ports.RestoreReport, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	data, err := s.storage.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}

	var b domain.Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBackup, err)
	}
	return s.Restore(ctx, &b)
}

// insertChunks saves rows in fixed-size batches and returns how many were
// written before the first failure.
func insertChunks[T any](ctx context.Context, rows []T, save func(context.Context, []T) error) (int, error) {
	written := 0
	for start := 0; start < len(rows); start += restoreChunkSize {
		end := min(start+restoreChunkSize, len(rows))
		if err := save(ctx, rows[start:end]); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}
