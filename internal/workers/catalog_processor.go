// internal/workers/catalog_processor.go
package workers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/core/ports"
)

// CatalogProcessor imports catalog files too large for a request.
type CatalogProcessor struct {
	catalog ports.CatalogService
	storage ports.ObjectStorage
	logger  *slog.Logger
}

// NewCatalogProcessor creates a new catalog processor
func NewCatalogProcessor(catalog ports.CatalogService, storage ports.ObjectStorage, logger *slog.Logger) *CatalogProcessor {
	return &CatalogProcessor{
		catalog: catalog,
		storage: storage,
		logger:  logger.With(slog.String("processor", "catalog")),
	}
}

// ProcessImport parses the uploaded file and inserts its rows.
func (p *CatalogProcessor) ProcessImport(ctx context.Context, t *asynq.Task) error {
	var payload CatalogImportPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	ctx = payload.Context(ctx)

	p.logger.InfoContext(ctx, "processing catalog import",
		slog.String("job_id", payload.JobID),
		slog.String("key", payload.Key),
		slog.String("filename", payload.Filename))

	data, err := p.storage.Download(ctx, payload.Key)
	if err != nil {
		return fmt.Errorf("failed to download catalog: %w", err)
	}

	preview, err := p.catalog.Parse(payload.Filename, bytes.NewReader(data))
	if err != nil {
		// a file that does not parse will not parse on retry either
		_ = p.storage.Delete(ctx, payload.Key)
		return fmt.Errorf("failed to parse catalog: %w: %w", err, asynq.SkipRetry)
	}

	inserted, err := p.catalog.Confirm(ctx, preview.Rows, payload.Bucket)
	if err != nil {
		p.logger.ErrorContext(ctx, "catalog import stopped",
			slog.String("job_id", payload.JobID),
			slog.Int("inserted", inserted),
			slog.String("error", err.Error()))
		// rows already inserted would be duplicated by a retry
		_ = p.storage.Delete(ctx, payload.Key)
		return fmt.Errorf("catalog import failed after %d rows: %w: %w", inserted, err, asynq.SkipRetry)
	}

	if err := p.storage.Delete(ctx, payload.Key); err != nil {
		p.logger.WarnContext(ctx, "failed to delete processed upload",
			slog.String("key", payload.Key),
			slog.String("error", err.Error()))
	}

	p.logger.InfoContext(ctx, "catalog import completed",
		slog.String("job_id", payload.JobID),
		slog.Int("rows", len(preview.Rows)),
		slog.Int("inserted", inserted))
	return nil
}
