// internal/workers/cleanup_processor.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/resell-stock/internal/core/ports"
)

// CleanupProcessor handles cleanup tasks
type CleanupProcessor struct {
	storage ports.ObjectStorage
	prefix  string
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewCleanupProcessor creates a new cleanup processor
func NewCleanupProcessor(storage ports.ObjectStorage, prefix string, maxAge time.Duration, logger *slog.Logger) *CleanupProcessor {
	return &CleanupProcessor{
		storage: storage,
		prefix:  prefix,
		maxAge:  maxAge,
		now:     time.Now,
		logger:  logger.With(slog.String("processor", "cleanup")),
	}
}

// CleanupUploads removes uploads no worker picked up within maxAge.
func (p *CleanupProcessor) CleanupUploads(ctx context.Context, _ *asynq.Task) error {
	keys, err := p.storage.List(ctx, p.prefix+"/")
	if err != nil {
		return fmt.Errorf("failed to list uploads: %w", err)
	}

	cutoff := p.now().Add(-p.maxAge)
	var deleted int
	for _, key := range keys {
		ts, ok := uploadTime(key)
		if !ok || !ts.Before(cutoff) {
			continue
		}
		if err := p.storage.Delete(ctx, key); err != nil {
			p.logger.WarnContext(ctx, "failed to delete upload",
				slog.String("key", key),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}

	p.logger.InfoContext(ctx, "uploads cleaned up",
		slog.Int("scanned", len(keys)),
		slog.Int("deleted", deleted))
	return nil
}
