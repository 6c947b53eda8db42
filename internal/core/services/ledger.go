// internal/core/services/ledger.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// RecentMovementsLimit bounds every movement listing.
const RecentMovementsLimit = 200

// Ledger appends movement entries. Recording is best effort: a failed insert
// is logged and never undoes the stock change it explains.
type Ledger struct {
	repo   ports.MovementRepository
	logger *slog.Logger
}

// NewLedger creates a movement ledger
func NewLedger(repo ports.MovementRepository, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: logger.With(slog.String("service", "ledger")),
	}
}

// Record appends m.
func (l *Ledger) Record(ctx context.Context, m domain.Movement) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.UserID == "" {
		m.UserID = tenant.Owner(ctx)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	if err := l.repo.Save(ctx, &m); err != nil {
		l.logger.ErrorContext(ctx, "failed to record movement",
			slog.String("item_id", m.ItemID.String()),
			slog.String("type", string(m.Type)),
			slog.Int("qty", m.Qty),
			slog.String("error", err.Error()))
		return
	}

	l.logger.DebugContext(ctx, "movement recorded",
		slog.String("item_id", m.ItemID.String()),
		slog.String("type", string(m.Type)),
		slog.Int("qty", m.Qty))
}

// Recent lists the latest movements, optionally for one item.
func (l *Ledger) Recent(ctx context.Context, itemID *uuid.UUID) ([]domain.Movement, error) {
	movements, err := l.repo.List(ctx, ports.MovementQuery{ItemID: itemID, Limit: RecentMovementsLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}
