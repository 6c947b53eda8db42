// internal/core/services/count.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// CountService runs physical counts. At most one session exists per tenant;
// it lives in the count store until validated or cancelled.
type CountService struct {
	items  ports.ItemRepository
	store  ports.CountStore
	ledger *Ledger
	views  *ViewCache
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.CountService = (*CountService)(nil)

// NewCountService creates a new count service
func NewCountService(
	items ports.ItemRepository,
	store ports.CountStore,
	ledger *Ledger,
	views *ViewCache,
	logger *slog.Logger,
) *CountService {
	return &CountService{
		items:  items,
		store:  store,
		ledger: ledger,
		views:  views,
		logger: logger.With(slog.String("service", "count")),
		now:    time.Now,
	}
}

// Start snapshots the countable stock. An existing session is only replaced
// when overwrite is set.
func (s *CountService) Start(ctx context.Context, overwrite bool) (*domain.CountSession, error) {
	owner := tenant.Key(ctx)

	existing, err := s.store.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to load count session: %w", err)
	}
	if existing != nil && !overwrite {
		return nil, domain.ErrCountInProgress
	}

	items, err := s.items.List(ctx, ports.ItemQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	session := domain.NewCountSession(tenant.Owner(ctx), items, s.now())
	if err := s.store.Save(ctx, owner, session); err != nil {
		return nil, fmt.Errorf("failed to save count session: %w", err)
	}

	s.logger.InfoContext(ctx, "count session started",
		slog.Int("rows", len(session.Rows)),
		slog.Bool("replaced", existing != nil))

	return session, nil
}

// Current returns the active session or ErrNoCountSession.
func (s *CountService) Current(ctx context.Context) (*domain.CountSession, error) {
	session, err := s.store.Load(ctx, tenant.Key(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load count session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrNoCountSession
	}
	return session, nil
}

// RecordCount enters the counted value of one item; an empty value clears it.
func (s *CountService) RecordCount(ctx context.Context, itemID uuid.UUID, value string) (*domain.CountRow, error) {
	session, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	row, err := session.Record(itemID, value)
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, tenant.Key(ctx), session); err != nil {
		return nil, fmt.Errorf("failed to save count session: %w", err)
	}
	return row, nil
}

// ScanIncrement adds one unit to the first row carrying ean. An unknown EAN
// is reported through ScanResult.Found.
func (s *CountService) ScanIncrement(ctx context.Context, ean string) (*ports.ScanResult, error) {
	session, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	row, found := session.Scan(ean)
	if !found {
		s.logger.WarnContext(ctx, "scanned ean not in count session", slog.String("ean", ean))
		return &ports.ScanResult{Found: false, EAN: ean}, nil
	}

	if err := s.store.Save(ctx, tenant.Key(ctx), session); err != nil {
		return nil, fmt.Errorf("failed to save count session: %w", err)
	}
	return &ports.ScanResult{Found: true, EAN: ean, Row: row}, nil
}

// Validate applies every non-zero variance to the warehouse bucket, records
// one adjustment per variance and ends the session.
func (s *CountService) Validate(ctx context.Context) (*ports.CountValidation, error) {
	session, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	stats := session.Stats()
	if stats.Counted == 0 {
		return nil, domain.ErrNothingCounted
	}

	result := &ports.CountValidation{Counted: stats.Counted}
	for _, row := range session.Filter(domain.CountFilterVariances) {
		item, err := s.items.FindByID(ctx, row.ItemID)
		if err != nil {
			return result, fmt.Errorf("failed to load item %s: %w", row.ItemID, err)
		}
		if item == nil {
			// deleted while the count was running
			continue
		}

		variance := *row.Variance
		item.SetBucketQty(domain.BucketWarehouse, item.QtyWarehouse+variance)
		item.Sold = item.Qty <= 0
		item.PrepareForStorage()

		if err := s.items.Update(ctx, item); err != nil {
			return result, fmt.Errorf("failed to adjust item %s: %w", item.ID, err)
		}

		s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementAdjustment, abs(variance),
			domain.PlaceCount, string(domain.BucketWarehouse),
			fmt.Sprintf("Count: %+d (theoretical: %d, counted: %d)", variance, row.Theoretical, *row.Counted)))
		result.Adjusted++
	}

	if err := s.store.Delete(ctx, tenant.Key(ctx)); err != nil {
		return result, fmt.Errorf("failed to close count session: %w", err)
	}
	if result.Adjusted > 0 {
		s.views.Invalidate(ctx)
	}

	s.logger.InfoContext(ctx, "count session validated",
		slog.Int("counted", result.Counted),
		slog.Int("adjusted", result.Adjusted))

	return result, nil
}

// Cancel discards the active session.
func (s *CountService) Cancel(ctx context.Context) error {
	if _, err := s.Current(ctx); err != nil {
		if errors.Is(err, domain.ErrNoCountSession) {
			return nil
		}
		return err
	}
	if err := s.store.Delete(ctx, tenant.Key(ctx)); err != nil {
		return fmt.Errorf("failed to cancel count session: %w", err)
	}
	s.logger.InfoContext(ctx, "count session cancelled")
	return nil
}
