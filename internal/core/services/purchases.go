// internal/core/services/purchases.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// PurchaseService manages purchase lines. Marking a line received promotes
// it into new stock.
type PurchaseService struct {
	purchases ports.PurchaseRepository
	suppliers ports.SupplierRepository
	items     ports.ItemRepository
	ledger    *Ledger
	views     *ViewCache
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.PurchaseService = (*PurchaseService)(nil)

// NewPurchaseService creates a new purchase service
func NewPurchaseService(
	purchases ports.PurchaseRepository,
	suppliers ports.SupplierRepository,
	items ports.ItemRepository,
	ledger *Ledger,
	views *ViewCache,
	logger *slog.Logger,
) *PurchaseService {
	return &PurchaseService{
		purchases: purchases,
		suppliers: suppliers,
		items:     items,
		ledger:    ledger,
		views:     views,
		logger:    logger.With(slog.String("service", "purchase")),
		now:       time.Now,
	}
}

// Create records a purchase line.
func (s *PurchaseService) Create(ctx context.Context, p *domain.Purchase) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := s.resolveSupplier(ctx, p); err != nil {
		return err
	}
	if p.UserID == "" {
		p.UserID = tenant.Owner(ctx)
	}
	p.PrepareForStorage()

	if err := s.purchases.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save purchase: %w", err)
	}
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "purchase created",
		slog.String("purchase_id", p.ID.String()),
		slog.String("ean", p.EAN),
		slog.Int("qty", p.Qty))
	return nil
}

// resolveSupplier copies the supplier name onto the line; the name is
// denormalized so that later supplier edits do not rewrite history.
func (s *PurchaseService) resolveSupplier(ctx context.Context, p *domain.Purchase) error {
	if p.SupplierID == nil || p.SupplierName != "" {
		return nil
	}
	sup, err := s.suppliers.FindByID(ctx, *p.SupplierID)
	if err != nil {
		return fmt.Errorf("failed to load supplier: %w", err)
	}
	if sup == nil {
		return domain.Invalid("supplier_id", "unknown supplier %s", *p.SupplierID)
	}
	p.SupplierName = sup.Name
	return nil
}

// Get retrieves a purchase by ID
func (s *PurchaseService) Get(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	p, err := s.purchases.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	if p == nil {
		return nil, domain.NotFound("purchase", id)
	}
	return p, nil
}

// Update replaces a purchase line. The received flag only changes through
// SetReceived.
func (s *PurchaseService) Update(ctx context.Context, id uuid.UUID, p *domain.Purchase) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p.ID = id
	p.UserID = existing.UserID
	p.CreatedAt = existing.CreatedAt
	p.Received = existing.Received
	if p.SupplierID == nil || (existing.SupplierID != nil && *p.SupplierID != *existing.SupplierID) {
		p.SupplierName = ""
	}
	if p.SupplierID != nil && p.SupplierName == "" {
		if err := s.resolveSupplier(ctx, p); err != nil {
			return err
		}
	}
	p.PrepareForStorage()

	if err := s.purchases.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	s.views.Invalidate(ctx)
	return nil
}

// Delete removes a purchase line. Stock already promoted from it stays.
func (s *PurchaseService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.purchases.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete purchase: %w", err)
	}
	s.views.Invalidate(ctx)
	return nil
}

// List returns the filtered purchase lines and their stats.
func (s *PurchaseService) List(ctx context.Context, filter ports.PurchaseFilter) (*ports.PurchaseList, error) {
	purchases, err := s.purchases.List(ctx, ports.PurchaseQuery{
		Search:     filter.Search,
		SupplierID: filter.SupplierID,
		Received:   filter.Received,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	return &ports.PurchaseList{
		Purchases: purchases,
		Stats:     SummarizePurchases(purchases),
	}, nil
}

// SummarizePurchases computes count, amount and pending count.
func SummarizePurchases(purchases []domain.Purchase) ports.PurchaseStats {
	stats := ports.PurchaseStats{Count: len(purchases), Amount: decimal.Zero}
	for i := range purchases {
		stats.Amount = stats.Amount.Add(purchases[i].TotalTTC())
		if !purchases[i].Received {
			stats.Pending++
		}
	}
	return stats
}

// SetReceived flips the received flag. Receiving creates the matching new
// stock item and returns it; reverting leaves that item in place.
func (s *PurchaseService) SetReceived(ctx context.Context, id uuid.UUID, received bool) (*domain.Item, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Received == received {
		return nil, nil
	}

	p.Received = received
	p.PrepareForStorage()
	if err := s.purchases.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update purchase: %w", err)
	}
	s.views.Invalidate(ctx)

	if !received {
		s.logger.InfoContext(ctx, "purchase reception reverted", slog.String("purchase_id", id.String()))
		return nil, nil
	}

	item := p.ToItem(s.now())
	if item.UserID == "" {
		item.UserID = tenant.Owner(ctx)
	}
	item.PrepareForStorage()

	if err := s.items.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to promote purchase: %w", err)
	}

	m := domain.NewMovement(item, domain.MovementReception, item.Qty,
		domain.PlacePurchase, string(domain.BucketWarehouse), "Purchase reception")
	m.Notes = p.SupplierName
	s.ledger.Record(ctx, m)

	s.logger.InfoContext(ctx, "purchase received",
		slog.String("purchase_id", id.String()),
		slog.String("item_id", item.ID.String()),
		slog.Int("qty", item.Qty))

	return item, nil
}
