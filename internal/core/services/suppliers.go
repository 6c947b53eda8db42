// internal/core/services/suppliers.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// SupplierService manages suppliers and their purchase stats.
type SupplierService struct {
	suppliers ports.SupplierRepository
	purchases ports.PurchaseRepository
	invoices  ports.InvoiceRepository
	views     *ViewCache
	logger    *slog.Logger
}

var _ ports.SupplierService = (*SupplierService)(nil)

// NewSupplierService creates a new supplier service
func NewSupplierService(
	suppliers ports.SupplierRepository,
	purchases ports.PurchaseRepository,
	invoices ports.InvoiceRepository,
	views *ViewCache,
	logger *slog.Logger,
) *SupplierService {
	return &SupplierService{
		suppliers: suppliers,
		purchases: purchases,
		invoices:  invoices,
		views:     views,
		logger:    logger.With(slog.String("service", "supplier")),
	}
}

func (s *SupplierService) Create(ctx context.Context, sup *domain.Supplier) error {
	if err := sup.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if sup.UserID == "" {
		sup.UserID = tenant.Owner(ctx)
	}
	sup.PrepareForStorage()

	if err := s.suppliers.Save(ctx, sup); err != nil {
		return fmt.Errorf("failed to save supplier: %w", err)
	}
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "supplier created",
		slog.String("supplier_id", sup.ID.String()),
		slog.String("name", sup.Name))
	return nil
}

func (s *SupplierService) find(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	sup, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}
	if sup == nil {
		return nil, domain.NotFound("supplier", id)
	}
	return sup, nil
}

// Get returns a supplier with its stats.
func (s *SupplierService) Get(ctx context.Context, id uuid.UUID) (*ports.SupplierSummary, error) {
	sup, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	summaries, err := s.summarize(ctx, []domain.Supplier{*sup})
	if err != nil {
		return nil, err
	}
	return &summaries[0], nil
}

func (s *SupplierService) Update(ctx context.Context, id uuid.UUID, sup *domain.Supplier) error {
	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := sup.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sup.ID = id
	sup.UserID = existing.UserID
	sup.CreatedAt = existing.CreatedAt
	sup.PrepareForStorage()

	if err := s.suppliers.Update(ctx, sup); err != nil {
		return fmt.Errorf("failed to update supplier: %w", err)
	}
	s.views.Invalidate(ctx)
	return nil
}

// Delete removes a supplier. Purchases and invoices keep its name.
func (s *SupplierService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.suppliers.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete supplier: %w", err)
	}
	s.views.Invalidate(ctx)
	return nil
}

// List returns every supplier with its stats.
func (s *SupplierService) List(ctx context.Context) ([]ports.SupplierSummary, error) {
	suppliers, err := s.suppliers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return s.summarize(ctx, suppliers)
}

func (s *SupplierService) summarize(ctx context.Context, suppliers []domain.Supplier) ([]ports.SupplierSummary, error) {
	purchases, err := s.purchases.List(ctx, ports.PurchaseQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	invoices, err := s.invoices.List(ctx, ports.InvoiceQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return SupplierSummaries(suppliers, purchases, invoices), nil
}

// SupplierSummaries attaches stats to each supplier. Purchases are matched
// by supplier id, or by name for lines entered without one.
func SupplierSummaries(suppliers []domain.Supplier, purchases []domain.Purchase, invoices []domain.Invoice) []ports.SupplierSummary {
	out := make([]ports.SupplierSummary, 0, len(suppliers))
	for _, sup := range suppliers {
		stats := domain.SupplierStats{SupplierID: sup.ID, TotalTTC: decimal.Zero}
		for i := range purchases {
			p := &purchases[i]
			if p.SupplierID != nil && *p.SupplierID == sup.ID ||
				p.SupplierID == nil && p.SupplierName == sup.Name {
				stats.PurchaseCount++
				stats.TotalTTC = stats.TotalTTC.Add(p.TotalTTC())
			}
		}
		for i := range invoices {
			if invoices[i].SupplierID != nil && *invoices[i].SupplierID == sup.ID {
				stats.InvoiceCount++
			}
		}
		out = append(out, ports.SupplierSummary{Supplier: sup, Stats: stats})
	}
	return out
}
