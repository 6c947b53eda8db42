// internal/core/services/invoices.go
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

// InvoiceService manages supplier invoices.
type InvoiceService struct {
	invoices  ports.InvoiceRepository
	suppliers ports.SupplierRepository
	views     *ViewCache
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.InvoiceService = (*InvoiceService)(nil)

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoices ports.InvoiceRepository,
	suppliers ports.SupplierRepository,
	views *ViewCache,
	logger *slog.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices:  invoices,
		suppliers: suppliers,
		views:     views,
		logger:    logger.With(slog.String("service", "invoice")),
		now:       time.Now,
	}
}

func (s *InvoiceService) prepare(ctx context.Context, inv *domain.Invoice) error {
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	switch {
	case inv.AmountTTC.IsZero() && inv.AmountHT.IsPositive():
		inv.AmountTTC = domain.ToTTC(inv.AmountHT)
	case inv.AmountHT.IsZero() && inv.AmountTTC.IsPositive():
		inv.AmountHT = domain.ToHT(inv.AmountTTC)
	}
	if inv.SupplierID != nil && inv.SupplierName == "" {
		sup, err := s.suppliers.FindByID(ctx, *inv.SupplierID)
		if err != nil {
			return fmt.Errorf("failed to load supplier: %w", err)
		}
		if sup == nil {
			return domain.Invalid("supplier_id", "unknown supplier %s", *inv.SupplierID)
		}
		inv.SupplierName = sup.Name
	}
	return nil
}

func (s *InvoiceService) Create(ctx context.Context, inv *domain.Invoice) error {
	if err := s.prepare(ctx, inv); err != nil {
		return err
	}
	if inv.UserID == "" {
		inv.UserID = tenant.Owner(ctx)
	}
	if inv.Paid && inv.PaymentDate == nil {
		inv.MarkPaid(s.now())
	}
	inv.PrepareForStorage()

	if err := s.invoices.Save(ctx, inv); err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("number", inv.Number),
		slog.String("amount_ttc", inv.AmountTTC.StringFixed(2)))
	return nil
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if inv == nil {
		return nil, domain.NotFound("invoice", id)
	}
	return inv, nil
}

func (s *InvoiceService) Update(ctx context.Context, id uuid.UUID, inv *domain.Invoice) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.SupplierID == nil || existing.SupplierID == nil || *inv.SupplierID != *existing.SupplierID {
		inv.SupplierName = ""
	}
	if err := s.prepare(ctx, inv); err != nil {
		return err
	}

	inv.ID = id
	inv.UserID = existing.UserID
	inv.CreatedAt = existing.CreatedAt
	if !inv.Paid {
		inv.PaymentDate = nil
	} else if inv.PaymentDate == nil {
		inv.MarkPaid(s.now())
	}
	inv.PrepareForStorage()

	if err := s.invoices.Update(ctx, inv); err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	s.views.Invalidate(ctx)
	return nil
}

func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.invoices.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	s.views.Invalidate(ctx)
	return nil
}

// MarkPaid flags an invoice as paid today.
func (s *InvoiceService) MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.MarkPaid(s.now())
	inv.PrepareForStorage()

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "invoice paid", slog.String("invoice_id", id.String()))
	return inv, nil
}

// List returns the filtered invoices with their overdue flag and stats.
func (s *InvoiceService) List(ctx context.Context, q ports.InvoiceQuery) (*ports.InvoiceList, error) {
	invoices, err := s.invoices.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	now := s.now()
	views := make([]ports.InvoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, ports.InvoiceView{Invoice: invoices[i], Overdue: invoices[i].Overdue(now)})
	}
	return &ports.InvoiceList{
		Invoices: views,
		Stats:    domain.SummarizeInvoices(invoices, now),
	}, nil
}
