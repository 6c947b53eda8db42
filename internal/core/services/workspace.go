// internal/core/services/workspace.go
package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// Snapshot holds every collection of a tenant at one point in time.
type Snapshot struct {
	Items     []domain.Item
	Purchases []domain.Purchase
	Suppliers []domain.Supplier
	Invoices  []domain.Invoice
	Movements []domain.Movement
}

// Workspace loads snapshots. The collections are fetched concurrently; one
// that fails to load is logged and left empty so the others still render.
type Workspace struct {
	items     ports.ItemRepository
	purchases ports.PurchaseRepository
	suppliers ports.SupplierRepository
	invoices  ports.InvoiceRepository
	movements ports.MovementRepository
	logger    *slog.Logger
}

// NewWorkspace creates a snapshot loader
func NewWorkspace(
	items ports.ItemRepository,
	purchases ports.PurchaseRepository,
	suppliers ports.SupplierRepository,
	invoices ports.InvoiceRepository,
	movements ports.MovementRepository,
	logger *slog.Logger,
) *Workspace {
	return &Workspace{
		items:     items,
		purchases: purchases,
		suppliers: suppliers,
		invoices:  invoices,
		movements: movements,
		logger:    logger.With(slog.String("component", "workspace")),
	}
}

// Load fetches a snapshot. Sold items are included.
func (w *Workspace) Load(ctx context.Context) *Snapshot {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap.Items = loadOrEmpty(gctx, w.logger, "items", func() ([]domain.Item, error) {
			return w.items.List(gctx, ports.ItemQuery{IncludeSold: true})
		})
		return nil
	})
	g.Go(func() error {
		snap.Purchases = loadOrEmpty(gctx, w.logger, "purchases", func() ([]domain.Purchase, error) {
			return w.purchases.List(gctx, ports.PurchaseQuery{})
		})
		return nil
	})
	g.Go(func() error {
		snap.Suppliers = loadOrEmpty(gctx, w.logger, "suppliers", func() ([]domain.Supplier, error) {
			return w.suppliers.List(gctx)
		})
		return nil
	})
	g.Go(func() error {
		snap.Invoices = loadOrEmpty(gctx, w.logger, "invoices", func() ([]domain.Invoice, error) {
			return w.invoices.List(gctx, ports.InvoiceQuery{})
		})
		return nil
	})
	g.Go(func() error {
		snap.Movements = loadOrEmpty(gctx, w.logger, "movements", func() ([]domain.Movement, error) {
			return w.movements.List(gctx, ports.MovementQuery{Limit: RecentMovementsLimit})
		})
		return nil
	})

	// every goroutine swallows its error
	_ = g.Wait()
	return &snap
}

func loadOrEmpty[T any](ctx context.Context, logger *slog.Logger, name string, fetch func() ([]T, error)) []T {
	list, err := fetch()
	if err != nil {
		logger.ErrorContext(ctx, "failed to load collection",
			slog.String("collection", name),
			slog.String("error", err.Error()))
		return []T{}
	}
	if list == nil {
		return []T{}
	}
	return list
}
