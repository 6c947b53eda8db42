// internal/core/ports/repositories.go
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

// Repositories are tenant scoped: implementations restrict reads and writes
// to the owner returned by tenant.Filter and stamp new rows with tenant.Owner.
// FindByID returns nil, nil when the row does not exist.

// ItemQuery narrows ItemRepository.List.
type ItemQuery struct {
	EAN         string
	IncludeSold bool
	Limit       int
}

// ItemRepository is the persistence port for stock items.
type ItemRepository interface {
	Save(ctx context.Context, item *domain.Item) error
	SaveBatch(ctx context.Context, items []domain.Item) error
	Update(ctx context.Context, item *domain.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	// FindNewStockByEAN returns unsold new-state items with the given EAN in
	// a stable order (date added, then id).
	FindNewStockByEAN(ctx context.Context, ean string) ([]domain.Item, error)
	List(ctx context.Context, q ItemQuery) ([]domain.Item, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// PurchaseQuery narrows PurchaseRepository.List.
type PurchaseQuery struct {
	Search     string
	EAN        string
	SupplierID *uuid.UUID
	Received   *bool
	Limit      int
}

// PurchaseRepository is the persistence port for purchase lines.
type PurchaseRepository interface {
	Save(ctx context.Context, p *domain.Purchase) error
	SaveBatch(ctx context.Context, purchases []domain.Purchase) error
	Update(ctx context.Context, p *domain.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error)
	List(ctx context.Context, q PurchaseQuery) ([]domain.Purchase, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// SupplierRepository is the persistence port for suppliers.
type SupplierRepository interface {
	Save(ctx context.Context, s *domain.Supplier) error
	SaveBatch(ctx context.Context, suppliers []domain.Supplier) error
	Update(ctx context.Context, s *domain.Supplier) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Supplier, error)
	List(ctx context.Context) ([]domain.Supplier, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// InvoiceQuery narrows InvoiceRepository.List.
type InvoiceQuery struct {
	SupplierID *uuid.UUID
	UnpaidOnly bool
}

// InvoiceRepository is the persistence port for supplier invoices.
type InvoiceRepository interface {
	Save(ctx context.Context, inv *domain.Invoice) error
	SaveBatch(ctx context.Context, invoices []domain.Invoice) error
	Update(ctx context.Context, inv *domain.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	List(ctx context.Context, q InvoiceQuery) ([]domain.Invoice, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// MovementQuery narrows MovementRepository.List. Results are newest first.
type MovementQuery struct {
	ItemID *uuid.UUID
	Limit  int
}

// MovementRepository is append-only.
type MovementRepository interface {
	Save(ctx context.Context, movement *domain.Movement) error
	List(ctx context.Context, q MovementQuery) ([]domain.Movement, error)
}
