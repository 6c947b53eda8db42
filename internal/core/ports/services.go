// internal/core/ports/services.go
package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

// StockService is the command/query port of the stock engine.
type StockService interface {
	CreateItem(ctx context.Context, item *domain.Item) (*DeductionResult, error)
	GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, item *domain.Item) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	VisibleStock(ctx context.Context, filter StockFilter) (*VisibleStock, error)
	Alerts(ctx context.Context) (*AlertReport, error)
	Sell(ctx context.Context, id uuid.UUID, req SaleRequest) (*domain.Item, error)
	Transfer(ctx context.Context, id uuid.UUID, req TransferRequest) (*domain.Item, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status domain.WorkflowStatus) (*domain.Item, error)
	ChangeLocation(ctx context.Context, id uuid.UUID, location string) (*domain.Item, error)
	SetThreshold(ctx context.Context, id uuid.UUID, threshold int) (*domain.Item, error)
	BulkThreshold(ctx context.Context, threshold int) (int, error)
	PurchaseHistory(ctx context.Context, ean string) (*PurchaseHistory, error)
	ListingText(ctx context.Context, id uuid.UUID, platform string) (string, error)
	Movements(ctx context.Context, itemID *uuid.UUID) ([]domain.Movement, error)
}

// CountService drives the physical count session.
type CountService interface {
	Start(ctx context.Context, overwrite bool) (*domain.CountSession, error)
	Current(ctx context.Context) (*domain.CountSession, error)
	RecordCount(ctx context.Context, itemID uuid.UUID, value string) (*domain.CountRow, error)
	ScanIncrement(ctx context.Context, ean string) (*ScanResult, error)
	Validate(ctx context.Context) (*CountValidation, error)
	Cancel(ctx context.Context) error
}

// PurchaseService manages purchase lines and their promotion to stock.
type PurchaseService interface {
	Create(ctx context.Context, p *domain.Purchase) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Purchase, error)
	Update(ctx context.Context, id uuid.UUID, p *domain.Purchase) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter PurchaseFilter) (*PurchaseList, error)
	SetReceived(ctx context.Context, id uuid.UUID, received bool) (*domain.Item, error)
}

// SupplierService manages suppliers.
type SupplierService interface {
	Create(ctx context.Context, s *domain.Supplier) error
	Get(ctx context.Context, id uuid.UUID) (*SupplierSummary, error)
	Update(ctx context.Context, id uuid.UUID, s *domain.Supplier) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]SupplierSummary, error)
}

// InvoiceService manages supplier invoices.
type InvoiceService interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	Update(ctx context.Context, id uuid.UUID, inv *domain.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkPaid(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	List(ctx context.Context, q InvoiceQuery) (*InvoiceList, error)
}

// DashboardService computes the headline figures.
type DashboardService interface {
	Get(ctx context.Context) (*Dashboard, error)
}

// SearchService runs the global search.
type SearchService interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// BackupService exports and restores a tenant's records.
type BackupService interface {
	Export(ctx context.Context) (*domain.Backup, error)
	Archive(ctx context.Context) (string, error)
	Restore(ctx context.Context, b *domain.Backup) (*RestoreReport, error)
	RestoreArchive(ctx context.Context, key string) (*RestoreReport, error)
}

// CatalogService imports wholesaler catalogs.
type CatalogService interface {
	Parse(filename string, r io.Reader) (*CatalogPreview, error)
	Confirm(ctx context.Context, rows []CatalogRow, bucket domain.Bucket) (int, error)
}
