// internal/core/ports/types.go
package ports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

// StockView selects the pre-filter applied before the other stock filters.
type StockView string

const (
	ViewAll       StockView = "all"
	ViewNew       StockView = "new"
	ViewUsed      StockView = "used"
	ViewWarehouse StockView = "warehouse"
	ViewScrap     StockView = "scrap"
)

// Channel filters stock by sales channel.
type Channel string

const (
	ChannelFBA       Channel = "fba"
	ChannelFBM       Channel = "fbm"
	ChannelVinted    Channel = "vinted"
	ChannelLeboncoin Channel = "leboncoin"
)

// SortKey orders the visible stock.
type SortKey string

const (
	SortDateDesc   SortKey = "date-desc"
	SortDateAsc    SortKey = "date-asc"
	SortQtyDesc    SortKey = "qty-desc"
	SortQtyAsc     SortKey = "qty-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortPriceAsc   SortKey = "price-asc"
	SortNameAsc    SortKey = "name-asc"
	SortMarginDesc SortKey = "margin-desc"
	SortMarginAsc  SortKey = "margin-asc"
	SortROIDesc    SortKey = "roi-desc"
	SortAgeDesc    SortKey = "age-desc"
	SortRiskDesc   SortKey = "risk-desc"
)

// StockFilter holds the optional, AND-combined stock filters.
type StockFilter struct {
	View     StockView
	Search   string
	Channel  Channel
	Category string
	Bucket   domain.Bucket
	DateFrom *time.Time
	DateTo   *time.Time
	Supplier string
	Status   domain.WorkflowStatus
	Sort     SortKey
}

// StockAggregates summarizes a visible stock list.
type StockAggregates struct {
	Count           int             `json:"count"`
	TotalQty        int             `json:"total_qty"`
	PurchaseValue   decimal.Decimal `json:"purchase_value"`
	ResaleValue     decimal.Decimal `json:"resale_value"`
	WarehouseValue  decimal.Decimal `json:"warehouse_value"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
}

// VisibleStock is the filtered, ordered stock list.
type VisibleStock struct {
	Items      []domain.Item   `json:"items"`
	Aggregates StockAggregates `json:"aggregates"`
}

// AlertLevel classifies an item against its low-stock threshold.
type AlertLevel string

const (
	AlertCritical     AlertLevel = "critical"
	AlertLow          AlertLevel = "low"
	AlertOK           AlertLevel = "ok"
	AlertUnconfigured AlertLevel = "unconfigured"
)

// StockAlert is one item below its threshold.
type StockAlert struct {
	Item  domain.Item `json:"item"`
	Level AlertLevel  `json:"level"`
	Gap   int         `json:"gap"`
}

// AlertReport is the low-stock classification of the in-stock items.
type AlertReport struct {
	Critical     int          `json:"critical"`
	Low          int          `json:"low"`
	OK           int          `json:"ok"`
	Unconfigured int          `json:"unconfigured"`
	Alerts       []StockAlert `json:"alerts"`
}

// SaleRequest records a sale of Qty units through Channel.
type SaleRequest struct {
	Qty     int
	Price   decimal.Decimal
	Channel string
	Date    time.Time
}

// TransferRequest moves units between two buckets of the same item.
type TransferRequest struct {
	From domain.Bucket
	To   domain.Bucket
	Qty  int
}

// DeductionResult reports the side effects of creating a used or scrap item.
type DeductionResult struct {
	Item      *domain.Item  `json:"item"`
	Affected  []domain.Item `json:"affected,omitempty"`
	Deducted  int           `json:"deducted"`
	Shortfall int           `json:"shortfall"`
}

// PurchaseHistory is what is known about an EAN before recording a new item.
type PurchaseHistory struct {
	Stock        *domain.Item     `json:"stock,omitempty"`
	LastPurchase *domain.Purchase `json:"last_purchase,omitempty"`
}

// ScanResult is the outcome of a count scan. Found is false for an EAN that
// is not part of the session; that is feedback, not an error.
type ScanResult struct {
	Found bool             `json:"found"`
	EAN   string           `json:"ean"`
	Row   *domain.CountRow `json:"row,omitempty"`
}

// CountValidation reports the adjustments applied by a count.
type CountValidation struct {
	Counted  int `json:"counted"`
	Adjusted int `json:"adjusted"`
}

// PurchaseFilter narrows the purchase list.
type PurchaseFilter struct {
	Search     string
	SupplierID *uuid.UUID
	Received   *bool
}

// PurchaseStats summarizes a purchase list.
type PurchaseStats struct {
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
	Pending int             `json:"pending"`
}

// PurchaseList is a filtered purchase list with its stats.
type PurchaseList struct {
	Purchases []domain.Purchase `json:"purchases"`
	Stats     PurchaseStats     `json:"stats"`
}

// SupplierSummary pairs a supplier with its purchase stats.
type SupplierSummary struct {
	domain.Supplier
	Stats domain.SupplierStats `json:"stats"`
}

// InvoiceView adds derived fields to an invoice.
type InvoiceView struct {
	domain.Invoice
	Overdue bool `json:"overdue"`
}

// InvoiceList is a filtered invoice list with its stats.
type InvoiceList struct {
	Invoices []InvoiceView       `json:"invoices"`
	Stats    domain.InvoiceStats `json:"stats"`
}

// Dashboard holds the headline figures of a tenant.
type Dashboard struct {
	InStockUnits   int               `json:"in_stock_units"`
	InStockItems   int               `json:"in_stock_items"`
	SoldCount      int               `json:"sold_count"`
	StockValue     decimal.Decimal   `json:"stock_value"`
	WarehouseValue decimal.Decimal   `json:"warehouse_value"`
	Revenue        decimal.Decimal   `json:"revenue"`
	Profit         decimal.Decimal   `json:"profit"`
	AverageMargin  float64           `json:"average_margin"`
	WarehouseUnits int               `json:"warehouse_units"`
	FBAUnits       int               `json:"fba_units"`
	FBMUnits       int               `json:"fbm_units"`
	ScrapUnits     int               `json:"scrap_units"`
	Suppliers      int               `json:"suppliers"`
	PendingOrders  int               `json:"pending_orders"`
	UnpaidInvoices int               `json:"unpaid_invoices"`
	CriticalAlerts int               `json:"critical_alerts"`
	LowAlerts      int               `json:"low_alerts"`
	Recent         []domain.Movement `json:"recent_movements"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// SearchResultType tells which collection a search hit comes from.
type SearchResultType string

const (
	ResultStock    SearchResultType = "stock"
	ResultPurchase SearchResultType = "purchase"
	ResultSupplier SearchResultType = "supplier"
)

// SearchResult is one global search hit.
type SearchResult struct {
	Type  SearchResultType `json:"type"`
	ID    uuid.UUID        `json:"id"`
	Title string           `json:"title"`
	Sub   string           `json:"sub,omitempty"`
}

// CatalogRow is one product line read from a wholesaler catalog.
type CatalogRow struct {
	EAN      string          `json:"ean"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Qty      int             `json:"qty"`
	Category string          `json:"category,omitempty"`
}

// CatalogColumns records which header index feeds each field; -1 when absent.
type CatalogColumns struct {
	EAN      int `json:"ean"`
	Name     int `json:"name"`
	Price    int `json:"price"`
	Qty      int `json:"qty"`
	Category int `json:"category"`
}

// CatalogPreview is a parsed catalog awaiting confirmation.
type CatalogPreview struct {
	Headers []string       `json:"headers"`
	Columns CatalogColumns `json:"columns"`
	Rows    []CatalogRow   `json:"rows"`
}

// RestoreReport counts the rows written by a restore.
type RestoreReport struct {
	Suppliers int `json:"suppliers"`
	Purchases int `json:"purchases"`
	Items     int `json:"items"`
	Invoices  int `json:"invoices"`
}
