// internal/core/domain/item.go
package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockState is the condition grade that governs eligibility rules.
type StockState string

// Stock state constants
const (
	StateNew   StockState = "new"
	StateUsed  StockState = "used"
	StateScrap StockState = "scrap"
)

// Valid reports whether s is a known stock state.
func (s StockState) Valid() bool {
	switch s {
	case StateNew, StateUsed, StateScrap:
		return true
	}
	return false
}

// WorkflowStatus is the processing stage of an item.
type WorkflowStatus string

// Workflow status constants, in workflow order
const (
	StatusReceived  WorkflowStatus = "received"
	StatusToInspect WorkflowStatus = "to_inspect"
	StatusToLabel   WorkflowStatus = "to_label"
	StatusToShip    WorkflowStatus = "to_ship"
	StatusShipped   WorkflowStatus = "shipped"
	StatusDone      WorkflowStatus = "done"
)

// WorkflowStatuses lists every status in workflow order.
var WorkflowStatuses = []WorkflowStatus{
	StatusReceived, StatusToInspect, StatusToLabel, StatusToShip, StatusShipped, StatusDone,
}

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	for _, st := range WorkflowStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Bucket is one of the three quantity locations of an item.
type Bucket string

// Bucket constants
const (
	BucketWarehouse Bucket = "warehouse"
	BucketFBA       Bucket = "fba"
	BucketFBM       Bucket = "fbm"
)

// ParseBucket maps a user supplied location name to a Bucket.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case BucketWarehouse, BucketFBA, BucketFBM:
		return b, nil
	}
	return "", Invalid("location", "unknown location %q (warehouse, fba, fbm)", s)
}

// MetricUndefined is the value of MarginPercent and ROI when the prices
// needed to compute them are missing. It ranks below any real value.
const MetricUndefined = -999.0

// Item is a tracked physical product line. EAN is not unique: the same code
// recurs across batches and stock states.
type Item struct {
	ID                uuid.UUID        `json:"id"`
	UserID            string           `json:"user_id,omitempty"`
	EAN               string           `json:"ean"`
	Name              string           `json:"name"`
	Category          string           `json:"category,omitempty"`
	Condition         string           `json:"condition,omitempty"`
	StockState        StockState       `json:"stock_state"`
	QtyWarehouse      int              `json:"qty_warehouse"`
	QtyFBA            int              `json:"qty_fba"`
	QtyFBM            int              `json:"qty_fbm"`
	Qty               int              `json:"qty"`
	PurchasePrice     decimal.Decimal  `json:"purchase_price"`
	ResalePrice       decimal.Decimal  `json:"resale_price"`
	AmazonFBA         bool             `json:"amazon_fba"`
	AmazonFBM         bool             `json:"amazon_fbm"`
	Vinted            bool             `json:"vinted"`
	Leboncoin         bool             `json:"leboncoin"`
	Sold              bool             `json:"sold"`
	NonSellable       bool             `json:"non_sellable"`
	Location          string           `json:"location,omitempty"`
	LowStockThreshold int              `json:"low_stock_threshold"`
	Status            WorkflowStatus   `json:"status"`
	DateAdded         time.Time        `json:"date_added"`
	Notes             string           `json:"notes,omitempty"`
	Photos            []string         `json:"photos,omitempty"`
	SalePrice         *decimal.Decimal `json:"sale_price,omitempty"`
	SaleDate          *time.Time       `json:"sale_date,omitempty"`
	SalePlatform      string           `json:"sale_platform,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Validate checks user supplied fields and applies defaults.
func (i *Item) Validate() error {
	i.EAN = strings.TrimSpace(i.EAN)
	i.Name = strings.TrimSpace(i.Name)
	if i.EAN == "" || i.Name == "" {
		return Invalid("", "ean and name are required")
	}
	if i.QtyWarehouse < 0 || i.QtyFBA < 0 || i.QtyFBM < 0 {
		return Invalid("qty", "quantities cannot be negative")
	}
	if i.QtyWarehouse+i.QtyFBA+i.QtyFBM <= 0 {
		return Invalid("qty", "total quantity must be > 0")
	}
	if i.PurchasePrice.IsNegative() || i.ResalePrice.IsNegative() {
		return Invalid("price", "prices cannot be negative")
	}
	if i.LowStockThreshold < 0 {
		return Invalid("low_stock_threshold", "threshold cannot be negative")
	}
	if i.StockState == "" {
		i.StockState = StateNew
	}
	if !i.StockState.Valid() {
		return Invalid("stock_state", "unknown stock state %q", i.StockState)
	}
	if i.Status == "" {
		i.Status = StatusReceived
	}
	if !i.Status.Valid() {
		return Invalid("status", "unknown status %q", i.Status)
	}
	i.NonSellable = i.StockState == StateScrap
	i.RecomputeTotal()
	i.SyncChannelFlags()
	return nil
}

// RecomputeTotal sets Qty to the sum of the three buckets.
func (i *Item) RecomputeTotal() {
	i.Qty = i.QtyWarehouse + i.QtyFBA + i.QtyFBM
}

// SyncChannelFlags forces the fulfillment flags on when their bucket holds
// stock. It never clears them.
func (i *Item) SyncChannelFlags() {
	if i.QtyFBA > 0 {
		i.AmazonFBA = true
	}
	if i.QtyFBM > 0 {
		i.AmazonFBM = true
	}
}

// SetBuckets replaces the three quantities, clamping at zero, and keeps the
// derived total and flags in step.
func (i *Item) SetBuckets(warehouse, fba, fbm int) {
	i.QtyWarehouse = max(0, warehouse)
	i.QtyFBA = max(0, fba)
	i.QtyFBM = max(0, fbm)
	i.RecomputeTotal()
	i.SyncChannelFlags()
}

// BucketQty returns the quantity held in b.
func (i *Item) BucketQty(b Bucket) int {
	switch b {
	case BucketFBA:
		return i.QtyFBA
	case BucketFBM:
		return i.QtyFBM
	default:
		return i.QtyWarehouse
	}
}

// SetBucketQty replaces one bucket and recomputes the derived fields.
func (i *Item) SetBucketQty(b Bucket, n int) {
	w, fba, fbm := i.QtyWarehouse, i.QtyFBA, i.QtyFBM
	switch b {
	case BucketFBA:
		fba = n
	case BucketFBM:
		fbm = n
	default:
		w = n
	}
	i.SetBuckets(w, fba, fbm)
}

// Deduct removes up to n units taking from warehouse, then FBM, then FBA.
// It returns the number of units actually removed.
func (i *Item) Deduct(n int) int {
	remaining := n
	take := func(q *int) {
		d := min(remaining, *q)
		*q -= d
		remaining -= d
	}
	w, fba, fbm := i.QtyWarehouse, i.QtyFBA, i.QtyFBM
	take(&w)
	take(&fbm)
	take(&fba)
	i.SetBuckets(w, fba, fbm)
	return n - remaining
}

// InStock reports whether the item counts as sellable stock.
func (i *Item) InStock() bool {
	return !i.Sold && !i.NonSellable && i.StockState != StateScrap
}

// Countable reports whether the item takes part in counts and alerts.
func (i *Item) Countable() bool {
	return i.InStock()
}

// MarginPercent returns (resale - purchase) / purchase * 100, or
// MetricUndefined unless both prices are set.
func (i *Item) MarginPercent() float64 {
	if !i.PurchasePrice.IsPositive() || !i.ResalePrice.IsPositive() {
		return MetricUndefined
	}
	return i.ResalePrice.Sub(i.PurchasePrice).
		Div(i.PurchasePrice).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// ROI returns (resale - purchase) / purchase as a ratio, or MetricUndefined
// when there is no purchase price.
func (i *Item) ROI() float64 {
	if !i.PurchasePrice.IsPositive() {
		return MetricUndefined
	}
	return i.ResalePrice.Sub(i.PurchasePrice).Div(i.PurchasePrice).InexactFloat64()
}

// AgeDays returns the whole days elapsed since the item was added.
func (i *Item) AgeDays(now time.Time) int {
	if i.DateAdded.IsZero() {
		return 0
	}
	return int(math.Floor(now.Sub(i.DateAdded).Hours() / 24))
}

// RiskScore weights age by two when the margin is thin.
func (i *Item) RiskScore(now time.Time) float64 {
	age := float64(i.AgeDays(now))
	if i.MarginPercent() < 10 {
		return age * 2
	}
	return age
}

// Normalize applies load-time defaults so the rest of the core works on
// fully typed values.
func (i *Item) Normalize() {
	if i.StockState == "" {
		i.StockState = StateNew
	}
	if i.Status == "" {
		i.Status = StatusReceived
	}
	if i.StockState == StateScrap {
		i.NonSellable = true
	}
	i.SetBuckets(i.QtyWarehouse, i.QtyFBA, i.QtyFBM)
}

// AppendNote adds text to the notes.
func (i *Item) AppendNote(text string) {
	i.Notes += text
}

// PrepareForStorage prepares the item for database storage
func (i *Item) PrepareForStorage() {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}

	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
	if i.DateAdded.IsZero() {
		i.DateAdded = now
	}
	i.RecomputeTotal()
}
