// internal/core/services/stock.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// StockService handles item commands: creation with state deduction, sales,
// transfers and workflow updates. Every quantity change is explained by one
// ledger entry.
type StockService struct {
	items     ports.ItemRepository
	purchases ports.PurchaseRepository
	ledger    *Ledger
	views     *ViewCache
	logger    *slog.Logger
	now       func() time.Time
}

// Statically assert that *StockService implements the StockService interface.
var _ ports.StockService = (*StockService)(nil)

// NewStockService creates a new stock service
func NewStockService(
	items ports.ItemRepository,
	purchases ports.PurchaseRepository,
	ledger *Ledger,
	views *ViewCache,
	logger *slog.Logger,
) *StockService {
	return &StockService{
		items:     items,
		purchases: purchases,
		ledger:    ledger,
		views:     views,
		logger:    logger.With(slog.String("service", "stock")),
		now:       time.Now,
	}
}

// CreateItem records a new item. A used or scrap item first takes its
// quantity out of the unsold new stock carrying the same EAN.
func (s *StockService) CreateItem(ctx context.Context, item *domain.Item) (*ports.DeductionResult, error) {
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if item.UserID == "" {
		item.UserID = tenant.Owner(ctx)
	}
	item.PrepareForStorage()

	result := &ports.DeductionResult{Item: item}
	if item.StockState != domain.StateNew {
		if err := s.deductNewStock(ctx, item, result); err != nil {
			return nil, err
		}
	}

	if err := s.items.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}

	s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementEntry, item.Qty, "", string(item.StockState), "Manual entry"))
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "item created",
		slog.String("item_id", item.ID.String()),
		slog.String("ean", item.EAN),
		slog.String("stock_state", string(item.StockState)),
		slog.Int("qty", item.Qty),
		slog.Int("deducted", result.Deducted))

	return result, nil
}

func (s *StockService) deductNewStock(ctx context.Context, item *domain.Item, result *ports.DeductionResult) error {
	candidates, err := s.items.FindNewStockByEAN(ctx, item.EAN)
	if err != nil {
		return fmt.Errorf("failed to load new stock for %s: %w", item.EAN, err)
	}

	toDeduct := item.Qty
	for i := range candidates {
		if toDeduct <= 0 {
			break
		}
		c := &candidates[i]

		var moved int
		if total := c.QtyWarehouse + c.QtyFBA + c.QtyFBM; total <= toDeduct {
			c.SetBuckets(0, 0, 0)
			c.Sold = true
			c.AppendNote(fmt.Sprintf(" [transferred to %s]", item.StockState))
			moved = total
			toDeduct -= total
		} else {
			moved = c.Deduct(toDeduct)
			toDeduct = 0
		}

		if err := s.items.Update(ctx, c); err != nil {
			return fmt.Errorf("failed to deduct from item %s: %w", c.ID, err)
		}
		if moved > 0 {
			s.ledger.Record(ctx, domain.NewMovement(c, domain.MovementTransfer, moved,
				string(domain.StateNew), string(item.StockState), "State change"))
		}

		result.Affected = append(result.Affected, *c)
		result.Deducted += moved
	}

	result.Shortfall = toDeduct
	if toDeduct > 0 && len(candidates) > 0 {
		s.logger.WarnContext(ctx, "deduction exceeds available new stock",
			slog.String("ean", item.EAN),
			slog.Int("requested", item.Qty),
			slog.Int("shortfall", toDeduct))
	}
	return nil
}

// GetItem retrieves an item by ID
func (s *StockService) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, domain.NotFound("item", id)
	}
	return item, nil
}

// UpdateItem replaces the editable fields of an item. Quantities go through
// the same invariants as creation.
func (s *StockService) UpdateItem(ctx context.Context, id uuid.UUID, item *domain.Item) error {
	existing, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}

	item.ID = id
	item.UserID = existing.UserID
	item.CreatedAt = existing.CreatedAt
	item.DateAdded = existing.DateAdded
	if item.Sold || existing.Sold {
		// a sold item can be edited without carrying stock
		item.Sold = existing.Sold || item.Sold
		item.StockState = orDefault(item.StockState, existing.StockState)
		item.Status = orDefault(item.Status, existing.Status)
		item.SetBuckets(item.QtyWarehouse, item.QtyFBA, item.QtyFBM)
	} else if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	item.PrepareForStorage()

	if err := s.items.Update(ctx, item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	if diff := item.Qty - existing.Qty; diff != 0 {
		from, to := "", string(domain.BucketWarehouse)
		if diff < 0 {
			from, to = to, from
		}
		s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementAdjustment, abs(diff), from, to, "Manual edit"))
	}
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "item updated", slog.String("item_id", id.String()))
	return nil
}

// DeleteItem removes an item on explicit user request.
func (s *StockService) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := s.items.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	s.views.Invalidate(ctx)
	s.logger.InfoContext(ctx, "item deleted", slog.String("item_id", id.String()))
	return nil
}

// VisibleStock loads the tenant's items and purchases and applies the
// filter engine.
func (s *StockService) VisibleStock(ctx context.Context, filter ports.StockFilter) (*ports.VisibleStock, error) {
	items, err := s.items.List(ctx, ports.ItemQuery{})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	var purchases []domain.Purchase
	if filter.Supplier != "" {
		purchases, err = s.purchases.List(ctx, ports.PurchaseQuery{})
		if err != nil {
			return nil, fmt.Errorf("failed to list purchases: %w", err)
		}
	}

	return ComputeVisibleStock(items, purchases, filter, s.now()), nil
}

// Alerts classifies the in-stock items against their thresholds.
func (s *StockService) Alerts(ctx context.Context) (*ports.AlertReport, error) {
	var report ports.AlertReport
	err := s.views.Load(ctx, viewAlerts, &report, func() (interface{}, error) {
		items, err := s.items.List(ctx, ports.ItemQuery{})
		if err != nil {
			return nil, fmt.Errorf("failed to list items: %w", err)
		}
		return ClassifyAlerts(items), nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Sell records a sale. Units leave the bucket matching the channel first;
// any excess comes out of the remaining buckets in deduction order.
func (s *StockService) Sell(ctx context.Context, id uuid.UUID, req ports.SaleRequest) (*domain.Item, error) {
	if !req.Price.IsPositive() {
		return nil, domain.Invalid("price", "invalid sale price")
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	if req.Qty < 0 {
		return nil, domain.Invalid("qty", "sold quantity must be > 0")
	}

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Sold {
		return nil, domain.Invalid("", "item already sold")
	}
	if req.Qty > item.Qty {
		return nil, domain.Invalid("qty", "insufficient stock (%d available)", item.Qty)
	}

	bucket := saleBucket(req.Channel)
	fromBucket := min(req.Qty, item.BucketQty(bucket))
	item.SetBucketQty(bucket, item.BucketQty(bucket)-fromBucket)
	if rest := req.Qty - fromBucket; rest > 0 {
		item.Deduct(rest)
	}
	item.Sold = item.Qty <= 0

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}
	price := req.Price
	item.SalePrice = &price
	item.SaleDate = &date
	item.SalePlatform = req.Channel
	item.PrepareForStorage()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to record sale: %w", err)
	}

	from := req.Channel
	if from == "" {
		from = string(domain.BucketWarehouse)
	}
	s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementSale, req.Qty, from, domain.PlaceSold,
		fmt.Sprintf("sale via %s at %s€", from, price.StringFixed(2))))
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "sale recorded",
		slog.String("item_id", id.String()),
		slog.Int("qty", req.Qty),
		slog.String("channel", req.Channel),
		slog.Bool("sold_out", item.Sold))

	return item, nil
}

// saleBucket maps a sales channel to the bucket it ships from.
func saleBucket(channel string) domain.Bucket {
	c := strings.ToLower(strings.TrimSpace(channel))
	switch {
	case c == "fba" || strings.HasSuffix(c, " fba"):
		return domain.BucketFBA
	case c == "fbm" || strings.HasSuffix(c, " fbm"):
		return domain.BucketFBM
	default:
		return domain.BucketWarehouse
	}
}

// Transfer moves units between two buckets. The total is unchanged.
func (s *StockService) Transfer(ctx context.Context, id uuid.UUID, req ports.TransferRequest) (*domain.Item, error) {
	if req.Qty <= 0 {
		return nil, domain.Invalid("qty", "quantity must be > 0")
	}
	from, err := domain.ParseBucket(string(req.From))
	if err != nil {
		return nil, err
	}
	to, err := domain.ParseBucket(string(req.To))
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, domain.Invalid("location", "source and destination must differ")
	}

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	available := item.BucketQty(from)
	if req.Qty > available {
		return nil, domain.Invalid("qty", "insufficient stock in %s (%d available)", from, available)
	}

	item.SetBucketQty(from, available-req.Qty)
	item.SetBucketQty(to, item.BucketQty(to)+req.Qty)
	item.PrepareForStorage()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to transfer stock: %w", err)
	}

	s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementTransfer, req.Qty, string(from), string(to), "Manual transfer"))
	s.views.Invalidate(ctx)

	return item, nil
}

// ChangeStatus moves an item along the workflow.
func (s *StockService) ChangeStatus(ctx context.Context, id uuid.UUID, status domain.WorkflowStatus) (*domain.Item, error) {
	if !status.Valid() {
		return nil, domain.Invalid("status", "unknown status %q", status)
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	old := orDefault(item.Status, domain.StatusReceived)
	item.Status = status
	item.PrepareForStorage()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to change status: %w", err)
	}

	s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementAdjustment, 0, "", "",
		fmt.Sprintf("Status: %s → %s", old, status)))
	s.views.Invalidate(ctx)

	return item, nil
}

// ChangeLocation sets the shelf or bin code of an item.
func (s *StockService) ChangeLocation(ctx context.Context, id uuid.UUID, location string) (*domain.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	location = strings.TrimSpace(location)
	old := item.Location
	item.Location = location
	item.PrepareForStorage()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to change location: %w", err)
	}

	if old != location {
		s.ledger.Record(ctx, domain.NewMovement(item, domain.MovementTransfer, item.Qty,
			placeOrUndefined(old), placeOrUndefined(location), "Location change"))
	}
	s.views.Invalidate(ctx)

	return item, nil
}

// SetThreshold configures the low-stock threshold of one item; 0 disables it.
func (s *StockService) SetThreshold(ctx context.Context, id uuid.UUID, threshold int) (*domain.Item, error) {
	if threshold < 0 {
		return nil, domain.Invalid("threshold", "threshold cannot be negative")
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	item.LowStockThreshold = threshold
	item.PrepareForStorage()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to set threshold: %w", err)
	}
	s.views.Invalidate(ctx)

	return item, nil
}

// BulkThreshold sets threshold on every in-stock item that has none and
// returns how many items were updated.
func (s *StockService) BulkThreshold(ctx context.Context, threshold int) (int, error) {
	if threshold <= 0 {
		return 0, domain.Invalid("threshold", "threshold must be > 0")
	}

	items, err := s.items.List(ctx, ports.ItemQuery{})
	if err != nil {
		return 0, fmt.Errorf("failed to list items: %w", err)
	}

	updated := 0
	for i := range items {
		it := &items[i]
		if !it.InStock() || it.LowStockThreshold > 0 {
			continue
		}
		it.LowStockThreshold = threshold
		it.PrepareForStorage()
		if err := s.items.Update(ctx, it); err != nil {
			return updated, fmt.Errorf("failed to set threshold on item %s: %w", it.ID, err)
		}
		updated++
	}

	if updated > 0 {
		s.views.Invalidate(ctx)
	}
	s.logger.InfoContext(ctx, "bulk threshold applied",
		slog.Int("threshold", threshold),
		slog.Int("updated", updated))

	return updated, nil
}

// PurchaseHistory looks up existing new stock and the latest purchase of ean.
func (s *StockService) PurchaseHistory(ctx context.Context, ean string) (*ports.PurchaseHistory, error) {
	ean = strings.TrimSpace(ean)
	if ean == "" {
		return nil, domain.Invalid("ean", "ean is required")
	}

	history := &ports.PurchaseHistory{}

	stock, err := s.items.FindNewStockByEAN(ctx, ean)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock: %w", err)
	}
	if len(stock) > 0 {
		history.Stock = &stock[0]
	}

	purchases, err := s.purchases.List(ctx, ports.PurchaseQuery{EAN: ean, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	if len(purchases) > 0 {
		history.LastPurchase = &purchases[0]
	}

	return history, nil
}

// ListingText renders a marketplace listing for an item.
func (s *StockService) ListingText(ctx context.Context, id uuid.UUID, platform string) (string, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	return RenderListing(item, platform)
}

// Movements lists the latest ledger entries.
func (s *StockService) Movements(ctx context.Context, itemID *uuid.UUID) ([]domain.Movement, error) {
	return s.ledger.Recent(ctx, itemID)
}

func placeOrUndefined(p string) string {
	if p == "" {
		return domain.PlaceUndefined
	}
	return p
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
