// internal/adapters/db/item_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

var itemColumns = []string{
	"id", "user_id", "ean", "name", "category", "condition", "stock_state",
	"qty_warehouse", "qty_fba", "qty_fbm", "qty",
	"purchase_price", "resale_price",
	"amazon_fba", "amazon_fbm", "vinted", "leboncoin",
	"sold", "non_sellable", "location", "low_stock_threshold", "status",
	"date_added", "notes", "photos",
	"sale_price", "sale_date", "sale_platform",
	"created_at", "updated_at",
}

// itemRepository implements ports.ItemRepository
type itemRepository struct {
	t      table
	logger *slog.Logger
}

// NewItemRepository creates a new stock item repository
func NewItemRepository(db *Database, logger *slog.Logger) ports.ItemRepository {
	return &itemRepository{
		t:      table{db: db, name: "items"},
		logger: logger.With(slog.String("repository", "items")),
	}
}

func itemValues(item *domain.Item) map[string]any {
	photos := item.Photos
	if photos == nil {
		photos = []string{}
	}
	var salePrice decimal.NullDecimal
	if item.SalePrice != nil {
		salePrice = decimal.NullDecimal{Decimal: *item.SalePrice, Valid: true}
	}
	var saleDate pgtype.Timestamptz
	if item.SaleDate != nil {
		saleDate = pgtype.Timestamptz{Time: *item.SaleDate, Valid: true}
	}
	return map[string]any{
		"user_id":             item.UserID,
		"ean":                 item.EAN,
		"name":                item.Name,
		"category":            item.Category,
		"condition":           item.Condition,
		"stock_state":         string(item.StockState),
		"qty_warehouse":       item.QtyWarehouse,
		"qty_fba":             item.QtyFBA,
		"qty_fbm":             item.QtyFBM,
		"qty":                 item.Qty,
		"purchase_price":      item.PurchasePrice,
		"resale_price":        item.ResalePrice,
		"amazon_fba":          item.AmazonFBA,
		"amazon_fbm":          item.AmazonFBM,
		"vinted":              item.Vinted,
		"leboncoin":           item.Leboncoin,
		"sold":                item.Sold,
		"non_sellable":        item.NonSellable,
		"location":            item.Location,
		"low_stock_threshold": item.LowStockThreshold,
		"status":              string(item.Status),
		"date_added":          item.DateAdded,
		"notes":               item.Notes,
		"photos":              photos,
		"sale_price":          salePrice,
		"sale_date":           saleDate,
		"sale_platform":       item.SalePlatform,
		"updated_at":          item.UpdatedAt,
	}
}

func itemInsert(item *domain.Item) squirrel.InsertBuilder {
	values := itemValues(item)
	values["id"] = item.ID
	values["created_at"] = item.CreatedAt
	return psql.Insert("items").SetMap(values)
}

func scanItem(row pgx.Rows) (domain.Item, error) {
	var (
		item               domain.Item
		stockState, status string
		salePrice          decimal.NullDecimal
		saleDate           pgtype.Timestamptz
	)
	err := row.Scan(
		&item.ID, &item.UserID, &item.EAN, &item.Name, &item.Category, &item.Condition, &stockState,
		&item.QtyWarehouse, &item.QtyFBA, &item.QtyFBM, &item.Qty,
		&item.PurchasePrice, &item.ResalePrice,
		&item.AmazonFBA, &item.AmazonFBM, &item.Vinted, &item.Leboncoin,
		&item.Sold, &item.NonSellable, &item.Location, &item.LowStockThreshold, &status,
		&item.DateAdded, &item.Notes, &item.Photos,
		&salePrice, &saleDate, &item.SalePlatform,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return item, err
	}
	item.StockState = domain.StockState(stockState)
	item.Status = domain.WorkflowStatus(status)
	if salePrice.Valid {
		item.SalePrice = &salePrice.Decimal
	}
	if saleDate.Valid {
		t := saleDate.Time
		item.SaleDate = &t
	}
	item.Normalize()
	return item, nil
}

// Save creates a new item
func (r *itemRepository) Save(ctx context.Context, item *domain.Item) error {
	sql, args, err := itemInsert(item).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build item insert: %w", err)
	}
	if _, err := r.t.db.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	r.logger.DebugContext(ctx, "item saved",
		slog.String("id", item.ID.String()),
		slog.String("ean", item.EAN))
	return nil
}

// SaveBatch inserts items in a single transaction
func (r *itemRepository) SaveBatch(ctx context.Context, items []domain.Item) error {
	if err := insertBatch(ctx, r.t, items, itemInsert); err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "item batch saved", slog.Int("count", len(items)))
	return nil
}

// Update replaces every mutable column of an existing item
func (r *itemRepository) Update(ctx context.Context, item *domain.Item) error {
	item.UpdatedAt = time.Now()
	return r.t.update(ctx, item.ID, itemValues(item))
}

// FindByID returns nil, nil when the item does not exist
func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	b := r.t.selectFrom(ctx, itemColumns).Where(squirrel.Eq{"id": id})
	return findOne(ctx, r.t, b, scanItem)
}

// FindNewStockByEAN returns unsold new-state items oldest first
func (r *itemRepository) FindNewStockByEAN(ctx context.Context, ean string) ([]domain.Item, error) {
	b := r.t.selectFrom(ctx, itemColumns).
		Where(squirrel.Eq{"ean": ean, "sold": false, "stock_state": string(domain.StateNew)}).
		OrderBy("date_added ASC", "id ASC")
	rows, err := r.t.queryRows(ctx, b)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanItem)
}

// List returns items newest first
func (r *itemRepository) List(ctx context.Context, q ports.ItemQuery) ([]domain.Item, error) {
	b := r.t.selectFrom(ctx, itemColumns).OrderBy("date_added DESC", "id ASC")
	if q.EAN != "" {
		b = b.Where(squirrel.Eq{"ean": q.EAN})
	}
	if !q.IncludeSold {
		b = b.Where(squirrel.Eq{"sold": false})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	rows, err := r.t.queryRows(ctx, b)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanItem)
}

func (r *itemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.t.deleteByID(ctx, id)
}

func (r *itemRepository) DeleteAll(ctx context.Context) error {
	return r.t.deleteAll(ctx)
}
