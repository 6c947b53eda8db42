// internal/adapters/db/purchase_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

var purchaseColumns = []string{
	"id", "user_id", "ean", "name", "category", "supplier_id", "supplier_name",
	"price_ht", "price_ttc", "qty", "received", "purchase_date", "notes",
	"created_at", "updated_at",
}

type purchaseRepository struct {
	t      table
	logger *slog.Logger
}

// NewPurchaseRepository creates a new purchase repository
func NewPurchaseRepository(db *Database, logger *slog.Logger) ports.PurchaseRepository {
	return &purchaseRepository{
		t:      table{db: db, name: "purchases"},
		logger: logger.With(slog.String("repository", "purchases")),
	}
}

func purchaseValues(p *domain.Purchase) map[string]any {
	return map[string]any{
		"user_id":       p.UserID,
		"ean":           p.EAN,
		"name":          p.Name,
		"category":      p.Category,
		"supplier_id":   nullUUID(p.SupplierID),
		"supplier_name": p.SupplierName,
		"price_ht":      p.PriceHT,
		"price_ttc":     p.PriceTTC,
		"qty":           p.Qty,
		"received":      p.Received,
		"purchase_date": p.PurchaseDate,
		"notes":         p.Notes,
		"updated_at":    p.UpdatedAt,
	}
}

func purchaseInsert(p *domain.Purchase) squirrel.InsertBuilder {
	values := purchaseValues(p)
	values["id"] = p.ID
	values["created_at"] = p.CreatedAt
	return psql.Insert("purchases").SetMap(values)
}

func scanPurchase(row pgx.Rows) (domain.Purchase, error) {
	var (
		p          domain.Purchase
		supplierID uuid.NullUUID
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.EAN, &p.Name, &p.Category, &supplierID, &p.SupplierName,
		&p.PriceHT, &p.PriceTTC, &p.Qty, &p.Received, &p.PurchaseDate, &p.Notes,
		&p.CreatedAt, &p.UpdatedAt,
	)
	p.SupplierID = uuidPtr(supplierID)
	return p, err
}

func (r *purchaseRepository) Save(ctx context.Context, p *domain.Purchase) error {
	sql, args, err := purchaseInsert(p).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build purchase insert: %w", err)
	}
	if _, err := r.t.db.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to save purchase: %w", err)
	}
	r.logger.DebugContext(ctx, "purchase saved", slog.String("id", p.ID.String()))
	return nil
}

func (r *purchaseRepository) SaveBatch(ctx context.Context, purchases []domain.Purchase) error {
	return insertBatch(ctx, r.t, purchases, purchaseInsert)
}

func (r *purchaseRepository) Update(ctx context.Context, p *domain.Purchase) error {
	p.UpdatedAt = time.Now()
	return r.t.update(ctx, p.ID, purchaseValues(p))
}

func (r *purchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	b := r.t.selectFrom(ctx, purchaseColumns).Where(squirrel.Eq{"id": id})
	return findOne(ctx, r.t, b, scanPurchase)
}

// List returns purchases newest first. Search matches the name, EAN and
// supplier name case-insensitively.
func (r *purchaseRepository) List(ctx context.Context, q ports.PurchaseQuery) ([]domain.Purchase, error) {
	b := r.t.selectFrom(ctx, purchaseColumns).OrderBy("purchase_date DESC", "created_at DESC")
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + s + "%"
		b = b.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"ean": pattern},
			squirrel.ILike{"supplier_name": pattern},
		})
	}
	if q.EAN != "" {
		b = b.Where(squirrel.Eq{"ean": q.EAN})
	}
	if q.SupplierID != nil {
		b = b.Where(squirrel.Eq{"supplier_id": *q.SupplierID})
	}
	if q.Received != nil {
		b = b.Where(squirrel.Eq{"received": *q.Received})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	rows, err := r.t.queryRows(ctx, b)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPurchase)
}

func (r *purchaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.t.deleteByID(ctx, id)
}

func (r *purchaseRepository) DeleteAll(ctx context.Context) error {
	return r.t.deleteAll(ctx)
}
