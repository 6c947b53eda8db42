// internal/adapters/db/supplier_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

var supplierColumns = []string{
	"id", "user_id", "name", "contact", "email", "phone", "address", "website",
	"siret", "vat_number", "payment_terms", "lead_time", "moq",
	"free_shipping_threshold", "category", "notes", "created_at", "updated_at",
}

type supplierRepository struct {
	t      table
	logger *slog.Logger
}

// NewSupplierRepository creates a new supplier repository
func NewSupplierRepository(db *Database, logger *slog.Logger) ports.SupplierRepository {
	return &supplierRepository{
		t:      table{db: db, name: "suppliers"},
		logger: logger.With(slog.String("repository", "suppliers")),
	}
}

func supplierValues(s *domain.Supplier) map[string]any {
	return map[string]any{
		"user_id":                 s.UserID,
		"name":                    s.Name,
		"contact":                 s.Contact,
		"email":                   s.Email,
		"phone":                   s.Phone,
		"address":                 s.Address,
		"website":                 s.Website,
		"siret":                   s.SIRET,
		"vat_number":              s.VATNumber,
		"payment_terms":           s.PaymentTerms,
		"lead_time":               s.LeadTime,
		"moq":                     s.MOQ,
		"free_shipping_threshold": s.FreeShippingThreshold,
		"category":                s.Category,
		"notes":                   s.Notes,
		"updated_at":              s.UpdatedAt,
	}
}

func supplierInsert(s *domain.Supplier) squirrel.InsertBuilder {
	values := supplierValues(s)
	values["id"] = s.ID
	values["created_at"] = s.CreatedAt
	return psql.Insert("suppliers").SetMap(values)
}

func scanSupplier(row pgx.Rows) (domain.Supplier, error) {
	var s domain.Supplier
	err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.Contact, &s.Email, &s.Phone, &s.Address, &s.Website,
		&s.SIRET, &s.VATNumber, &s.PaymentTerms, &s.LeadTime, &s.MOQ,
		&s.FreeShippingThreshold, &s.Category, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (r *supplierRepository) Save(ctx context.Context, s *domain.Supplier) error {
	sql, args, err := supplierInsert(s).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build supplier insert: %w", err)
	}
	if _, err := r.t.db.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to save supplier: %w", err)
	}
	r.logger.DebugContext(ctx, "supplier saved",
		slog.String("id", s.ID.String()),
		slog.String("name", s.Name))
	return nil
}

func (r *supplierRepository) SaveBatch(ctx context.Context, suppliers []domain.Supplier) error {
	return insertBatch(ctx, r.t, suppliers, supplierInsert)
}

func (r *supplierRepository) Update(ctx context.Context, s *domain.Supplier) error {
	s.UpdatedAt = time.Now()
	return r.t.update(ctx, s.ID, supplierValues(s))
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	b := r.t.selectFrom(ctx, supplierColumns).Where(squirrel.Eq{"id": id})
	return findOne(ctx, r.t, b, scanSupplier)
}

// List returns suppliers by name
func (r *supplierRepository) List(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := r.t.queryRows(ctx, r.t.selectFrom(ctx, supplierColumns).OrderBy("name ASC"))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSupplier)
}

func (r *supplierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.t.deleteByID(ctx, id)
}

func (r *supplierRepository) DeleteAll(ctx context.Context) error {
	return r.t.deleteAll(ctx)
}
