// internal/adapters/db/invoice_repository.go
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

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

var invoiceColumns = []string{
	"id", "user_id", "number", "supplier_id", "supplier_name",
	"invoice_date", "due_date", "amount_ht", "amount_ttc",
	"paid", "payment_date", "notes", "created_at", "updated_at",
}

type invoiceRepository struct {
	t      table
	logger *slog.Logger
}

// NewInvoiceRepository creates a new supplier invoice repository
func NewInvoiceRepository(db *Database, logger *slog.Logger) ports.InvoiceRepository {
	return &invoiceRepository{
		t:      table{db: db, name: "invoices"},
		logger: logger.With(slog.String("repository", "invoices")),
	}
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func fromDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func invoiceValues(inv *domain.Invoice) map[string]any {
	return map[string]any{
		"user_id":       inv.UserID,
		"number":        inv.Number,
		"supplier_id":   nullUUID(inv.SupplierID),
		"supplier_name": inv.SupplierName,
		"invoice_date":  toDate(inv.InvoiceDate),
		"due_date":      toDate(inv.DueDate),
		"amount_ht":     inv.AmountHT,
		"amount_ttc":    inv.AmountTTC,
		"paid":          inv.Paid,
		"payment_date":  toDate(inv.PaymentDate),
		"notes":         inv.Notes,
		"updated_at":    inv.UpdatedAt,
	}
}

func invoiceInsert(inv *domain.Invoice) squirrel.InsertBuilder {
	values := invoiceValues(inv)
	values["id"] = inv.ID
	values["created_at"] = inv.CreatedAt
	return psql.Insert("invoices").SetMap(values)
}

func scanInvoice(row pgx.Rows) (domain.Invoice, error) {
	var (
		inv                               domain.Invoice
		supplierID                        uuid.NullUUID
		invoiceDate, dueDate, paymentDate pgtype.Date
	)
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.Number, &supplierID, &inv.SupplierName,
		&invoiceDate, &dueDate, &inv.AmountHT, &inv.AmountTTC,
		&inv.Paid, &paymentDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
	)
	inv.SupplierID = uuidPtr(supplierID)
	inv.InvoiceDate = fromDate(invoiceDate)
	inv.DueDate = fromDate(dueDate)
	inv.PaymentDate = fromDate(paymentDate)
	return inv, err
}

func (r *invoiceRepository) Save(ctx context.Context, inv *domain.Invoice) error {
	sql, args, err := invoiceInsert(inv).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build invoice insert: %w", err)
	}
	if _, err := r.t.db.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	r.logger.DebugContext(ctx, "invoice saved",
		slog.String("id", inv.ID.String()),
		slog.String("number", inv.Number))
	return nil
}

func (r *invoiceRepository) SaveBatch(ctx context.Context, invoices []domain.Invoice) error {
	return insertBatch(ctx, r.t, invoices, invoiceInsert)
}

func (r *invoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	inv.UpdatedAt = time.Now()
	return r.t.update(ctx, inv.ID, invoiceValues(inv))
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	b := r.t.selectFrom(ctx, invoiceColumns).Where(squirrel.Eq{"id": id})
	return findOne(ctx, r.t, b, scanInvoice)
}

// List returns invoices newest first; undated invoices come last.
func (r *invoiceRepository) List(ctx context.Context, q ports.InvoiceQuery) ([]domain.Invoice, error) {
	b := r.t.selectFrom(ctx, invoiceColumns).OrderBy("invoice_date DESC NULLS LAST", "created_at DESC")
	if q.SupplierID != nil {
		b = b.Where(squirrel.Eq{"supplier_id": *q.SupplierID})
	}
	if q.UnpaidOnly {
		b = b.Where(squirrel.Eq{"paid": false})
	}

	rows, err := r.t.queryRows(ctx, b)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInvoice)
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.t.deleteByID(ctx, id)
}

func (r *invoiceRepository) DeleteAll(ctx context.Context) error {
	return r.t.deleteAll(ctx)
}
