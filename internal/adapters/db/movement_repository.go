// internal/adapters/db/movement_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

var movementColumns = []string{
	"id", "user_id", "item_id", "ean", "name", "type", "qty",
	"from_place", "to_place", "reason", "notes", "created_at",
}

// movementRepository is append-only: there is no update or delete.
type movementRepository struct {
	t      table
	logger *slog.Logger
}

// NewMovementRepository creates a new movement ledger repository
func NewMovementRepository(db *Database, logger *slog.Logger) ports.MovementRepository {
	return &movementRepository{
		t:      table{db: db, name: "movements"},
		logger: logger.With(slog.String("repository", "movements")),
	}
}

func (r *movementRepository) Save(ctx context.Context, m *domain.Movement) error {
	sql, args, err := psql.Insert("movements").SetMap(map[string]any{
		"id":         m.ID,
		"user_id":    m.UserID,
		"item_id":    m.ItemID,
		"ean":        m.EAN,
		"name":       m.Name,
		"type":       string(m.Type),
		"qty":        m.Qty,
		"from_place": m.From,
		"to_place":   m.To,
		"reason":     m.Reason,
		"notes":      m.Notes,
		"created_at": m.CreatedAt,
	}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build movement insert: %w", err)
	}
	if _, err := r.t.db.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to save movement: %w", err)
	}
	return nil
}

func scanMovement(row pgx.Rows) (domain.Movement, error) {
	var (
		m   domain.Movement
		typ string
	)
	err := row.Scan(
		&m.ID, &m.UserID, &m.ItemID, &m.EAN, &m.Name, &typ, &m.Qty,
		&m.From, &m.To, &m.Reason, &m.Notes, &m.CreatedAt,
	)
	m.Type = domain.MovementType(typ)
	return m, err
}

// List returns movements newest first
func (r *movementRepository) List(ctx context.Context, q ports.MovementQuery) ([]domain.Movement, error) {
	b := r.t.selectFrom(ctx, movementColumns).OrderBy("created_at DESC", "id DESC")
	if q.ItemID != nil {
		b = b.Where(squirrel.Eq{"item_id": *q.ItemID})
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	rows, err := r.t.queryRows(ctx, b)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMovement)
}
