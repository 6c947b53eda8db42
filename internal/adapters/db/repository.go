// internal/adapters/db/repository.go
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

var _ ports.Database = (*Database)(nil)

// psql builds postgres-flavoured statements.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ownerPred restricts a statement to the caller's rows. It is nil for admins,
// which squirrel's Where treats as no condition.
func ownerPred(ctx context.Context) any {
	if id, ok := tenant.Filter(ctx); ok {
		return squirrel.Eq{"user_id": id}
	}
	return nil
}

// table holds the statements every tenant-scoped table shares.
type table struct {
	db   *Database
	name string
}

func (t table) selectFrom(ctx context.Context, columns []string) squirrel.SelectBuilder {
	return psql.Select(columns...).From(t.name).Where(ownerPred(ctx))
}

func (t table) queryRows(ctx context.Context, b squirrel.SelectBuilder) (pgx.Rows, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s query: %w", t.name, err)
	}
	rows, err := t.db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	return rows, nil
}

// exec runs an update or delete and reports whether a row was touched.
func (t table) exec(ctx context.Context, q querier, b squirrel.Sqlizer) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build %s statement: %w", t.name, err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t table) update(ctx context.Context, id uuid.UUID, set map[string]any) error {
	b := psql.Update(t.name).SetMap(set).Where(squirrel.Eq{"id": id}).Where(ownerPred(ctx))
	n, err := t.exec(ctx, t.db.pool, b)
	if err != nil {
		return fmt.Errorf("failed to update %s row: %w", t.name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s row %s not found", t.name, id)
	}
	return nil
}

func (t table) deleteByID(ctx context.Context, id uuid.UUID) error {
	b := psql.Delete(t.name).Where(squirrel.Eq{"id": id}).Where(ownerPred(ctx))
	if _, err := t.exec(ctx, t.db.pool, b); err != nil {
		return fmt.Errorf("failed to delete %s row: %w", t.name, err)
	}
	return nil
}

// deleteAll removes the caller's rows, or every row for an admin.
func (t table) deleteAll(ctx context.Context) error {
	b := psql.Delete(t.name).Where(ownerPred(ctx))
	if _, err := t.exec(ctx, t.db.pool, b); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.name, err)
	}
	return nil
}

// insertBatch queues one INSERT per row and sends them in a single
// transaction, so a batch lands entirely or not at all.
func insertBatch[T any](ctx context.Context, t table, rows []T, insert func(*T) squirrel.InsertBuilder) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range rows {
		sql, args, err := insert(&rows[i]).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build %s insert: %w", t.name, err)
		}
		batch.Queue(sql, args...)
	}

	return t.db.Transaction(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert %s row %d: %w", t.name, i+1, err)
			}
		}
		return br.Close()
	})
}

// collect scans every row with scan and returns a non-nil slice.
func collect[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// findOne returns nil, nil when nothing matched.
func findOne[T any](ctx context.Context, t table, b squirrel.SelectBuilder, scan func(pgx.Rows) (T, error)) (*T, error) {
	rows, err := t.queryRows(ctx, b.Limit(1))
	if err != nil {
		return nil, err
	}
	found, err := collect(rows, scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan %s row: %w", t.name, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
