// internal/adapters/db/notifier.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ammerola/resell-stock/internal/core/ports"
)

// ChangesChannel is the NOTIFY channel the schema triggers publish on.
const ChangesChannel = "stock_changes"

// Notifier turns stock_changes notifications into ports.ChangeEvent.
type Notifier struct {
	db      *Database
	logger  *slog.Logger
	backoff time.Duration
}

var _ ports.ChangeNotifier = (*Notifier)(nil)

// NewNotifier creates a LISTEN based change notifier
func NewNotifier(db *Database, logger *slog.Logger) *Notifier {
	return &Notifier{
		db:      db,
		logger:  logger.With(slog.String("component", "notifier")),
		backoff: 2 * time.Second,
	}
}

// ParseChangePayload splits a "<table>:<user_id>" payload.
func ParseChangePayload(payload string) (ports.ChangeEvent, bool) {
	table, user, ok := strings.Cut(payload, ":")
	if !ok || table == "" {
		return ports.ChangeEvent{}, false
	}
	return ports.ChangeEvent{Table: table, UserID: user}, true
}

// Subscribe blocks until ctx is cancelled. A lost connection is re-acquired
// after a short pause; notifications sent meanwhile are lost.
func (n *Notifier) Subscribe(ctx context.Context, handler func(ctx context.Context, ev ports.ChangeEvent)) error {
	for {
		err := n.listen(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		n.logger.WarnContext(ctx, "change listener dropped, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("backoff", n.backoff))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(n.backoff):
		}
	}
}

func (n *Notifier) listen(ctx context.Context, handler func(ctx context.Context, ev ports.ChangeEvent)) error {
	conn, err := n.db.Listen(ctx, ChangesChannel)
	if err != nil {
		return err
	}
	defer conn.Release()

	n.logger.InfoContext(ctx, "listening for stock changes", slog.String("channel", ChangesChannel))
	for {
		note, err := n.db.WaitForNotification(ctx, conn)
		if err != nil {
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		ev, ok := ParseChangePayload(note.Payload)
		if !ok {
			n.logger.WarnContext(ctx, "ignoring malformed change payload", slog.String("payload", note.Payload))
			continue
		}
		handler(ctx, ev)
	}
}
