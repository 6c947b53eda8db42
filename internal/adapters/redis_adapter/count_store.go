// internal/adapters/redis_adapter/count_store.go
package redis_a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// CountStore keeps one count session per owner as a JSON document. An
// abandoned session expires after ttl.
type CountStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.CountStore = (*CountStore)(nil)

// DefaultCountTTL is how long an untouched count session survives.
const DefaultCountTTL = 7 * 24 * time.Hour

// NewCountStore creates a Redis backed count session store
func NewCountStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *CountStore {
	if ttl <= 0 {
		ttl = DefaultCountTTL
	}
	return &CountStore{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "count_store")),
	}
}

func countKey(owner string) string {
	return BuildKey(PrefixCount, owner)
}

// Load returns nil, nil when no session is active.
func (s *CountStore) Load(ctx context.Context, owner string) (*domain.CountSession, error) {
	data, err := s.client.Get(ctx, countKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load count session: %w", err)
	}

	var session domain.CountSession
	if err := json.Unmarshal(data, &session); err != nil {
		// a corrupt session cannot be resumed; report it as absent
		s.logger.WarnContext(ctx, "discarding unreadable count session",
			slog.String("owner", owner),
			slog.String("error", err.Error()))
		return nil, nil
	}
	return &session, nil
}

// Save replaces the owner's session and refreshes its expiry.
func (s *CountStore) Save(ctx context.Context, owner string, session *domain.CountSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode count session: %w", err)
	}
	if err := s.client.Set(ctx, countKey(owner), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save count session: %w", err)
	}
	return nil
}

func (s *CountStore) Delete(ctx context.Context, owner string) error {
	if err := s.client.Del(ctx, countKey(owner)).Err(); err != nil {
		return fmt.Errorf("failed to delete count session: %w", err)
	}
	return nil
}
