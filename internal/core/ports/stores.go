// internal/core/ports/stores.go
package ports

import (
	"context"
	"io"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

// CountStore keeps the active count session of each tenant.
type CountStore interface {
	// Load returns nil, nil when no session is active.
	Load(ctx context.Context, owner string) (*domain.CountSession, error)
	Save(ctx context.Context, owner string, session *domain.CountSession) error
	Delete(ctx context.Context, owner string) error
}

// ObjectStorage stores backup archives, import uploads and photos.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ChangeEvent tells that rows of Table owned by UserID changed.
type ChangeEvent struct {
	Table  string
	UserID string
}

// ChangeNotifier delivers store change events until ctx is cancelled.
// Handlers must be idempotent.
type ChangeNotifier interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, ev ChangeEvent)) error
}
