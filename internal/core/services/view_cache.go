// internal/core/services/view_cache.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// Cached derived views. Keys are scoped by tenant.
const (
	viewDashboard = "dash"
	viewAlerts    = "alerts"

	DefaultViewTTL = 5 * time.Minute
)

var derivedViews = []string{viewDashboard, viewAlerts}

// ViewCache caches derived views per tenant and drops them whenever the
// tenant's data changes. A nil cache disables caching.
type ViewCache struct {
	cache  ports.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewViewCache creates a derived view cache
func NewViewCache(cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *ViewCache {
	if ttl <= 0 {
		ttl = DefaultViewTTL
	}
	return &ViewCache{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "view_cache")),
	}
}

func viewKey(view, scope string) string {
	return view + ":" + scope
}

// Load fills dest from the cache or from fetch.
func (v *ViewCache) Load(ctx context.Context, view string, dest interface{}, fetch func() (interface{}, error)) error {
	if v == nil || v.cache == nil {
		val, err := fetch()
		if err != nil {
			return err
		}
		return assign(dest, val)
	}
	return v.cache.GetOrSet(ctx, viewKey(view, tenant.Key(ctx)), dest, fetch, v.ttl)
}

// Invalidate drops the derived views of the current tenant, plus the admin
// scope that spans every tenant.
func (v *ViewCache) Invalidate(ctx context.Context) {
	v.InvalidateScope(ctx, tenant.Key(ctx))
}

// InvalidateScope drops the derived views of scope. It is idempotent and is
// used by change notifications.
func (v *ViewCache) InvalidateScope(ctx context.Context, scope string) {
	if v == nil || v.cache == nil {
		return
	}
	keys := make([]string, 0, 2*len(derivedViews))
	for _, view := range derivedViews {
		keys = append(keys, viewKey(view, scope))
		if scope != tenant.AllTenants {
			keys = append(keys, viewKey(view, tenant.AllTenants))
		}
	}
	if err := v.cache.Delete(ctx, keys...); err != nil {
		v.logger.WarnContext(ctx, "failed to invalidate derived views",
			slog.String("scope", scope),
			slog.String("error", err.Error()))
	}
}

// OnChange drops the views touched by a store change event. Events without
// an owner reach every scope through the admin key.
func (v *ViewCache) OnChange(ctx context.Context, ev ports.ChangeEvent) {
	scope := ev.UserID
	if scope == "" {
		scope = tenant.AllTenants
	}
	v.logger.DebugContext(ctx, "store changed",
		slog.String("table", ev.Table),
		slog.String("scope", scope))
	v.InvalidateScope(ctx, scope)
}

// assign copies val into dest the same way a cache round trip would.
func assign(dest, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	return json.Unmarshal(data, dest)
}
