// internal/pkg/tenant/tenant.go
package tenant

import "context"

type contextKey struct{}

// AllTenants scopes cache keys for admin sessions that see every row.
const AllTenants = "all"

// Tenant identifies who is acting. Admins see every tenant's rows.
type Tenant struct {
	UserID string
	Admin  bool
}

// WithTenant stores t in ctx.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the tenant carried by ctx.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(Tenant)
	return t, ok
}

// Filter returns the owner id rows must be restricted to. The boolean is
// false for admins and anonymous contexts, meaning no filter applies.
func Filter(ctx context.Context) (string, bool) {
	t, ok := FromContext(ctx)
	if !ok || t.Admin || t.UserID == "" {
		return "", false
	}
	return t.UserID, true
}

// Owner returns the user id new rows are attributed to.
func Owner(ctx context.Context) string {
	t, _ := FromContext(ctx)
	return t.UserID
}

// Key scopes per-tenant cache entries.
func Key(ctx context.Context) string {
	if id, ok := Filter(ctx); ok {
		return id
	}
	return AllTenants
}
