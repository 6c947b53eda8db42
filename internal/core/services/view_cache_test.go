// internal/core/services/view_cache_test.go
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/test/helpers"
)

type counted struct {
	N int `json:"n"`
}

func loadCounted(t *testing.T, ctx context.Context, views *services.ViewCache, calls *int) int {
	t.Helper()
	var out counted
	err := views.Load(ctx, "dash", &out, func() (interface{}, error) {
		*calls++
		return counted{N: *calls}, nil
	})
	require.NoError(t, err)
	return out.N
}

func TestViewCache_OnChange(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	logger := helpers.TestLogger()
	views := services.NewViewCache(redis_a.NewCache(r.Client, logger), time.Minute, logger)

	userA := helpers.UserContext("user-a")
	userB := helpers.UserContext("user-b")
	admin := helpers.AdminContext()

	var a, b, all int
	assert.Equal(t, 1, loadCounted(t, userA, views, &a))
	assert.Equal(t, 1, loadCounted(t, userB, views, &b))
	assert.Equal(t, 1, loadCounted(t, admin, views, &all))

	// cached
	assert.Equal(t, 1, loadCounted(t, userA, views, &a))
	assert.Equal(t, 1, a)

	views.OnChange(context.Background(), ports.ChangeEvent{Table: "items", UserID: "user-a"})

	assert.Equal(t, 2, loadCounted(t, userA, views, &a))
	assert.Equal(t, 1, loadCounted(t, userB, views, &b), "other tenants keep their views")
	assert.Equal(t, 2, loadCounted(t, admin, views, &all), "the admin view spans every tenant")
}

func TestViewCache_NilCacheFetchesEveryTime(t *testing.T) {
	views := services.NewViewCache(nil, 0, helpers.TestLogger())
	ctx := helpers.UserContext("user-a")

	var calls int
	loadCounted(t, ctx, views, &calls)
	loadCounted(t, ctx, views, &calls)
	assert.Equal(t, 2, calls)

	views.OnChange(ctx, ports.ChangeEvent{Table: "items"})
}
