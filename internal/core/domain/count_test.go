package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

func countItems() []domain.Item {
	mk := func(ean string, w int, mutate func(*domain.Item)) domain.Item {
		it := domain.Item{ID: uuid.New(), EAN: ean, Name: "item " + ean, StockState: domain.StateNew}
		it.SetBuckets(w, 0, 0)
		if mutate != nil {
			mutate(&it)
		}
		return it
	}
	return []domain.Item{
		mk("111", 5, nil),
		mk("222", 2, nil),
		mk("333", 1, func(i *domain.Item) { i.Sold = true }),
		mk("444", 1, func(i *domain.Item) { i.NonSellable = true }),
		mk("555", 3, func(i *domain.Item) { i.StockState = domain.StateScrap }),
		mk("666", 4, func(i *domain.Item) { i.StockState = domain.StateUsed }),
	}
}

func TestNewCountSession_SnapshotsCountableItems(t *testing.T) {
	items := countItems()
	session := domain.NewCountSession("user-1", items, time.Now())

	require.Len(t, session.Rows, 3)
	assert.Equal(t, "111", session.Rows[0].EAN)
	assert.Equal(t, 5, session.Rows[0].Theoretical)
	assert.Nil(t, session.Rows[0].Counted)
	assert.Nil(t, session.Rows[0].Variance)
	assert.Equal(t, "666", session.Rows[2].EAN)
}

func TestCountSession_Record(t *testing.T) {
	items := countItems()
	id := items[0].ID

	tests := []struct {
		name         string
		value        string
		wantErr      bool
		wantCounted  *int
		wantVariance *int
	}{
		{name: "counted_below_theoretical", value: "3", wantCounted: intPtr(3), wantVariance: intPtr(-2)},
		{name: "counted_above_theoretical", value: "7", wantCounted: intPtr(7), wantVariance: intPtr(2)},
		{name: "negative_is_clamped", value: "-4", wantCounted: intPtr(0), wantVariance: intPtr(-5)},
		{name: "empty_uncounts", value: "  "},
		{name: "not_a_number", value: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := domain.NewCountSession("", items, time.Now())
			_, err := session.Record(id, "9")
			require.NoError(t, err)

			row, err := session.Record(id, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCounted, row.Counted)
			assert.Equal(t, tt.wantVariance, row.Variance)
		})
	}

	t.Run("unknown_item", func(t *testing.T) {
		session := domain.NewCountSession("", items, time.Now())
		_, err := session.Record(uuid.New(), "1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCountSession_Scan(t *testing.T) {
	session := domain.NewCountSession("", countItems(), time.Now())

	row, found := session.Scan("222")
	require.True(t, found)
	assert.Equal(t, 1, *row.Counted)
	assert.Equal(t, -1, *row.Variance)

	row, found = session.Scan(" 222 ")
	require.True(t, found)
	assert.Equal(t, 2, *row.Counted)
	assert.Equal(t, 0, *row.Variance)

	_, found = session.Scan("999")
	assert.False(t, found)

	// sold items are not part of the session
	_, found = session.Scan("333")
	assert.False(t, found)
}

func TestCountSession_FilterAndStats(t *testing.T) {
	items := countItems()
	session := domain.NewCountSession("", items, time.Now())

	_, err := session.Record(items[0].ID, "5")
	require.NoError(t, err)
	_, err = session.Record(items[1].ID, "1")
	require.NoError(t, err)

	assert.Len(t, session.Filter(domain.CountFilterAll), 3)

	variances := session.Filter(domain.CountFilterVariances)
	require.Len(t, variances, 1)
	assert.Equal(t, "222", variances[0].EAN)
	assert.Equal(t, "VARIANCE", variances[0].Status())

	uncounted := session.Filter(domain.CountFilterUncounted)
	require.Len(t, uncounted, 1)
	assert.Equal(t, "666", uncounted[0].EAN)
	assert.Equal(t, "Not counted", uncounted[0].Status())

	assert.Equal(t, domain.CountStats{Total: 3, Counted: 2, Conforming: 1, Variances: 1}, session.Stats())
}

func intPtr(v int) *int { return &v }
