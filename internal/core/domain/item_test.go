package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name      string
		item      *domain.Item
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid_item_with_all_fields",
			item: &domain.Item{
				EAN:           "3700000000001",
				Name:          "Nintendo Switch",
				Category:      "consoles",
				StockState:    domain.StateNew,
				QtyWarehouse:  2,
				QtyFBA:        1,
				PurchasePrice: decimal.NewFromFloat(250),
				ResalePrice:   decimal.NewFromFloat(299),
			},
			wantError: false,
		},
		{
			name:      "missing_ean",
			item:      &domain.Item{Name: "Test Item", QtyWarehouse: 1},
			wantError: true,
			errorMsg:  "ean and name are required",
		},
		{
			name:      "missing_name",
			item:      &domain.Item{EAN: "123", QtyWarehouse: 1},
			wantError: true,
			errorMsg:  "ean and name are required",
		},
		{
			name:      "zero_total_quantity",
			item:      &domain.Item{EAN: "123", Name: "Test Item"},
			wantError: true,
			errorMsg:  "total quantity must be > 0",
		},
		{
			name:      "negative_bucket",
			item:      &domain.Item{EAN: "123", Name: "Test Item", QtyWarehouse: 3, QtyFBM: -1},
			wantError: true,
			errorMsg:  "quantities cannot be negative",
		},
		{
			name: "negative_purchase_price",
			item: &domain.Item{
				EAN: "123", Name: "Test Item", QtyWarehouse: 1,
				PurchasePrice: decimal.NewFromFloat(-5),
			},
			wantError: true,
			errorMsg:  "prices cannot be negative",
		},
		{
			name:      "unknown_stock_state",
			item:      &domain.Item{EAN: "123", Name: "Test Item", QtyWarehouse: 1, StockState: "broken"},
			wantError: true,
			errorMsg:  "unknown stock state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestItem_Validate_SetsDefaultsAndDerivedFields(t *testing.T) {
	item := &domain.Item{EAN: " 123 ", Name: " Widget ", QtyWarehouse: 2, QtyFBA: 3, QtyFBM: 1}

	require.NoError(t, item.Validate())

	assert.Equal(t, "123", item.EAN)
	assert.Equal(t, "Widget", item.Name)
	assert.Equal(t, domain.StateNew, item.StockState)
	assert.Equal(t, domain.StatusReceived, item.Status)
	assert.Equal(t, 6, item.Qty)
	assert.True(t, item.AmazonFBA)
	assert.True(t, item.AmazonFBM)
}

func TestItem_Validate_ScrapIsNonSellable(t *testing.T) {
	item := &domain.Item{EAN: "123", Name: "Cracked lamp", StockState: domain.StateScrap, QtyWarehouse: 4}

	require.NoError(t, item.Validate())
	assert.True(t, item.NonSellable)
	assert.False(t, item.InStock())
	assert.False(t, item.Countable())

	// back out of scrap on edit
	item.StockState = domain.StateUsed
	require.NoError(t, item.Validate())
	assert.False(t, item.NonSellable)
	assert.True(t, item.InStock())
}

func TestItem_SetBuckets(t *testing.T) {
	tests := []struct {
		name          string
		warehouse     int
		fba           int
		fbm           int
		startFBA      bool
		wantTotal     int
		wantAmazonFBA bool
		wantAmazonFBM bool
	}{
		{name: "all_buckets", warehouse: 5, fba: 2, fbm: 1, wantTotal: 8, wantAmazonFBA: true, wantAmazonFBM: true},
		{name: "warehouse_only", warehouse: 4, wantTotal: 4},
		{name: "negative_values_are_clamped", warehouse: -3, fba: 2, wantTotal: 2, wantAmazonFBA: true},
		{name: "flag_is_never_cleared", warehouse: 1, startFBA: true, wantTotal: 1, wantAmazonFBA: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &domain.Item{AmazonFBA: tt.startFBA}
			item.SetBuckets(tt.warehouse, tt.fba, tt.fbm)

			assert.Equal(t, tt.wantTotal, item.Qty)
			assert.Equal(t, item.QtyWarehouse+item.QtyFBA+item.QtyFBM, item.Qty)
			assert.Equal(t, tt.wantAmazonFBA, item.AmazonFBA)
			assert.Equal(t, tt.wantAmazonFBM, item.AmazonFBM)
		})
	}
}

func TestItem_Deduct(t *testing.T) {
	tests := []struct {
		name        string
		warehouse   int
		fba         int
		fbm         int
		deduct      int
		wantRemoved int
		wantBuckets [3]int // warehouse, fba, fbm
	}{
		{name: "warehouse_absorbs_first", warehouse: 5, fbm: 2, deduct: 4, wantRemoved: 4, wantBuckets: [3]int{1, 0, 2}},
		{name: "spills_into_fbm_then_fba", warehouse: 1, fba: 3, fbm: 2, deduct: 4, wantRemoved: 4, wantBuckets: [3]int{0, 2, 0}},
		{name: "more_than_available", warehouse: 1, fba: 1, deduct: 5, wantRemoved: 2, wantBuckets: [3]int{0, 0, 0}},
		{name: "nothing_to_deduct", warehouse: 2, deduct: 0, wantRemoved: 0, wantBuckets: [3]int{2, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &domain.Item{}
			item.SetBuckets(tt.warehouse, tt.fba, tt.fbm)

			removed := item.Deduct(tt.deduct)

			assert.Equal(t, tt.wantRemoved, removed)
			assert.Equal(t, tt.wantBuckets, [3]int{item.QtyWarehouse, item.QtyFBA, item.QtyFBM})
			assert.Equal(t, tt.wantBuckets[0]+tt.wantBuckets[1]+tt.wantBuckets[2], item.Qty)
		})
	}
}

func TestItem_Metrics(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

	t.Run("margin_and_roi", func(t *testing.T) {
		item := &domain.Item{PurchasePrice: decimal.NewFromInt(10), ResalePrice: decimal.NewFromInt(15)}
		assert.InDelta(t, 50.0, item.MarginPercent(), 0.0001)
		assert.InDelta(t, 0.5, item.ROI(), 0.0001)
	})

	t.Run("margin_undefined_without_purchase_price", func(t *testing.T) {
		item := &domain.Item{ResalePrice: decimal.NewFromInt(15)}
		assert.Equal(t, domain.MetricUndefined, item.MarginPercent())
		assert.Equal(t, domain.MetricUndefined, item.ROI())
	})

	t.Run("margin_undefined_without_resale_price", func(t *testing.T) {
		item := &domain.Item{PurchasePrice: decimal.NewFromInt(10)}
		assert.Equal(t, domain.MetricUndefined, item.MarginPercent())
		assert.InDelta(t, -1.0, item.ROI(), 0.0001)
	})

	t.Run("age_in_whole_days", func(t *testing.T) {
		item := &domain.Item{DateAdded: now.Add(-10*24*time.Hour - 3*time.Hour)}
		assert.Equal(t, 10, item.AgeDays(now))
	})

	t.Run("risk_doubles_for_thin_margin", func(t *testing.T) {
		thin := &domain.Item{
			DateAdded:     now.Add(-20 * 24 * time.Hour),
			PurchasePrice: decimal.NewFromInt(100),
			ResalePrice:   decimal.NewFromInt(105),
		}
		fat := &domain.Item{
			DateAdded:     now.Add(-20 * 24 * time.Hour),
			PurchasePrice: decimal.NewFromInt(100),
			ResalePrice:   decimal.NewFromInt(200),
		}
		assert.Equal(t, 40.0, thin.RiskScore(now))
		assert.Equal(t, 20.0, fat.RiskScore(now))
	})
}

func TestItem_Normalize(t *testing.T) {
	item := &domain.Item{QtyWarehouse: 2, QtyFBM: 1, Qty: 99}

	item.Normalize()

	assert.Equal(t, domain.StateNew, item.StockState)
	assert.Equal(t, domain.StatusReceived, item.Status)
	assert.Equal(t, 3, item.Qty)
	assert.True(t, item.AmazonFBM)
}

func TestItem_Normalize_FlagsStoredScrap(t *testing.T) {
	item := &domain.Item{StockState: domain.StateScrap, QtyWarehouse: 1}

	item.Normalize()

	assert.True(t, item.NonSellable)
}

func TestItem_PrepareForStorage(t *testing.T) {
	item := &domain.Item{QtyWarehouse: 3}

	item.PrepareForStorage()

	assert.NotEqual(t, uuid.Nil, item.ID)
	assert.False(t, item.CreatedAt.IsZero())
	assert.False(t, item.UpdatedAt.IsZero())
	assert.False(t, item.DateAdded.IsZero())
	assert.Equal(t, 3, item.Qty)

	id := item.ID
	item.PrepareForStorage()
	assert.Equal(t, id, item.ID)
}

func TestParseBucket(t *testing.T) {
	b, err := domain.ParseBucket(" FBA ")
	require.NoError(t, err)
	assert.Equal(t, domain.BucketFBA, b)

	_, err = domain.ParseBucket("garage")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
