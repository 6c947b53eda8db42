// internal/core/services/view_test.go
package services_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/test/helpers"
)

var viewNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func stockItem(name string, mutate func(*domain.Item)) domain.Item {
	it := helpers.CreateTestItem(func(i *domain.Item) {
		i.Name = name
		i.DateAdded = viewNow.AddDate(0, 0, -10)
	})
	if mutate != nil {
		mutate(it)
	}
	it.Normalize()
	return *it
}

func names(items []domain.Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Name
	}
	return out
}

func TestComputeVisibleStock_Filters(t *testing.T) {
	items := []domain.Item{
		stockItem("Lamp", func(i *domain.Item) { i.Category = "home" }),
		stockItem("Used lamp", func(i *domain.Item) { i.StockState = domain.StateUsed }),
		stockItem("Broken radio", func(i *domain.Item) { i.StockState = domain.StateScrap }),
		stockItem("Damaged box", func(i *domain.Item) { i.NonSellable = true }),
		stockItem("FBA kettle", func(i *domain.Item) { i.SetBuckets(0, 2, 0) }),
		stockItem("Sold mug", func(i *domain.Item) { i.Sold = true }),
		stockItem("Vinted coat", func(i *domain.Item) { i.Vinted = true; i.Notes = "wool, size M" }),
	}
	purchases := []domain.Purchase{
		*helpers.CreateTestPurchase(func(p *domain.Purchase) {
			p.EAN = "4000000000001"
			p.SupplierName = "Nord"
		}),
	}
	items[0].EAN = "4000000000001"

	tests := []struct {
		name   string
		filter ports.StockFilter
		want   []string
	}{
		{
			name:   "new_view_excludes_non_sellable",
			filter: ports.StockFilter{View: ports.ViewNew, Sort: ports.SortNameAsc},
			want:   []string{"FBA kettle", "Lamp", "Vinted coat"},
		},
		{
			name:   "scrap_view_includes_non_sellable",
			filter: ports.StockFilter{View: ports.ViewScrap, Sort: ports.SortNameAsc},
			want:   []string{"Broken radio", "Damaged box"},
		},
		{
			name:   "warehouse_view_needs_warehouse_units",
			filter: ports.StockFilter{View: ports.ViewWarehouse, Search: "kettle"},
			want:   []string{},
		},
		{
			name:   "search_matches_notes_case_insensitively",
			filter: ports.StockFilter{Search: "  WOOL "},
			want:   []string{"Vinted coat"},
		},
		{
			name:   "channel_fba_uses_bucket_or_flag",
			filter: ports.StockFilter{Channel: ports.ChannelFBA},
			want:   []string{"FBA kettle"},
		},
		{
			name:   "bucket_filter",
			filter: ports.StockFilter{Bucket: domain.BucketFBA},
			want:   []string{"FBA kettle"},
		},
		{
			name:   "supplier_filter_goes_through_purchases",
			filter: ports.StockFilter{Supplier: "Nord"},
			want:   []string{"Lamp"},
		},
		{
			name:   "category_is_exact",
			filter: ports.StockFilter{Category: "home"},
			want:   []string{"Lamp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := services.ComputeVisibleStock(items, purchases, tt.filter, viewNow)
			assert.Equal(t, tt.want, names(got.Items))
			assert.NotContains(t, names(got.Items), "Sold mug")
		})
	}
}

func TestComputeVisibleStock_DateRangeIncludesWholeLastDay(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []domain.Item{
		stockItem("Morning", func(i *domain.Item) { i.DateAdded = day.Add(8 * time.Hour) }),
		stockItem("Late", func(i *domain.Item) { i.DateAdded = day.Add(23*time.Hour + 30*time.Minute) }),
		stockItem("Next day", func(i *domain.Item) { i.DateAdded = day.AddDate(0, 0, 1) }),
	}

	got := services.ComputeVisibleStock(items, nil, ports.StockFilter{
		DateFrom: &day,
		DateTo:   &day,
		Sort:     ports.SortDateAsc,
	}, viewNow)
	assert.Equal(t, []string{"Morning", "Late"}, names(got.Items))
}

func TestComputeVisibleStock_Sorting(t *testing.T) {
	items := []domain.Item{
		stockItem("école", func(i *domain.Item) { i.ResalePrice = decimal.Zero }),
		stockItem("Zebra", func(i *domain.Item) { i.ResalePrice = decimal.NewFromInt(50) }),
		stockItem("abricot", func(i *domain.Item) { i.ResalePrice = decimal.NewFromInt(22) }),
	}

	byName := services.ComputeVisibleStock(items, nil, ports.StockFilter{Sort: ports.SortNameAsc}, viewNow)
	assert.Equal(t, []string{"abricot", "école", "Zebra"}, names(byName.Items))

	// an item without resale price has no margin and ranks last
	byMargin := services.ComputeVisibleStock(items, nil, ports.StockFilter{Sort: ports.SortMarginDesc}, viewNow)
	assert.Equal(t, []string{"Zebra", "abricot", "école"}, names(byMargin.Items))

	// equal keys keep their input order
	byQty := services.ComputeVisibleStock(items, nil, ports.StockFilter{Sort: ports.SortQtyDesc}, viewNow)
	assert.Equal(t, []string{"école", "Zebra", "abricot"}, names(byQty.Items))
}

func TestAggregate(t *testing.T) {
	items := []domain.Item{
		stockItem("A", func(i *domain.Item) { i.SetBuckets(2, 1, 0) }),
		stockItem("B", func(i *domain.Item) {
			i.SetBuckets(0, 0, 4)
			i.PurchasePrice = decimal.RequireFromString("2.50")
			i.ResalePrice = decimal.NewFromInt(6)
		}),
	}

	agg := services.Aggregate(items)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 7, agg.TotalQty)
	assert.True(t, agg.PurchaseValue.Equal(decimal.NewFromInt(70)), "3×20 + 4×2.50")
	assert.True(t, agg.ResaleValue.Equal(decimal.NewFromInt(129)), "3×35 + 4×6")
	assert.True(t, agg.WarehouseValue.Equal(decimal.NewFromInt(40)))
	assert.True(t, agg.PotentialProfit.Equal(decimal.NewFromInt(59)))
}

func TestClassifyAlerts(t *testing.T) {
	items := []domain.Item{
		stockItem("no threshold", nil),
		stockItem("ok", func(i *domain.Item) { i.LowStockThreshold = 2 }),
		stockItem("low", func(i *domain.Item) { i.LowStockThreshold = 5; i.SetBuckets(3, 0, 0) }),
		stockItem("at threshold", func(i *domain.Item) { i.LowStockThreshold = 5 }),
		stockItem("empty", func(i *domain.Item) { i.LowStockThreshold = 1; i.SetBuckets(0, 0, 0) }),
		stockItem("scrap", func(i *domain.Item) { i.LowStockThreshold = 9; i.StockState = domain.StateScrap }),
	}

	report := services.ClassifyAlerts(items)
	assert.Equal(t, 1, report.Critical)
	assert.Equal(t, 2, report.Low)
	assert.Equal(t, 1, report.OK)
	assert.Equal(t, 1, report.Unconfigured)

	require.Len(t, report.Alerts, 3)
	assert.Equal(t, "empty", report.Alerts[0].Item.Name)
	assert.Equal(t, ports.AlertCritical, report.Alerts[0].Level)
	assert.Equal(t, "low", report.Alerts[1].Item.Name)
	assert.Equal(t, -2, report.Alerts[1].Gap)
}

func TestComputeDashboard(t *testing.T) {
	sale := decimal.NewFromInt(30)
	snap := &services.Snapshot{
		Items: []domain.Item{
			stockItem("warehouse", func(i *domain.Item) { i.SetBuckets(2, 1, 0) }),
			stockItem("sold", func(i *domain.Item) {
				i.Sold = true
				i.SalePrice = &sale
				i.SetBuckets(0, 0, 0)
			}),
			stockItem("scrap", func(i *domain.Item) {
				i.StockState = domain.StateScrap
				i.SetBuckets(0, 0, 2)
			}),
			stockItem("broken", func(i *domain.Item) { i.NonSellable = true; i.SetBuckets(1, 0, 0) }),
		},
		Purchases: []domain.Purchase{
			*helpers.CreateTestPurchase(),
			*helpers.CreateTestPurchase(func(p *domain.Purchase) { p.Received = true }),
		},
		Suppliers: []domain.Supplier{*helpers.CreateTestSupplier()},
		Invoices: []domain.Invoice{
			*helpers.CreateTestInvoice(),
			*helpers.CreateTestInvoice(func(inv *domain.Invoice) { inv.Paid = true }),
		},
		Movements: make([]domain.Movement, 12),
	}

	d := services.ComputeDashboard(snap, viewNow)
	assert.Equal(t, 3, d.InStockUnits, "scrap is not sellable stock")
	assert.Equal(t, 1, d.InStockItems)
	assert.Equal(t, 1, d.SoldCount)
	assert.True(t, d.StockValue.Equal(decimal.NewFromInt(60)))
	assert.True(t, d.WarehouseValue.Equal(decimal.NewFromInt(40)))
	assert.True(t, d.Revenue.Equal(sale))
	assert.True(t, d.Profit.Equal(decimal.NewFromInt(10)))
	assert.InDelta(t, 50.0, d.AverageMargin, 0.001)
	assert.Equal(t, 2, d.WarehouseUnits)
	assert.Equal(t, 1, d.FBAUnits)
	assert.Equal(t, 0, d.FBMUnits)
	assert.Equal(t, 3, d.ScrapUnits)
	assert.Equal(t, 1, d.Suppliers)
	assert.Equal(t, 1, d.PendingOrders)
	assert.Equal(t, 1, d.UnpaidInvoices)
	assert.Len(t, d.Recent, 10)
}

func TestSearchSnapshot(t *testing.T) {
	snap := &services.Snapshot{
		Items: []domain.Item{
			stockItem("Speaker mini", nil),
			stockItem("Speaker sold", func(i *domain.Item) { i.Sold = true }),
		},
		Purchases: []domain.Purchase{*helpers.CreateTestPurchase()},
		Suppliers: []domain.Supplier{*helpers.CreateTestSupplier(func(s *domain.Supplier) {
			s.Name = "Speaker Depot"
		})},
	}

	hits := services.SearchSnapshot(snap, "speaker")
	require.Len(t, hits, 3)
	assert.Equal(t, ports.ResultStock, hits[0].Type)
	assert.Equal(t, "Speaker mini", hits[0].Title)
	assert.Equal(t, ports.ResultPurchase, hits[1].Type)
	assert.Equal(t, "3700000000017 · Test Wholesale", hits[1].Sub)
	assert.Equal(t, ports.ResultSupplier, hits[2].Type)

	many := &services.Snapshot{}
	for i := 0; i < 20; i++ {
		many.Items = append(many.Items, stockItem("Speaker", nil))
	}
	assert.Len(t, services.SearchSnapshot(many, "speaker"), 15)
}
