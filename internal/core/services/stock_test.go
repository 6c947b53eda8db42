// internal/core/services/stock_test.go
package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/test/helpers"
	"github.com/ammerola/resell-stock/test/mocks"
)

type stockFixture struct {
	items     *mocks.MockItemRepository
	purchases *mocks.MockPurchaseRepository
	movements *mocks.MockMovementRepository
	recorded  []domain.Movement
	svc       *services.StockService
}

func newStockFixture(t *testing.T) *stockFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &stockFixture{
		items:     mocks.NewMockItemRepository(ctrl),
		purchases: mocks.NewMockPurchaseRepository(ctrl),
		movements: mocks.NewMockMovementRepository(ctrl),
	}
	f.movements.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m *domain.Movement) error {
			f.recorded = append(f.recorded, *m)
			return nil
		}).AnyTimes()

	logger := helpers.TestLogger()
	f.svc = services.NewStockService(
		f.items,
		f.purchases,
		services.NewLedger(f.movements, logger),
		services.NewViewCache(nil, 0, logger),
		logger,
	)
	return f
}

func TestStockService_CreateItem_DeductsNewStock(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	f := newStockFixture(t)

	older := helpers.CreateTestItem(func(i *domain.Item) { i.SetBuckets(1, 1, 0) })
	newer := helpers.CreateTestItem(func(i *domain.Item) { i.SetBuckets(2, 0, 3) })

	f.items.EXPECT().FindNewStockByEAN(gomock.Any(), "3700000000017").
		Return([]domain.Item{*older, *newer}, nil)

	var updated []domain.Item
	f.items.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, it *domain.Item) error {
			updated = append(updated, *it)
			return nil
		}).Times(2)
	f.items.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	used := helpers.CreateTestItem(func(i *domain.Item) {
		i.ID = uuid.Nil
		i.UserID = ""
		i.StockState = domain.StateUsed
		i.SetBuckets(4, 0, 0)
	})

	result, err := f.svc.CreateItem(ctx, used)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Deducted)
	assert.Equal(t, 0, result.Shortfall)
	require.Len(t, result.Affected, 2)
	assert.Equal(t, helpers.TestUser, result.Item.UserID)
	assert.NotEqual(t, uuid.Nil, result.Item.ID)

	// the older batch is emptied and closed
	require.Len(t, updated, 2)
	assert.Equal(t, older.ID, updated[0].ID)
	assert.Equal(t, 0, updated[0].Qty)
	assert.True(t, updated[0].Sold)
	assert.Contains(t, updated[0].Notes, "[transferred to used]")

	// the newer one gives 2 units, warehouse first then FBM
	assert.Equal(t, newer.ID, updated[1].ID)
	assert.False(t, updated[1].Sold)
	assert.Equal(t, 0, updated[1].QtyWarehouse)
	assert.Equal(t, 3, updated[1].QtyFBM)
	assert.Equal(t, 3, updated[1].Qty)

	require.Len(t, f.recorded, 3)
	assert.Equal(t, domain.MovementTransfer, f.recorded[0].Type)
	assert.Equal(t, 2, f.recorded[0].Qty)
	assert.Equal(t, "new", f.recorded[0].From)
	assert.Equal(t, "used", f.recorded[0].To)
	assert.Equal(t, domain.MovementEntry, f.recorded[2].Type)
	assert.Equal(t, 4, f.recorded[2].Qty)
}

func TestStockService_CreateItem_Shortfall(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	f := newStockFixture(t)

	only := helpers.CreateTestItem(func(i *domain.Item) { i.SetBuckets(1, 0, 0) })
	f.items.EXPECT().FindNewStockByEAN(gomock.Any(), gomock.Any()).Return([]domain.Item{*only}, nil)
	f.items.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	f.items.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	scrap := helpers.CreateTestItem(func(i *domain.Item) {
		i.StockState = domain.StateScrap
		i.SetBuckets(3, 0, 0)
	})

	result, err := f.svc.CreateItem(ctx, scrap)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deducted)
	assert.Equal(t, 2, result.Shortfall)
	assert.Equal(t, 3, result.Item.Qty, "the new item keeps its full quantity")
	assert.True(t, result.Item.NonSellable, "scrap is flagged non-sellable")
}

func TestStockService_CreateItem(t *testing.T) {
	tests := []struct {
		name       string
		item       *domain.Item
		setupMocks func(*stockFixture)
		wantErr    func(error) bool
	}{
		{
			name: "new_item_skips_deduction",
			item: helpers.CreateTestItem(),
			setupMocks: func(f *stockFixture) {
				f.items.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name: "missing_ean_is_rejected",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.EAN = "  " }),
			setupMocks: func(f *stockFixture) {},
			wantErr:    domain.IsValidation,
		},
		{
			name: "zero_quantity_is_rejected",
			item: helpers.CreateTestItem(func(i *domain.Item) { i.SetBuckets(0, 0, 0) }),
			setupMocks: func(f *stockFixture) {},
			wantErr:    domain.IsValidation,
		},
		{
			name: "save_failure_is_wrapped",
			item: helpers.CreateTestItem(),
			setupMocks: func(f *stockFixture) {
				f.items.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
			},
			wantErr: func(err error) bool { return !domain.IsValidation(err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStockFixture(t)
			tt.setupMocks(f)

			_, err := f.svc.CreateItem(helpers.UserContext(helpers.TestUser), tt.item)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				assert.Empty(t, f.recorded)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStockService_GetItem_NotFound(t *testing.T) {
	f := newStockFixture(t)
	id := uuid.New()
	f.items.EXPECT().FindByID(gomock.Any(), id).Return(nil, nil)

	_, err := f.svc.GetItem(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockService_Sell(t *testing.T) {
	tests := []struct {
		name          string
		buckets       [3]int
		req           ports.SaleRequest
		wantBuckets   [3]int
		wantSold      bool
		wantErr       bool
		errorContains string
	}{
		{
			name:        "sells_from_channel_bucket",
			buckets:     [3]int{1, 2, 0},
			req:         ports.SaleRequest{Qty: 2, Price: decimal.NewFromInt(30), Channel: "Amazon FBA"},
			wantBuckets: [3]int{1, 0, 0},
		},
		{
			name:        "overflow_falls_back_to_deduction_order",
			buckets:     [3]int{1, 2, 1},
			req:         ports.SaleRequest{Qty: 4, Price: decimal.NewFromInt(30), Channel: "fba"},
			wantBuckets: [3]int{0, 0, 0},
			wantSold:    true,
		},
		{
			name:        "defaults_to_one_unit_from_warehouse",
			buckets:     [3]int{2, 0, 0},
			req:         ports.SaleRequest{Price: decimal.NewFromInt(30), Channel: "Vinted"},
			wantBuckets: [3]int{1, 0, 0},
		},
		{
			name:          "rejects_missing_price",
			buckets:       [3]int{2, 0, 0},
			req:           ports.SaleRequest{Qty: 1},
			wantErr:       true,
			errorContains: "invalid sale price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := helpers.UserContext(helpers.TestUser)
			f := newStockFixture(t)
			item := helpers.CreateTestItem(func(i *domain.Item) {
				i.SetBuckets(tt.buckets[0], tt.buckets[1], tt.buckets[2])
			})

			if !tt.wantErr {
				f.items.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)
				f.items.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
			}

			got, err := f.svc.Sell(ctx, item.ID, tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantBuckets, [3]int{got.QtyWarehouse, got.QtyFBA, got.QtyFBM})
			assert.Equal(t, tt.wantSold, got.Sold)
			require.NotNil(t, got.SalePrice)
			assert.True(t, got.SalePrice.Equal(tt.req.Price))
			require.NotNil(t, got.SaleDate)

			require.Len(t, f.recorded, 1)
			assert.Equal(t, domain.MovementSale, f.recorded[0].Type)
			assert.Equal(t, domain.PlaceSold, f.recorded[0].To)
		})
	}
}

func TestStockService_Sell_InsufficientStock(t *testing.T) {
	f := newStockFixture(t)
	item := helpers.CreateTestItem(func(i *domain.Item) { i.SetBuckets(1, 1, 0) })
	f.items.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)

	_, err := f.svc.Sell(helpers.UserContext(helpers.TestUser), item.ID,
		ports.SaleRequest{Qty: 3, Price: decimal.NewFromInt(30)})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "insufficient stock (2 available)")
	assert.Empty(t, f.recorded, "no sale movement for a rejected sale")
}

func TestStockService_Sell_AlreadySold(t *testing.T) {
	f := newStockFixture(t)
	item := helpers.CreateTestItem(func(i *domain.Item) { i.Sold = true })
	f.items.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)

	_, err := f.svc.Sell(context.Background(), item.ID, ports.SaleRequest{Qty: 1, Price: decimal.NewFromInt(5)})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestStockService_Transfer(t *testing.T) {
	tests := []struct {
		name          string
		req           ports.TransferRequest
		loads         bool
		wantErr       string
		wantWarehouse int
		wantFBA       int
	}{
		{
			name:          "moves_units_between_buckets",
			req:           ports.TransferRequest{From: "warehouse", To: "FBA", Qty: 3},
			loads:         true,
			wantWarehouse: 2,
			wantFBA:       3,
		},
		{
			name:    "rejects_insufficient_stock",
			req:     ports.TransferRequest{From: domain.BucketWarehouse, To: domain.BucketFBM, Qty: 6},
			loads:   true,
			wantErr: "insufficient stock in warehouse (5 available)",
		},
		{
			name:    "rejects_same_bucket",
			req:     ports.TransferRequest{From: domain.BucketFBA, To: domain.BucketFBA, Qty: 1},
			wantErr: "source and destination must differ",
		},
		{
			name:    "rejects_unknown_bucket",
			req:     ports.TransferRequest{From: "shelf", To: domain.BucketFBA, Qty: 1},
			wantErr: "unknown location",
		},
		{
			name:    "rejects_zero_quantity",
			req:     ports.TransferRequest{From: domain.BucketWarehouse, To: domain.BucketFBA},
			wantErr: "quantity must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStockFixture(t)
			item := helpers.CreateTestItem()
			if tt.loads {
				f.items.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)
			}
			if tt.wantErr == "" {
				f.items.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
			}

			got, err := f.svc.Transfer(context.Background(), item.ID, tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantWarehouse, got.QtyWarehouse)
			assert.Equal(t, tt.wantFBA, got.QtyFBA)
			assert.Equal(t, 5, got.Qty)
			assert.True(t, got.AmazonFBA)
		})
	}
}

func TestStockService_ChangeStatus(t *testing.T) {
	f := newStockFixture(t)
	item := helpers.CreateTestItem()
	f.items.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)
	f.items.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	got, err := f.svc.ChangeStatus(context.Background(), item.ID, domain.StatusToShip)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusToShip, got.Status)

	require.Len(t, f.recorded, 1)
	assert.Equal(t, domain.MovementAdjustment, f.recorded[0].Type)
	assert.Equal(t, 0, f.recorded[0].Qty)
	assert.Equal(t, "Status: received → to_ship", f.recorded[0].Reason)

	_, err = f.svc.ChangeStatus(context.Background(), item.ID, "lost")
	assert.True(t, domain.IsValidation(err))
}

func TestStockService_BulkThreshold(t *testing.T) {
	f := newStockFixture(t)

	items := helpers.CreateTestItems(4)
	items[1].LowStockThreshold = 3
	items[2].Sold = true
	items[3].NonSellable = true

	f.items.EXPECT().List(gomock.Any(), ports.ItemQuery{}).Return(items, nil)
	f.items.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, it *domain.Item) error {
			assert.Equal(t, items[0].ID, it.ID)
			assert.Equal(t, 5, it.LowStockThreshold)
			return nil
		})

	n, err := f.svc.BulkThreshold(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.BulkThreshold(context.Background(), 0)
	assert.True(t, domain.IsValidation(err))
}

func TestStockService_PurchaseHistory(t *testing.T) {
	f := newStockFixture(t)
	stock := helpers.CreateTestItem()
	purchase := helpers.CreateTestPurchase()

	f.items.EXPECT().FindNewStockByEAN(gomock.Any(), "3700000000017").Return([]domain.Item{*stock}, nil)
	f.purchases.EXPECT().List(gomock.Any(), ports.PurchaseQuery{EAN: "3700000000017", Limit: 1}).
		Return([]domain.Purchase{*purchase}, nil)

	history, err := f.svc.PurchaseHistory(context.Background(), " 3700000000017 ")
	require.NoError(t, err)
	require.NotNil(t, history.Stock)
	require.NotNil(t, history.LastPurchase)
	assert.Equal(t, stock.ID, history.Stock.ID)
	assert.Equal(t, purchase.ID, history.LastPurchase.ID)
}

func TestStockService_ChangeLocation_RefreshesViews(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	ctrl := gomock.NewController(t)
	items := mocks.NewMockItemRepository(ctrl)
	movements := mocks.NewMockMovementRepository(ctrl)
	movements.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	r := helpers.SetupTestRedis(t)
	logger := helpers.TestLogger()
	views := services.NewViewCache(redis_a.NewCache(r.Client, logger), time.Minute, logger)
	svc := services.NewStockService(items, mocks.NewMockPurchaseRepository(ctrl),
		services.NewLedger(movements, logger), views, logger)

	item := helpers.CreateTestItem(func(i *domain.Item) { i.Location = "A1" })
	items.EXPECT().FindByID(gomock.Any(), item.ID).Return(item, nil)
	items.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	loads := 0
	load := func() {
		var out map[string]int
		require.NoError(t, views.Load(ctx, "alerts", &out, func() (interface{}, error) {
			loads++
			return map[string]int{"n": loads}, nil
		}))
	}
	load()
	load()
	require.Equal(t, 1, loads)

	got, err := svc.ChangeLocation(ctx, item.ID, " B2 ")
	require.NoError(t, err)
	assert.Equal(t, "B2", got.Location)

	load()
	assert.Equal(t, 2, loads, "cached views are dropped after a location change")
}
