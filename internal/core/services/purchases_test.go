// internal/core/services/purchases_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/test/helpers"
	"github.com/ammerola/resell-stock/test/mocks"
)

type purchaseFixture struct {
	purchases *mocks.MockPurchaseRepository
	suppliers *mocks.MockSupplierRepository
	items     *mocks.MockItemRepository
	recorded  []domain.Movement
	svc       *services.PurchaseService
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &purchaseFixture{
		purchases: mocks.NewMockPurchaseRepository(ctrl),
		suppliers: mocks.NewMockSupplierRepository(ctrl),
		items:     mocks.NewMockItemRepository(ctrl),
	}
	movements := mocks.NewMockMovementRepository(ctrl)
	movements.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m *domain.Movement) error {
			f.recorded = append(f.recorded, *m)
			return nil
		}).AnyTimes()

	logger := helpers.TestLogger()
	f.svc = services.NewPurchaseService(f.purchases, f.suppliers, f.items,
		services.NewLedger(movements, logger), services.NewViewCache(nil, 0, logger), logger)
	return f
}

func TestPurchaseService_SetReceived_PromotesToStock(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	f := newPurchaseFixture(t)
	p := helpers.CreateTestPurchase()

	f.purchases.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
	f.purchases.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, got *domain.Purchase) error {
			assert.True(t, got.Received)
			return nil
		})
	f.items.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	item, err := f.svc.SetReceived(ctx, p.ID, true)
	require.NoError(t, err)
	require.NotNil(t, item)

	assert.Equal(t, p.EAN, item.EAN)
	assert.Equal(t, domain.StateNew, item.StockState)
	assert.Equal(t, 3, item.QtyWarehouse)
	assert.Equal(t, 3, item.Qty)
	assert.True(t, item.PurchasePrice.Equal(decimal.NewFromInt(24)), "TTC is the unit cost")
	assert.Equal(t, helpers.TestUser, item.UserID)

	require.Len(t, f.recorded, 1)
	assert.Equal(t, domain.MovementReception, f.recorded[0].Type)
	assert.Equal(t, domain.PlacePurchase, f.recorded[0].From)
	assert.Equal(t, "Test Wholesale", f.recorded[0].Notes)
}

func TestPurchaseService_SetReceived(t *testing.T) {
	tests := []struct {
		name       string
		purchase   *domain.Purchase
		received   bool
		setupMocks func(*purchaseFixture, *domain.Purchase)
		wantErr    string
	}{
		{
			name:     "same_flag_is_a_no_op",
			purchase: helpers.CreateTestPurchase(func(p *domain.Purchase) { p.Received = true }),
			received: true,
			setupMocks: func(f *purchaseFixture, p *domain.Purchase) {
				f.purchases.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
			},
		},
		{
			name:     "reverting_keeps_the_item",
			purchase: helpers.CreateTestPurchase(func(p *domain.Purchase) { p.Received = true }),
			received: false,
			setupMocks: func(f *purchaseFixture, p *domain.Purchase) {
				f.purchases.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
				f.purchases.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name:     "failed_promotion_surfaces_the_store_error",
			purchase: helpers.CreateTestPurchase(),
			received: true,
			setupMocks: func(f *purchaseFixture, p *domain.Purchase) {
				f.purchases.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
				f.purchases.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
				f.items.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("store rejected insert"))
			},
			wantErr: "failed to promote purchase: store rejected insert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPurchaseFixture(t)
			tt.setupMocks(f, tt.purchase)

			item, err := f.svc.SetReceived(context.Background(), tt.purchase.ID, tt.received)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Nil(t, item)
			assert.Empty(t, f.recorded)
			assert.Equal(t, tt.received, tt.purchase.Received)
		})
	}
}

func TestPurchaseService_Create_ResolvesSupplierName(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	f := newPurchaseFixture(t)
	sup := helpers.CreateTestSupplier(func(s *domain.Supplier) { s.Name = "Grossiste Nord" })

	f.suppliers.EXPECT().FindByID(gomock.Any(), sup.ID).Return(sup, nil)
	f.purchases.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *domain.Purchase) error {
			assert.Equal(t, "Grossiste Nord", p.SupplierName)
			return nil
		})

	p := helpers.CreateTestPurchase(func(p *domain.Purchase) {
		p.SupplierID = &sup.ID
		p.SupplierName = ""
	})
	require.NoError(t, f.svc.Create(ctx, p))

	unknown := uuid.New()
	f.suppliers.EXPECT().FindByID(gomock.Any(), unknown).Return(nil, nil)
	err := f.svc.Create(ctx, helpers.CreateTestPurchase(func(p *domain.Purchase) {
		p.SupplierID = &unknown
		p.SupplierName = ""
	}))
	assert.True(t, domain.IsValidation(err))
}

func TestPurchaseService_List_Stats(t *testing.T) {
	f := newPurchaseFixture(t)
	received := true
	lines := []domain.Purchase{
		*helpers.CreateTestPurchase(),
		*helpers.CreateTestPurchase(func(p *domain.Purchase) {
			p.Received = true
			p.Qty = 2
			p.PriceTTC = decimal.RequireFromString("9.50")
		}),
	}

	f.purchases.EXPECT().List(gomock.Any(), ports.PurchaseQuery{Search: "speaker", Received: &received}).
		Return(lines, nil)

	list, err := f.svc.List(context.Background(), ports.PurchaseFilter{Search: "speaker", Received: &received})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Stats.Count)
	assert.Equal(t, 1, list.Stats.Pending)
	assert.True(t, list.Stats.Amount.Equal(decimal.NewFromInt(91)), "3×24 + 2×9.50, got %s", list.Stats.Amount)
}
