// internal/core/services/backup_test.go
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/test/helpers"
	"github.com/ammerola/resell-stock/test/mocks"
)

type backupFixture struct {
	items     *mocks.MockItemRepository
	purchases *mocks.MockPurchaseRepository
	suppliers *mocks.MockSupplierRepository
	invoices  *mocks.MockInvoiceRepository
	svc       *services.BackupService
}

func newBackupFixture(t *testing.T, store ports.ObjectStorage) *backupFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &backupFixture{
		items:     mocks.NewMockItemRepository(ctrl),
		purchases: mocks.NewMockPurchaseRepository(ctrl),
		suppliers: mocks.NewMockSupplierRepository(ctrl),
		invoices:  mocks.NewMockInvoiceRepository(ctrl),
	}
	logger := helpers.TestLogger()
	f.svc = services.NewBackupService(f.items, f.purchases, f.suppliers, f.invoices, store,
		services.NewViewCache(nil, 0, logger), logger)
	return f
}

func sampleBackup(items int) *domain.Backup {
	supplierID := uuid.New()
	b := domain.NewBackup(
		[]domain.Supplier{*helpers.CreateTestSupplier(func(s *domain.Supplier) { s.ID = supplierID })},
		[]domain.Purchase{*helpers.CreateTestPurchase(func(p *domain.Purchase) { p.SupplierID = &supplierID })},
		helpers.CreateTestItems(items),
		[]domain.Invoice{*helpers.CreateTestInvoice(func(inv *domain.Invoice) { inv.SupplierID = &supplierID })},
		time.Now(),
	)
	for i := range b.Items {
		b.Items[i].UserID = "someone-else"
	}
	return b
}

func TestBackupService_Restore_OrderAndChunks(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	f := newBackupFixture(t, nil)
	b := sampleBackup(120)
	oldItemID := b.Items[0].ID

	var itemChunks []int
	gomock.InOrder(
		f.invoices.EXPECT().DeleteAll(gomock.Any()).Return(nil),
		f.items.EXPECT().DeleteAll(gomock.Any()).Return(nil),
		f.purchases.EXPECT().DeleteAll(gomock.Any()).Return(nil),
		f.suppliers.EXPECT().DeleteAll(gomock.Any()).Return(nil),
		f.suppliers.EXPECT().SaveBatch(gomock.Any(), gomock.Len(1)).Return(nil),
		f.purchases.EXPECT().SaveBatch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, ps []domain.Purchase) error {
				assert.Nil(t, ps[0].SupplierID)
				assert.Equal(t, "Test Wholesale", ps[0].SupplierName)
				return nil
			}),
		f.items.EXPECT().SaveBatch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, batch []domain.Item) error {
				itemChunks = append(itemChunks, len(batch))
				for _, it := range batch {
					assert.Equal(t, helpers.TestUser, it.UserID)
					assert.NotEqual(t, oldItemID, it.ID)
				}
				return nil
			}).Times(3),
		f.invoices.EXPECT().SaveBatch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, invs []domain.Invoice) error {
				assert.Nil(t, invs[0].SupplierID)
				return nil
			}),
	)

	report, err := f.svc.Restore(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, ports.RestoreReport{Suppliers: 1, Purchases: 1, Items: 120, Invoices: 1}, *report)
	assert.Equal(t, []int{50, 50, 20}, itemChunks)
}

func TestBackupService_Restore_RejectsBeforeDeleting(t *testing.T) {
	f := newBackupFixture(t, nil)

	b := sampleBackup(1)
	b.Version = "other-app-v1"
	_, err := f.svc.Restore(helpers.UserContext(helpers.TestUser), b)
	assert.ErrorIs(t, err, domain.ErrInvalidBackup)

	_, err = f.svc.Restore(helpers.UserContext(helpers.TestUser), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidBackup)

	_, err = f.svc.Restore(helpers.AdminContext(), sampleBackup(1))
	assert.True(t, domain.IsValidation(err))
}

func TestBackupService_ArchiveAndRestore(t *testing.T) {
	ctx := helpers.UserContext(helpers.TestUser)
	store, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)
	f := newBackupFixture(t, store)

	b := sampleBackup(2)
	f.suppliers.EXPECT().List(gomock.Any()).Return(b.Suppliers, nil)
	f.purchases.EXPECT().List(gomock.Any(), ports.PurchaseQuery{}).Return(b.Purchases, nil)
	f.items.EXPECT().List(gomock.Any(), ports.ItemQuery{IncludeSold: true}).Return(b.Items, nil)
	f.invoices.EXPECT().List(gomock.Any(), ports.InvoiceQuery{}).Return(b.Invoices, nil)

	key, err := f.svc.Archive(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^backups/user-test/\d{8}T\d{6}Z\.json$`, key)

	keys, err := store.List(ctx, "backups/user-test/")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	f.invoices.EXPECT().DeleteAll(gomock.Any()).Return(nil)
	f.items.EXPECT().DeleteAll(gomock.Any()).Return(nil)
	f.purchases.EXPECT().DeleteAll(gomock.Any()).Return(nil)
	f.suppliers.EXPECT().DeleteAll(gomock.Any()).Return(nil)
	f.suppliers.EXPECT().SaveBatch(gomock.Any(), gomock.Len(1)).Return(nil)
	f.purchases.EXPECT().SaveBatch(gomock.Any(), gomock.Len(1)).Return(nil)
	f.items.EXPECT().SaveBatch(gomock.Any(), gomock.Len(2)).Return(nil)
	f.invoices.EXPECT().SaveBatch(gomock.Any(), gomock.Len(1)).Return(nil)

	report, err := f.svc.RestoreArchive(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Items)
}
