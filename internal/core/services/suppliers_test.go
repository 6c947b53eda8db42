// internal/core/services/suppliers_test.go
package services_test

import (
	"context"
	"testing"
	"time"

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

func TestSupplierSummaries(t *testing.T) {
	nord := *helpers.CreateTestSupplier(func(s *domain.Supplier) { s.Name = "Nord" })
	sud := *helpers.CreateTestSupplier(func(s *domain.Supplier) { s.Name = "Sud" })

	purchases := []domain.Purchase{
		*helpers.CreateTestPurchase(func(p *domain.Purchase) { p.SupplierID = &nord.ID }),
		// entered by name only
		*helpers.CreateTestPurchase(func(p *domain.Purchase) { p.SupplierName = "Nord"; p.Qty = 1 }),
		// linked to another supplier that happens to share the name
		*helpers.CreateTestPurchase(func(p *domain.Purchase) { p.SupplierID = &sud.ID; p.SupplierName = "Nord" }),
	}
	invoices := []domain.Invoice{
		*helpers.CreateTestInvoice(func(inv *domain.Invoice) { inv.SupplierID = &nord.ID }),
	}

	out := services.SupplierSummaries([]domain.Supplier{nord, sud}, purchases, invoices)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].Stats.PurchaseCount)
	assert.True(t, out[0].Stats.TotalTTC.Equal(decimal.NewFromInt(96)), "3×24 + 1×24")
	assert.Equal(t, 1, out[0].Stats.InvoiceCount)
	assert.Equal(t, 1, out[1].Stats.PurchaseCount)
	assert.Equal(t, 0, out[1].Stats.InvoiceCount)
}

func TestSupplierService_GetNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	suppliers := mocks.NewMockSupplierRepository(ctrl)
	logger := helpers.TestLogger()
	svc := services.NewSupplierService(suppliers, mocks.NewMockPurchaseRepository(ctrl),
		mocks.NewMockInvoiceRepository(ctrl), services.NewViewCache(nil, 0, logger), logger)

	id := uuid.New()
	suppliers.EXPECT().FindByID(gomock.Any(), id).Return(nil, nil)

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type invoiceFixture struct {
	invoices  *mocks.MockInvoiceRepository
	suppliers *mocks.MockSupplierRepository
	svc       *services.InvoiceService
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &invoiceFixture{
		invoices:  mocks.NewMockInvoiceRepository(ctrl),
		suppliers: mocks.NewMockSupplierRepository(ctrl),
	}
	logger := helpers.TestLogger()
	f.svc = services.NewInvoiceService(f.invoices, f.suppliers, services.NewViewCache(nil, 0, logger), logger)
	return f
}

func TestInvoiceService_Create(t *testing.T) {
	tests := []struct {
		name    string
		invoice *domain.Invoice
		wantHT  string
		wantTTC string
		wantErr bool
	}{
		{
			name: "derives_ttc_from_ht",
			invoice: helpers.CreateTestInvoice(func(inv *domain.Invoice) {
				inv.AmountHT = decimal.RequireFromString("99.99")
				inv.AmountTTC = decimal.Zero
			}),
			wantHT:  "99.99",
			wantTTC: "119.99",
		},
		{
			name: "derives_ht_from_ttc",
			invoice: helpers.CreateTestInvoice(func(inv *domain.Invoice) {
				inv.AmountHT = decimal.Zero
				inv.AmountTTC = decimal.NewFromInt(60)
			}),
			wantHT:  "50",
			wantTTC: "60",
		},
		{
			name:    "requires_a_number",
			invoice: helpers.CreateTestInvoice(func(inv *domain.Invoice) { inv.Number = " " }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvoiceFixture(t)
			if !tt.wantErr {
				f.invoices.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)
			}

			err := f.svc.Create(helpers.UserContext(helpers.TestUser), tt.invoice)
			if tt.wantErr {
				assert.True(t, domain.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.invoice.AmountHT.Equal(decimal.RequireFromString(tt.wantHT)), "ht %s", tt.invoice.AmountHT)
			assert.True(t, tt.invoice.AmountTTC.Equal(decimal.RequireFromString(tt.wantTTC)), "ttc %s", tt.invoice.AmountTTC)
		})
	}
}

func TestInvoiceService_MarkPaid(t *testing.T) {
	f := newInvoiceFixture(t)
	inv := helpers.CreateTestInvoice()
	f.invoices.EXPECT().FindByID(gomock.Any(), inv.ID).Return(inv, nil)
	f.invoices.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	got, err := f.svc.MarkPaid(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	require.NotNil(t, got.PaymentDate)
	assert.Equal(t, 0, got.PaymentDate.Hour())
	assert.WithinDuration(t, time.Now(), *got.PaymentDate, 24*time.Hour)
}

func TestInvoiceService_List(t *testing.T) {
	f := newInvoiceFixture(t)
	past := time.Now().AddDate(0, 0, -3)
	invoices := []domain.Invoice{
		*helpers.CreateTestInvoice(func(inv *domain.Invoice) { inv.DueDate = &past }),
		*helpers.CreateTestInvoice(func(inv *domain.Invoice) { inv.Paid = true; inv.DueDate = &past }),
		*helpers.CreateTestInvoice(),
	}
	f.invoices.EXPECT().List(gomock.Any(), ports.InvoiceQuery{}).Return(invoices, nil)

	list, err := f.svc.List(context.Background(), ports.InvoiceQuery{})
	require.NoError(t, err)
	require.Len(t, list.Invoices, 3)
	assert.True(t, list.Invoices[0].Overdue)
	assert.False(t, list.Invoices[1].Overdue, "paid invoices are never overdue")
	assert.False(t, list.Invoices[2].Overdue)

	assert.Equal(t, 3, list.Stats.Count)
	assert.Equal(t, 2, list.Stats.UnpaidCount)
	assert.Equal(t, 1, list.Stats.Overdue)
	assert.True(t, list.Stats.AmountDue.Equal(decimal.NewFromInt(240)))
}

func TestRenderListing(t *testing.T) {
	item := helpers.CreateTestItem(func(i *domain.Item) { i.Notes = "" })

	text, err := services.RenderListing(item, "Vinted")
	require.NoError(t, err)
	assert.Contains(t, text, "Test Bluetooth Speaker")
	assert.Contains(t, text, "Price: 35.00€")
	assert.Contains(t, text, "Item in new condition")

	text, err = services.RenderListing(item, "leboncoin")
	require.NoError(t, err)
	assert.Contains(t, text, "Feel free to contact me.")

	_, err = services.RenderListing(item, "ebay")
	assert.True(t, domain.IsValidation(err))
}
