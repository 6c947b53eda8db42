// internal/handlers/export_test.go
package handlers_test

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/handlers"
	"github.com/ammerola/resell-stock/test/helpers"
	"github.com/ammerola/resell-stock/test/mocks"
)

type exportFixture struct {
	mux       *http.ServeMux
	stock     *mocks.MockStockService
	purchases *mocks.MockPurchaseService
	counts    *mocks.MockCountService
}

func newExportFixture(t *testing.T) *exportFixture {
	ctrl := gomock.NewController(t)
	f := &exportFixture{
		mux:       http.NewServeMux(),
		stock:     mocks.NewMockStockService(ctrl),
		purchases: mocks.NewMockPurchaseService(ctrl),
		counts:    mocks.NewMockCountService(ctrl),
	}
	handlers.NewExportHandler(f.stock, f.purchases, f.counts, helpers.TestLogger()).RegisterRoutes(f.mux)
	return f
}

func cellValue(t *testing.T, sheet *xlsx.Sheet, row, col int) string {
	t.Helper()
	cell, err := sheet.Cell(row, col)
	require.NoError(t, err)
	return cell.Value
}

func TestExportHandler_ExportStock(t *testing.T) {
	f := newExportFixture(t)

	items := helpers.CreateTestItems(2)
	f.stock.EXPECT().VisibleStock(gomock.Any(), ports.StockFilter{View: ports.ViewNew}).
		Return(&ports.VisibleStock{
			Items: items,
			Aggregates: ports.StockAggregates{
				Count:         2,
				TotalQty:      10,
				PurchaseValue: decimal.NewFromInt(105),
			},
		}, nil)

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/stock.xlsx?view=new", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="stock_`)

	file, err := xlsx.OpenBinary(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	sheet := file.Sheets[0]

	assert.Equal(t, "Stock", sheet.Name)
	assert.Equal(t, 4, sheet.MaxRow, "header, two items, total")
	assert.Equal(t, "EAN", cellValue(t, sheet, 0, 0))
	assert.Equal(t, items[0].EAN, cellValue(t, sheet, 1, 0))
	assert.Equal(t, "Test Item 2", cellValue(t, sheet, 2, 1))
	assert.Equal(t, "TOTAL", cellValue(t, sheet, 3, 0))
	assert.Equal(t, "2 items", cellValue(t, sheet, 3, 1))
	assert.Equal(t, "10", cellValue(t, sheet, 3, 8))
}

func TestExportHandler_ExportPurchases(t *testing.T) {
	f := newExportFixture(t)

	p := helpers.CreateTestPurchase(func(p *domain.Purchase) {
		p.PurchaseDate = time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC)
		p.Notes = "pallet; mixed"
	})
	f.purchases.EXPECT().List(gomock.Any(), ports.PurchaseFilter{}).
		Return(&ports.PurchaseList{Purchases: []domain.Purchase{*p}}, nil)

	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/purchases.csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))

	r := csv.NewReader(strings.NewReader(w.Body.String()))
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Date", records[0][0])
	assert.Equal(t, []string{
		"2025-05-12", "3700000000017", "Test Bluetooth Speaker", "audio", "Test Wholesale",
		"3", "20.00", "24.00", "72.00", "false", "pallet; mixed",
	}, records[1])
}

func TestExportHandler_ExportCount(t *testing.T) {
	t.Run("no_session_is_conflict", func(t *testing.T) {
		f := newExportFixture(t)
		f.counts.EXPECT().Current(gomock.Any()).Return(nil, domain.ErrNoCountSession)

		w := httptest.NewRecorder()
		f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/count.xlsx", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown_filter", func(t *testing.T) {
		f := newExportFixture(t)

		w := httptest.NewRecorder()
		f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/count.xlsx?filter=odd", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("variances_only", func(t *testing.T) {
		f := newExportFixture(t)

		items := helpers.CreateTestItems(2)
		session := domain.NewCountSession(helpers.TestUser, items, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		_, err := session.Record(items[0].ID, "3")
		require.NoError(t, err)
		_, err = session.Record(items[1].ID, "5")
		require.NoError(t, err)
		f.counts.EXPECT().Current(gomock.Any()).Return(session, nil)

		w := httptest.NewRecorder()
		f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export/count.xlsx?filter=variances", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "count_2025-06-01.xlsx")

		file, err := xlsx.OpenBinary(w.Body.Bytes())
		require.NoError(t, err)
		sheet := file.Sheets[0]
		assert.Equal(t, 2, sheet.MaxRow)
		assert.Equal(t, items[0].EAN, cellValue(t, sheet, 1, 0))
		assert.Equal(t, "-2", cellValue(t, sheet, 1, 6))
	})
}
