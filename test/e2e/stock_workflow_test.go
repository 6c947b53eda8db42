//go:build e2e

// test/e2e/stock_workflow_test.go
package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ammerola/resell-stock/internal/adapters/db"
	redis_a "github.com/ammerola/resell-stock/internal/adapters/redis_adapter"
	"github.com/ammerola/resell-stock/internal/adapters/storage"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/internal/handlers"
	"github.com/ammerola/resell-stock/internal/handlers/middleware"
	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/test/helpers"
)

const userHeader = "X-User-ID"

type StockE2ESuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	baseURL   string
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis
}

func (s *StockE2ESuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())

	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *StockE2ESuite) TearDownSuite() {
	s.server.Close()
	s.testDB.Database.Close()
	_ = s.testDB.Pool.Purge(s.testDB.Resource)
}

func (s *StockE2ESuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
	s.testRedis.Server.FlushAll()
}

// startTestServer wires the API the way cmd/api does, without a task queue.
func (s *StockE2ESuite) startTestServer() *httptest.Server {
	logger := helpers.TestLogger()
	database := s.testDB.Database

	objects, err := storage.NewLocalStorage(s.T().TempDir(), logger)
	s.Require().NoError(err)

	items := db.NewItemRepository(database, logger)
	purchases := db.NewPurchaseRepository(database, logger)
	suppliers := db.NewSupplierRepository(database, logger)
	invoices := db.NewInvoiceRepository(database, logger)
	movements := db.NewMovementRepository(database, logger)
	cache := redis_a.NewCache(s.testRedis.Client, logger)
	counts := redis_a.NewCountStore(s.testRedis.Client, 0, logger)

	views := services.NewViewCache(cache, time.Minute, logger)
	ledger := services.NewLedger(movements, logger)
	workspace := services.NewWorkspace(items, purchases, suppliers, invoices, movements, logger)

	stock := services.NewStockService(items, purchases, ledger, views, logger)
	purchaseSvc := services.NewPurchaseService(purchases, suppliers, items, ledger, views, logger)
	countSvc := services.NewCountService(items, counts, ledger, views, logger)

	mux := http.NewServeMux()
	handlers.NewStockHandler(stock, logger).RegisterRoutes(mux)
	handlers.NewPurchaseHandler(purchaseSvc, logger).RegisterRoutes(mux)
	handlers.NewSupplierHandler(
		services.NewSupplierService(suppliers, purchases, invoices, views, logger),
		services.NewInvoiceService(invoices, suppliers, views, logger),
		objects, nil, "uploads", 5, logger).RegisterRoutes(mux)
	handlers.NewCountHandler(countSvc, logger).RegisterRoutes(mux)
	handlers.NewExportHandler(stock, purchaseSvc, countSvc, logger).RegisterRoutes(mux)
	handlers.NewDashboardHandler(
		services.NewDashboardService(workspace, views, logger),
		services.NewSearchService(workspace), logger).RegisterRoutes(mux)
	handlers.NewBackupHandler(
		services.NewBackupService(items, purchases, suppliers, invoices, objects, views, logger),
		objects, nil, logger).RegisterRoutes(mux)

	handler := middleware.Tenant(config.TenantConfig{
		UserHeader:  userHeader,
		RoleHeader:  "X-User-Role",
		AdminRole:   "admin",
		RequireUser: true,
	})(mux)

	return httptest.NewServer(handler)
}

func (s *StockE2ESuite) TestPurchaseToCountWorkflow() {
	// 1. Record a purchase and receive it into stock
	resp := s.makeRequest("user-a", http.MethodPost, "/purchases", map[string]any{
		"ean":      "3700000000017",
		"name":     "Bluetooth Speaker",
		"category": "audio",
		"qty":      3,
		"price_ht": "20.00",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var purchase struct {
		ID string `json:"id"`
	}
	s.decodeResponse(resp, &purchase)
	s.NotEmpty(purchase.ID)

	resp = s.makeRequest("user-a", http.MethodPut, "/purchases/"+purchase.ID+"/received", map[string]any{"received": true})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var received struct {
		Item struct {
			ID           string `json:"id"`
			QtyWarehouse int    `json:"qty_warehouse"`
		} `json:"item"`
	}
	s.decodeResponse(resp, &received)
	s.Require().NotEmpty(received.Item.ID)
	s.Equal(3, received.Item.QtyWarehouse)
	itemID := received.Item.ID

	// 2. The item is visible to its owner only
	resp = s.makeRequest("user-a", http.MethodGet, "/stock?q=speaker", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var visible struct {
		Items      []map[string]any `json:"items"`
		Aggregates struct {
			Count    int `json:"count"`
			TotalQty int `json:"total_qty"`
		} `json:"aggregates"`
	}
	s.decodeResponse(resp, &visible)
	s.Len(visible.Items, 1)
	s.Equal(3, visible.Aggregates.TotalQty)

	resp = s.makeRequest("user-b", http.MethodGet, "/stock/"+itemID, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// 3. Sell one unit
	resp = s.makeRequest("user-a", http.MethodPost, "/stock/"+itemID+"/sell", map[string]any{
		"qty":     1,
		"price":   "35.00",
		"channel": "vinted",
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 4. Count the stock and validate a surplus
	resp = s.makeRequest("user-a", http.MethodPost, "/counts", nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest("user-a", http.MethodPost, "/counts", nil)
	s.Equal(http.StatusConflict, resp.StatusCode, "a session is already running")
	resp.Body.Close()

	resp = s.makeRequest("user-a", http.MethodPut, "/counts/current/rows/"+itemID, map[string]any{"value": "5"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var row struct {
		Theoretical int  `json:"theoretical"`
		Counted     *int `json:"counted"`
		Variance    *int `json:"variance"`
	}
	s.decodeResponse(resp, &row)
	s.Equal(2, row.Theoretical)
	s.Require().NotNil(row.Variance)
	s.Equal(3, *row.Variance)

	resp = s.makeRequest("user-a", http.MethodPost, "/counts/current/validate", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var validation struct {
		Counted  int `json:"counted"`
		Adjusted int `json:"adjusted"`
	}
	s.decodeResponse(resp, &validation)
	s.Equal(1, validation.Counted)
	s.Equal(1, validation.Adjusted)

	resp = s.makeRequest("user-a", http.MethodGet, "/counts/current", nil)
	s.Equal(http.StatusConflict, resp.StatusCode, "validation closes the session")
	resp.Body.Close()

	// 5. Every change is in the movement journal
	resp = s.makeRequest("user-a", http.MethodGet, "/stock/"+itemID+"/movements", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var movements []map[string]any
	s.decodeResponse(resp, &movements)
	s.GreaterOrEqual(len(movements), 3, "receipt, sale and count adjustment")
}

func (s *StockE2ESuite) TestSearchAndDashboard() {
	for i, name := range []string{"Desk Lamp", "Table Lamp", "Kettle"} {
		resp := s.makeRequest("user-a", http.MethodPost, "/stock", map[string]any{
			"ean":            fmt.Sprintf("40000000000%02d", i),
			"name":           name,
			"qty_warehouse":  2,
			"purchase_price": "8.00",
			"resale_price":   "19.90",
		})
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := s.makeRequest("user-a", http.MethodGet, "/search?q=lamp", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var search struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	s.decodeResponse(resp, &search)
	s.Equal("lamp", search.Query)
	s.Equal(2, search.Count)

	resp = s.makeRequest("user-a", http.MethodGet, "/dashboard", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest("user-b", http.MethodGet, "/search?q=lamp", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.decodeResponse(resp, &search)
	s.Zero(search.Count)
}

func (s *StockE2ESuite) TestBackupRoundTrip() {
	resp := s.makeRequest("user-a", http.MethodPost, "/suppliers", map[string]any{"name": "Nord Wholesale"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest("user-a", http.MethodGet, "/backup", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	backup, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/backup/restore", bytes.NewReader(backup))
	s.Require().NoError(err)
	req.Header.Set(userHeader, "user-a")
	req.Header.Set("Content-Type", "application/json")
	resp, err = s.client.Do(req)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var report struct {
		Suppliers int `json:"suppliers"`
	}
	s.decodeResponse(resp, &report)
	s.Equal(1, report.Suppliers)
}

func (s *StockE2ESuite) TestMissingIdentity() {
	resp, err := s.client.Get(s.baseURL + "/stock")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *StockE2ESuite) makeRequest(user, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.Require().NoError(err)
	req.Header.Set(userHeader, user)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *StockE2ESuite) decodeResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func TestStockE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(StockE2ESuite))
}
