// internal/handlers/export.go
package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler produces spreadsheet and CSV downloads.
type ExportHandler struct {
	responder
	stock     ports.StockService
	purchases ports.PurchaseService
	counts    ports.CountService
	now       func() time.Time
}

// NewExportHandler creates a new export handler
func NewExportHandler(stock ports.StockService, purchases ports.PurchaseService, counts ports.CountService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		responder: newResponder(logger, "export"),
		stock:     stock,
		purchases: purchases,
		counts:    counts,
		now:       time.Now,
	}
}

var stockHeaders = []string{
	"EAN", "Name", "Category", "Condition", "State", "Warehouse", "FBA", "FBM", "Qty",
	"Purchase price", "Resale price", "Margin %", "Location", "Status", "Date added",
}

// ExportStock handles GET /api/v1/export/stock.xlsx. It accepts the same
// filters as the stock list and ends with a TOTAL row.
func (h *ExportHandler) ExportStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, ok := h.parseStockFilter(w, r)
	if !ok {
		return
	}

	visible, err := h.stock.VisibleStock(ctx, filter)
	if err != nil {
		h.respondServiceError(w, r, "retrieve stock", err)
		return
	}

	rows := make([][]any, 0, len(visible.Items)+1)
	for i := range visible.Items {
		rows = append(rows, stockRow(&visible.Items[i]))
	}
	agg := visible.Aggregates
	rows = append(rows, []any{
		"TOTAL", fmt.Sprintf("%d items", agg.Count), "", "", "", "", "", "", agg.TotalQty,
		agg.PurchaseValue, agg.ResaleValue, "", "", "", "",
	})

	data, err := buildWorkbook("Stock", stockHeaders, rows, true)
	if err != nil {
		h.respondServiceError(w, r, "generate Excel file", err)
		return
	}

	h.sendFile(w, r, xlsxContentType, fmt.Sprintf("stock_%s.xlsx", h.now().Format("2006-01-02")), data)
	h.logger.InfoContext(ctx, "stock export completed", slog.Int("total_rows", len(visible.Items)))
}

func stockRow(it *domain.Item) []any {
	margin := any("")
	if m := it.MarginPercent(); m != domain.MetricUndefined {
		margin = m
	}
	added := ""
	if !it.DateAdded.IsZero() {
		added = it.DateAdded.Format(dateLayout)
	}
	return []any{
		it.EAN, it.Name, it.Category, it.Condition, string(it.StockState),
		it.QtyWarehouse, it.QtyFBA, it.QtyFBM, it.Qty,
		it.PurchasePrice, it.ResalePrice, margin,
		it.Location, string(it.Status), added,
	}
}

var purchaseHeaders = []string{
	"Date", "EAN", "Name", "Category", "Supplier", "Qty", "Price HT", "Price TTC", "Total TTC", "Received", "Notes",
}

// ExportPurchases handles GET /api/v1/export/purchases.csv
func (h *ExportHandler) ExportPurchases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.purchases.List(ctx, ports.PurchaseFilter{Search: r.URL.Query().Get("q")})
	if err != nil {
		h.respondServiceError(w, r, "retrieve purchases", err)
		return
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = ';'
	_ = cw.Write(purchaseHeaders)
	for i := range list.Purchases {
		p := &list.Purchases[i]
		date := ""
		if !p.PurchaseDate.IsZero() {
			date = p.PurchaseDate.Format(dateLayout)
		}
		_ = cw.Write([]string{
			date, p.EAN, p.Name, p.Category, p.SupplierName,
			strconv.Itoa(p.Qty),
			p.PriceHT.StringFixed(2), p.PriceTTC.StringFixed(2), p.TotalTTC().StringFixed(2),
			strconv.FormatBool(p.Received), p.Notes,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.respondServiceError(w, r, "generate CSV file", err)
		return
	}

	h.sendFile(w, r, "text/csv; charset=utf-8", fmt.Sprintf("purchases_%s.csv", h.now().Format("2006-01-02")), buf.Bytes())
	h.logger.InfoContext(ctx, "purchase export completed", slog.Int("total_rows", len(list.Purchases)))
}

var countHeaders = []string{"EAN", "Name", "Category", "Location", "Theoretical", "Counted", "Variance", "Status"}

// ExportCount handles GET /api/v1/export/count.xlsx?filter=variances
func (h *ExportHandler) ExportCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, ok := h.parseCountFilter(w, r)
	if !ok {
		return
	}

	session, err := h.counts.Current(ctx)
	if err != nil {
		h.respondServiceError(w, r, "retrieve count session", err)
		return
	}

	list := session.Filter(filter)
	rows := make([][]any, 0, len(list))
	for i := range list {
		row := &list[i]
		counted, variance := any(""), any("")
		if row.Counted != nil {
			counted = *row.Counted
		}
		if row.Variance != nil {
			variance = *row.Variance
		}
		rows = append(rows, []any{
			row.EAN, row.Name, row.Category, row.Location, row.Theoretical, counted, variance, row.Status(),
		})
	}

	data, err := buildWorkbook("Count", countHeaders, rows, false)
	if err != nil {
		h.respondServiceError(w, r, "generate Excel file", err)
		return
	}

	h.sendFile(w, r, xlsxContentType, fmt.Sprintf("count_%s.xlsx", session.StartedAt.Format("2006-01-02")), data)
}

func (h *ExportHandler) sendFile(w http.ResponseWriter, r *http.Request, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write export response", slog.String("error", err.Error()))
	}
}

// buildWorkbook writes a single-sheet workbook in memory. With boldLast the
// last row is styled like the header.
func buildWorkbook(sheetName string, headers []string, rows [][]any, boldLast bool) ([]byte, error) {
	file := xlsx.NewFile()

	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to add worksheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, header := range headers {
		cell := headerRow.AddCell()
		cell.SetString(header)
		emphasize(cell)
	}

	for i, values := range rows {
		row := sheet.AddRow()
		for _, v := range values {
			cell := row.AddCell()
			setCell(cell, v)
			if boldLast && i == len(rows)-1 {
				emphasize(cell)
			}
		}
	}

	for i := 1; i <= len(headers); i++ {
		sheet.SetColWidth(i, i, 15)
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}
	return buffer.Bytes(), nil
}

func emphasize(cell *xlsx.Cell) {
	style := cell.GetStyle()
	style.Font.Bold = true
	style.Fill.PatternType = "solid"
	style.Fill.FgColor = "CCCCCC"
}

func setCell(cell *xlsx.Cell, v any) {
	switch val := v.(type) {
	case int:
		cell.SetInt(val)
	case float64:
		cell.SetFloat(val)
	case decimal.Decimal:
		cell.SetFloat(val.Round(2).InexactFloat64())
	case string:
		cell.SetString(val)
	default:
		cell.SetString(fmt.Sprint(val))
	}
}

// RegisterRoutes mounts the export routes on mux.
func (h *ExportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/export/stock.xlsx", h.ExportStock)
	mux.HandleFunc("GET /api/v1/export/purchases.csv", h.ExportPurchases)
	mux.HandleFunc("GET /api/v1/export/count.xlsx", h.ExportCount)
}
