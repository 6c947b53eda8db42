// internal/core/services/catalog.go
package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
)

// importChunkSize bounds each batch insert of a catalog import.
const importChunkSize = 100

// Header keywords, matched as lowercase substrings. The first header that
// matches any keyword wins.
var (
	eanKeywords      = []string{"ean", "gtin", "code", "barr", "asin", "upc"}
	nameKeywords     = []string{"nom", "name", "title", "titre", "produit", "designation", "description", "libelle"}
	priceKeywords    = []string{"prix", "price", "ht", "ttc", "cost", "cout", "tarif", "ppc"}
	qtyKeywords      = []string{"qte", "quantit", "qty", "nb", "nombre"}
	categoryKeywords = []string{"cat", "categor", "type", "rayon"}
)

// CatalogService imports wholesaler catalogs as new stock.
type CatalogService struct {
	items  ports.ItemRepository
	views  *ViewCache
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.CatalogService = (*CatalogService)(nil)

// NewCatalogService creates a new catalog import service
func NewCatalogService(items ports.ItemRepository, views *ViewCache, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		items:  items,
		views:  views,
		logger: logger.With(slog.String("service", "catalog")),
		now:    time.Now,
	}
}

// Parse reads a .csv or .xlsx catalog and maps its columns by header name.
func (s *CatalogService) Parse(filename string, r io.Reader) (*ports.CatalogPreview, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return nil, domain.Invalid("file", "unsupported catalog format %q", filepath.Ext(filename))
	}
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, domain.Invalid("file", "empty file")
	}

	return BuildCatalogPreview(records[0], records[1:])
}

// BuildCatalogPreview maps headers to fields and converts the data rows.
func BuildCatalogPreview(headers []string, rows [][]string) (*ports.CatalogPreview, error) {
	cols := MapCatalogColumns(headers)
	if cols.EAN < 0 && cols.Name < 0 {
		return nil, domain.Invalid("file", "could not detect columns: the file needs an EAN or a name column")
	}

	preview := &ports.CatalogPreview{Headers: headers, Columns: cols, Rows: []ports.CatalogRow{}}
	for _, rec := range rows {
		cell := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		row := ports.CatalogRow{
			EAN:      cell(cols.EAN),
			Name:     cell(cols.Name),
			Price:    parsePrice(cell(cols.Price)),
			Qty:      parseQty(cell(cols.Qty)),
			Category: cell(cols.Category),
		}
		if row.EAN == "" && row.Name == "" {
			continue
		}
		preview.Rows = append(preview.Rows, row)
	}
	return preview, nil
}

// MapCatalogColumns finds the header index of each field, -1 when absent.
func MapCatalogColumns(headers []string) ports.CatalogColumns {
	find := func(keywords []string) int {
		for i, h := range headers {
			h = strings.ToLower(h)
			for _, k := range keywords {
				if strings.Contains(h, k) {
					return i
				}
			}
		}
		return -1
	}
	return ports.CatalogColumns{
		EAN:      find(eanKeywords),
		Name:     find(nameKeywords),
		Price:    find(priceKeywords),
		Qty:      find(qtyKeywords),
		Category: find(categoryKeywords),
	}
}

func parsePrice(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.NewReplacer("€", "", "$", "", " ", "", ",", ".").Replace(s))
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func parseQty(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// readCSV sniffs the separator from the header line: ';' when present,
// else ','.
func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	firstLine := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		firstLine = head[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = ','
	if bytes.IndexByte(firstLine, ';') >= 0 {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, domain.Invalid("file", "unreadable csv: %v", err)
	}

	// drop blank lines and a UTF-8 byte order mark
	out := records[:0]
	for i, rec := range records {
		if i == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, domain.Invalid("file", "unreadable workbook: %v", err)
	}
	if len(file.Sheets) == 0 {
		return nil, domain.Invalid("file", "empty file")
	}

	sheet := file.Sheets[0]
	var records [][]string
	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		rec := make([]string, 0, sheet.MaxCol)
		for i := 0; i < sheet.MaxCol; i++ {
			c := row.GetCell(i)
			if c == nil {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strings.TrimSpace(c.String()))
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process workbook rows: %w", err)
	}
	return records, nil
}

// Confirm creates one new-state item per row with its quantity in bucket.
// Rows that still lack an EAN or a name are skipped. It returns the number
// of items written. No movements are recorded for an import.
func (s *CatalogService) Confirm(ctx context.Context, rows []ports.CatalogRow, bucket domain.Bucket) (int, error) {
	bucket, err := domain.ParseBucket(string(bucket))
	if err != nil {
		return 0, err
	}

	now := s.now()
	owner := tenant.Owner(ctx)
	items := make([]domain.Item, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		item := domain.Item{
			UserID:        owner,
			EAN:           r.EAN,
			Name:          r.Name,
			Category:      r.Category,
			Condition:     "new",
			StockState:    domain.StateNew,
			Status:        domain.StatusReceived,
			PurchasePrice: r.Price,
			ResalePrice:   decimal.Zero,
			DateAdded:     now,
		}
		item.SetBucketQty(bucket, max(1, r.Qty))
		if err := item.Validate(); err != nil {
			skipped++
			continue
		}
		item.PrepareForStorage()
		items = append(items, item)
	}

	written := 0
	for start := 0; start < len(items); start += importChunkSize {
		end := min(start+importChunkSize, len(items))
		if err := s.items.SaveBatch(ctx, items[start:end]); err != nil {
			s.views.Invalidate(ctx)
			return written, fmt.Errorf("failed to import catalog rows %d-%d: %w", start+1, end, err)
		}
		written = end
	}
	s.views.Invalidate(ctx)

	s.logger.InfoContext(ctx, "catalog imported",
		slog.String("bucket", string(bucket)),
		slog.Int("imported", written),
		slog.Int("skipped", skipped))

	return written, nil
}
