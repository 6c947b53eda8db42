// internal/workers/pdf_processor.go
package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// ErrNoInvoiceData is returned when a PDF text layer holds no invoice number
// or no amount.
var ErrNoInvoiceData = errors.New("no invoice data found in document")

// PDFProcessor turns supplier invoice PDFs into invoices.
type PDFProcessor struct {
	invoices ports.InvoiceService
	storage  ports.ObjectStorage
	maxSize  int
	logger   *slog.Logger
}

// NewPDFProcessor creates a new PDF processor. maxSizeMB <= 0 disables the
// size check.
func NewPDFProcessor(invoices ports.InvoiceService, storage ports.ObjectStorage, maxSizeMB int, logger *slog.Logger) *PDFProcessor {
	return &PDFProcessor{
		invoices: invoices,
		storage:  storage,
		maxSize:  maxSizeMB << 20,
		logger:   logger.With(slog.String("processor", "pdf")),
	}
}

// ProcessPDF reads the uploaded invoice and records it.
func (p *PDFProcessor) ProcessPDF(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	var payload InvoicePDFPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	ctx = payload.Context(ctx)

	p.logger.InfoContext(ctx, "processing invoice PDF",
		slog.String("job_id", payload.JobID),
		slog.String("key", payload.Key))

	data, err := p.storage.Download(ctx, payload.Key)
	if err != nil {
		return fmt.Errorf("failed to download invoice: %w", err)
	}
	if p.maxSize > 0 && len(data) > p.maxSize {
		return fmt.Errorf("invoice file is %d bytes, limit is %d: %w", len(data), p.maxSize, asynq.SkipRetry)
	}

	lines, err := ExtractText(ctx, data, p.logger)
	if err != nil {
		return fmt.Errorf("failed to read invoice: %w: %w", err, asynq.SkipRetry)
	}

	inv, err := ParseInvoiceText(lines)
	if err != nil {
		return fmt.Errorf("failed to parse invoice: %w: %w", err, asynq.SkipRetry)
	}
	inv.SupplierID = payload.SupplierID
	inv.Notes = "Imported from PDF"

	if err := p.invoices.Create(ctx, inv); err != nil {
		if domain.IsValidation(err) {
			return fmt.Errorf("failed to create invoice: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	if err := p.storage.Delete(ctx, payload.Key); err != nil {
		p.logger.WarnContext(ctx, "failed to delete processed upload",
			slog.String("key", payload.Key),
			slog.String("error", err.Error()))
	}

	p.logger.InfoContext(ctx, "invoice PDF processed",
		slog.String("job_id", payload.JobID),
		slog.String("invoice_id", inv.ID.String()),
		slog.String("number", inv.Number),
		slog.Duration("duration_ms", time.Since(start)))
	return nil
}

// ExtractText returns the text lines of every readable page of a PDF.
// Unreadable pages are logged and skipped.
func ExtractText(ctx context.Context, data []byte, logger *slog.Logger) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var lines []string
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.WarnContext(ctx, "failed to extract text from page",
				slog.Int("page", pageNum),
				slog.String("error", err.Error()))
			continue
		}
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return lines, nil
}

var (
	invoiceNumberRe = regexp.MustCompile(`(?i)(?:invoice|facture)\s*(?:n[o°º]\.?|number|num[eé]ro|#)?\s*[:#]?\s*([A-Z0-9][A-Z0-9/_.-]*[0-9][A-Z0-9/_-]*)`)
	totalHTRe       = regexp.MustCompile(`(?i)total\s*(?:h\.?t\.?|hors\s*taxes?|excl\.?\s*vat|net)\s*:?\s*€?\s*([0-9][0-9 .,]*)`)
	totalTTCRe      = regexp.MustCompile(`(?i)(?:total\s*t\.?t\.?c\.?|total\s*incl\.?\s*vat|net\s*[àa]\s*payer|amount\s*due)\s*:?\s*€?\s*([0-9][0-9 .,]*)`)
	dueDateRe       = regexp.MustCompile(`(?i)(?:[ée]ch[ée]ance|due\s*date|date\s*limite)[^0-9]*(\d{2}[/.-]\d{2}[/.-]\d{4})`)
	invoiceDateRe   = regexp.MustCompile(`(?i)date[^0-9]*(\d{2}[/.-]\d{2}[/.-]\d{4})`)

	spaces = strings.NewReplacer("\u00a0", " ", "\u202f", " ")
)

// ParseInvoiceText extracts the number, dates and totals of a supplier
// invoice from its text lines. The first match of each field wins. Dates are
// read day first.
func ParseInvoiceText(lines []string) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	var haveHT, haveTTC bool

	for _, raw := range lines {
		line := spaces.Replace(strings.TrimSpace(raw))
		if line == "" {
			continue
		}

		if inv.Number == "" {
			if m := invoiceNumberRe.FindStringSubmatch(line); m != nil {
				inv.Number = m[1]
			}
		}
		if !haveTTC {
			if m := totalTTCRe.FindStringSubmatch(line); m != nil {
				if d, ok := parseAmount(m[1]); ok {
					inv.AmountTTC, haveTTC = d, true
				}
			}
		}
		if !haveHT {
			if m := totalHTRe.FindStringSubmatch(line); m != nil {
				if d, ok := parseAmount(m[1]); ok {
					inv.AmountHT, haveHT = d, true
				}
			}
		}
		if m := dueDateRe.FindStringSubmatch(line); m != nil {
			if inv.DueDate == nil {
				inv.DueDate = parseDate(m[1])
			}
			continue
		}
		if inv.InvoiceDate == nil {
			if m := invoiceDateRe.FindStringSubmatch(line); m != nil {
				inv.InvoiceDate = parseDate(m[1])
			}
		}
	}

	if inv.Number == "" || (!haveHT && !haveTTC) {
		return nil, ErrNoInvoiceData
	}
	return inv, nil
}

// parseAmount reads "1 234,56", "1,234.56" and "1234.56" alike. The last
// separator followed by one or two digits is the decimal point.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return decimal.Zero, false
	}

	sep := strings.LastIndexAny(s, ".,")
	intPart, frac := s, ""
	if sep >= 0 && len(s)-sep-1 <= 2 {
		intPart, frac = s[:sep], s[sep+1:]
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if frac != "" {
		intPart += "." + frac
	}

	d, err := decimal.NewFromString(intPart)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseDate(s string) *time.Time {
	s = strings.NewReplacer(".", "/", "-", "/").Replace(s)
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return nil
	}
	return &t
}
