// internal/core/domain/invoice.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is a supplier invoice.
type Invoice struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	Number       string          `json:"number"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	SupplierName string          `json:"supplier_name,omitempty"`
	InvoiceDate  *time.Time      `json:"invoice_date,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	AmountHT     decimal.Decimal `json:"amount_ht"`
	AmountTTC    decimal.Decimal `json:"amount_ttc"`
	Paid         bool            `json:"paid"`
	PaymentDate  *time.Time      `json:"payment_date,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (i *Invoice) Validate() error {
	i.Number = strings.TrimSpace(i.Number)
	if i.Number == "" {
		return Invalid("number", "invoice number is required")
	}
	if i.AmountHT.IsNegative() || i.AmountTTC.IsNegative() {
		return Invalid("amount", "amounts cannot be negative")
	}
	return nil
}

// Overdue reports whether the invoice is unpaid past its due date.
func (i *Invoice) Overdue(now time.Time) bool {
	return !i.Paid && i.DueDate != nil && i.DueDate.Before(now)
}

// MarkPaid flags the invoice as paid on the day of now.
func (i *Invoice) MarkPaid(now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	i.Paid = true
	i.PaymentDate = &day
}

func (i *Invoice) PrepareForStorage() {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

// InvoiceStats aggregates a list of invoices.
type InvoiceStats struct {
	Count       int             `json:"count"`
	TotalTTC    decimal.Decimal `json:"total_ttc"`
	UnpaidCount int             `json:"unpaid_count"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	Overdue     int             `json:"overdue"`
}

// SummarizeInvoices computes InvoiceStats at now.
func SummarizeInvoices(invoices []Invoice, now time.Time) InvoiceStats {
	stats := InvoiceStats{TotalTTC: decimal.Zero, AmountDue: decimal.Zero}
	for i := range invoices {
		inv := &invoices[i]
		stats.Count++
		stats.TotalTTC = stats.TotalTTC.Add(inv.AmountTTC)
		if !inv.Paid {
			stats.UnpaidCount++
			stats.AmountDue = stats.AmountDue.Add(inv.AmountTTC)
		}
		if inv.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats
}
