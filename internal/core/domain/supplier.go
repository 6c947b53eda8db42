// internal/core/domain/supplier.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier is referenced by purchases and invoices through a denormalized
// name; renaming a supplier does not rewrite those records.
type Supplier struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                string          `json:"user_id,omitempty"`
	Name                  string          `json:"name"`
	Contact               string          `json:"contact,omitempty"`
	Email                 string          `json:"email,omitempty"`
	Phone                 string          `json:"phone,omitempty"`
	Address               string          `json:"address,omitempty"`
	Website               string          `json:"website,omitempty"`
	SIRET                 string          `json:"siret,omitempty"`
	VATNumber             string          `json:"vat_number,omitempty"`
	PaymentTerms          string          `json:"payment_terms,omitempty"`
	LeadTime              string          `json:"lead_time,omitempty"`
	MOQ                   int             `json:"moq"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
	Category              string          `json:"category,omitempty"`
	Notes                 string          `json:"notes,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (s *Supplier) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return Invalid("name", "name is required")
	}
	if s.MOQ < 0 {
		return Invalid("moq", "minimum order quantity cannot be negative")
	}
	if s.FreeShippingThreshold.IsNegative() {
		return Invalid("free_shipping_threshold", "cannot be negative")
	}
	return nil
}

func (s *Supplier) PrepareForStorage() {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

// SupplierStats summarizes the purchases made from one supplier.
type SupplierStats struct {
	SupplierID    uuid.UUID       `json:"supplier_id"`
	PurchaseCount int             `json:"purchase_count"`
	TotalTTC      decimal.Decimal `json:"total_ttc"`
	InvoiceCount  int             `json:"invoice_count"`
}
