// internal/core/domain/purchase.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VATRate is the fixed HT to TTC multiplier.
var VATRate = decimal.NewFromFloat(1.20)

// ToTTC converts a tax-exclusive amount.
func ToTTC(ht decimal.Decimal) decimal.Decimal {
	return ht.Mul(VATRate).Round(2)
}

// ToHT converts a tax-inclusive amount.
func ToHT(ttc decimal.Decimal) decimal.Decimal {
	return ttc.Div(VATRate).Round(2)
}

// Purchase is a purchase order line from a supplier.
type Purchase struct {
	ID           uuid.UUID       `json:"id"`
	UserID       string          `json:"user_id,omitempty"`
	EAN          string          `json:"ean"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	SupplierID   *uuid.UUID      `json:"supplier_id,omitempty"`
	SupplierName string          `json:"supplier_name,omitempty"`
	PriceHT      decimal.Decimal `json:"price_ht"`
	PriceTTC     decimal.Decimal `json:"price_ttc"`
	Qty          int             `json:"qty"`
	Received     bool            `json:"received"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks required fields and fills the missing side of the HT/TTC pair.
func (p *Purchase) Validate() error {
	p.EAN = strings.TrimSpace(p.EAN)
	p.Name = strings.TrimSpace(p.Name)
	if p.EAN == "" || p.Name == "" {
		return Invalid("", "ean and name are required")
	}
	if p.Qty < 0 {
		return Invalid("qty", "quantity cannot be negative")
	}
	if p.PriceHT.IsNegative() || p.PriceTTC.IsNegative() {
		return Invalid("price", "prices cannot be negative")
	}
	if p.Qty == 0 {
		p.Qty = 1
	}
	switch {
	case p.PriceTTC.IsZero() && p.PriceHT.IsPositive():
		p.PriceTTC = ToTTC(p.PriceHT)
	case p.PriceHT.IsZero() && p.PriceTTC.IsPositive():
		p.PriceHT = ToHT(p.PriceTTC)
	}
	return nil
}

// UnitCost is the price carried onto a promoted item: TTC, else HT, else 0.
func (p *Purchase) UnitCost() decimal.Decimal {
	if p.PriceTTC.IsPositive() {
		return p.PriceTTC
	}
	if p.PriceHT.IsPositive() {
		return p.PriceHT
	}
	return decimal.Zero
}

// TotalTTC is the line amount.
func (p *Purchase) TotalTTC() decimal.Decimal {
	return p.PriceTTC.Mul(decimal.NewFromInt(int64(p.Qty)))
}

// ToItem builds the new stock item a received purchase turns into.
func (p *Purchase) ToItem(now time.Time) *Item {
	qty := p.Qty
	if qty <= 0 {
		qty = 1
	}
	item := &Item{
		UserID:        p.UserID,
		EAN:           p.EAN,
		Name:          p.Name,
		Category:      p.Category,
		Condition:     "new",
		StockState:    StateNew,
		Status:        StatusReceived,
		PurchasePrice: p.UnitCost(),
		Notes:         p.Notes,
		DateAdded:     now,
	}
	item.SetBuckets(qty, 0, 0)
	return item
}

// PrepareForStorage sets the id and timestamps.
func (p *Purchase) PrepareForStorage() {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = now
	}
}
