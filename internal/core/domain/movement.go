// internal/core/domain/movement.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementType classifies a ledger entry.
type MovementType string

// Movement types
const (
	MovementReception  MovementType = "reception"
	MovementSale       MovementType = "sale"
	MovementTransfer   MovementType = "transfer"
	MovementAdjustment MovementType = "adjustment"
	MovementEntry      MovementType = "entry"
	MovementExit       MovementType = "exit"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementReception, MovementSale, MovementTransfer, MovementAdjustment, MovementEntry, MovementExit:
		return true
	}
	return false
}

// Well-known ledger location labels that are not buckets.
const (
	PlacePurchase  = "purchase"
	PlaceSold      = "sold"
	PlaceCount     = "count"
	PlaceUndefined = "undefined"
)

// Movement is an append-only ledger entry explaining a stock change. Qty is
// a magnitude; direction is carried by From and To.
type Movement struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id,omitempty"`
	ItemID    uuid.UUID    `json:"item_id"`
	EAN       string       `json:"ean"`
	Name      string       `json:"name"`
	Type      MovementType `json:"type"`
	Qty       int          `json:"qty"`
	From      string       `json:"from,omitempty"`
	To        string       `json:"to,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewMovement starts a ledger entry for item.
func NewMovement(item *Item, typ MovementType, qty int, from, to, reason string) Movement {
	return Movement{
		ItemID: item.ID,
		EAN:    item.EAN,
		Name:   item.Name,
		Type:   typ,
		Qty:    qty,
		From:   from,
		To:     to,
		Reason: reason,
	}
}
