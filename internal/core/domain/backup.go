// internal/core/domain/backup.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Backup document versioning.
const (
	BackupVersion = "resell-stock-v2"
	backupPrefix  = "resell-stock"
)

// Backup is the full export of a tenant's records.
type Backup struct {
	Version   string     `json:"version"`
	Date      time.Time  `json:"date"`
	Suppliers []Supplier `json:"suppliers"`
	Purchases []Purchase `json:"purchases"`
	Items     []Item     `json:"items"`
	Invoices  []Invoice  `json:"invoices"`
}

// NewBackup assembles a backup document at now.
func NewBackup(suppliers []Supplier, purchases []Purchase, items []Item, invoices []Invoice, now time.Time) *Backup {
	return &Backup{
		Version:   BackupVersion,
		Date:      now,
		Suppliers: suppliers,
		Purchases: purchases,
		Items:     items,
		Invoices:  invoices,
	}
}

// Check rejects documents that were not produced by this application.
func (b *Backup) Check() error {
	if b == nil || !strings.HasPrefix(b.Version, backupPrefix) {
		return ErrInvalidBackup
	}
	return nil
}

// Rebase prepares every record for re-insertion under userID: ids are
// regenerated and supplier links cleared, since restored suppliers get new ids.
func (b *Backup) Rebase(userID string) {
	for i := range b.Suppliers {
		b.Suppliers[i].ID = uuid.Nil
		b.Suppliers[i].UserID = userID
		b.Suppliers[i].PrepareForStorage()
	}
	for i := range b.Purchases {
		p := &b.Purchases[i]
		p.ID = uuid.Nil
		p.UserID = userID
		p.SupplierID = nil
		if p.Qty <= 0 {
			p.Qty = 1
		}
		p.PrepareForStorage()
	}
	for i := range b.Items {
		it := &b.Items[i]
		it.ID = uuid.Nil
		it.UserID = userID
		it.Normalize()
		it.PrepareForStorage()
	}
	for i := range b.Invoices {
		inv := &b.Invoices[i]
		inv.ID = uuid.Nil
		inv.UserID = userID
		inv.SupplierID = nil
		inv.PrepareForStorage()
	}
}
