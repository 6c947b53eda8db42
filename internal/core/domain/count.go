// internal/core/domain/count.go
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CountFilter selects which rows of a count session are listed.
type CountFilter string

// Count filters
const (
	CountFilterAll       CountFilter = "all"
	CountFilterVariances CountFilter = "variances"
	CountFilterUncounted CountFilter = "uncounted"
)

// CountRow is one item of a physical count. Counted and Variance are nil
// until the item has been counted.
type CountRow struct {
	ItemID      uuid.UUID `json:"item_id"`
	EAN         string    `json:"ean"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Location    string    `json:"location,omitempty"`
	Theoretical int       `json:"theoretical"`
	Counted     *int      `json:"counted"`
	Variance    *int      `json:"variance"`
}

// IsCounted reports whether a value was entered for the row.
func (r *CountRow) IsCounted() bool {
	return r.Counted != nil
}

// HasVariance reports whether the row was counted with a non-zero variance.
func (r *CountRow) HasVariance() bool {
	return r.Variance != nil && *r.Variance != 0
}

// Status is the export label of the row.
func (r *CountRow) Status() string {
	switch {
	case !r.IsCounted():
		return "Not counted"
	case r.HasVariance():
		return "VARIANCE"
	default:
		return "Conforming"
	}
}

func (r *CountRow) set(counted int) {
	c := max(0, counted)
	v := c - r.Theoretical
	r.Counted = &c
	r.Variance = &v
}

func (r *CountRow) reset() {
	r.Counted = nil
	r.Variance = nil
}

// CountSession is an in-progress physical inventory.
type CountSession struct {
	UserID    string     `json:"user_id,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	Rows      []CountRow `json:"rows"`
}

// NewCountSession snapshots the theoretical quantity of every countable item.
func NewCountSession(userID string, items []Item, now time.Time) *CountSession {
	s := &CountSession{UserID: userID, StartedAt: now, Rows: make([]CountRow, 0, len(items))}
	for i := range items {
		it := &items[i]
		if !it.Countable() {
			continue
		}
		s.Rows = append(s.Rows, CountRow{
			ItemID:      it.ID,
			EAN:         it.EAN,
			Name:        it.Name,
			Category:    it.Category,
			Location:    it.Location,
			Theoretical: it.Qty,
		})
	}
	return s
}

func (s *CountSession) row(itemID uuid.UUID) *CountRow {
	for i := range s.Rows {
		if s.Rows[i].ItemID == itemID {
			return &s.Rows[i]
		}
	}
	return nil
}

// Record enters a counted value for an item. An empty value un-counts the row.
func (s *CountSession) Record(itemID uuid.UUID, value string) (*CountRow, error) {
	r := s.row(itemID)
	if r == nil {
		return nil, NotFound("count row", itemID)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		r.reset()
		return r, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, Invalid("counted", "invalid quantity %q", value)
	}
	r.set(n)
	return r, nil
}

// Scan adds one unit to the first row with the given EAN. The boolean is
// false when no row carries that EAN.
func (s *CountSession) Scan(ean string) (*CountRow, bool) {
	ean = strings.TrimSpace(ean)
	for i := range s.Rows {
		r := &s.Rows[i]
		if r.EAN != ean {
			continue
		}
		current := 0
		if r.Counted != nil {
			current = *r.Counted
		}
		r.set(current + 1)
		return r, true
	}
	return nil, false
}

// Filter returns the rows selected by f.
func (s *CountSession) Filter(f CountFilter) []CountRow {
	out := make([]CountRow, 0, len(s.Rows))
	for _, r := range s.Rows {
		switch f {
		case CountFilterVariances:
			if !r.HasVariance() {
				continue
			}
		case CountFilterUncounted:
			if r.IsCounted() {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// CountStats summarizes a session.
type CountStats struct {
	Total      int `json:"total"`
	Counted    int `json:"counted"`
	Conforming int `json:"conforming"`
	Variances  int `json:"variances"`
}

func (s *CountSession) Stats() CountStats {
	st := CountStats{Total: len(s.Rows)}
	for i := range s.Rows {
		r := &s.Rows[i]
		if !r.IsCounted() {
			continue
		}
		st.Counted++
		if r.HasVariance() {
			st.Variances++
		} else {
			st.Conforming++
		}
	}
	return st
}
