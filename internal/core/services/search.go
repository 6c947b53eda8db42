// internal/core/services/search.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

const (
	minSearchLength = 2
	maxSearchHits   = 15
)

// SearchService runs the global search across stock, purchases and suppliers.
type SearchService struct {
	workspace *Workspace
}

var _ ports.SearchService = (*SearchService)(nil)

// NewSearchService creates a new search service
func NewSearchService(workspace *Workspace) *SearchService {
	return &SearchService{workspace: workspace}
}

// Search returns at most 15 hits for q; shorter queries return nothing.
func (s *SearchService) Search(ctx context.Context, q string) ([]ports.SearchResult, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if len([]rune(q)) < minSearchLength {
		return []ports.SearchResult{}, nil
	}
	return SearchSnapshot(s.workspace.Load(ctx), q), nil
}

// SearchSnapshot matches the lowercased query q against snap.
func SearchSnapshot(snap *Snapshot, q string) []ports.SearchResult {
	hits := make([]ports.SearchResult, 0, maxSearchHits)
	full := func() bool { return len(hits) >= maxSearchHits }

	for i := range snap.Items {
		if full() {
			return hits
		}
		p := &snap.Items[i]
		if p.Sold || !containsAny(q, p.Name, p.EAN, p.Category, p.Notes) {
			continue
		}
		hits = append(hits, ports.SearchResult{
			Type:  ports.ResultStock,
			ID:    p.ID,
			Title: p.Name,
			Sub:   fmt.Sprintf("%s · %d in stock", p.EAN, p.Qty),
		})
	}

	for i := range snap.Purchases {
		if full() {
			return hits
		}
		p := &snap.Purchases[i]
		if !containsAny(q, p.Name, p.EAN, p.SupplierName) {
			continue
		}
		hits = append(hits, ports.SearchResult{
			Type:  ports.ResultPurchase,
			ID:    p.ID,
			Title: p.Name,
			Sub:   purchaseSub(p),
		})
	}

	for i := range snap.Suppliers {
		if full() {
			return hits
		}
		sup := &snap.Suppliers[i]
		if !containsAny(q, sup.Name, sup.Email, sup.Contact) {
			continue
		}
		hits = append(hits, ports.SearchResult{
			Type:  ports.ResultSupplier,
			ID:    sup.ID,
			Title: sup.Name,
			Sub:   sup.Email,
		})
	}

	return hits
}

func purchaseSub(p *domain.Purchase) string {
	if p.SupplierName == "" {
		return p.EAN
	}
	return p.EAN + " · " + p.SupplierName
}

func containsAny(q string, fields ...string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
