// internal/core/services/view.go
package services

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// ComputeVisibleStock filters, orders and aggregates items. Only unsold
// items are candidates. It performs no I/O and never reorders ties.
func ComputeVisibleStock(items []domain.Item, purchases []domain.Purchase, f ports.StockFilter, now time.Time) *ports.VisibleStock {
	match := buildMatcher(purchases, f)

	list := make([]domain.Item, 0, len(items))
	for i := range items {
		if match(&items[i]) {
			list = append(list, items[i])
		}
	}

	sortItems(list, f.Sort, now)

	return &ports.VisibleStock{
		Items:      list,
		Aggregates: Aggregate(list),
	}
}

func buildMatcher(purchases []domain.Purchase, f ports.StockFilter) func(*domain.Item) bool {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var supplierEANs map[string]struct{}
	if f.Supplier != "" {
		supplierEANs = make(map[string]struct{})
		for _, p := range purchases {
			if p.SupplierName == f.Supplier {
				supplierEANs[p.EAN] = struct{}{}
			}
		}
	}

	var upper time.Time
	if f.DateTo != nil {
		y, m, d := f.DateTo.Date()
		upper = time.Date(y, m, d, 23, 59, 59, 0, f.DateTo.Location())
	}

	return func(p *domain.Item) bool {
		if p.Sold || !matchView(p, f.View) {
			return false
		}
		if search != "" && !matchSearch(p, search) {
			return false
		}
		if f.Channel != "" && !matchChannel(p, f.Channel) {
			return false
		}
		if f.Category != "" && p.Category != f.Category {
			return false
		}
		if f.Bucket != "" && p.BucketQty(f.Bucket) <= 0 {
			return false
		}
		if f.DateFrom != nil && (p.DateAdded.IsZero() || p.DateAdded.Before(*f.DateFrom)) {
			return false
		}
		if f.DateTo != nil && (p.DateAdded.IsZero() || p.DateAdded.After(upper)) {
			return false
		}
		if supplierEANs != nil {
			if _, ok := supplierEANs[p.EAN]; !ok {
				return false
			}
		}
		if f.Status != "" {
			status := p.Status
			if status == "" {
				status = domain.StatusReceived
			}
			if status != f.Status {
				return false
			}
		}
		return true
	}
}

func matchView(p *domain.Item, v ports.StockView) bool {
	switch v {
	case ports.ViewNew:
		return p.StockState == domain.StateNew && !p.NonSellable
	case ports.ViewUsed:
		return p.StockState == domain.StateUsed && !p.NonSellable
	case ports.ViewWarehouse:
		return p.QtyWarehouse > 0 && !p.NonSellable
	case ports.ViewScrap:
		return p.StockState == domain.StateScrap || p.NonSellable
	default:
		return true
	}
}

func matchSearch(p *domain.Item, q string) bool {
	for _, field := range []string{p.Name, p.EAN, p.Category, p.Notes} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func matchChannel(p *domain.Item, c ports.Channel) bool {
	switch c {
	case ports.ChannelFBA:
		return p.QtyFBA > 0 || p.AmazonFBA
	case ports.ChannelFBM:
		return p.QtyFBM > 0 || p.AmazonFBM
	case ports.ChannelVinted:
		return p.Vinted
	case ports.ChannelLeboncoin:
		return p.Leboncoin
	default:
		return true
	}
}

func sortItems(list []domain.Item, key ports.SortKey, now time.Time) {
	var less func(a, b *domain.Item) bool

	switch key {
	case ports.SortDateAsc:
		less = func(a, b *domain.Item) bool { return a.DateAdded.Before(b.DateAdded) }
	case ports.SortQtyDesc:
		less = func(a, b *domain.Item) bool { return a.Qty > b.Qty }
	case ports.SortQtyAsc:
		less = func(a, b *domain.Item) bool { return a.Qty < b.Qty }
	case ports.SortPriceDesc:
		less = func(a, b *domain.Item) bool { return a.ResalePrice.GreaterThan(b.ResalePrice) }
	case ports.SortPriceAsc:
		less = func(a, b *domain.Item) bool { return a.ResalePrice.LessThan(b.ResalePrice) }
	case ports.SortNameAsc:
		col := collate.New(language.French, collate.IgnoreCase)
		less = func(a, b *domain.Item) bool { return col.CompareString(a.Name, b.Name) < 0 }
	case ports.SortMarginDesc:
		less = func(a, b *domain.Item) bool { return a.MarginPercent() > b.MarginPercent() }
	case ports.SortMarginAsc:
		less = func(a, b *domain.Item) bool { return a.MarginPercent() < b.MarginPercent() }
	case ports.SortROIDesc:
		less = func(a, b *domain.Item) bool { return a.ROI() > b.ROI() }
	case ports.SortAgeDesc:
		less = func(a, b *domain.Item) bool { return a.AgeDays(now) > b.AgeDays(now) }
	case ports.SortRiskDesc:
		less = func(a, b *domain.Item) bool { return a.RiskScore(now) > b.RiskScore(now) }
	default:
		less = func(a, b *domain.Item) bool { return a.DateAdded.After(b.DateAdded) }
	}

	sort.SliceStable(list, func(i, j int) bool { return less(&list[i], &list[j]) })
}

// Aggregate computes the value figures of a stock list.
func Aggregate(list []domain.Item) ports.StockAggregates {
	agg := ports.StockAggregates{
		PurchaseValue:  decimal.Zero,
		ResaleValue:    decimal.Zero,
		WarehouseValue: decimal.Zero,
	}
	for i := range list {
		p := &list[i]
		qty := decimal.NewFromInt(int64(p.Qty))
		agg.Count++
		agg.TotalQty += p.Qty
		agg.PurchaseValue = agg.PurchaseValue.Add(p.PurchasePrice.Mul(qty))
		agg.ResaleValue = agg.ResaleValue.Add(p.ResalePrice.Mul(qty))
		agg.WarehouseValue = agg.WarehouseValue.Add(p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.QtyWarehouse))))
	}
	agg.PotentialProfit = agg.ResaleValue.Sub(agg.PurchaseValue)
	return agg
}

// ClassifyAlerts grades every countable item against its low-stock
// threshold. Alerts holds the critical and low items by ascending quantity.
func ClassifyAlerts(items []domain.Item) *ports.AlertReport {
	report := &ports.AlertReport{Alerts: []ports.StockAlert{}}

	for i := range items {
		p := &items[i]
		if !p.Countable() {
			continue
		}
		level := AlertLevelOf(p)
		switch level {
		case ports.AlertUnconfigured:
			report.Unconfigured++
			continue
		case ports.AlertOK:
			report.OK++
			continue
		case ports.AlertCritical:
			report.Critical++
		case ports.AlertLow:
			report.Low++
		}
		report.Alerts = append(report.Alerts, ports.StockAlert{Item: *p, Level: level, Gap: p.Qty - p.LowStockThreshold})
	}

	sort.SliceStable(report.Alerts, func(i, j int) bool {
		return report.Alerts[i].Item.Qty < report.Alerts[j].Item.Qty
	})
	return report
}

// AlertLevelOf grades a single item.
func AlertLevelOf(p *domain.Item) ports.AlertLevel {
	switch {
	case p.LowStockThreshold <= 0:
		return ports.AlertUnconfigured
	case p.Qty == 0:
		return ports.AlertCritical
	case p.Qty <= p.LowStockThreshold:
		return ports.AlertLow
	default:
		return ports.AlertOK
	}
}
