// internal/core/services/dashboard.go
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
)

// recentOnDashboard is how many movements the dashboard shows.
const recentOnDashboard = 10

// DashboardService computes the headline figures from a workspace snapshot.
type DashboardService struct {
	workspace *Workspace
	views     *ViewCache
	logger    *slog.Logger
	now       func() time.Time
}

var _ ports.DashboardService = (*DashboardService)(nil)

// NewDashboardService creates a new dashboard service
func NewDashboardService(workspace *Workspace, views *ViewCache, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		workspace: workspace,
		views:     views,
		logger:    logger.With(slog.String("service", "dashboard")),
		now:       time.Now,
	}
}

// Get returns the cached dashboard, computing it on a miss.
func (s *DashboardService) Get(ctx context.Context) (*ports.Dashboard, error) {
	var dash ports.Dashboard
	err := s.views.Load(ctx, viewDashboard, &dash, func() (interface{}, error) {
		s.logger.DebugContext(ctx, "computing dashboard")
		return ComputeDashboard(s.workspace.Load(ctx), s.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return &dash, nil
}

// ComputeDashboard derives the dashboard from snap.
func ComputeDashboard(snap *Snapshot, now time.Time) *ports.Dashboard {
	d := &ports.Dashboard{
		StockValue:     decimal.Zero,
		WarehouseValue: decimal.Zero,
		Revenue:        decimal.Zero,
		Profit:         decimal.Zero,
		Suppliers:      len(snap.Suppliers),
		GeneratedAt:    now,
	}

	var marginSum float64
	var margins int
	for i := range snap.Items {
		p := &snap.Items[i]
		switch {
		case p.Sold:
			d.SoldCount++
			sale := decimal.Zero
			if p.SalePrice != nil {
				sale = *p.SalePrice
			}
			d.Revenue = d.Revenue.Add(sale)
			d.Profit = d.Profit.Add(sale.Sub(p.PurchasePrice))
			if p.PurchasePrice.IsPositive() {
				marginSum += sale.Sub(p.PurchasePrice).Div(p.PurchasePrice).Mul(decimal.NewFromInt(100)).InexactFloat64()
				margins++
			}
			continue
		case p.InStock():
			d.InStockItems++
			d.InStockUnits += p.Qty
			d.WarehouseUnits += p.QtyWarehouse
			d.FBAUnits += p.QtyFBA
			d.FBMUnits += p.QtyFBM
			d.StockValue = d.StockValue.Add(p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Qty))))
			d.WarehouseValue = d.WarehouseValue.Add(p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.QtyWarehouse))))
		}
		if p.StockState == domain.StateScrap || p.NonSellable {
			d.ScrapUnits += p.Qty
		}
	}
	if margins > 0 {
		d.AverageMargin = marginSum / float64(margins)
	}

	for i := range snap.Purchases {
		if !snap.Purchases[i].Received {
			d.PendingOrders++
		}
	}
	for i := range snap.Invoices {
		if !snap.Invoices[i].Paid {
			d.UnpaidInvoices++
		}
	}

	alerts := ClassifyAlerts(snap.Items)
	d.CriticalAlerts = alerts.Critical
	d.LowAlerts = alerts.Low

	n := min(recentOnDashboard, len(snap.Movements))
	d.Recent = append([]domain.Movement{}, snap.Movements[:n]...)

	return d
}
