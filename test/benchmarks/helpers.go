// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/test/helpers"
)

var benchNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var itemNames = []string{
	"Bluetooth Speaker",
	"Desk Lamp",
	"Electric Kettle",
	"Wool Coat",
	"Mechanical Keyboard",
	"Espresso Machine",
	"Running Shoes",
	"Board Game",
	"Hair Dryer",
	"Camping Tent",
}

// createStock builds n normalized items spread over the buckets, states and
// channels.
func createStock(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		it := helpers.CreateTestItem(func(it *domain.Item) {
			it.EAN = fmt.Sprintf("37%011d", i)
			it.Name = fmt.Sprintf("%s %d", itemNames[i%len(itemNames)], i)
			it.Category = []string{"audio", "home", "fashion", "toys"}[i%4]
			it.DateAdded = benchNow.AddDate(0, 0, -(i % 90))
			it.PurchasePrice = decimal.NewFromInt(int64(5 + i%40))
			it.ResalePrice = decimal.NewFromInt(int64(15 + i%60))
			it.LowStockThreshold = i % 5
			it.Vinted = i%3 == 0
			if i%7 == 0 {
				it.StockState = domain.StateUsed
			}
			it.SetBuckets(i%6, i%3, i%2)
			if it.Qty == 0 {
				it.SetBuckets(1, 0, 0)
			}
		})
		it.Normalize()
		items[i] = *it
	}
	return items
}

// createPurchases builds one purchase per item.
func createPurchases(items []domain.Item) []domain.Purchase {
	purchases := make([]domain.Purchase, len(items))
	for i := range items {
		purchases[i] = *helpers.CreateTestPurchase(func(p *domain.Purchase) {
			p.EAN = items[i].EAN
			p.Name = items[i].Name
			p.SupplierName = []string{"Nord", "Sud", "Est"}[i%3]
		})
	}
	return purchases
}

// createCatalog renders a semicolon separated wholesaler catalog.
func createCatalog(rows int) [][]string {
	out := make([][]string, 0, rows)
	for i := 0; i < rows; i++ {
		out = append(out, []string{
			fmt.Sprintf("40%011d", i),
			itemNames[i%len(itemNames)],
			fmt.Sprintf("%d,%02d", 3+i%50, i%100),
			fmt.Sprint(1 + i%12),
			"home",
		})
	}
	return out
}

// createInvoiceText returns the text lines of a long supplier invoice.
func createInvoiceText(lines int) []string {
	var b strings.Builder
	b.WriteString("NORD WHOLESALE\nFacture N° FA-2025-0142\nDate : 12/05/2025\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "%s x%d %d,00 €\n", itemNames[i%len(itemNames)], 1+i%4, 10+i%30)
	}
	b.WriteString("Total HT : 1 250,00 €\nTotal TTC : 1 500,00 €\nÉchéance : 11/06/2025\n")
	return strings.Split(b.String(), "\n")
}
