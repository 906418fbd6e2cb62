package zakat

import (
	"github.com/shopspring/decimal"

	"github.com/ayush/zakat-tracker/internal/models"
)

type bucket struct {
	count  int
	amount decimal.Decimal
	zakat  decimal.Decimal
}

// Summarize totals entries overall and per category in a single pass.
// Sums are accumulated in decimal so many small entries do not drift.
func Summarize(entries []models.Entry) models.Summary {
	var total bucket
	byCategory := make(map[string]*bucket)

	for _, e := range entries {
		amount := decimal.NewFromFloat(e.Amount)
		zakat := decimal.NewFromFloat(e.ZakatAmount)

		total.count++
		total.amount = total.amount.Add(amount)
		total.zakat = total.zakat.Add(zakat)

		b, ok := byCategory[e.Category]
		if !ok {
			b = &bucket{}
			byCategory[e.Category] = b
		}
		b.count++
		b.amount = b.amount.Add(amount)
		b.zakat = b.zakat.Add(zakat)
	}

	breakdown := make(map[string]models.CategoryStats, len(byCategory))
	for name, b := range byCategory {
		breakdown[name] = models.CategoryStats{
			Count:       b.count,
			TotalAmount: b.amount.InexactFloat64(),
			TotalZakat:  b.zakat.InexactFloat64(),
		}
	}

	return models.Summary{
		TotalAmount:       total.amount.InexactFloat64(),
		TotalZakat:        total.zakat.InexactFloat64(),
		TotalEntries:      total.count,
		CategoryBreakdown: breakdown,
	}
}
