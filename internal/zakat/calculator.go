// Package zakat computes obligations, aggregates statistics and serves the
// /zakat routes.
package zakat

import "github.com/shopspring/decimal"

// Rate is the share of an entry's amount that is due as zakat.
var Rate = decimal.RequireFromString("0.025")

// ComputeObligation returns amount × Rate. The product is exact in decimal and
// only converted to float64 on the way out.
func ComputeObligation(amount float64) float64 {
	return obligation(decimal.NewFromFloat(amount)).InexactFloat64()
}

func obligation(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(Rate)
}
