// Package analytics aggregates stored orders.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/order"
)

// TypeSummary aggregates the orders of one customer type.
type TypeSummary struct {
	OrderCount   int
	GrossRevenue decimal.Decimal
	TotalSavings decimal.Decimal
	NetRevenue   decimal.Decimal
}

// Summary aggregates a set of orders.
type Summary struct {
	OrderCount   int
	GrossRevenue decimal.Decimal
	TotalSavings decimal.Decimal
	NetRevenue   decimal.Decimal
	// AverageDiscount is TotalSavings relative to GrossRevenue, in percent.
	AverageDiscount decimal.Decimal
	// ByCustomerType is keyed by the type the order was placed as.
	ByCustomerType map[customer.Type]TypeSummary
	// PromoRedemptions counts orders per promo code.
	PromoRedemptions map[string]int
}

// PromoCodes returns the redeemed codes sorted by redemptions, most used
// first.
func (s Summary) PromoCodes() []string {
	codes := make([]string, 0, len(s.PromoRedemptions))
	for c := range s.PromoRedemptions {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := s.PromoRedemptions[codes[i]], s.PromoRedemptions[codes[j]]
		if a != b {
			return a > b
		}
		return codes[i] < codes[j]
	})
	return codes
}

// Summarize sums orders.
func Summarize(orders []order.Order) Summary {
	s := Summary{
		GrossRevenue:     decimal.Zero,
		TotalSavings:     decimal.Zero,
		NetRevenue:       decimal.Zero,
		AverageDiscount:  decimal.Zero,
		ByCustomerType:   make(map[customer.Type]TypeSummary),
		PromoRedemptions: make(map[string]int),
	}

	for i := range orders {
		o := &orders[i]
		savings := o.TotalSavings()

		s.OrderCount++
		s.GrossRevenue = s.GrossRevenue.Add(o.Amount)
		s.TotalSavings = s.TotalSavings.Add(savings)
		s.NetRevenue = s.NetRevenue.Add(o.FinalAmount)

		ts, ok := s.ByCustomerType[o.RequestedType]
		if !ok {
			ts = TypeSummary{GrossRevenue: decimal.Zero, TotalSavings: decimal.Zero, NetRevenue: decimal.Zero}
		}
		ts.OrderCount++
		ts.GrossRevenue = ts.GrossRevenue.Add(o.Amount)
		ts.TotalSavings = ts.TotalSavings.Add(savings)
		ts.NetRevenue = ts.NetRevenue.Add(o.FinalAmount)
		s.ByCustomerType[o.RequestedType] = ts

		if o.PromoCode != "" {
			s.PromoRedemptions[o.PromoCode]++
		}
	}

	if s.GrossRevenue.IsPositive() {
		s.AverageDiscount = s.TotalSavings.Div(s.GrossRevenue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return s
}
