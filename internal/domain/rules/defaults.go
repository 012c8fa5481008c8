package rules

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// DefaultConfig returns the reference rule set.
func DefaultConfig() Config {
	return Config{
		CustomerTypes: map[customer.Type]CustomerTypeRule{
			customer.Regular: {
				BaseDiscount:     decimal.Zero,
				MaxTotalDiscount: ptr(decimal.RequireFromString("0.40")),
			},
			customer.Loyalty: {
				BaseDiscount:     decimal.RequireFromString("0.05"),
				MaxTotalDiscount: ptr(decimal.RequireFromString("0.50")),
			},
			customer.VIP: {
				BaseDiscount:     decimal.RequireFromString("0.10"),
				MaxTotalDiscount: ptr(decimal.RequireFromString("0.60")),
			},
			customer.Enterprise: {
				BaseDiscount:       decimal.RequireFromString("0.15"),
				MinimumOrderAmount: ptr(decimal.NewFromInt(5000)),
			},
		},
		Tiers: []TierBand{
			{
				MinAmount: decimal.NewFromInt(500),
				MaxAmount: ptr(decimal.RequireFromString("999.99")),
				Bonus:     decimal.RequireFromString("0.05"),
			},
			{
				MinAmount: decimal.NewFromInt(1000),
				Bonus:     decimal.RequireFromString("0.10"),
			},
		},
		Periods: []PromotionalPeriod{
			period("Black Friday", "2025-11-28", "2025-12-01", "2.0"),
			period("Holiday Season", "2025-12-15", "2025-12-31", "1.5"),
			period("Black Friday", "2026-11-27", "2026-11-30", "2.0"),
			period("Holiday Season", "2026-12-15", "2026-12-31", "1.5"),
		},
		Categories: []CategoryDiscount{
			{Category: "Electronics", Percentage: decimal.NewFromInt(10), Active: true},
			{Category: "Clothing", Percentage: decimal.NewFromInt(15), Active: true},
			{Category: "Books", Percentage: decimal.NewFromInt(5), Active: true},
			{Category: "Clearance", Percentage: decimal.NewFromInt(30), Active: false},
		},
		Policy: DefaultPolicy(),
	}
}

// DefaultPolicy returns the reference validation thresholds.
func DefaultPolicy() Policy {
	return Policy{
		DowngradeType:       customer.VIP,
		PromotionalMinimum:  decimal.NewFromInt(100),
		LargeOrderThreshold: decimal.NewFromInt(50000),
	}
}

// Default returns a Table built from DefaultConfig.
func Default() *Table {
	return MustNew(DefaultConfig())
}

func period(name, start, end, multiplier string) PromotionalPeriod {
	return PromotionalPeriod{
		Name:       name,
		Start:      mustDate(start),
		End:        mustDate(end),
		Multiplier: decimal.RequireFromString(multiplier),
		Enabled:    true,
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T {
	return &v
}
