// Package discount computes tiered order discounts and validates discount
// requests against the rule table.
package discount

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/rules"
)

var (
	// ErrUnknownCustomerType is returned when the calculator is called with
	// a customer type that has no rule.
	ErrUnknownCustomerType = errors.New("unknown customer type")
	// ErrNegativeAmount is returned for amounts below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Context is the input of a discount computation.
type Context struct {
	CustomerType customer.Type
	Amount       decimal.Decimal
	OrderDate    time.Time
	// Period is the promotional period whose multiplier applies. It must
	// already account for the promotional minimum; nil means the order is
	// not promotional.
	Period *rules.PromotionalPeriod
	// SkipTierBonus drops the order size bonus.
	SkipTierBonus bool
	// SkipSeasonal ignores Period.
	SkipSeasonal bool
}

// Result is the discount breakdown for one order. Fractions are kept at full
// precision; use Percent for presentation.
type Result struct {
	BaseDiscount       decimal.Decimal
	TierBonus          decimal.Decimal
	SeasonalMultiplier decimal.Decimal
	TotalDiscount      decimal.Decimal
	AppliedCap         bool
	OriginalAmount     decimal.Decimal
	FinalAmount        decimal.Decimal
	SavingsAmount      decimal.Decimal
	// PeriodName names the promotional period applied, if any.
	PeriodName string
}

// DiscountPercentage returns the total discount in percent rounded to two
// decimal places.
func (r Result) DiscountPercentage() decimal.Decimal {
	return Percent(r.TotalDiscount)
}

// Percent converts a fraction to percent, rounded half up to two places.
func Percent(fraction decimal.Decimal) decimal.Decimal {
	return fraction.Mul(hundred).Round(2)
}

// Calculator derives discount breakdowns from a rule table. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	rules *rules.Table
}

// NewCalculator creates a Calculator backed by table.
func NewCalculator(table *rules.Table) *Calculator {
	return &Calculator{rules: table}
}

// ComputeTieredDiscount computes the discount for an order, resolving the
// qualifying promotional period from the rule table.
func (c *Calculator) ComputeTieredDiscount(t customer.Type, amount decimal.Decimal, orderDate time.Time) (Result, error) {
	period, _ := c.rules.QualifyingPeriodFor(orderDate, amount)
	return c.Compute(Context{
		CustomerType: t,
		Amount:       amount,
		OrderDate:    orderDate,
		Period:       period,
	})
}

// Compute applies, in order: base discount for the customer type, tier
// bonus for the amount, seasonal multiplier on the base discount only,
// the customer type cap, and finally the discount to the amount.
func (c *Calculator) Compute(in Context) (Result, error) {
	if in.Amount.IsNegative() {
		return Result{}, ErrNegativeAmount
	}
	rule, ok := c.rules.RuleFor(in.CustomerType)
	if !ok {
		return Result{}, errors.Wrapf(ErrUnknownCustomerType, "%q", in.CustomerType)
	}

	base := rule.BaseDiscount

	tier := decimal.Zero
	if !in.SkipTierBonus {
		tier = c.rules.TierBonusFor(in.Amount)
	}

	seasonal := one
	var periodName string
	if in.Period != nil && !in.SkipSeasonal {
		seasonal = in.Period.Multiplier
		periodName = in.Period.Name
	}

	// The tier bonus is added after scaling and is never multiplied.
	total := base.Mul(seasonal).Add(tier)

	applied := false
	if limit := rule.MaxTotalDiscount; limit != nil && total.GreaterThan(*limit) {
		total = *limit
		applied = true
	}

	final := in.Amount.Mul(one.Sub(total))
	return Result{
		BaseDiscount:       base,
		TierBonus:          tier,
		SeasonalMultiplier: seasonal,
		TotalDiscount:      total,
		AppliedCap:         applied,
		OriginalAmount:     in.Amount,
		FinalAmount:        final,
		SavingsAmount:      in.Amount.Sub(final),
		PeriodName:         periodName,
	}, nil
}
