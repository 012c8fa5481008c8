// Package rules holds the declarative discount rule table: per customer type
// base rates and caps, order size tier bands, promotional periods, category
// discounts and validation policy thresholds.
//
// A Table is immutable once built and safe for concurrent use.
package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// CustomerTypeRule configures the discount behaviour for one customer type.
type CustomerTypeRule struct {
	BaseDiscount decimal.Decimal
	// MaxTotalDiscount caps the combined discount. Nil means uncapped.
	MaxTotalDiscount *decimal.Decimal
	// MinimumOrderAmount is the smallest order that keeps this type. Orders
	// below it are downgraded to Policy.DowngradeType.
	MinimumOrderAmount *decimal.Decimal
}

// TierBand grants Bonus to orders of at least MinAmount.
type TierBand struct {
	MinAmount decimal.Decimal
	// MaxAmount is informational; nil means unbounded.
	MaxAmount *decimal.Decimal
	Bonus     decimal.Decimal
}

// PromotionalPeriod is an inclusive calendar date range with a seasonal
// multiplier for the base discount. Start and End carry no time of day.
type PromotionalPeriod struct {
	Name       string
	Start      time.Time
	End        time.Time
	Multiplier decimal.Decimal
	Enabled    bool
}

// Contains reports whether the calendar date of t lies within the period.
// The time of day and location of t are ignored.
func (p PromotionalPeriod) Contains(t time.Time) bool {
	day := DateOf(t)
	return !day.Before(p.Start) && !day.After(p.End)
}

// CategoryDiscount reduces the price of every product in a category.
type CategoryDiscount struct {
	Category string
	// Percentage is expressed in percent (10 means 10% off).
	Percentage decimal.Decimal
	Active     bool
}

// Policy holds the thresholds used by request validation.
type Policy struct {
	// DowngradeType is used for calculation when an order is below the
	// requested type's minimum order amount.
	DowngradeType customer.Type
	// PromotionalMinimum is the smallest amount that qualifies for the
	// seasonal multiplier during a promotional period.
	PromotionalMinimum decimal.Decimal
	// LargeOrderThreshold flags orders above it for manual review.
	LargeOrderThreshold decimal.Decimal
}

// Config is the raw input for building a Table.
type Config struct {
	CustomerTypes map[customer.Type]CustomerTypeRule
	Tiers         []TierBand
	Periods       []PromotionalPeriod
	Categories    []CategoryDiscount
	Policy        Policy
}

// Table is a validated, read-only snapshot of the discount rules.
type Table struct {
	customerTypes map[customer.Type]CustomerTypeRule
	tiers         []TierBand // descending by MinAmount
	periods       []PromotionalPeriod
	categories    map[string]CategoryDiscount
	categoryOrder []string
	policy        Policy
}

// New validates cfg and builds a Table from a copy of it.
func New(cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Table{
		customerTypes: make(map[customer.Type]CustomerTypeRule, len(cfg.CustomerTypes)),
		tiers:         append([]TierBand(nil), cfg.Tiers...),
		periods:       make([]PromotionalPeriod, len(cfg.Periods)),
		categories:    make(map[string]CategoryDiscount, len(cfg.Categories)),
		policy:        cfg.Policy,
	}
	for typ, rule := range cfg.CustomerTypes {
		t.customerTypes[typ] = rule
	}
	sort.SliceStable(t.tiers, func(i, j int) bool {
		return t.tiers[i].MinAmount.GreaterThan(t.tiers[j].MinAmount)
	})
	for i, p := range cfg.Periods {
		p.Start = DateOf(p.Start)
		p.End = DateOf(p.End)
		t.periods[i] = p
	}
	for _, c := range cfg.Categories {
		key := categoryKey(c.Category)
		t.categories[key] = c
		t.categoryOrder = append(t.categoryOrder, key)
	}
	return t, nil
}

// MustNew is like New but panics on invalid configuration.
func MustNew(cfg Config) *Table {
	t, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// RuleFor returns the rule configured for typ.
func (t *Table) RuleFor(typ customer.Type) (CustomerTypeRule, bool) {
	r, ok := t.customerTypes[typ]
	return r, ok
}

// BaseDiscountFor returns the base discount fraction for typ.
func (t *Table) BaseDiscountFor(typ customer.Type) (decimal.Decimal, bool) {
	r, ok := t.customerTypes[typ]
	if !ok {
		return decimal.Zero, false
	}
	return r.BaseDiscount, true
}

// MaxDiscountFor returns the discount cap for typ. A nil cap means the type
// is uncapped.
func (t *Table) MaxDiscountFor(typ customer.Type) (*decimal.Decimal, bool) {
	r, ok := t.customerTypes[typ]
	if !ok {
		return nil, false
	}
	return r.MaxTotalDiscount, true
}

// MinimumOrderFor returns the minimum order amount for typ, or nil.
func (t *Table) MinimumOrderFor(typ customer.Type) *decimal.Decimal {
	return t.customerTypes[typ].MinimumOrderAmount
}

// TierBonusFor returns the order size bonus for amount. Bands are checked
// from the highest threshold down and the first match wins.
func (t *Table) TierBonusFor(amount decimal.Decimal) decimal.Decimal {
	for _, band := range t.tiers {
		if amount.GreaterThanOrEqual(band.MinAmount) {
			return band.Bonus
		}
	}
	return decimal.Zero
}

// Tiers returns the tier bands in ascending threshold order.
func (t *Table) Tiers() []TierBand {
	out := make([]TierBand, len(t.tiers))
	for i, band := range t.tiers {
		out[len(t.tiers)-1-i] = band
	}
	return out
}

// ActivePeriodFor returns the first enabled period, in configuration order,
// whose date range contains date. It returns nil when no period matches.
func (t *Table) ActivePeriodFor(date time.Time) *PromotionalPeriod {
	for i := range t.periods {
		p := &t.periods[i]
		if p.Enabled && p.Contains(date) {
			period := *p
			return &period
		}
	}
	return nil
}

// QualifyingPeriodFor combines the period lookup with the promotional
// minimum. It returns the period whose multiplier applies to an order of
// amount placed on date. gated is true when a period matched but the amount
// is below Policy.PromotionalMinimum, in which case the period is nil.
func (t *Table) QualifyingPeriodFor(date time.Time, amount decimal.Decimal) (period *PromotionalPeriod, gated bool) {
	p := t.ActivePeriodFor(date)
	if p == nil {
		return nil, false
	}
	if amount.LessThan(t.policy.PromotionalMinimum) {
		return nil, true
	}
	return p, false
}

// Periods returns every configured promotional period.
func (t *Table) Periods() []PromotionalPeriod {
	return append([]PromotionalPeriod(nil), t.periods...)
}

// ActivePeriods returns enabled periods that have not ended as of now.
func (t *Table) ActivePeriods(now time.Time) []PromotionalPeriod {
	today := DateOf(now)
	var out []PromotionalPeriod
	for _, p := range t.periods {
		if p.Enabled && !p.End.Before(today) {
			out = append(out, p)
		}
	}
	return out
}

// CategoryDiscountFor returns the discount fraction for category. Unknown
// and inactive categories yield zero.
func (t *Table) CategoryDiscountFor(category string) decimal.Decimal {
	c, ok := t.categories[categoryKey(category)]
	if !ok || !c.Active {
		return decimal.Zero
	}
	return c.Percentage.Div(hundred)
}

// ActiveCategoryDiscounts returns active category discounts in
// configuration order.
func (t *Table) ActiveCategoryDiscounts() []CategoryDiscount {
	var out []CategoryDiscount
	for _, key := range t.categoryOrder {
		if c := t.categories[key]; c.Active {
			out = append(out, c)
		}
	}
	return out
}

// Policy returns the validation thresholds.
func (t *Table) Policy() Policy {
	return t.policy
}

// DateOf truncates t to its calendar date, expressed as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

var hundred = decimal.NewFromInt(100)
