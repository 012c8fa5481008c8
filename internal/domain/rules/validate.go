package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// ConfigError lists every inconsistency found in a rule configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid rule configuration: " + strings.Join(e.Problems, "; ")
}

// Overlap names two enabled promotional periods whose date ranges intersect.
type Overlap struct {
	First  string
	Second string
}

// Validate checks the configuration for inconsistencies that would make
// discount results meaningless, such as a cap below the base discount.
func (c Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	one := decimal.NewFromInt(1)
	for _, typ := range customer.Types {
		rule, ok := c.CustomerTypes[typ]
		if !ok {
			addf("customer type %s is not configured", typ)
			continue
		}
		if rule.BaseDiscount.IsNegative() || rule.BaseDiscount.GreaterThan(one) {
			addf("%s base discount %s outside [0, 1]", typ, rule.BaseDiscount)
		}
		if limit := rule.MaxTotalDiscount; limit != nil {
			if limit.IsNegative() || limit.GreaterThan(one) {
				addf("%s max discount %s outside [0, 1]", typ, limit)
			}
			if limit.LessThan(rule.BaseDiscount) {
				addf("%s max discount %s is below base discount %s", typ, limit, rule.BaseDiscount)
			}
		}
		if m := rule.MinimumOrderAmount; m != nil && m.IsNegative() {
			addf("%s minimum order amount is negative", typ)
		}
	}
	for typ := range c.CustomerTypes {
		if !typ.Valid() {
			addf("unknown customer type %q", typ)
		}
	}

	tiers := append([]TierBand(nil), c.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinAmount.LessThan(tiers[j].MinAmount)
	})
	for i, band := range tiers {
		if band.Bonus.IsNegative() {
			addf("tier %s has negative bonus", band.MinAmount)
		}
		if band.MaxAmount != nil && band.MaxAmount.LessThan(band.MinAmount) {
			addf("tier %s has max amount below min amount", band.MinAmount)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if prev.MaxAmount == nil || !band.MinAmount.GreaterThan(*prev.MaxAmount) {
			addf("tier %s overlaps tier %s", band.MinAmount, prev.MinAmount)
		}
	}

	for _, p := range c.Periods {
		if p.Name == "" {
			addf("promotional period without a name")
		}
		if DateOf(p.End).Before(DateOf(p.Start)) {
			addf("promotional period %q ends before it starts", p.Name)
		}
		if !p.Multiplier.IsPositive() {
			addf("promotional period %q has non-positive multiplier", p.Name)
		}
	}

	seen := make(map[string]bool, len(c.Categories))
	for _, cd := range c.Categories {
		key := categoryKey(cd.Category)
		if key == "" {
			addf("category discount without a category")
			continue
		}
		if seen[key] {
			addf("category %q configured twice", cd.Category)
		}
		seen[key] = true
		if cd.Percentage.IsNegative() || cd.Percentage.GreaterThan(hundred) {
			addf("category %q percentage %s outside [0, 100]", cd.Category, cd.Percentage)
		}
	}

	if !c.Policy.DowngradeType.Valid() {
		addf("policy downgrade type %q is unknown", c.Policy.DowngradeType)
	}
	if c.Policy.PromotionalMinimum.IsNegative() {
		addf("policy promotional minimum is negative")
	}
	if c.Policy.LargeOrderThreshold.IsNegative() {
		addf("policy large order threshold is negative")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Overlaps reports every pair of enabled periods with intersecting ranges.
// Lookups resolve such overlaps by configuration order.
func (t *Table) Overlaps() []Overlap {
	var out []Overlap
	for i := range t.periods {
		a := t.periods[i]
		if !a.Enabled {
			continue
		}
		for _, b := range t.periods[i+1:] {
			if !b.Enabled {
				continue
			}
			if !a.End.Before(b.Start) && !b.End.Before(a.Start) {
				out = append(out, Overlap{First: a.Name, Second: b.Name})
			}
		}
	}
	return out
}
