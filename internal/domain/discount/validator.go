package discount

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/rules"
)

// ValidationResult collects every problem found with a discount request.
// Warnings never affect Valid.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validator applies the request policy of the rule table. Every rule is
// evaluated, so a request can carry several errors and warnings at once.
type Validator struct {
	rules *rules.Table
}

// NewValidator creates a Validator backed by table.
func NewValidator(table *rules.Table) *Validator {
	return &Validator{rules: table}
}

// Validate checks a raw discount request.
func (v *Validator) Validate(customerType string, amount decimal.Decimal, orderDate time.Time) ValidationResult {
	var res ValidationResult
	policy := v.rules.Policy()

	if !amount.IsPositive() {
		res.Errors = append(res.Errors, "Amount must be greater than zero")
	}

	t, err := customer.ParseType(customerType)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"Invalid customer type %q: must be one of %s", customerType, typeList(),
		))
	} else if minimum := v.rules.MinimumOrderFor(t); minimum != nil && amount.LessThan(*minimum) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%s orders below $%s are priced as %s",
			t, minimum.StringFixed(2), policy.DowngradeType,
		))
	}

	if _, gated := v.rules.QualifyingPeriodFor(orderDate, amount); gated {
		p := v.rules.ActivePeriodFor(orderDate)
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Orders below $%s do not qualify for the %s seasonal multiplier",
			policy.PromotionalMinimum.StringFixed(2), p.Name,
		))
	}

	// Orders below the first tier simply earn no bonus.

	if amount.GreaterThan(policy.LargeOrderThreshold) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Orders above $%s are flagged for manual review",
			policy.LargeOrderThreshold.StringFixed(2),
		))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// EffectiveCustomerType returns the type used for pricing. Types with a
// minimum order amount fall back to the policy downgrade type when the
// amount is below it.
func (v *Validator) EffectiveCustomerType(t customer.Type, amount decimal.Decimal) customer.Type {
	if minimum := v.rules.MinimumOrderFor(t); minimum != nil && amount.LessThan(*minimum) {
		return v.rules.Policy().DowngradeType
	}
	return t
}

func typeList() string {
	names := make([]string, len(customer.Types))
	for i, t := range customer.Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
