package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount is the incremental reduction produced by a promo code.
type Discount struct {
	Amount decimal.Decimal
	// Percentage is Amount relative to the discounted base, in percent.
	Percentage decimal.Decimal
}

// Apply computes the discount of c on base, the order amount after tier
// discounts. The result never exceeds MaxDiscountAmount or base itself.
func Apply(c *Code, base decimal.Decimal) (Discount, error) {
	var amount decimal.Decimal
	switch c.DiscountType {
	case Percentage:
		amount = base.Mul(c.Value).Div(hundred)
	case FixedAmount:
		amount = c.Value
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}

	if c.MaxDiscountAmount != nil {
		amount = decimal.Min(amount, *c.MaxDiscountAmount)
	}
	amount = decimal.Min(amount, base)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	pct := decimal.Zero
	if base.IsPositive() {
		pct = amount.Div(base).Mul(hundred)
	}
	return Discount{Amount: amount, Percentage: pct}, nil
}
