package promo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// Warnings emitted for codes that restrict stacking. The caller decides how
// to honour them.
const (
	WarnDisablesTierBonuses = "This promo code disables tier bonuses"
	WarnNoSeasonalStacking  = "This promo code does not stack with seasonal multipliers"
)

// Validation is the outcome of checking a promo code against an order.
type Validation struct {
	Valid    bool
	Errors   []string
	Warnings []string
	// Code is set only when Valid is true.
	Code *Code
}

// Engine validates and redeems promo codes stored in a Repository.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Validate checks code for an order of amount placed by a customer of type
// t. Checks run in a fixed order and the first failure is the only error
// reported. Repository failures are returned as errors, never as
// validation messages.
func (e *Engine) Validate(ctx context.Context, code string, t customer.Type, amount decimal.Decimal) (*Validation, error) {
	c, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid("Invalid promo code"), nil
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	now := e.now()
	switch {
	case !c.Active:
		return invalid("Promo code is no longer active"), nil
	case !c.ValidFrom.IsZero() && now.Before(c.ValidFrom):
		return invalid("Promo code is not yet valid"), nil
	case !c.ValidUntil.IsZero() && now.After(c.ValidUntil):
		return invalid("Promo code has expired"), nil
	case c.Exhausted():
		return invalid("Promo code usage limit reached"), nil
	case c.MinOrderAmount != nil && amount.LessThan(*c.MinOrderAmount):
		return invalid(fmt.Sprintf("Minimum order amount of $%s required", c.MinOrderAmount.StringFixed(2))), nil
	case !c.Allows(t):
		return invalid(fmt.Sprintf("Promo code is only available for %s customers", joinTypes(c.AllowedCustomerTypes))), nil
	}

	v := &Validation{Valid: true, Code: c}
	if c.DisablesTierBonuses {
		v.Warnings = append(v.Warnings, WarnDisablesTierBonuses)
	}
	if !c.StacksWithSeasonalMultiplier {
		v.Warnings = append(v.Warnings, WarnNoSeasonalStacking)
	}
	return v, nil
}

// Redeem records one use of code. It must be called exactly once per
// finalized order, never while previewing.
func (e *Engine) Redeem(ctx context.Context, code string) error {
	if err := e.repo.IncrementUsage(ctx, code); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return ErrUsageLimitReached
		}
		return errors.Wrap(err, "increment promo code usage")
	}
	return nil
}

// ListActive returns codes that are active, inside their validity window
// and not exhausted as of now.
func (e *Engine) ListActive(ctx context.Context) ([]Code, error) {
	codes, err := e.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promo codes")
	}

	now := e.now()
	out := codes[:0]
	for _, c := range codes {
		if !c.Active || c.Exhausted() {
			continue
		}
		if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
			continue
		}
		if !c.ValidUntil.IsZero() && now.After(c.ValidUntil) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func invalid(msg string) *Validation {
	return &Validation{Errors: []string{msg}}
}

func joinTypes(types []customer.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}

// InvalidCodeError reports a promo code rejected for an order. Errors holds
// the validation messages.
type InvalidCodeError struct {
	Code   string
	Errors []string
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("promo code %s rejected: %s", e.Code, strings.Join(e.Errors, "; "))
}
