package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// DiscountType enumerates the supported promo code discount strategies.
type DiscountType string

const (
	// Percentage takes a percentage off the amount after tier discounts.
	Percentage DiscountType = "PERCENTAGE"
	// FixedAmount takes a flat amount off, never more than the order.
	FixedAmount DiscountType = "FIXED_AMOUNT"
)

// ParseDiscountType converts user input into a DiscountType.
func ParseDiscountType(s string) (DiscountType, error) {
	switch t := DiscountType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Percentage, FixedAmount:
		return t, nil
	case "FIXED":
		return FixedAmount, nil
	default:
		return "", errors.Errorf("unsupported discount type: %q", s)
	}
}

var (
	// ErrNotFound is returned by repositories when no code matches.
	ErrNotFound = errors.New("promo code not found")
	// ErrUsageLimitReached is returned when a redemption would exceed the
	// code's usage limit.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
)

// Code is a promotional code definition together with its usage counter.
type Code struct {
	Code         string
	Description  string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MinOrderAmount is compared against the original order amount.
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	// ValidFrom and ValidUntil bound redemption time. Zero values leave the
	// corresponding side open.
	ValidFrom  time.Time
	ValidUntil time.Time
	// UsageLimit of zero means unlimited.
	UsageLimit int
	UsageCount int
	// AllowedCustomerTypes restricts redemption when non-empty.
	AllowedCustomerTypes         []customer.Type
	DisablesTierBonuses          bool
	StacksWithSeasonalMultiplier bool
	Active                       bool
}

// Exhausted reports whether the usage limit has been reached.
func (c *Code) Exhausted() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}

// Allows reports whether customers of type t may redeem the code.
func (c *Code) Allows(t customer.Type) bool {
	if len(c.AllowedCustomerTypes) == 0 {
		return true
	}
	for _, allowed := range c.AllowedCustomerTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

var maxPercentage = decimal.NewFromInt(100)

// Validate checks the definition of c. Rule files and CSV imports share it
// so that both accept the same codes.
func (c *Code) Validate() error {
	if !c.Value.IsPositive() {
		return errors.New("value must be positive")
	}
	if c.DiscountType == Percentage && c.Value.GreaterThan(maxPercentage) {
		return errors.New("percentage value must not exceed 100")
	}
	if c.MinOrderAmount != nil && c.MinOrderAmount.IsNegative() {
		return errors.New("min order amount must not be negative")
	}
	if c.MaxDiscountAmount != nil && c.MaxDiscountAmount.IsNegative() {
		return errors.New("max discount amount must not be negative")
	}
	if c.UsageLimit < 0 {
		return errors.New("usage limit must not be negative")
	}
	if !c.ValidFrom.IsZero() && !c.ValidUntil.IsZero() && c.ValidUntil.Before(c.ValidFrom) {
		return errors.New("valid until is before valid from")
	}
	return nil
}

// Normalize returns the canonical lookup form of a code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and mutation of promo codes.
type Repository interface {
	// FindByCode looks a code up case-insensitively. It returns ErrNotFound
	// when no code matches.
	FindByCode(ctx context.Context, code string) (*Code, error)
	List(ctx context.Context) ([]Code, error)
	Upsert(ctx context.Context, c *Code) error
	// IncrementUsage atomically increments the usage counter unless that
	// would exceed the usage limit, in which case it returns
	// ErrUsageLimitReached.
	IncrementUsage(ctx context.Context, code string) error
}
