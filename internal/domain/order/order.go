package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/customer"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a placed order together with the discount breakdown it was
// priced with.
type Order struct {
	ID         string
	CustomerID string
	CartID     string
	Items      []OrderItem
	// RequestedType is the customer type the order was placed as.
	// EffectiveType is the one used for pricing.
	RequestedType customer.Type
	EffectiveType customer.Type
	Amount        decimal.Decimal
	Breakdown     Breakdown
	PromoCode     string
	PromoDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
	Warnings      []string
	OrderDate     time.Time
	CreatedAt     time.Time
}

// Breakdown is the persisted form of a tier discount computation.
type Breakdown struct {
	BaseDiscount       decimal.Decimal
	TierBonus          decimal.Decimal
	SeasonalMultiplier decimal.Decimal
	TotalDiscount      decimal.Decimal
	AppliedCap         bool
	PeriodName         string
	// TierSavings is the amount taken off by the tier discount alone.
	TierSavings decimal.Decimal
}

// TotalSavings returns everything taken off the order amount.
func (o *Order) TotalSavings() decimal.Decimal {
	return o.Amount.Sub(o.FinalAmount)
}

// OrderItem represents a single line item in an order placed from a cart.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	Delete(ctx context.Context, id string) error
}
