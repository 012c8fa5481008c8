package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/discount"
	"github.com/xenking/kart-discounts/internal/domain/promo"
)

// ErrCustomerTypeRequired is returned when neither a customer type nor a
// known customer is given.
var ErrCustomerTypeRequired = errors.New("customer type required")

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// PriceRequest holds the input for pricing an order.
type PriceRequest struct {
	// CustomerID, when set, supplies the customer type if CustomerType is
	// empty.
	CustomerID   string
	CustomerType string
	Amount       decimal.Decimal
	OrderDate    time.Time
	PromoCode    string
}

// Pricing is a fully composed price: tier discount first, then the promo
// code on the tier discounted amount.
type Pricing struct {
	Quote *discount.Quote
	// Promo is set when a promo code was applied.
	Promo         *promo.Code
	PromoDiscount promo.Discount
	FinalAmount   decimal.Decimal
	Warnings      []string
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	PriceRequest
	CartID string
	Items  []OrderItem
}

// Service encapsulates order pricing and placement.
type Service struct {
	quoter    *discount.Quoter
	promos    *promo.Engine
	orders    Repository
	customers customer.Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	quoter *discount.Quoter,
	promos *promo.Engine,
	orders Repository,
	customers customer.Repository,
) *Service {
	return &Service{
		quoter:    quoter,
		promos:    promos,
		orders:    orders,
		customers: customers,
		now:       time.Now,
	}
}

// Price computes the final price of an order without side effects.
func (s *Service) Price(ctx context.Context, req PriceRequest) (*Pricing, error) {
	typ, err := s.customerType(ctx, req)
	if err != nil {
		return nil, err
	}

	quote, err := s.quoter.Quote(ctx, discount.QuoteRequest{
		CustomerType: typ,
		Amount:       req.Amount,
		OrderDate:    req.OrderDate,
	})
	if err != nil {
		return nil, err
	}

	p := &Pricing{
		Quote:       quote,
		FinalAmount: quote.Result.FinalAmount,
		Warnings:    quote.Warnings,
	}
	if req.PromoCode == "" {
		return p, nil
	}

	v, err := s.promos.Validate(ctx, req.PromoCode, quote.RequestedType, req.Amount)
	if err != nil {
		return nil, fmt.Errorf("validate promo code: %w", err)
	}
	if !v.Valid {
		return nil, &promo.InvalidCodeError{Code: promo.Normalize(req.PromoCode), Errors: v.Errors}
	}

	// Restricted codes reprice the order without the factors they exclude.
	if v.Code.DisablesTierBonuses || !v.Code.StacksWithSeasonalMultiplier {
		quote, err = s.quoter.Restrict(ctx, quote, v.Code.DisablesTierBonuses, !v.Code.StacksWithSeasonalMultiplier)
		if err != nil {
			return nil, err
		}
		p.Quote = quote
	}

	d, err := promo.Apply(v.Code, quote.Result.FinalAmount)
	if err != nil {
		return nil, fmt.Errorf("apply promo code: %w", err)
	}

	p.Promo = v.Code
	p.PromoDiscount = d
	p.FinalAmount = quote.Result.FinalAmount.Sub(d.Amount)
	p.Warnings = append(append([]string(nil), quote.Warnings...), v.Warnings...)
	return p, nil
}

// PlaceOrder prices, persists and finally redeems the promo code of an
// order. A code that runs out between pricing and redemption rolls the
// order back.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	p, err := s.Price(ctx, req.PriceRequest)
	if err != nil {
		return nil, err
	}

	res := p.Quote.Result
	o := &Order{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		CartID:        req.CartID,
		Items:         req.Items,
		RequestedType: p.Quote.RequestedType,
		EffectiveType: p.Quote.EffectiveType,
		Amount:        req.Amount,
		Breakdown: Breakdown{
			BaseDiscount:       res.BaseDiscount,
			TierBonus:          res.TierBonus,
			SeasonalMultiplier: res.SeasonalMultiplier,
			TotalDiscount:      res.TotalDiscount,
			AppliedCap:         res.AppliedCap,
			PeriodName:         res.PeriodName,
			TierSavings:        res.SavingsAmount.Round(2),
		},
		PromoDiscount: p.PromoDiscount.Amount.Round(2),
		FinalAmount:   p.FinalAmount.Round(2),
		Warnings:      p.Warnings,
		OrderDate:     p.Quote.OrderDate,
		CreatedAt:     s.now().UTC(),
	}
	if p.Promo != nil {
		o.PromoCode = p.Promo.Code
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if o.PromoCode == "" {
		return o, nil
	}

	if err := s.promos.Redeem(ctx, o.PromoCode); err != nil {
		lg := zctx.From(ctx).With(zap.String("order_id", o.ID), zap.String("promo_code", o.PromoCode))
		if delErr := s.orders.Delete(ctx, o.ID); delErr != nil {
			lg.Error("Failed to roll back order after redemption failure", zap.Error(delErr))
		}
		if errors.Is(err, promo.ErrUsageLimitReached) {
			return nil, &promo.InvalidCodeError{
				Code:   o.PromoCode,
				Errors: []string{"Promo code usage limit reached"},
			}
		}
		lg.Error("Promo code redemption failed", zap.Error(err))
		return nil, fmt.Errorf("redeem promo code: %w", err)
	}
	return o, nil
}

// Get returns a single order by ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// List returns every stored order.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) customerType(ctx context.Context, req PriceRequest) (string, error) {
	if req.CustomerType != "" {
		return req.CustomerType, nil
	}
	if req.CustomerID == "" || s.customers == nil {
		return "", ErrCustomerTypeRequired
	}
	c, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return "", fmt.Errorf("get customer: %w", err)
	}
	return string(c.Type), nil
}
