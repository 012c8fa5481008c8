package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/order"
	"github.com/xenking/kart-discounts/internal/domain/product"
)

// OrderPlacer places priced orders. It is implemented by order.Service.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
}

// CheckoutRequest holds the customer side of a checkout.
type CheckoutRequest struct {
	CustomerType string
	OrderDate    time.Time
	PromoCode    string
}

// CheckoutResult is the placed order with the cart summary completed by
// its tier and promo discounts.
type CheckoutResult struct {
	Order   *order.Order
	Summary Summary
}

// Service manages carts and turns them into orders.
type Service struct {
	carts    Repository
	products product.Repository
	engine   *Engine
	orders   OrderPlacer
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository, engine *Engine, orders OrderPlacer) *Service {
	return &Service{
		carts:    carts,
		products: products,
		engine:   engine,
		orders:   orders,
		now:      time.Now,
	}
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context, customerID string) (*Cart, error) {
	now := s.now().UTC()
	c := &Cart{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return c, nil
}

// Get returns a cart by ID.
func (s *Service) Get(ctx context.Context, id string) (*Cart, error) {
	c, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

// AddItem adds qty of a catalog product to the cart.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID}
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: productID}
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	c.AddItem(productID, qty)
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem drops a product from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !c.RemoveItem(productID) {
		return nil, &ProductNotFoundError{ProductID: productID}
	}
	if err := s.update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Summarize prices the cart with category discounts only.
func (s *Service) Summarize(ctx context.Context, cartID string) (*Summary, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	summary, err := s.price(ctx, c)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Checkout places an order for the cart total after category discounts.
// Tier and promo discounts are applied on that total by the order service
// and reported in the returned summary. The cart is emptied afterwards;
// once the order is placed, a failure to empty it is only logged.
func (s *Service) Checkout(ctx context.Context, cartID string, req CheckoutRequest) (*CheckoutResult, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmpty
	}

	summary, err := s.price(ctx, c)
	if err != nil {
		return nil, err
	}

	items := make([]order.OrderItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = order.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	o, err := s.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		PriceRequest: order.PriceRequest{
			CustomerID:   c.CustomerID,
			CustomerType: req.CustomerType,
			Amount:       summary.FinalTotal,
			OrderDate:    req.OrderDate,
			PromoCode:    req.PromoCode,
		},
		CartID: c.ID,
		Items:  items,
	})
	if err != nil {
		return nil, err
	}

	summary.TierDiscount = o.Breakdown.TierSavings
	summary.PromoCodeDiscount = o.PromoDiscount
	summary.TotalDiscount = summary.CategoryDiscounts.Add(o.Breakdown.TierSavings).Add(o.PromoDiscount)
	summary.FinalTotal = o.FinalAmount

	c.Items = nil
	if err := s.update(ctx, c); err != nil {
		zctx.From(ctx).Error("Failed to clear cart after checkout",
			zap.String("cart_id", c.ID),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return &CheckoutResult{Order: o, Summary: summary}, nil
}

func (s *Service) price(ctx context.Context, c *Cart) (Summary, error) {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return Summary{}, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	return s.engine.Price(c.Items, byID)
}

func (s *Service) update(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now().UTC()
	if err := s.carts.Update(ctx, c); err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}
