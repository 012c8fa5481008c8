package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-discounts/internal/domain/product"
)

// ProductNotFoundError indicates a cart line references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// CategoryDiscounts resolves the discount fraction of a product category.
type CategoryDiscounts interface {
	CategoryDiscountFor(category string) decimal.Decimal
}

// Line is a priced cart line.
type Line struct {
	Product  product.Product
	Quantity int
	// CategoryDiscount is the fraction taken off the unit price.
	CategoryDiscount    decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	// Subtotal is before and Total after the category discount.
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Summary aggregates a priced cart. TierDiscount and PromoCodeDiscount are
// only filled in by checkout.
type Summary struct {
	Lines             []Line
	ItemCount         int
	Subtotal          decimal.Decimal
	CategoryDiscounts decimal.Decimal
	TierDiscount      decimal.Decimal
	PromoCodeDiscount decimal.Decimal
	TotalDiscount     decimal.Decimal
	FinalTotal        decimal.Decimal
}

// Engine prices cart lines with category discounts only.
type Engine struct {
	discounts CategoryDiscounts
}

// NewEngine creates an Engine using the given category discounts.
func NewEngine(discounts CategoryDiscounts) *Engine {
	return &Engine{discounts: discounts}
}

// Price computes the summary of items using products keyed by ID.
func (e *Engine) Price(items []Item, products map[string]product.Product) (Summary, error) {
	s := Summary{
		Lines:             make([]Line, 0, len(items)),
		Subtotal:          decimal.Zero,
		CategoryDiscounts: decimal.Zero,
		TierDiscount:      decimal.Zero,
		PromoCodeDiscount: decimal.Zero,
	}

	for _, item := range items {
		if item.Quantity <= 0 {
			return Summary{}, &InvalidQuantityError{ProductID: item.ProductID}
		}
		p, ok := products[item.ProductID]
		if !ok {
			return Summary{}, &ProductNotFoundError{ProductID: item.ProductID}
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		fraction := e.discounts.CategoryDiscountFor(p.Category)
		unit := p.Price.Mul(decimal.NewFromInt(1).Sub(fraction))
		subtotal := p.Price.Mul(qty)
		total := unit.Mul(qty)

		s.Lines = append(s.Lines, Line{
			Product:             p,
			Quantity:            item.Quantity,
			CategoryDiscount:    fraction,
			DiscountedUnitPrice: unit,
			Subtotal:            subtotal,
			Discount:            subtotal.Sub(total),
			Total:               total,
		})
		s.ItemCount += item.Quantity
		s.Subtotal = s.Subtotal.Add(subtotal)
		s.CategoryDiscounts = s.CategoryDiscounts.Add(subtotal.Sub(total))
	}

	s.TotalDiscount = s.CategoryDiscounts
	s.FinalTotal = s.Subtotal.Sub(s.TotalDiscount)
	return s, nil
}
