package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/domain/rules"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

func newTestProduct(id, category, price string) product.Product {
	return product.Product{
		ID:       id,
		Name:     id,
		Price:    d(price),
		Category: category,
	}
}

func catalog(products ...product.Product) map[string]product.Product {
	m := make(map[string]product.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

func testCatalog() map[string]product.Product {
	return catalog(
		newTestProduct("laptop", "Electronics", "1000"),
		newTestProduct("shirt", "clothing", "40"),
		newTestProduct("novel", "Books", "20"),
		newTestProduct("lamp", "Clearance", "50"),
		newTestProduct("mug", "Kitchen", "12.50"),
	)
}

func TestEngine_Price(t *testing.T) {
	engine := NewEngine(rules.Default())

	s, err := engine.Price([]Item{
		{ProductID: "laptop", Quantity: 1},
		{ProductID: "shirt", Quantity: 3},
		{ProductID: "novel", Quantity: 2},
		{ProductID: "lamp", Quantity: 1},
	}, testCatalog())
	require.NoError(t, err)

	assert.Equal(t, 7, s.ItemCount)
	assertDecimal(t, "1210", s.Subtotal)
	assertDecimal(t, "120", s.CategoryDiscounts)
	assertDecimal(t, "0", s.TierDiscount)
	assertDecimal(t, "0", s.PromoCodeDiscount)
	assertDecimal(t, "120", s.TotalDiscount)
	assertDecimal(t, "1090", s.FinalTotal)

	require.Len(t, s.Lines, 4)
	shirt := s.Lines[1]
	assertDecimal(t, "0.15", shirt.CategoryDiscount)
	assertDecimal(t, "34", shirt.DiscountedUnitPrice)
	assertDecimal(t, "120", shirt.Subtotal)
	assertDecimal(t, "18", shirt.Discount)
	assertDecimal(t, "102", shirt.Total)

	// Clearance is configured but inactive.
	assertDecimal(t, "0", s.Lines[3].CategoryDiscount)
	assertDecimal(t, "50", s.Lines[3].Total)
}

func TestEngine_Price_UncategorizedAndEmpty(t *testing.T) {
	engine := NewEngine(rules.Default())

	s, err := engine.Price([]Item{{ProductID: "mug", Quantity: 4}}, testCatalog())
	require.NoError(t, err)
	assertDecimal(t, "50", s.FinalTotal)
	assertDecimal(t, "0", s.CategoryDiscounts)

	s, err = engine.Price(nil, testCatalog())
	require.NoError(t, err)
	assert.Zero(t, s.ItemCount)
	assertDecimal(t, "0", s.FinalTotal)
}

func TestEngine_Price_Errors(t *testing.T) {
	engine := NewEngine(rules.Default())

	_, err := engine.Price([]Item{{ProductID: "ghost", Quantity: 1}}, testCatalog())
	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "ghost", pnfErr.ProductID)

	_, err = engine.Price([]Item{{ProductID: "laptop", Quantity: 0}}, testCatalog())
	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "laptop", iqErr.ProductID)
}

func TestCart_AddRemoveItem(t *testing.T) {
	var c Cart
	c.AddItem("a", 1)
	c.AddItem("b", 2)
	c.AddItem("a", 3)

	assert.Equal(t, []Item{{ProductID: "a", Quantity: 4}, {ProductID: "b", Quantity: 2}}, c.Items)

	assert.True(t, c.RemoveItem("a"))
	assert.False(t, c.RemoveItem("a"))
	assert.Equal(t, []Item{{ProductID: "b", Quantity: 2}}, c.Items)
}
