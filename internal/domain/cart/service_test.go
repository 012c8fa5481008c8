package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-discounts/internal/domain/order"
	"github.com/xenking/kart-discounts/internal/domain/product"
	"github.com/xenking/kart-discounts/internal/domain/rules"
)

// --- Mock implementations ---

type mockCartRepo struct {
	carts     map[string]*Cart
	updateErr error
}

func (m *mockCartRepo) Create(_ context.Context, c *Cart) error {
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *mockCartRepo) Get(_ context.Context, id string) (*Cart, error) {
	c, ok := m.carts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Update(_ context.Context, c *Cart) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.carts[c.ID]; !ok {
		return ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	m.carts[c.ID] = &cp
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, id string) error {
	delete(m.carts, id)
	return nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Upsert(_ context.Context, _ *product.Product) error {
	return nil
}

type mockOrderPlacer struct {
	lastReq order.PlaceOrderRequest
	order   *order.Order
	err     error
	calls   int
}

func (m *mockOrderPlacer) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.Order, error) {
	m.calls++
	m.lastReq = req
	return m.order, m.err
}

// --- Helpers ---

func newTestService(placer *mockOrderPlacer) (*Service, *mockCartRepo) {
	carts := &mockCartRepo{carts: make(map[string]*Cart)}
	products := &mockProductRepo{byID: testCatalog()}
	return NewService(carts, products, NewEngine(rules.Default()), placer), carts
}

// --- Tests ---

func TestService_AddItem(t *testing.T) {
	svc, _ := newTestService(&mockOrderPlacer{})
	ctx := context.Background()

	c, err := svc.Create(ctx, "c1")
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, c.ID, "laptop", 1)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, c.ID, "laptop", 2)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ProductID: "laptop", Quantity: 3}}, c.Items)

	_, err = svc.AddItem(ctx, c.ID, "ghost", 1)
	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)

	_, err = svc.AddItem(ctx, c.ID, "laptop", -1)
	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)

	_, err = svc.AddItem(ctx, "missing", "laptop", 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_RemoveItem(t *testing.T) {
	svc, _ := newTestService(&mockOrderPlacer{})
	ctx := context.Background()

	c, err := svc.Create(ctx, "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "novel", 1)
	require.NoError(t, err)

	c, err = svc.RemoveItem(ctx, c.ID, "novel")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	_, err = svc.RemoveItem(ctx, c.ID, "novel")
	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
}

func TestService_Summarize(t *testing.T) {
	svc, _ := newTestService(&mockOrderPlacer{})
	ctx := context.Background()

	c, err := svc.Create(ctx, "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "shirt", 2)
	require.NoError(t, err)

	s, err := svc.Summarize(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.ItemCount)
	assertDecimal(t, "80", s.Subtotal)
	assertDecimal(t, "68", s.FinalTotal)
	assertDecimal(t, "0", s.TierDiscount)
}

func TestService_Checkout(t *testing.T) {
	placer := &mockOrderPlacer{order: &order.Order{
		ID:            "o1",
		PromoCode:     "WELCOME10",
		PromoDiscount: d("81"),
		FinalAmount:   d("729"),
		Breakdown:     order.Breakdown{TierSavings: d("90")},
	}}
	svc, carts := newTestService(placer)
	ctx := context.Background()

	c, err := svc.Create(ctx, "c1")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "laptop", 1)
	require.NoError(t, err)

	date := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	res, err := svc.Checkout(ctx, c.ID, CheckoutRequest{CustomerType: "VIP", OrderDate: date, PromoCode: "WELCOME10"})
	require.NoError(t, err)

	// The order is priced on the total after category discounts.
	assertDecimal(t, "900", placer.lastReq.Amount)
	assert.Equal(t, "VIP", placer.lastReq.CustomerType)
	assert.Equal(t, "c1", placer.lastReq.CustomerID)
	assert.Equal(t, c.ID, placer.lastReq.CartID)
	assert.Equal(t, []order.OrderItem{{ProductID: "laptop", Quantity: 1}}, placer.lastReq.Items)

	assert.Equal(t, "o1", res.Order.ID)
	assertDecimal(t, "1000", res.Summary.Subtotal)
	assertDecimal(t, "100", res.Summary.CategoryDiscounts)
	assertDecimal(t, "90", res.Summary.TierDiscount)
	assertDecimal(t, "81", res.Summary.PromoCodeDiscount)
	assertDecimal(t, "271", res.Summary.TotalDiscount)
	assertDecimal(t, "729", res.Summary.FinalTotal)

	assert.Empty(t, carts.carts[c.ID].Items)
}

func TestService_Checkout_Errors(t *testing.T) {
	placer := &mockOrderPlacer{err: errors.New("promo rejected")}
	svc, carts := newTestService(placer)
	ctx := context.Background()

	c, err := svc.Create(ctx, "")
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, c.ID, CheckoutRequest{CustomerType: "VIP"})
	require.ErrorIs(t, err, ErrEmpty)

	_, err = svc.AddItem(ctx, c.ID, "novel", 1)
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, c.ID, CheckoutRequest{CustomerType: "VIP"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promo rejected")

	// A failed checkout keeps the cart.
	assert.Len(t, carts.carts[c.ID].Items, 1)
	assert.True(t, decimal.NewFromInt(19).Equal(placer.lastReq.Amount))
}

func TestService_Checkout_ClearFails(t *testing.T) {
	placer := &mockOrderPlacer{order: &order.Order{ID: "o1", FinalAmount: d("19")}}
	svc, carts := newTestService(placer)
	ctx := context.Background()

	c, err := svc.Create(ctx, "")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, c.ID, "novel", 1)
	require.NoError(t, err)

	carts.updateErr = errors.New("connection reset")
	res, err := svc.Checkout(ctx, c.ID, CheckoutRequest{CustomerType: "REGULAR"})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Equal(t, "o1", res.Order.ID)
	assertDecimal(t, "19", res.Summary.FinalTotal)
	assert.Equal(t, 1, placer.calls)
}
