package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-discounts/internal/domain/customer"
	"github.com/xenking/kart-discounts/internal/domain/order"
)

const (
	orderColumns = `id, customer_id, cart_id, items, requested_type, effective_type, amount,
		base_discount, tier_bonus, seasonal_multiplier, total_discount, applied_cap, period_name,
		tier_savings, promo_code, promo_discount, final_amount, warnings, order_date, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at, id`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are stored in a JSONB
// column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items := o.Items
	if items == nil {
		items = []order.OrderItem{}
	}
	warnings := o.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	b := o.Breakdown
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, o.CartID, items,
		string(o.RequestedType), string(o.EffectiveType), o.Amount,
		b.BaseDiscount, b.TierBonus, b.SeasonalMultiplier, b.TotalDiscount, b.AppliedCap, b.PeriodName,
		b.TierSavings, o.PromoCode, o.PromoDiscount, o.FinalAmount, warnings,
		o.OrderDate, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// Get returns an order by ID.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns every order, oldest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderSQL, id); err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		requestedType string
		effectiveType string
	)
	b := &o.Breakdown
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CartID, &o.Items, &requestedType, &effectiveType, &o.Amount,
		&b.BaseDiscount, &b.TierBonus, &b.SeasonalMultiplier, &b.TotalDiscount, &b.AppliedCap, &b.PeriodName,
		&b.TierSavings, &o.PromoCode, &o.PromoDiscount, &o.FinalAmount, &o.Warnings, &o.OrderDate, &o.CreatedAt,
	)
	o.RequestedType = customer.Type(requestedType)
	o.EffectiveType = customer.Type(effectiveType)
	return o, err
}
